package models

// Issue is an externally supplied unit of work description.
// It is immutable for the duration of analysis.
type Issue struct {
	// ID is an opaque identifier assigned by the issue source.
	ID string `json:"id"`
	// Number is the issue number within its repository.
	Number int `json:"number"`
	// Title is the issue title.
	Title string `json:"title"`
	// Body is the free-text issue body.
	Body string `json:"body"`
	// Labels are the label names attached to the issue.
	Labels []string `json:"labels"`
}
