package models

import "testing"

func TestCategory_Valid(t *testing.T) {
	valid := []Category{
		CategoryBug, CategoryFeature, CategoryDocumentation, CategoryQuestion,
		CategorySecurity, CategoryPerformance, CategoryTesting,
		CategoryRefactoring, CategoryGeneral,
	}
	for _, c := range valid {
		if !c.Valid() {
			t.Errorf("category %q should be valid", c)
		}
	}

	if Category("chore").Valid() {
		t.Error("unknown category should not be valid")
	}
}

func TestComplexity_Valid(t *testing.T) {
	for _, c := range []Complexity{ComplexityLow, ComplexityMedium, ComplexityHigh} {
		if !c.Valid() {
			t.Errorf("complexity %q should be valid", c)
		}
	}

	if Complexity("extreme").Valid() {
		t.Error("unknown complexity should not be valid")
	}
}

func TestPriority_Valid(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh} {
		if !p.Valid() {
			t.Errorf("priority %q should be valid", p)
		}
	}

	if Priority("critical").Valid() {
		t.Error("unknown priority should not be valid")
	}
}
