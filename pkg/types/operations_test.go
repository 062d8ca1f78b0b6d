package types

import (
	"slices"
	"testing"
)

func TestNewPlan(t *testing.T) {
	plan := NewPlan(
		Change{File: "src/main.rs", Start: 10, End: 20, NewText: "x"},
		Change{File: "src/lib.rs", Start: 0, End: 0, NewText: "use a::b;\n"},
		Change{File: "src/main.rs", Start: 30, End: 31},
	)

	if len(plan.Changes) != 3 {
		t.Errorf("Expected 3 changes, got %d", len(plan.Changes))
	}
	if !slices.Equal(plan.AffectedFiles, []string{"src/lib.rs", "src/main.rs"}) {
		t.Errorf("Unexpected affected files %v", plan.AffectedFiles)
	}
	if !plan.Reversible {
		t.Error("Expected plan to be reversible")
	}
}

func TestNewPlan_Empty(t *testing.T) {
	plan := NewPlan()
	if len(plan.Changes) != 0 || len(plan.AffectedFiles) != 0 {
		t.Errorf("Expected an empty plan, got %+v", plan)
	}
}

func TestIssueSeverity(t *testing.T) {
	testCases := []struct {
		severity IssueSeverity
		expected string
	}{
		{Error, "Error"},
		{Warning, "Warning"},
		{Info, "Info"},
		{IssueSeverity(99), "Unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := tc.severity.String(); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestImportSearchMode(t *testing.T) {
	if ExactImports.String() != "exact" {
		t.Errorf("Expected exact, got %s", ExactImports)
	}
	if SimilarImports.String() != "similar" {
		t.Errorf("Expected similar, got %s", SimilarImports)
	}
}
