package omop

import (
	"strings"
	"testing"
)

func TestTablesContainCoreClinicalTables(t *testing.T) {
	names := TableNames()
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		seen[name] = true
	}
	for _, want := range []string{"person", "condition_occurrence", "drug_exposure", "measurement", "concept", "death"} {
		if !seen[want] {
			t.Fatalf("catalog is missing table %q", want)
		}
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	table, ok := Lookup("  Person ")
	if !ok {
		t.Fatal("Lookup(person) failed")
	}
	if table.Name != "person" {
		t.Fatalf("table.Name = %q", table.Name)
	}
	if len(table.Columns) == 0 {
		t.Fatal("person table has no columns")
	}
	if _, ok := Lookup("cohort"); ok {
		t.Fatal("Lookup(cohort) should fail")
	}
}

func TestDescribeForPromptMentionsEveryTable(t *testing.T) {
	prompt := DescribeForPrompt()
	for _, name := range TableNames() {
		if !strings.Contains(prompt, name+" --") {
			t.Fatalf("prompt is missing table %q", name)
		}
	}
	if !strings.Contains(prompt, "person_id") {
		t.Fatal("prompt should mention the join key")
	}
}
