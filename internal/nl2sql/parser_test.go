package nl2sql

import (
	"strings"
	"testing"
)

func TestParseCompletionFencedBlock(t *testing.T) {
	content := "Here is the query you asked for:\n\n```sql\nSELECT COUNT(*) AS patients\nFROM person\n```\n\nThis counts every patient in the person table."
	sql, explanation, err := ParseCompletion(content)
	if err != nil {
		t.Fatalf("ParseCompletion() error = %v", err)
	}
	if sql != "SELECT COUNT(*) AS patients\nFROM person" {
		t.Fatalf("sql = %q", sql)
	}
	if !strings.Contains(explanation, "counts every patient") {
		t.Fatalf("explanation = %q", explanation)
	}
	if strings.Contains(explanation, "```") {
		t.Fatalf("explanation retains fence markers: %q", explanation)
	}
}

func TestParseCompletionUnlabelledFence(t *testing.T) {
	content := "```\nWITH recent AS (SELECT person_id FROM visit_occurrence)\nSELECT COUNT(*) FROM recent\n```"
	sql, explanation, err := ParseCompletion(content)
	if err != nil {
		t.Fatalf("ParseCompletion() error = %v", err)
	}
	if !strings.HasPrefix(sql, "WITH recent") {
		t.Fatalf("sql = %q", sql)
	}
	if explanation != "" {
		t.Fatalf("explanation = %q, want empty", explanation)
	}
}

func TestParseCompletionBareSQL(t *testing.T) {
	sql, explanation, err := ParseCompletion("SELECT person_id FROM person LIMIT 10")
	if err != nil {
		t.Fatalf("ParseCompletion() error = %v", err)
	}
	if sql != "SELECT person_id FROM person LIMIT 10" {
		t.Fatalf("sql = %q", sql)
	}
	if explanation != "" {
		t.Fatalf("explanation = %q", explanation)
	}
}

func TestParseCompletionLineHeuristicWithExplanationMarker(t *testing.T) {
	content := "Sure, I can help with that.\nSELECT gender_concept_id, COUNT(*) AS n\nFROM person\nGROUP BY gender_concept_id\nExplanation: groups patients by gender concept."
	sql, explanation, err := ParseCompletion(content)
	if err != nil {
		t.Fatalf("ParseCompletion() error = %v", err)
	}
	if !strings.HasPrefix(sql, "SELECT gender_concept_id") {
		t.Fatalf("sql = %q", sql)
	}
	if strings.Contains(sql, "Explanation") {
		t.Fatalf("sql absorbed the explanation: %q", sql)
	}
	if !strings.Contains(explanation, "groups patients by gender") {
		t.Fatalf("explanation = %q", explanation)
	}
	if !strings.Contains(explanation, "Sure, I can help") {
		t.Fatalf("leading prose dropped: %q", explanation)
	}
}

func TestParseCompletionIgnoresNonSelectFence(t *testing.T) {
	content := "```sql\nDROP TABLE person\n```\nSELECT 1"
	sql, _, err := ParseCompletion(content)
	if err != nil {
		t.Fatalf("ParseCompletion() error = %v", err)
	}
	if sql != "SELECT 1" {
		t.Fatalf("sql = %q", sql)
	}
}

func TestParseCompletionNoSQL(t *testing.T) {
	if _, _, err := ParseCompletion("I am unable to answer that question."); err == nil {
		t.Fatal("expected error for prose-only response")
	}
	if _, _, err := ParseCompletion("   "); err == nil {
		t.Fatal("expected error for empty response")
	}
}
