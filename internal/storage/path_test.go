package storage

import (
	"testing"
	"time"
)

func TestBuildDemoTablePath(t *testing.T) {
	key, err := BuildDemoTablePath("demo", "condition_occurrence")
	if err != nil {
		t.Fatalf("BuildDemoTablePath() error = %v", err)
	}
	want := "demo/condition_occurrence.parquet"
	if key != want {
		t.Fatalf("BuildDemoTablePath() = %q, want %q", key, want)
	}
}

func TestBuildExportPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 4, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildExportPath("f0a1b2c3", ts)
	if err != nil {
		t.Fatalf("BuildExportPath() error = %v", err)
	}
	want := "exports/date=2026-02-19/f0a1b2c3.csv"
	if key != want {
		t.Fatalf("BuildExportPath() = %q, want %q", key, want)
	}
}

func TestBuildPathRejectsInvalidComponent(t *testing.T) {
	if _, err := BuildDemoTablePath("../oops", "person"); err == nil {
		t.Fatal("expected invalid component error")
	}
	if _, err := BuildDemoTablePath("demo", "person/../../etc"); err == nil {
		t.Fatal("expected invalid component error")
	}
}
