// Package omop carries a static catalog of the OMOP Common Data Model v5.4
// core tables. The catalog feeds two consumers: the prompt sent to language
// model providers, and the schema endpoint the UI renders.
package omop

import (
	"fmt"
	"strings"
)

type Column struct {
	Name        string
	Type        string
	Description string
}

type Table struct {
	Name        string
	Description string
	Columns     []Column
}

// Tables returns the catalog in a stable order. The slice is rebuilt on each
// call so callers may not mutate shared state.
func Tables() []Table {
	return []Table{
		{
			Name:        "person",
			Description: "One row per patient with demographic attributes.",
			Columns: []Column{
				{Name: "person_id", Type: "bigint", Description: "Unique patient identifier."},
				{Name: "gender_concept_id", Type: "integer", Description: "Standard concept for gender (8507 male, 8532 female)."},
				{Name: "year_of_birth", Type: "integer", Description: "Year of birth."},
				{Name: "month_of_birth", Type: "integer", Description: "Month of birth, nullable."},
				{Name: "race_concept_id", Type: "integer", Description: "Standard concept for race."},
				{Name: "ethnicity_concept_id", Type: "integer", Description: "Standard concept for ethnicity."},
			},
		},
		{
			Name:        "observation_period",
			Description: "Spans of time a person is observed in the source data.",
			Columns: []Column{
				{Name: "observation_period_id", Type: "bigint", Description: "Surrogate key."},
				{Name: "person_id", Type: "bigint", Description: "Patient reference."},
				{Name: "observation_period_start_date", Type: "date", Description: "Start of continuous observation."},
				{Name: "observation_period_end_date", Type: "date", Description: "End of continuous observation."},
			},
		},
		{
			Name:        "visit_occurrence",
			Description: "Patient encounters with the healthcare system.",
			Columns: []Column{
				{Name: "visit_occurrence_id", Type: "bigint", Description: "Surrogate key."},
				{Name: "person_id", Type: "bigint", Description: "Patient reference."},
				{Name: "visit_concept_id", Type: "integer", Description: "Visit type concept (9201 inpatient, 9202 outpatient, 9203 ER)."},
				{Name: "visit_start_date", Type: "date", Description: "Visit start."},
				{Name: "visit_end_date", Type: "date", Description: "Visit end."},
			},
		},
		{
			Name:        "condition_occurrence",
			Description: "Diagnoses and conditions recorded for a person.",
			Columns: []Column{
				{Name: "condition_occurrence_id", Type: "bigint", Description: "Surrogate key."},
				{Name: "person_id", Type: "bigint", Description: "Patient reference."},
				{Name: "condition_concept_id", Type: "integer", Description: "Standard condition concept (SNOMED)."},
				{Name: "condition_start_date", Type: "date", Description: "Onset date."},
				{Name: "condition_end_date", Type: "date", Description: "Resolution date, nullable."},
				{Name: "visit_occurrence_id", Type: "bigint", Description: "Visit during which the condition was recorded, nullable."},
			},
		},
		{
			Name:        "drug_exposure",
			Description: "Drug prescriptions, dispensations, and administrations.",
			Columns: []Column{
				{Name: "drug_exposure_id", Type: "bigint", Description: "Surrogate key."},
				{Name: "person_id", Type: "bigint", Description: "Patient reference."},
				{Name: "drug_concept_id", Type: "integer", Description: "Standard drug concept (RxNorm)."},
				{Name: "drug_exposure_start_date", Type: "date", Description: "Exposure start."},
				{Name: "drug_exposure_end_date", Type: "date", Description: "Exposure end, nullable."},
				{Name: "quantity", Type: "numeric", Description: "Dispensed quantity, nullable."},
			},
		},
		{
			Name:        "procedure_occurrence",
			Description: "Procedures performed on a person.",
			Columns: []Column{
				{Name: "procedure_occurrence_id", Type: "bigint", Description: "Surrogate key."},
				{Name: "person_id", Type: "bigint", Description: "Patient reference."},
				{Name: "procedure_concept_id", Type: "integer", Description: "Standard procedure concept."},
				{Name: "procedure_date", Type: "date", Description: "Date performed."},
			},
		},
		{
			Name:        "measurement",
			Description: "Lab tests and vital signs with numeric results.",
			Columns: []Column{
				{Name: "measurement_id", Type: "bigint", Description: "Surrogate key."},
				{Name: "person_id", Type: "bigint", Description: "Patient reference."},
				{Name: "measurement_concept_id", Type: "integer", Description: "Standard measurement concept (LOINC)."},
				{Name: "measurement_date", Type: "date", Description: "Date measured."},
				{Name: "value_as_number", Type: "numeric", Description: "Numeric result, nullable."},
				{Name: "unit_concept_id", Type: "integer", Description: "Unit concept, nullable."},
			},
		},
		{
			Name:        "observation",
			Description: "Clinical facts that are not conditions, drugs, procedures, or measurements.",
			Columns: []Column{
				{Name: "observation_id", Type: "bigint", Description: "Surrogate key."},
				{Name: "person_id", Type: "bigint", Description: "Patient reference."},
				{Name: "observation_concept_id", Type: "integer", Description: "Standard observation concept."},
				{Name: "observation_date", Type: "date", Description: "Date observed."},
				{Name: "value_as_string", Type: "text", Description: "Textual value, nullable."},
			},
		},
		{
			Name:        "death",
			Description: "Mortality records, at most one per person.",
			Columns: []Column{
				{Name: "person_id", Type: "bigint", Description: "Patient reference."},
				{Name: "death_date", Type: "date", Description: "Date of death."},
				{Name: "cause_concept_id", Type: "integer", Description: "Cause of death concept, nullable."},
			},
		},
		{
			Name:        "concept",
			Description: "The OMOP vocabulary: every concept_id resolves here.",
			Columns: []Column{
				{Name: "concept_id", Type: "integer", Description: "Concept identifier."},
				{Name: "concept_name", Type: "text", Description: "Human-readable name."},
				{Name: "domain_id", Type: "text", Description: "Domain (Condition, Drug, Measurement, ...)."},
				{Name: "vocabulary_id", Type: "text", Description: "Source vocabulary (SNOMED, RxNorm, LOINC, ...)."},
				{Name: "concept_code", Type: "text", Description: "Code in the source vocabulary."},
			},
		},
		{
			Name:        "provider",
			Description: "Healthcare providers.",
			Columns: []Column{
				{Name: "provider_id", Type: "bigint", Description: "Surrogate key."},
				{Name: "specialty_concept_id", Type: "integer", Description: "Specialty concept, nullable."},
				{Name: "care_site_id", Type: "bigint", Description: "Primary care site, nullable."},
			},
		},
		{
			Name:        "care_site",
			Description: "Care delivery sites.",
			Columns: []Column{
				{Name: "care_site_id", Type: "bigint", Description: "Surrogate key."},
				{Name: "care_site_name", Type: "text", Description: "Site name."},
				{Name: "place_of_service_concept_id", Type: "integer", Description: "Place of service concept, nullable."},
			},
		},
	}
}

func TableNames() []string {
	tables := Tables()
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.Name)
	}
	return names
}

func Lookup(name string) (Table, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, table := range Tables() {
		if table.Name == needle {
			return table, true
		}
	}
	return Table{}, false
}

// DescribeForPrompt renders the catalog as compact DDL-style text for
// inclusion in provider prompts. Joins always go through person_id unless a
// vocabulary lookup is involved.
func DescribeForPrompt() string {
	var b strings.Builder
	b.WriteString("OMOP CDM v5.4 tables:\n")
	for _, table := range Tables() {
		fmt.Fprintf(&b, "\n%s -- %s\n", table.Name, table.Description)
		for _, column := range table.Columns {
			fmt.Fprintf(&b, "  %s %s -- %s\n", column.Name, column.Type, column.Description)
		}
	}
	b.WriteString("\nJoin tables on person_id; join concept_id columns to concept.concept_id for names.\n")
	return b.String()
}
