package seeder

import (
	"math"
	"math/rand"
	"time"
)

// Dataset holds one synthetic OMOP CDM extract. Row counts scale with the
// configured person count; every foreign key resolves inside the dataset.
type Dataset struct {
	Persons              []PersonRow
	ObservationPeriods   []ObservationPeriodRow
	VisitOccurrences     []VisitOccurrenceRow
	ConditionOccurrences []ConditionOccurrenceRow
	DrugExposures        []DrugExposureRow
	ProcedureOccurrences []ProcedureOccurrenceRow
	Measurements         []MeasurementRow
	Observations         []ObservationRow
	Deaths               []DeathRow
	Concepts             []ConceptRow
	Providers            []ProviderRow
	CareSites            []CareSiteRow
}

type PersonRow struct {
	PersonID           int64 `parquet:"person_id"`
	GenderConceptID    int32 `parquet:"gender_concept_id"`
	YearOfBirth        int32 `parquet:"year_of_birth"`
	MonthOfBirth       int32 `parquet:"month_of_birth"`
	RaceConceptID      int32 `parquet:"race_concept_id"`
	EthnicityConceptID int32 `parquet:"ethnicity_concept_id"`
}

type ObservationPeriodRow struct {
	ObservationPeriodID int64  `parquet:"observation_period_id"`
	PersonID            int64  `parquet:"person_id"`
	StartDate           string `parquet:"observation_period_start_date"`
	EndDate             string `parquet:"observation_period_end_date"`
}

type VisitOccurrenceRow struct {
	VisitOccurrenceID int64  `parquet:"visit_occurrence_id"`
	PersonID          int64  `parquet:"person_id"`
	VisitConceptID    int32  `parquet:"visit_concept_id"`
	VisitStartDate    string `parquet:"visit_start_date"`
	VisitEndDate      string `parquet:"visit_end_date"`
}

type ConditionOccurrenceRow struct {
	ConditionOccurrenceID int64  `parquet:"condition_occurrence_id"`
	PersonID              int64  `parquet:"person_id"`
	ConditionConceptID    int32  `parquet:"condition_concept_id"`
	ConditionStartDate    string `parquet:"condition_start_date"`
	ConditionEndDate      string `parquet:"condition_end_date"`
	VisitOccurrenceID     int64  `parquet:"visit_occurrence_id"`
}

type DrugExposureRow struct {
	DrugExposureID int64   `parquet:"drug_exposure_id"`
	PersonID       int64   `parquet:"person_id"`
	DrugConceptID  int32   `parquet:"drug_concept_id"`
	StartDate      string  `parquet:"drug_exposure_start_date"`
	EndDate        string  `parquet:"drug_exposure_end_date"`
	Quantity       float64 `parquet:"quantity"`
}

type ProcedureOccurrenceRow struct {
	ProcedureOccurrenceID int64  `parquet:"procedure_occurrence_id"`
	PersonID              int64  `parquet:"person_id"`
	ProcedureConceptID    int32  `parquet:"procedure_concept_id"`
	ProcedureDate         string `parquet:"procedure_date"`
}

type MeasurementRow struct {
	MeasurementID        int64   `parquet:"measurement_id"`
	PersonID             int64   `parquet:"person_id"`
	MeasurementConceptID int32   `parquet:"measurement_concept_id"`
	MeasurementDate      string  `parquet:"measurement_date"`
	ValueAsNumber        float64 `parquet:"value_as_number"`
	UnitConceptID        int32   `parquet:"unit_concept_id"`
}

type ObservationRow struct {
	ObservationID        int64  `parquet:"observation_id"`
	PersonID             int64  `parquet:"person_id"`
	ObservationConceptID int32  `parquet:"observation_concept_id"`
	ObservationDate      string `parquet:"observation_date"`
	ValueAsString        string `parquet:"value_as_string"`
}

type DeathRow struct {
	PersonID       int64  `parquet:"person_id"`
	DeathDate      string `parquet:"death_date"`
	CauseConceptID int32  `parquet:"cause_concept_id"`
}

type ConceptRow struct {
	ConceptID    int32  `parquet:"concept_id"`
	ConceptName  string `parquet:"concept_name"`
	DomainID     string `parquet:"domain_id"`
	VocabularyID string `parquet:"vocabulary_id"`
	ConceptCode  string `parquet:"concept_code"`
}

type ProviderRow struct {
	ProviderID         int64 `parquet:"provider_id"`
	SpecialtyConceptID int32 `parquet:"specialty_concept_id"`
	CareSiteID         int64 `parquet:"care_site_id"`
}

type CareSiteRow struct {
	CareSiteID              int64  `parquet:"care_site_id"`
	CareSiteName            string `parquet:"care_site_name"`
	PlaceOfServiceConceptID int32  `parquet:"place_of_service_concept_id"`
}

type namedConcept struct {
	id         int32
	name       string
	domain     string
	vocabulary string
	code       string
}

var conditionConcepts = []namedConcept{
	{320128, "Essential hypertension", "Condition", "SNOMED", "59621000"},
	{201826, "Type 2 diabetes mellitus", "Condition", "SNOMED", "44054006"},
	{313217, "Atrial fibrillation", "Condition", "SNOMED", "49436004"},
	{312327, "Acute myocardial infarction", "Condition", "SNOMED", "57054005"},
	{255573, "Chronic obstructive lung disease", "Condition", "SNOMED", "13645005"},
	{255848, "Pneumonia", "Condition", "SNOMED", "233604007"},
	{4329847, "Myocardial infarction", "Condition", "SNOMED", "22298006"},
	{436659, "Iron deficiency anemia", "Condition", "SNOMED", "87522002"},
}

var drugConcepts = []namedConcept{
	{1503297, "Metformin", "Drug", "RxNorm", "6809"},
	{1308216, "Lisinopril", "Drug", "RxNorm", "29046"},
	{1545958, "Atorvastatin", "Drug", "RxNorm", "83367"},
	{1713332, "Amoxicillin", "Drug", "RxNorm", "723"},
	{1112807, "Aspirin", "Drug", "RxNorm", "1191"},
	{956874, "Furosemide", "Drug", "RxNorm", "4603"},
}

var measurementConcepts = []namedConcept{
	{3004249, "Systolic blood pressure", "Measurement", "LOINC", "8480-6"},
	{3012888, "Diastolic blood pressure", "Measurement", "LOINC", "8462-4"},
	{3000963, "Hemoglobin A1c", "Measurement", "LOINC", "4548-4"},
	{3016723, "Creatinine", "Measurement", "LOINC", "2160-0"},
	{3024561, "Body weight", "Measurement", "LOINC", "29463-7"},
}

var procedureConcepts = []namedConcept{
	{4230911, "Echocardiography", "Procedure", "SNOMED", "40701008"},
	{4163872, "Colonoscopy", "Procedure", "SNOMED", "73761001"},
	{4030028, "Appendectomy", "Procedure", "SNOMED", "80146002"},
}

var observationConcepts = []namedConcept{
	{4005823, "Tobacco smoking status", "Observation", "SNOMED", "365980008"},
	{40766240, "Alcohol use", "Observation", "LOINC", "74013-4"},
}

var fixedConcepts = []namedConcept{
	{8507, "MALE", "Gender", "Gender", "M"},
	{8532, "FEMALE", "Gender", "Gender", "F"},
	{9201, "Inpatient Visit", "Visit", "Visit", "IP"},
	{9202, "Outpatient Visit", "Visit", "Visit", "OP"},
	{9203, "Emergency Room Visit", "Visit", "Visit", "ER"},
}

var careSiteNames = []string{
	"Riverside General Hospital",
	"Lakeview Community Clinic",
	"Summit Cardiology Center",
	"Northgate Family Practice",
}

// Generator builds deterministic synthetic datasets. The same seed and
// person count always yield byte-identical output.
type Generator struct {
	rnd *rand.Rand
	now func() time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (g *Generator) Dataset(personCount int) Dataset {
	var ds Dataset

	ds.Concepts = conceptRows()
	ds.CareSites = g.careSites()
	ds.Providers = g.providers(len(ds.CareSites))

	var visitSeq, conditionSeq, drugSeq, procedureSeq, measurementSeq, observationSeq, periodSeq int64

	for i := 0; i < personCount; i++ {
		personID := int64(i + 1)
		yearOfBirth := int32(1930 + g.rnd.Intn(85))
		gender := int32(8507)
		if g.rnd.Intn(100) < 51 {
			gender = 8532
		}
		ds.Persons = append(ds.Persons, PersonRow{
			PersonID:           personID,
			GenderConceptID:    gender,
			YearOfBirth:        yearOfBirth,
			MonthOfBirth:       int32(g.rnd.Intn(12) + 1),
			RaceConceptID:      0,
			EthnicityConceptID: 0,
		})

		periodStart := g.pastDate(365 * 8)
		periodSeq++
		ds.ObservationPeriods = append(ds.ObservationPeriods, ObservationPeriodRow{
			ObservationPeriodID: periodSeq,
			PersonID:            personID,
			StartDate:           formatDate(periodStart),
			EndDate:             formatDate(g.now()),
		})

		visitCount := g.rnd.Intn(5) + 1
		for v := 0; v < visitCount; v++ {
			visitSeq++
			visitStart := g.dateAfter(periodStart)
			visitConcept := pickConceptID(g.rnd, []int32{9201, 9202, 9202, 9202, 9203})
			visitDays := 0
			if visitConcept == 9201 {
				visitDays = g.rnd.Intn(10) + 1
			}
			ds.VisitOccurrences = append(ds.VisitOccurrences, VisitOccurrenceRow{
				VisitOccurrenceID: visitSeq,
				PersonID:          personID,
				VisitConceptID:    visitConcept,
				VisitStartDate:    formatDate(visitStart),
				VisitEndDate:      formatDate(visitStart.AddDate(0, 0, visitDays)),
			})

			if g.rnd.Intn(100) < 70 {
				conditionSeq++
				condition := conditionConcepts[g.rnd.Intn(len(conditionConcepts))]
				ds.ConditionOccurrences = append(ds.ConditionOccurrences, ConditionOccurrenceRow{
					ConditionOccurrenceID: conditionSeq,
					PersonID:              personID,
					ConditionConceptID:    condition.id,
					ConditionStartDate:    formatDate(visitStart),
					ConditionEndDate:      formatDate(visitStart.AddDate(0, 0, g.rnd.Intn(90)+1)),
					VisitOccurrenceID:     visitSeq,
				})
			}
			if g.rnd.Intn(100) < 55 {
				drugSeq++
				drug := drugConcepts[g.rnd.Intn(len(drugConcepts))]
				ds.DrugExposures = append(ds.DrugExposures, DrugExposureRow{
					DrugExposureID: drugSeq,
					PersonID:       personID,
					DrugConceptID:  drug.id,
					StartDate:      formatDate(visitStart),
					EndDate:        formatDate(visitStart.AddDate(0, 0, g.rnd.Intn(60)+7)),
					Quantity:       float64(g.rnd.Intn(90) + 10),
				})
			}
			if g.rnd.Intn(100) < 25 {
				procedureSeq++
				procedure := procedureConcepts[g.rnd.Intn(len(procedureConcepts))]
				ds.ProcedureOccurrences = append(ds.ProcedureOccurrences, ProcedureOccurrenceRow{
					ProcedureOccurrenceID: procedureSeq,
					PersonID:              personID,
					ProcedureConceptID:    procedure.id,
					ProcedureDate:         formatDate(visitStart),
				})
			}

			measurementCount := g.rnd.Intn(3)
			for m := 0; m < measurementCount; m++ {
				measurementSeq++
				measurement := measurementConcepts[g.rnd.Intn(len(measurementConcepts))]
				ds.Measurements = append(ds.Measurements, MeasurementRow{
					MeasurementID:        measurementSeq,
					PersonID:             personID,
					MeasurementConceptID: measurement.id,
					MeasurementDate:      formatDate(visitStart),
					ValueAsNumber:        g.measurementValue(measurement.id),
					UnitConceptID:        0,
				})
			}
		}

		if g.rnd.Intn(100) < 40 {
			observationSeq++
			observation := observationConcepts[g.rnd.Intn(len(observationConcepts))]
			ds.Observations = append(ds.Observations, ObservationRow{
				ObservationID:        observationSeq,
				PersonID:             personID,
				ObservationConceptID: observation.id,
				ObservationDate:      formatDate(g.dateAfter(periodStart)),
				ValueAsString:        pickString(g.rnd, []string{"never", "former", "current"}),
			})
		}

		if g.rnd.Intn(100) < 4 {
			cause := conditionConcepts[g.rnd.Intn(len(conditionConcepts))]
			ds.Deaths = append(ds.Deaths, DeathRow{
				PersonID:       personID,
				DeathDate:      formatDate(g.dateAfter(periodStart)),
				CauseConceptID: cause.id,
			})
		}
	}

	return ds
}

func (g *Generator) careSites() []CareSiteRow {
	sites := make([]CareSiteRow, 0, len(careSiteNames))
	for i, name := range careSiteNames {
		sites = append(sites, CareSiteRow{
			CareSiteID:              int64(i + 1),
			CareSiteName:            name,
			PlaceOfServiceConceptID: pickConceptID(g.rnd, []int32{9201, 9202}),
		})
	}
	return sites
}

func (g *Generator) providers(careSiteCount int) []ProviderRow {
	providerCount := careSiteCount * 3
	providers := make([]ProviderRow, 0, providerCount)
	for i := 0; i < providerCount; i++ {
		providers = append(providers, ProviderRow{
			ProviderID:         int64(i + 1),
			SpecialtyConceptID: 0,
			CareSiteID:         int64(i%careSiteCount + 1),
		})
	}
	return providers
}

func (g *Generator) measurementValue(conceptID int32) float64 {
	switch conceptID {
	case 3004249:
		return round1(100 + g.rnd.Float64()*60)
	case 3012888:
		return round1(60 + g.rnd.Float64()*40)
	case 3000963:
		return round1(4.5 + g.rnd.Float64()*7)
	case 3016723:
		return round1(0.5 + g.rnd.Float64()*1.8)
	default:
		return round1(45 + g.rnd.Float64()*80)
	}
}

func (g *Generator) pastDate(maxDaysAgo int) time.Time {
	return g.now().AddDate(0, 0, -(g.rnd.Intn(maxDaysAgo) + 1))
}

func (g *Generator) dateAfter(start time.Time) time.Time {
	span := int(g.now().Sub(start).Hours() / 24)
	if span <= 1 {
		return start
	}
	return start.AddDate(0, 0, g.rnd.Intn(span))
}

func conceptRows() []ConceptRow {
	groups := [][]namedConcept{
		fixedConcepts,
		conditionConcepts,
		drugConcepts,
		measurementConcepts,
		procedureConcepts,
		observationConcepts,
	}
	var rows []ConceptRow
	for _, group := range groups {
		for _, c := range group {
			rows = append(rows, ConceptRow{
				ConceptID:    c.id,
				ConceptName:  c.name,
				DomainID:     c.domain,
				VocabularyID: c.vocabulary,
				ConceptCode:  c.code,
			})
		}
	}
	return rows
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

func pickConceptID(r *rand.Rand, values []int32) int32 {
	return values[r.Intn(len(values))]
}

func pickString(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
