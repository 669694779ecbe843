// Package mockdata fabricates plausible result sets for translated SQL when
// no warehouse is reachable. The shapes come from cheap heuristics over the
// statement text: aggregate queries get a single summary row, grouped
// queries get one row per bucket, and plain table scans get rows typed after
// the OMOP table they select from. Output is deterministic for a given seed
// and statement.
package mockdata

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/omopql/omopql/internal/omop"
	"github.com/omopql/omopql/internal/query"
)

type Generator struct {
	seed        int64
	defaultRows int
	now         func() time.Time
}

func NewGenerator(seed int64, defaultRows int) *Generator {
	if defaultRows <= 0 {
		defaultRows = 12
	}
	return &Generator{
		seed:        seed,
		defaultRows: defaultRows,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

var fromPattern = regexp.MustCompile(`(?i)\bfrom\s+(?:[a-z_][a-z0-9_]*\.)?([a-z_][a-z0-9_]*)`)

// Generate builds rows for the statement. The same seed and statement
// always produce the same result, so repeated runs of a saved question look
// stable in the UI.
func (g *Generator) Generate(sqlText string, rowLimit int) query.Result {
	start := g.now()
	rnd := rand.New(rand.NewSource(g.seed ^ hashSQL(sqlText)))
	lowered := strings.ToLower(sqlText)

	rowCount := g.defaultRows
	if rowLimit > 0 && rowLimit < rowCount {
		rowCount = rowLimit
	}

	var result query.Result
	switch {
	case strings.Contains(lowered, "group by") && mentionsAny(lowered, "gender"):
		result = genderBuckets(rnd, lowered)
	case strings.Contains(lowered, "group by") && mentionsAny(lowered, "year_of_birth", "year("):
		result = yearBuckets(rnd, rowCount)
	case strings.Contains(lowered, "count("):
		result = singleAggregate("count", int64(rnd.Intn(90_000)+1_000))
	case strings.Contains(lowered, "avg("):
		result = singleAggregate("avg", round2(rnd.Float64()*80+10))
	case strings.Contains(lowered, "sum("):
		result = singleAggregate("sum", round2(rnd.Float64()*500_000+10_000))
	case strings.Contains(lowered, "min("), strings.Contains(lowered, "max("):
		result = singleAggregate("value", int64(rnd.Intn(2_000)+1))
	default:
		result = g.tableRows(rnd, lowered, rowCount)
	}

	result.RowCount = len(result.Rows)
	result.Duration = g.now().Sub(start)
	return result
}

func (g *Generator) tableRows(rnd *rand.Rand, lowered string, rowCount int) query.Result {
	table, ok := tableForSQL(lowered)
	if !ok {
		rows := make([][]any, rowCount)
		for i := range rows {
			rows[i] = []any{int64(i + 1), round2(rnd.Float64() * 100)}
		}
		return query.Result{Columns: []string{"id", "value"}, Rows: rows}
	}

	columns := table.Columns
	if len(columns) > 6 {
		columns = columns[:6]
	}
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}

	rows := make([][]any, rowCount)
	for i := range rows {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = g.columnValue(rnd, col, i)
		}
		rows[i] = row
	}
	return query.Result{Columns: names, Rows: rows}
}

func (g *Generator) columnValue(rnd *rand.Rand, col omop.Column, rowIndex int) any {
	name := strings.ToLower(col.Name)
	switch {
	case name == "year_of_birth":
		return int64(1930 + rnd.Intn(85))
	case name == "gender_concept_id":
		return pickOne(rnd, []any{int64(8507), int64(8532)})
	case strings.HasSuffix(name, "_concept_id"):
		return int64(rnd.Intn(4_000_000) + 1_000_000)
	case strings.HasSuffix(name, "_id"):
		return int64(rowIndex*37 + rnd.Intn(37) + 1)
	case name == "concept_name":
		return pickOne(rnd, []any{
			"Essential hypertension", "Type 2 diabetes mellitus", "Atrial fibrillation",
			"Acute myocardial infarction", "Chronic obstructive lung disease", "Pneumonia",
		})
	case strings.Contains(name, "source_value"):
		return fmt.Sprintf("SRC-%05d", rnd.Intn(100_000))
	case strings.HasSuffix(name, "_datetime"):
		return g.pastDate(rnd).Format(time.RFC3339)
	case strings.HasSuffix(name, "_date"):
		return g.pastDate(rnd).Format("2006-01-02")
	case strings.Contains(name, "value_as_number") || strings.Contains(name, "quantity"):
		return round2(rnd.Float64()*180 + 2)
	case strings.Contains(col.Type, "int"):
		return int64(rnd.Intn(10_000))
	case strings.Contains(col.Type, "numeric") || strings.Contains(col.Type, "float"):
		return round2(rnd.Float64() * 250)
	default:
		return fmt.Sprintf("%s_%d", name, rowIndex+1)
	}
}

func (g *Generator) pastDate(rnd *rand.Rand) time.Time {
	return g.now().AddDate(0, 0, -rnd.Intn(365*10))
}

func genderBuckets(rnd *rand.Rand, lowered string) query.Result {
	female := int64(rnd.Intn(40_000) + 5_000)
	male := int64(rnd.Intn(40_000) + 5_000)
	column := "gender_concept_id"
	rows := [][]any{
		{int64(8532), female},
		{int64(8507), male},
	}
	if strings.Contains(lowered, "concept_name") || strings.Contains(lowered, "gender_source_value") {
		column = "gender"
		rows = [][]any{
			{"FEMALE", female},
			{"MALE", male},
		}
	}
	return query.Result{Columns: []string{column, "count"}, Rows: rows}
}

func yearBuckets(rnd *rand.Rand, rowCount int) query.Result {
	if rowCount > 20 {
		rowCount = 20
	}
	startYear := 1940 + rnd.Intn(30)
	rows := make([][]any, rowCount)
	for i := range rows {
		rows[i] = []any{int64(startYear + i*3), int64(rnd.Intn(3_000) + 50)}
	}
	return query.Result{Columns: []string{"year_of_birth", "count"}, Rows: rows}
}

func singleAggregate(column string, value any) query.Result {
	return query.Result{Columns: []string{column}, Rows: [][]any{{value}}}
}

func tableForSQL(lowered string) (omop.Table, bool) {
	for _, match := range fromPattern.FindAllStringSubmatch(lowered, -1) {
		if table, ok := omop.Lookup(match[1]); ok {
			return table, true
		}
	}
	return omop.Table{}, false
}

func mentionsAny(lowered string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

func hashSQL(sqlText string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.TrimSpace(strings.ToLower(sqlText))))
	return int64(h.Sum64())
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []any) any {
	return values[r.Intn(len(values))]
}
