package nl2sql

import (
	"fmt"
	"strings"
)

const systemPrompt = "You translate questions about an OMOP Common Data Model (CDM) healthcare database " +
	"into a single read-only SQL query using PostgreSQL syntax. " +
	"Respond with the SQL inside a ```sql code block, followed by a short plain-language " +
	"explanation of what the query does. Never produce statements that modify data."

func buildUserPrompt(req Request) string {
	rowLimit := req.RowLimit
	if rowLimit <= 0 {
		rowLimit = 200
	}
	return fmt.Sprintf(
		"Database schema:\n%s\nQuestion:\n%s\n\nRules:\n"+
			"- Use only the listed tables and columns.\n"+
			"- Prefer explicit column lists over SELECT *.\n"+
			"- Join concept_id columns to the concept table when the question asks for names.\n"+
			"- Add LIMIT %d unless the query is a single-row aggregate.\n"+
			"- Output exactly one SQL query.",
		req.SchemaContext,
		strings.TrimSpace(req.Question),
		rowLimit,
	)
}
