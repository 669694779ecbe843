package nl2sql

import (
	"fmt"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(?:sql|SQL)?\\s*(.*?)```")

// ParseCompletion splits a free-text model completion into the SQL statement
// and the surrounding prose explanation. A fenced ```sql block wins; failing
// that, the first line that starts a SELECT/WITH statement does. Models
// deviate from the requested format often enough that both paths matter.
func ParseCompletion(content string) (sql string, explanation string, err error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", "", fmt.Errorf("empty model response")
	}

	if matches := fencePattern.FindAllStringSubmatchIndex(trimmed, -1); len(matches) > 0 {
		for _, match := range matches {
			candidate := strings.TrimSpace(trimmed[match[2]:match[3]])
			if !isReadOnlySQL(candidate) {
				continue
			}
			prose := strings.TrimSpace(trimmed[:match[0]] + "\n" + trimmed[match[1]:])
			return candidate, cleanProse(prose), nil
		}
	}

	lines := strings.Split(trimmed, "\n")
	start := -1
	for i, line := range lines {
		if isReadOnlySQL(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return "", "", fmt.Errorf("no SQL statement found in model response")
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		lowered := strings.ToLower(strings.TrimSpace(lines[i]))
		if strings.HasPrefix(lowered, "```") || strings.HasPrefix(lowered, "explanation") || strings.HasPrefix(lowered, "this query") {
			end = i
			break
		}
	}

	sql = strings.TrimSpace(strings.Join(lines[start:end], "\n"))
	if sql == "" {
		return "", "", fmt.Errorf("no SQL statement found in model response")
	}
	before := strings.Join(lines[:start], "\n")
	after := strings.Join(lines[end:], "\n")
	return sql, cleanProse(strings.TrimSpace(before + "\n" + after)), nil
}

func isReadOnlySQL(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(lowered, "select") || strings.HasPrefix(lowered, "with")
}

func cleanProse(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.TrimSpace(strings.Join(kept, "\n"))
	for _, prefix := range []string{"Explanation:", "explanation:"} {
		text = strings.TrimSpace(strings.TrimPrefix(text, prefix))
	}
	return text
}
