// Package export renders query results as CSV, either streamed to the
// caller or archived in the object store.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/omopql/omopql/internal/query"
	"github.com/omopql/omopql/internal/storage"
)

// WriteCSV streams the result as a header row followed by one record per
// row and reports the number of bytes written.
func WriteCSV(w io.Writer, result query.Result) (int64, error) {
	counter := &countingWriter{w: w}
	writer := csv.NewWriter(counter)

	if err := writer.Write(result.Columns); err != nil {
		return counter.n, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		if len(row) != len(result.Columns) {
			return counter.n, fmt.Errorf("row width %d does not match %d columns", len(row), len(result.Columns))
		}
		for i, value := range row {
			record[i] = formatValue(value)
		}
		if err := writer.Write(record); err != nil {
			return counter.n, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return counter.n, fmt.Errorf("flush csv: %w", err)
	}
	return counter.n, nil
}

// Archive encodes the result and uploads it under an export key. It returns
// the generated export id and the stored object info.
func Archive(ctx context.Context, store storage.ObjectStore, result query.Result, createdAt time.Time) (string, storage.ObjectInfo, error) {
	if store == nil {
		return "", storage.ObjectInfo{}, fmt.Errorf("object store is required")
	}

	exportID := uuid.NewString()
	key, err := storage.BuildExportPath(exportID, createdAt)
	if err != nil {
		return "", storage.ObjectInfo{}, err
	}

	buf := bytes.NewBuffer(nil)
	if _, err := WriteCSV(buf, result); err != nil {
		return "", storage.ObjectInfo{}, err
	}

	info, err := store.Put(ctx, key, buf, int64(buf.Len()), storage.PutOptions{ContentType: "text/csv"})
	if err != nil {
		return "", storage.ObjectInfo{}, fmt.Errorf("archive export %q: %w", key, err)
	}
	return exportID, info, nil
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []byte:
		return string(typed)
	case bool:
		return strconv.FormatBool(typed)
	case int:
		return strconv.Itoa(typed)
	case int32:
		return strconv.FormatInt(int64(typed), 10)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case time.Time:
		return typed.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
