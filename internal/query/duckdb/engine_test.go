package duckdb

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/omopql/omopql/internal/query"
	"github.com/omopql/omopql/internal/storage"
)

type personRow struct {
	PersonID    int64  `parquet:"person_id"`
	Gender      string `parquet:"gender"`
	YearOfBirth int32  `parquet:"year_of_birth"`
}

func TestExecuteQueriesSeededTable(t *testing.T) {
	parquetBytes, err := buildParquet([]personRow{
		{PersonID: 1, Gender: "FEMALE", YearOfBirth: 1961},
		{PersonID: 2, Gender: "MALE", YearOfBirth: 1987},
		{PersonID: 3, Gender: "FEMALE", YearOfBirth: 1990},
	})
	if err != nil {
		t.Fatalf("buildParquet() error = %v", err)
	}

	store := &memoryStore{objects: map[string][]byte{"demo/person.parquet": parquetBytes}}
	engine := NewEngine(store, "demo")

	result, err := engine.Execute(context.Background(), query.Request{
		SQL: "SELECT COUNT(*) AS c FROM person WHERE gender = 'FEMALE'",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != int64(2) {
		t.Fatalf("count = %#v", result.Rows[0][0])
	}
	if result.RowCount != 1 {
		t.Fatalf("RowCount = %d", result.RowCount)
	}
}

func TestExecuteAppliesRowLimitAndTrailingSemicolon(t *testing.T) {
	parquetBytes, err := buildParquet([]personRow{
		{PersonID: 1, Gender: "FEMALE", YearOfBirth: 1961},
		{PersonID: 2, Gender: "MALE", YearOfBirth: 1987},
		{PersonID: 3, Gender: "FEMALE", YearOfBirth: 1990},
	})
	if err != nil {
		t.Fatalf("buildParquet() error = %v", err)
	}

	store := &memoryStore{objects: map[string][]byte{"demo/person.parquet": parquetBytes}}
	engine := NewEngine(store, "demo")

	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT person_id FROM person ORDER BY person_id;",
		RowLimit: 2,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
}

func TestExecuteRejectsWriteStatements(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	engine := NewEngine(store, "demo")
	if _, err := engine.Execute(context.Background(), query.Request{SQL: "DROP TABLE person"}); err == nil {
		t.Fatal("Execute() should reject a DROP")
	}
}

func TestExecuteFailsWhenDatasetNotSeeded(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{}}
	engine := NewEngine(store, "demo")
	if _, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT 1 FROM person"}); err == nil {
		t.Fatal("Execute() should fail on an empty dataset")
	}
	if err := engine.Ping(context.Background()); err == nil {
		t.Fatal("Ping() should fail on an empty dataset")
	}
}

func buildParquet[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: time.Now().UTC()}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}
