package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/omopql/omopql/internal/query"
)

func TestExecuteWrapsRowLimitAndSetsSearchPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL search_path TO "cdm"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM (SELECT gender, COUNT(*) AS n FROM person GROUP BY gender) AS q LIMIT 200`)).
		WillReturnRows(sqlmock.NewRows([]string{"gender", "n"}).
			AddRow("FEMALE", int64(51)).
			AddRow([]byte("MALE"), int64(49)))
	mock.ExpectRollback()

	engine := NewEngine(db, "cdm")
	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT gender, COUNT(*) AS n FROM person GROUP BY gender;",
		RowLimit: 200,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "gender" {
		t.Fatalf("Columns = %v", result.Columns)
	}
	if result.RowCount != 2 || len(result.Rows) != 2 {
		t.Fatalf("RowCount = %d rows = %d", result.RowCount, len(result.Rows))
	}
	if result.Rows[1][0] != "MALE" {
		t.Fatalf("byte column should normalize to string, got %#v", result.Rows[1][0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecuteRejectsWriteStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	engine := NewEngine(db, "cdm")
	if _, err := engine.Execute(context.Background(), query.Request{SQL: "DELETE FROM person"}); err == nil {
		t.Fatal("Execute() should reject a DELETE")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statements should have reached the database: %v", err)
	}
}

func TestExecuteWithoutSchemaSkipsSearchPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(int64(1)))
	mock.ExpectRollback()

	engine := NewEngine(db, "")
	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT 1"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.RowCount != 1 {
		t.Fatalf("RowCount = %d", result.RowCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
