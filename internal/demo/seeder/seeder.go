// Package seeder builds a synthetic OMOP CDM dataset and uploads it as one
// parquet file per table, ready for the demo query engine.
package seeder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/parquet-go/parquet-go"

	"github.com/omopql/omopql/internal/storage"
)

type Service struct {
	cfg   Config
	log   *slog.Logger
	store storage.ObjectStore
}

func NewService(cfg Config, logger *slog.Logger, store storage.ObjectStore) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{cfg: cfg, log: logger, store: store}, nil
}

// Run generates the dataset and uploads every table. Existing objects under
// the prefix are overwritten, so re-running refreshes the demo data.
func (s *Service) Run(ctx context.Context) error {
	generator := NewGenerator(s.cfg.Seed)
	ds := generator.Dataset(s.cfg.PersonCount)

	uploads := []struct {
		table string
		rows  int
		build func() ([]byte, error)
	}{
		{"person", len(ds.Persons), func() ([]byte, error) { return buildParquet(ds.Persons) }},
		{"observation_period", len(ds.ObservationPeriods), func() ([]byte, error) { return buildParquet(ds.ObservationPeriods) }},
		{"visit_occurrence", len(ds.VisitOccurrences), func() ([]byte, error) { return buildParquet(ds.VisitOccurrences) }},
		{"condition_occurrence", len(ds.ConditionOccurrences), func() ([]byte, error) { return buildParquet(ds.ConditionOccurrences) }},
		{"drug_exposure", len(ds.DrugExposures), func() ([]byte, error) { return buildParquet(ds.DrugExposures) }},
		{"procedure_occurrence", len(ds.ProcedureOccurrences), func() ([]byte, error) { return buildParquet(ds.ProcedureOccurrences) }},
		{"measurement", len(ds.Measurements), func() ([]byte, error) { return buildParquet(ds.Measurements) }},
		{"observation", len(ds.Observations), func() ([]byte, error) { return buildParquet(ds.Observations) }},
		{"death", len(ds.Deaths), func() ([]byte, error) { return buildParquet(ds.Deaths) }},
		{"concept", len(ds.Concepts), func() ([]byte, error) { return buildParquet(ds.Concepts) }},
		{"provider", len(ds.Providers), func() ([]byte, error) { return buildParquet(ds.Providers) }},
		{"care_site", len(ds.CareSites), func() ([]byte, error) { return buildParquet(ds.CareSites) }},
	}

	for _, upload := range uploads {
		body, err := upload.build()
		if err != nil {
			return fmt.Errorf("encode %s parquet: %w", upload.table, err)
		}
		key, err := storage.BuildDemoTablePath(s.cfg.Prefix, upload.table)
		if err != nil {
			return err
		}
		info, err := s.store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), storage.PutOptions{ContentType: "application/octet-stream"})
		if err != nil {
			return fmt.Errorf("upload %s: %w", upload.table, err)
		}
		s.log.Info(
			"seeded demo table",
			slog.String("table", upload.table),
			slog.Int("rows", upload.rows),
			slog.Int64("bytes", info.Size),
			slog.String("key", key),
		)
	}

	s.log.Info("demo dataset ready",
		slog.String("prefix", s.cfg.Prefix),
		slog.Int("persons", len(ds.Persons)),
	)
	return nil
}

func buildParquet[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
