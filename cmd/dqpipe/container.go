// Package main wires one data-quality run end to end: load the raw files,
// count rule failures, clean, write the report and persist the sanitized
// tables. It depends only on storage-agnostic interfaces; backends join
// through the storage registry.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"insurance-dq/internal/config"
	"insurance-dq/internal/datasource/file"
	"insurance-dq/internal/dq"
	apperrors "insurance-dq/internal/errors"
	"insurance-dq/internal/loader"
	"insurance-dq/internal/logging"
	"insurance-dq/internal/metrics"
	"insurance-dq/internal/report"
	"insurance-dq/internal/schema"
	"insurance-dq/internal/storage"
	"insurance-dq/internal/table"
)

// Function variables used as test seams.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}
	nowFn      = time.Now
	newRunIDFn = uuid.NewString
)

// outcome summarizes a completed run.
type outcome struct {
	RunID    string
	Loaded   []loader.Stats
	Findings []dq.Finding
	Skipped  []dq.Check
	Steps    []dq.Step
	Tables   []*table.Table
	Report   string
}

// contractsFor applies the pipeline's header mappings to the built-in
// contracts.
func contractsFor(p config.Pipeline) []schema.Contract {
	cs := schema.Insurance()
	for i := range cs {
		if hm, ok := p.Input.HeaderMap[cs[i].Name]; ok {
			cs[i].HeaderMap = hm
		}
	}
	return cs
}

// timed runs fn as a named step and records its metrics.
func timed(job, step string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(job, step, err, time.Since(start))
	return err
}

// runPipeline executes one run. Fatal errors abort before anything is
// written, or, for persistence failures, after the staged report was
// discarded.
func runPipeline(ctx context.Context, p config.Pipeline, log *slog.Logger) (outcome, error) {
	out := outcome{RunID: newRunIDFn()}
	now := nowFn()
	job := p.Job
	log = logging.ForRun(log, job, out.RunID)
	ctx = metrics.WithJob(ctx, job)
	contracts := contractsFor(p)

	var raw *table.Set
	err := timed(job, "load", func() error {
		l := loader.New(file.NewDir(p.Input.Dir), contracts, loader.Options{
			Files:  p.Input.Files,
			Comma:  p.Input.Comma(),
			Logger: log,
		})
		var err error
		raw, out.Loaded, err = l.Load(ctx)
		return err
	})
	if err != nil {
		return out, err
	}
	for _, st := range out.Loaded {
		metrics.RecordRows(job, st.Dataset, "loaded", int64(st.Rows))
		metrics.RecordRows(job, st.Dataset, "skipped", int64(st.Skipped))
	}

	window := dq.NewDateWindow(now, p.Rules.HorizonYears, p.Input.DateLayouts)
	window.Min = p.Rules.Min()
	checks := dq.Catalog(contracts, dq.TakeSnapshot(raw, contracts), window)
	log.Info("catalog built", "checks", len(checks),
		"window_min", window.Min.Format("2006-01-02"), "window_max", window.Max.Format("2006-01-02"))

	err = timed(job, "evaluate", func() error {
		res, err := dq.NewEngine(checks).Evaluate(raw)
		out.Findings, out.Skipped = res.Findings, res.Skipped
		return err
	})
	if err != nil {
		return out, err
	}
	for _, f := range out.Findings {
		metrics.RecordFinding(job, f.Dataset, f.Check, f.FailedRows)
	}
	for _, c := range out.Skipped {
		log.Warn("check skipped, optional column absent", "dataset", c.Dataset, "check", c.Name, "columns", c.Columns)
	}

	var cleaned *table.Set
	err = timed(job, "clean", func() error {
		var err error
		cleaned, out.Steps, err = dq.NewCleaner(checks).Clean(raw)
		return err
	})
	if err != nil {
		return out, err
	}
	for _, s := range out.Steps {
		metrics.RecordRows(job, s.Dataset, "dropped", int64(s.Dropped))
		if s.Dropped > 0 {
			log.Info("rows dropped", "dataset", s.Dataset, "check", s.Check, "before", s.Before, "dropped", s.Dropped)
		}
	}
	out.Tables = cleaned.Tables()

	summary := report.Summarize(out.Findings)
	var staged *report.Staged
	err = timed(job, "report", func() error {
		var err error
		staged, err = report.Stage(summary, p.Report.Path, p.Report.Format)
		return err
	})
	if err != nil {
		return out, err
	}

	err = timed(job, "persist", func() error {
		return persist(ctx, p, storage.NewManifest(out.RunID, now, out.Tables), out.Tables)
	})
	if err != nil {
		if derr := staged.Discard(); derr != nil {
			log.Warn("discard staged report", "path", staged.Path(), "err", derr)
		}
		return out, err
	}
	if err := staged.Commit(); err != nil {
		return out, err
	}
	out.Report = staged.Path()
	for _, t := range out.Tables {
		metrics.RecordRows(job, t.Name(), "persisted", int64(t.Len()))
	}

	report.Log(log, summary)
	log.Info("run complete", "report", out.Report, "storage", p.Storage.Kind, "tables", len(out.Tables))
	return out, nil
}

func persist(ctx context.Context, p config.Pipeline, m storage.Manifest, tables []*table.Table) error {
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:      p.Storage.Kind,
		DSN:       p.Storage.DSN,
		Dir:       p.Storage.Dir,
		BatchSize: p.Runtime.BatchSize,
	})
	if err != nil {
		return &apperrors.PersistenceError{Target: p.Storage.Kind, Op: "open", Cause: err}
	}
	defer repo.Close()

	if err := repo.Replace(ctx, m, tables); err != nil {
		return fmt.Errorf("replace %d tables: %w", len(tables), err)
	}
	return nil
}
