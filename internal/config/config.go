// Package config defines the pipeline file model of a data-quality run.
//
// A pipeline file is JSON, or YAML when its extension is .yaml or .yml:
//
//	{
//	  "job":     "nightly-dq",
//	  "input":   { "dir": "data", "files": { "agents": "agents_2024.csv" } },
//	  "rules":   { "horizon_years": 10 },
//	  "storage": { "kind": "parquet", "dir": "warehouse" },
//	  "report":  { "path": "out/dq_report.xlsx", "format": "xlsx" },
//	  "runtime": { "batch_size": 5000 }
//	}
//
// Unset fields take the values of Default. Operational knobs that differ per
// host (metrics, logging, listen address, DSN secrets) come from the
// environment, see Env.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels metrics and log lines.
	Job     string        `json:"job" yaml:"job" validate:"required"`
	Input   Input         `json:"input" yaml:"input"`
	Rules   Rules         `json:"rules" yaml:"rules"`
	Storage Storage       `json:"storage" yaml:"storage"`
	Report  Report        `json:"report" yaml:"report"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// Input locates the raw files.
type Input struct {
	Dir string `json:"dir" yaml:"dir" validate:"required"`
	// Files overrides the default file name per dataset.
	Files map[string]string `json:"files,omitempty" yaml:"files,omitempty"`
	// Delimiter is a single character; "\t" is accepted for tab.
	Delimiter string `json:"delimiter" yaml:"delimiter"`
	// DateLayouts are Go time layouts tried in order.
	DateLayouts []string `json:"date_layouts,omitempty" yaml:"date_layouts,omitempty"`
	// HeaderMap maps source header names to canonical column names, per dataset.
	HeaderMap map[string]map[string]string `json:"header_map,omitempty" yaml:"header_map,omitempty"`
}

// Rules tunes the date window.
type Rules struct {
	// HorizonYears bounds valid dates to now plus this many years.
	HorizonYears int `json:"horizon_years" yaml:"horizon_years" validate:"gte=0,lte=200"`
	// MinDate is the earliest valid date, YYYY-MM-DD.
	MinDate string `json:"min_date,omitempty" yaml:"min_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Storage selects the persistence backend.
type Storage struct {
	Kind string `json:"kind" yaml:"kind" validate:"required"`
	DSN  string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Dir  string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// Report configures the summary file.
type Report struct {
	Path   string `json:"path" yaml:"path" validate:"required"`
	Format string `json:"format" yaml:"format" validate:"omitempty,oneof=csv xlsx"`
}

// RuntimeConfig controls batching of the persistence sink.
type RuntimeConfig struct {
	BatchSize int `json:"batch_size" yaml:"batch_size" validate:"gte=0"`
}

// Default returns the configuration used for unset fields.
func Default() Pipeline {
	return Pipeline{
		Job:     "insurance-dq",
		Input:   Input{Dir: "data", Delimiter: ","},
		Rules:   Rules{HorizonYears: 10, MinDate: "1900-01-01"},
		Storage: Storage{Kind: "parquet", Dir: "warehouse"},
		Report:  Report{Path: "dq_report.csv", Format: "csv"},
		Runtime: RuntimeConfig{BatchSize: 5000},
	}
}

// ApplyDefaults fills every zero field from Default. The report format
// follows the report path's extension when unset.
func (p *Pipeline) ApplyDefaults() {
	d := Default()
	if p.Job == "" {
		p.Job = d.Job
	}
	if p.Input.Dir == "" {
		p.Input.Dir = d.Input.Dir
	}
	if p.Input.Delimiter == "" {
		p.Input.Delimiter = d.Input.Delimiter
	}
	if p.Rules.HorizonYears == 0 {
		p.Rules.HorizonYears = d.Rules.HorizonYears
	}
	if p.Rules.MinDate == "" {
		p.Rules.MinDate = d.Rules.MinDate
	}
	if p.Storage.Kind == "" {
		p.Storage.Kind = d.Storage.Kind
	}
	if p.Storage.Kind == "parquet" && p.Storage.Dir == "" {
		p.Storage.Dir = d.Storage.Dir
	}
	if p.Report.Path == "" {
		p.Report.Path = d.Report.Path
	}
	if p.Report.Format == "" {
		if strings.EqualFold(filepath.Ext(p.Report.Path), ".xlsx") {
			p.Report.Format = "xlsx"
		} else {
			p.Report.Format = d.Report.Format
		}
	}
	if p.Runtime.BatchSize == 0 {
		p.Runtime.BatchSize = d.Runtime.BatchSize
	}
}

// Comma returns the delimiter rune.
func (i Input) Comma() rune {
	switch i.Delimiter {
	case "", ",":
		return ','
	case `\t`, "\t", "tab":
		return '\t'
	}
	return []rune(i.Delimiter)[0]
}

// Min returns the configured minimum date, or 1900-01-01 when it does not
// parse.
func (r Rules) Min() time.Time {
	t, err := time.Parse("2006-01-02", r.MinDate)
	if err != nil {
		return time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Load reads and decodes a pipeline file and applies defaults. An empty path
// returns Default.
func Load(path string) (Pipeline, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	var p Pipeline
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	p.ApplyDefaults()
	return p, nil
}
