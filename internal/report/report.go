// Package report assembles the outcome of an optimization run and writes it
// to disk as JSON or MessagePack.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/signaltiming-optimizer/internal/optimization/fitness"
	"github.com/signaltiming-optimizer/internal/optimization/genetic"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// Report is everything known about one optimization run
type Report struct {
	RunID            uuid.UUID                  `json:"run_id" msgpack:"run_id"`
	IntersectionID   string                     `json:"intersection_id" msgpack:"intersection_id"`
	IntersectionName string                     `json:"intersection_name,omitempty" msgpack:"intersection_name,omitempty"`
	Evaluator        string                     `json:"evaluator" msgpack:"evaluator"`
	StartedAt        time.Time                  `json:"started_at" msgpack:"started_at"`
	FinishedAt       time.Time                  `json:"finished_at" msgpack:"finished_at"`
	Volumes          models.Volumes             `json:"volumes" msgpack:"volumes"`
	BaselineTiming   models.SignalTiming        `json:"baseline_timing" msgpack:"baseline_timing"`
	OptimizedTiming  models.SignalTiming        `json:"optimized_timing" msgpack:"optimized_timing"`
	BaselineResults  models.SimulationResult    `json:"baseline_results" msgpack:"baseline_results"`
	OptimizedResults models.SimulationResult    `json:"optimized_results" msgpack:"optimized_results"`
	Summary          models.OptimizationSummary `json:"optimization_summary" msgpack:"optimization_summary"`
	Comparison       fitness.Comparison         `json:"comparison" msgpack:"comparison"`
	Diagnostics      genetic.Diagnostics        `json:"diagnostics" msgpack:"diagnostics"`
}

// Elapsed is the wall-clock duration of the run
func (r *Report) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FormatFor picks the encoding from the file extension
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Marshal encodes the report in the given format
func Marshal(r *Report, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(r, "", "  ")
	case FormatMsgpack:
		return msgpack.Marshal(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Export writes the report to path, creating parent directories as needed
func Export(path string, r *Report) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}

	data, err := Marshal(r, format)
	if err != nil {
		return fmt.Errorf("encoding report as %s: %w", format, err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Exporter writes every report to a fixed path
type Exporter struct {
	Path string
}

func (e Exporter) Export(r *Report) error {
	return Export(e.Path, r)
}
