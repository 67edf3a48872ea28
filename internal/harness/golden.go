package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cartsync/internal/canon"
)

// TraceBytes renders a result's trace as canonical JSON, the golden file
// format.
func TraceBytes(scenarioName string, result *Result) ([]byte, error) {
	events := make([]any, len(result.Trace))
	for i, e := range result.Trace {
		m := map[string]any{
			"type":      e.Type,
			"seq":       e.Seq,
			"intent_id": e.IntentID,
			"op":        e.Op,
			"data":      e.Data,
		}
		if e.Kind != "" {
			m["kind"] = e.Kind
		}
		if e.Message != "" {
			m["message"] = e.Message
		}
		events[i] = m
	}

	data, err := canon.Marshal(map[string]any{
		"scenario_name": scenarioName,
		"trace":         events,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	return data, nil
}

// RunWithGolden executes a scenario and compares its trace with
// testdata/golden/{scenario.Name}.golden. Expectation failures are
// reported through t.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := TraceBytes(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

// GoldenPath returns the golden file for a scenario file: a golden/
// directory next to it, named after the scenario file.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(dir, "golden", name+".golden")
}

// WriteGolden writes the result's trace as the golden file at path.
func WriteGolden(path, scenarioName string, result *Result) error {
	data, err := TraceBytes(scenarioName, result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden reports whether the result's trace matches the golden file
// at path byte for byte.
func CompareGolden(path, scenarioName string, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := TraceBytes(scenarioName, result)
	if err != nil {
		return false, err
	}
	return bytes.Equal(want, got), nil
}
