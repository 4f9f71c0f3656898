package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/notitia/internal/ir"
)

// Snapshot renders the scenario's trace as canonical JSON. Two runs of the
// same scenario produce identical bytes.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"type": ev.Type,
			"step": ev.Step,
		}
		if ev.Subscription != "" {
			m["subscription"] = ev.Subscription
		}
		if ev.Code != "" {
			m["code"] = ev.Code
		}
		if ev.Event != nil {
			m["event"] = ev.Event
		}
		if ev.Rows != nil {
			m["rows"] = ev.Rows
		}
		trace[i] = m
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario_name": scenario.Name,
		"trace":         trace,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
