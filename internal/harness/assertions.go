package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/notitia/internal/engine"
	"github.com/roach88/notitia/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type         string
	Subscription string
	Expected     string
	Actual       string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Subscription != "" {
		fmt.Fprintf(&buf, " (%s)", e.Subscription)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// evaluate checks every assertion and returns the failure messages.
// All assertions run; evaluation does not stop at the first failure.
func (h *Harness) evaluate(ctx context.Context, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		if err := h.evaluateOne(ctx, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func (h *Harness) evaluateOne(ctx context.Context, a Assertion) error {
	if a.Type == AssertConsistent && a.Subscription == "" {
		for _, t := range h.subs {
			if isDone(t.sub) {
				continue
			}
			if err := h.assertConsistent(ctx, t); err != nil {
				return err
			}
		}
		return nil
	}

	t, ok := h.named[a.Subscription]
	if !ok {
		return &AssertionError{
			Type:         a.Type,
			Subscription: a.Subscription,
			Expected:     "an open subscription",
			Actual:       "subscription was never opened",
		}
	}

	switch a.Type {
	case AssertConsistent:
		return h.assertConsistent(ctx, t)
	case AssertRows:
		return assertRows(t, a)
	case AssertCount:
		return assertCount(a.Type, t, a.Count, len(t.sub.Data()))
	case AssertNotified:
		return assertCount(a.Type, t, a.Count, t.notified)
	case AssertConflicts:
		return assertCount(a.Type, t, a.Count, t.conflicts)
	case AssertClosed:
		if !isDone(t.sub) {
			return &AssertionError{Type: a.Type, Subscription: t.name, Expected: "closed", Actual: "active"}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertConsistent compares the subscription against a fresh query of the
// same spec. A single-row query that finds nothing matches an empty result.
func (h *Harness) assertConsistent(ctx context.Context, t *tracked) error {
	fresh, err := h.db.Query(ctx, t.sub.Spec())
	if engine.IsZeroRows(err) {
		fresh, err = ir.ResultSet{}, nil
	}
	if err != nil {
		return fmt.Errorf("requery %s: %w", t.name, err)
	}

	got := t.sub.Data()
	if !got.Equal(fresh) {
		return &AssertionError{
			Type:         AssertConsistent,
			Subscription: t.name,
			Expected:     render(fresh),
			Actual:       render(got),
		}
	}
	return nil
}

func assertRows(t *tracked, a Assertion) error {
	want := make([]ir.Row, len(a.Rows))
	for i, r := range a.Rows {
		want[i] = ir.Row(r)
	}
	got := t.sub.Data()
	if !rowsEqual(got, want) {
		return &AssertionError{
			Type:         AssertRows,
			Subscription: t.name,
			Expected:     render(ir.ResultSet(want)),
			Actual:       render(got),
		}
	}
	return nil
}

func assertCount(typ string, t *tracked, want, got int) error {
	if want != got {
		return &AssertionError{
			Type:         typ,
			Subscription: t.name,
			Expected:     fmt.Sprintf("%d", want),
			Actual:       fmt.Sprintf("%d", got),
		}
	}
	return nil
}

func isDone(sub *engine.Subscription) bool {
	select {
	case <-sub.Done():
		return true
	default:
		return false
	}
}

func render(rs ir.ResultSet) string {
	data, err := ir.MarshalCanonical(rs)
	if err != nil {
		return fmt.Sprintf("%v", rs)
	}
	return string(data)
}
