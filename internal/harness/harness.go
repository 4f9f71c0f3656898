package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/notitia/internal/compiler"
	"github.com/roach88/notitia/internal/engine"
	"github.com/roach88/notitia/internal/ir"
	"github.com/roach88/notitia/internal/store"
	"github.com/roach88/notitia/internal/testutil"
)

// Harness holds the state of one scenario execution.
type Harness struct {
	db     *engine.Database
	logger *slog.Logger
	result *Result

	// subs holds every subscription that opened, in declaration order.
	subs  []*tracked
	named map[string]*tracked
}

type tracked struct {
	name      string
	sub       *engine.Subscription
	notified  int
	conflicts int
}

// Option configures a Harness.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes engine and harness logs to logger. Logs are discarded
// by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load the schema and open the database
// 2. Apply setup mutations
// 3. Open subscriptions
// 4. Execute steps, draining notifications after each
// 5. Evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	schema, err := compiler.LoadSchema(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	st, err := store.Open(":memory:", schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	db, err := engine.Open(st, schema,
		engine.WithLogger(o.logger),
		engine.WithIDGenerator(testutil.NewSequentialIDs("sub")),
	)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	h := &Harness{
		db:     db,
		logger: o.logger,
		result: NewResult(),
		named:  make(map[string]*tracked),
	}

	if err := h.executeSetup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.openSubscriptions(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to open subscriptions: %w", err)
	}
	if err := h.executeSteps(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	for _, msg := range h.evaluate(ctx, scenario.Assertions) {
		h.result.AddError(msg)
	}
	for _, t := range h.subs {
		h.result.State[t.name] = t.sub.Data()
	}
	return h.result, nil
}

func (h *Harness) executeSetup(ctx context.Context, scenario *Scenario) error {
	for i, doc := range scenario.Setup {
		m, err := doc.Spec()
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if _, err := h.db.Mutate(ctx, m); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	return nil
}

func (h *Harness) openSubscriptions(ctx context.Context, scenario *Scenario) error {
	for _, def := range scenario.Subscriptions {
		q, err := def.Query.Spec()
		if err != nil {
			return fmt.Errorf("subscription %q: %w", def.Name, err)
		}

		sub, err := h.db.Subscribe(ctx, q)
		if def.ExpectError != "" {
			if sub != nil {
				sub.Close()
			}
			h.checkExpectedError(fmt.Sprintf("subscription %q", def.Name), def.ExpectError, err)
			h.result.add(TraceEvent{Type: TraceError, Step: -1, Subscription: def.Name, Code: errorCode(err)})
			continue
		}
		if err != nil {
			return fmt.Errorf("subscription %q: %w", def.Name, err)
		}

		t := &tracked{name: def.Name, sub: sub}
		h.subs = append(h.subs, t)
		h.named[def.Name] = t
		h.result.add(TraceEvent{Type: TraceSubscribe, Step: -1, Subscription: def.Name, Rows: sub.Data()})
		h.logger.Info("subscription opened", "name", def.Name, "id", sub.ID(), "rows", len(sub.Data()))
	}
	return nil
}

func (h *Harness) executeSteps(ctx context.Context, scenario *Scenario) error {
	for i, step := range scenario.Steps {
		if step.Close != "" {
			t, ok := h.named[step.Close]
			if !ok {
				// Subscribe was expected to fail; nothing to close.
				continue
			}
			t.sub.Close()
			h.result.add(TraceEvent{Type: TraceClose, Step: i, Subscription: t.name})
			continue
		}

		m, err := step.Mutate.Spec()
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		ev, err := h.db.Mutate(ctx, m)
		switch {
		case step.ExpectError != "":
			h.checkExpectedError(fmt.Sprintf("step %d", i), step.ExpectError, err)
		case err != nil:
			h.result.AddError(fmt.Sprintf("step %d: unexpected error: %v", i, err))
		}
		if err != nil {
			h.result.add(TraceEvent{Type: TraceError, Step: i, Code: errorCode(err)})
		} else {
			h.result.add(TraceEvent{Type: TraceMutation, Step: i, Event: ev.Summary()})
		}

		h.drain(i)
		h.logger.Info("step completed", "step", i, "kind", m.Kind.String(), "table", m.Table, "error", err)
	}
	return nil
}

// drain consumes every pending notification without blocking. Mutate
// waits for all merges before returning, so nothing caused by step is
// still in flight.
func (h *Harness) drain(step int) {
	done, cancel := context.WithCancel(context.Background())
	cancel()

	for _, t := range h.subs {
		for {
			err := t.sub.Recv(done)
			if err == nil {
				t.notified++
				h.result.add(TraceEvent{Type: TraceNotify, Step: step, Subscription: t.name, Rows: t.sub.Data()})
				continue
			}
			if engine.IsMutationConflict(err) {
				t.conflicts++
				h.result.add(TraceEvent{Type: TraceConflict, Step: step, Subscription: t.name})
				continue
			}
			break
		}
	}
}

func (h *Harness) checkExpectedError(what, want string, err error) {
	if err == nil {
		h.result.AddError(fmt.Sprintf("%s: expected error %s, got success", what, want))
		return
	}
	if got := errorCode(err); got != want {
		h.result.AddError(fmt.Sprintf("%s: expected error %s, got %s (%v)", what, want, got, err))
	}
}

func errorCode(err error) string {
	var e *engine.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	return ""
}

// rowsEqual compares actual rows against expected ones on the columns each
// expected row lists.
func rowsEqual(actual ir.ResultSet, expected []ir.Row) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i, want := range expected {
		if !actual[i].Project(want.Columns()).Equal(want) {
			return false
		}
	}
	return true
}
