package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownTool is returned when a tool call names a tool with no
// registered executor.
var ErrUnknownTool = errors.New("unknown tool")

// Executor runs one tool. Payloads are opaque JSON: the executor parses
// its own arguments and returns its own result shape.
type Executor interface {
	Name() string
	Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// Executors dispatches tool calls to registered executors.
type Executors struct {
	byName map[string]Executor
}

// NewExecutors builds a dispatcher from the given executors.
func NewExecutors(executors ...Executor) *Executors {
	byName := make(map[string]Executor, len(executors))
	for _, e := range executors {
		byName[e.Name()] = e
	}
	return &Executors{byName: byName}
}

// Execute dispatches a tool call by name.
func (e *Executors) Execute(ctx context.Context, name string, payload json.RawMessage) (json.RawMessage, error) {
	executor, ok := e.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return executor.Execute(ctx, payload)
}

// Has reports whether an executor is registered for the tool name.
func (e *Executors) Has(name string) bool {
	_, ok := e.byName[name]
	return ok
}

// DatetimeExecutor implements the datetime tool locally.
type DatetimeExecutor struct {
	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time
}

func (d *DatetimeExecutor) Name() string { return "datetime" }

func (d *DatetimeExecutor) Execute(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Timezone string `json:"timezone"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, fmt.Errorf("datetime arguments: %w", err)
		}
	}

	loc := time.UTC
	if args.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(args.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", args.Timezone, err)
		}
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	t := now().In(loc)

	result := map[string]string{
		"datetime": t.Format(time.RFC3339),
		"date":     t.Format("Mon, Jan 02, 2006"),
		"time":     t.Format("15:04"),
		"timezone": loc.String(),
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return out, nil
}
