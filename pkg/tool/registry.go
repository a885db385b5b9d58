package tool

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const defaultLogCapacity = 1000

var (
	ErrToolNotFound  = goerr.Wrap(model.ErrNotFound, "tool not found")
	ErrDuplicateName = goerr.Wrap(model.ErrValidation, "tool name already registered")
)

// Registry is a catalog of invocable named operations with input validation
// and abuse protection. It is an explicit object, not a process-wide
// singleton, so composing code and tests can build isolated instances.
type Registry struct {
	mu       sync.Mutex
	tools    map[string]Tool
	order    []string
	limiters map[string]*windowLimiter
	stats    map[string]*model.ToolStats
	log      []*model.ToolLogEntry
	logCap   int
	now      func() time.Time
}

type RegistryOption func(*Registry)

// WithClock replaces the registry's time source. Used by tests to advance
// rate-limit windows without sleeping.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLogCapacity overrides the execution log's ring capacity
func WithLogCapacity(n int) RegistryOption {
	return func(r *Registry) {
		r.logCap = n
	}
}

// New creates a new tool registry
func New(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		limiters: make(map[string]*windowLimiter),
		stats:    make(map[string]*model.ToolStats),
		logCap:   defaultLogCapacity,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a tool to the catalog. Name collisions and incomplete
// specifications are rejected.
func (r *Registry) Register(t Tool) error {
	spec := t.Spec()
	if spec == nil {
		return goerr.Wrap(model.ErrValidation, "tool spec is nil")
	}
	if spec.Name == "" {
		return goerr.Wrap(model.ErrValidation, "tool name is empty")
	}
	if spec.Description == "" {
		return goerr.Wrap(model.ErrValidation, "tool description is empty", goerr.V("name", spec.Name))
	}
	if spec.Parameters == nil {
		return goerr.Wrap(model.ErrValidation, "tool parameter schema is missing", goerr.V("name", spec.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[spec.Name]; exists {
		return goerr.Wrap(ErrDuplicateName, "cannot register tool", goerr.V("name", spec.Name))
	}

	r.tools[spec.Name] = t
	r.order = append(r.order, spec.Name)
	if spec.RateLimit != nil && spec.RateLimit.MaxCalls > 0 {
		r.limiters[spec.Name] = newWindowLimiter(spec.RateLimit)
	}
	r.stats[spec.Name] = &model.ToolStats{Tool: spec.Name}

	return nil
}

// Specs returns all registered tool specifications in registration order
func (r *Registry) Specs() []*Spec {
	r.mu.Lock()
	defer r.mu.Unlock()

	specs := make([]*Spec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}

// Prompts returns all tool prompts concatenated
func (r *Registry) Prompts(ctx context.Context) string {
	r.mu.Lock()
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	r.mu.Unlock()

	var prompts []string
	for _, t := range tools {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Flags returns all tool flags combined
func (r *Registry) Flags() []cli.Flag {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flags []cli.Flag
	for _, name := range r.order {
		if toolFlags := r.tools[name].Flags(); toolFlags != nil {
			flags = append(flags, toolFlags...)
		}
	}
	return flags
}

// Execute runs the named tool. It never returns an error: unknown tool,
// rate limiting, argument validation, timeout, and tool-body failures all
// become a structured failure result so a tool-calling loop can inspect
// and react without special-casing exceptions.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) *model.ToolResult {
	started := r.now()

	t, err := r.admit(name, started)
	if err != nil {
		result := failure(err, r.now().Sub(started))
		r.record(name, args, result)
		return result
	}

	data, err := r.invoke(ctx, t, args)
	elapsed := r.now().Sub(started)

	var result *model.ToolResult
	if err != nil {
		result = failure(err, elapsed)
	} else {
		result = &model.ToolResult{
			Success:         true,
			Data:            data,
			ExecutionTimeMs: elapsed.Milliseconds(),
		}
	}

	logging.From(ctx).Debug("tool executed",
		"tool", name,
		"success", result.Success,
		"duration_ms", result.ExecutionTimeMs,
	)

	r.record(name, args, result)
	return result
}

// admit looks the tool up and applies its rate limit
func (r *Registry) admit(name string, now time.Time) (Tool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, goerr.Wrap(ErrToolNotFound, "unknown tool", goerr.V("name", name))
	}

	if limiter, ok := r.limiters[name]; ok {
		if !limiter.allow(now) {
			return nil, goerr.Wrap(model.ErrRateLimit, "rate limit exceeded for tool",
				goerr.V("name", name),
				goerr.V("max_calls", limiter.max),
				goerr.V("window", limiter.window.String()))
		}
	}

	return t, nil
}

// invoke validates arguments and runs the tool body, converting panics and
// timeouts into errors
func (r *Registry) invoke(ctx context.Context, t Tool, args map[string]any) (data any, err error) {
	spec := t.Spec()

	if err := validateArgs(args, spec.Parameters); err != nil {
		return nil, err
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	type outcome struct {
		data any
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: goerr.New("tool panicked", goerr.V("panic", rec))}
			}
		}()
		d, e := t.Execute(ctx, args)
		done <- outcome{data: d, err: e}
	}()

	select {
	case out := <-done:
		return out.data, out.err
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "tool execution timed out", goerr.V("name", spec.Name))
	}
}

// record appends to the bounded execution log and updates running stats
func (r *Registry) record(name string, args map[string]any, result *model.ToolResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &model.ToolLogEntry{
		Tool:       name,
		Args:       args,
		Success:    result.Success,
		Error:      result.Error,
		DurationMs: result.ExecutionTimeMs,
		CalledAt:   r.now(),
	}

	r.log = append(r.log, entry)
	if len(r.log) > r.logCap {
		r.log = r.log[len(r.log)-r.logCap:]
	}

	stats, ok := r.stats[name]
	if !ok {
		// Unknown tool invocations are still counted
		stats = &model.ToolStats{Tool: name}
		r.stats[name] = stats
	}
	stats.Calls++
	if result.Success {
		stats.Successes++
	}
	stats.TotalDurationMs += result.ExecutionTimeMs
}

// Log returns the most recent `limit` execution log entries, oldest first.
// A non-positive limit returns the whole log.
func (r *Registry) Log(limit int) []*model.ToolLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.log
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	out := make([]*model.ToolLogEntry, len(entries))
	copy(out, entries)
	return out
}

// Stats returns the running usage statistics for one tool
func (r *Registry) Stats(name string) (model.ToolStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.stats[name]
	if !ok {
		return model.ToolStats{}, goerr.Wrap(ErrToolNotFound, "no stats for tool", goerr.V("name", name))
	}
	return *stats, nil
}

func failure(err error, elapsed time.Duration) *model.ToolResult {
	return &model.ToolResult{
		Success:         false,
		Error:           err.Error(),
		ExecutionTimeMs: elapsed.Milliseconds(),
	}
}
