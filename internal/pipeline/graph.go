// Package pipeline runs a small directed acyclic graph of tasks. A task
// starts once all of its dependencies succeeded, independent tasks run
// concurrently, and a failed task skips everything downstream of it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	pipeerrors "github.com/lepinkainen/bookpipe/internal/errors"
)

var (
	// ErrDuplicateTask is returned when two tasks share a name.
	ErrDuplicateTask = errors.New("duplicate task")

	// ErrUnknownDependency is returned when a task depends on a task that
	// was never added.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrCycle is returned when the dependencies form a cycle.
	ErrCycle = errors.New("dependency cycle")
)

// Task is one node of the graph.
type Task struct {
	Name string
	Deps []string
	Run  func(ctx context.Context) error

	// Retries is the number of extra attempts after a failure.
	Retries int
	// Backoff is the pause between attempts.
	Backoff time.Duration
}

// Status is the outcome of a single task.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// State is the outcome of a whole run.
type State string

const (
	StateSuccess State = "SUCCESS"
	StateFailed  State = "FAILED"
)

// TaskResult records what happened to one task.
type TaskResult struct {
	Name     string
	Status   Status
	Attempts int
	Duration time.Duration
	Err      error
}

// RunResult records the outcome of Graph.Run.
type RunResult struct {
	State    State
	Tasks    map[string]*TaskResult
	Order    []string
	Duration time.Duration
}

// Err joins the errors of every failed task, or returns nil.
func (r *RunResult) Err() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, name := range r.Order {
		if t := r.Tasks[name]; t.Status == StatusFailed {
			errs = append(errs, pipeerrors.NewStageError(name, t.Err))
		}
	}
	return errors.Join(errs...)
}

// Graph is a set of tasks with dependencies. It is not safe to Add while
// Run is in progress.
type Graph struct {
	name  string
	tasks []Task
	index map[string]int
}

// NewGraph creates an empty graph. The name is only used for logging.
func NewGraph(name string) *Graph {
	return &Graph{name: name, index: make(map[string]int)}
}

// Add appends a task. Validation happens in Run so tasks may be added in any
// order.
func (g *Graph) Add(t Task) {
	g.tasks = append(g.tasks, t)
	if _, exists := g.index[t.Name]; !exists {
		g.index[t.Name] = len(g.tasks) - 1
	}
}

// Validate checks names, dependencies and acyclicity.
func (g *Graph) Validate() error {
	seen := make(map[string]bool, len(g.tasks))
	for _, t := range g.tasks {
		if t.Name == "" {
			return fmt.Errorf("task without name")
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, t.Name)
		}
		seen[t.Name] = true
	}
	for _, t := range g.tasks {
		for _, dep := range t.Deps {
			if !seen[dep] {
				return fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, t.Name, dep)
			}
		}
	}
	if _, err := g.topoOrder(); err != nil {
		return err
	}
	return nil
}

// topoOrder returns task names in dependency order (Kahn's algorithm, ties
// broken by insertion order).
func (g *Graph) topoOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.tasks))
	dependents := make(map[string][]string, len(g.tasks))
	for _, t := range g.tasks {
		indegree[t.Name] += 0
		for _, dep := range t.Deps {
			indegree[t.Name]++
			dependents[dep] = append(dependents[dep], t.Name)
		}
	}

	var queue []string
	for _, t := range g.tasks {
		if indegree[t.Name] == 0 {
			queue = append(queue, t.Name)
		}
	}

	order := make([]string, 0, len(g.tasks))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, next := range dependents[name] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(g.tasks) {
		var stuck []string
		for name, n := range indegree {
			if n > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w among %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}

// node is the per-run state of a task.
type node struct {
	task   Task
	result *TaskResult
	done   chan struct{}
}

// Run executes the graph. It returns an error only when the graph is
// invalid; task failures are reported in the RunResult.
func (g *Graph) Run(ctx context.Context) (*RunResult, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	order, _ := g.topoOrder()

	start := time.Now()
	nodes := make(map[string]*node, len(g.tasks))
	for _, t := range g.tasks {
		nodes[t.Name] = &node{
			task:   t,
			result: &TaskResult{Name: t.Name},
			done:   make(chan struct{}),
		}
	}

	slog.Info("Starting pipeline run", "pipeline", g.name, "tasks", len(order))

	var wg conc.WaitGroup
	for _, name := range order {
		n := nodes[name]
		wg.Go(func() {
			defer close(n.done)
			g.runNode(ctx, n, nodes)
		})
	}
	wg.Wait()

	result := &RunResult{
		State:    StateSuccess,
		Tasks:    make(map[string]*TaskResult, len(nodes)),
		Order:    order,
		Duration: time.Since(start),
	}
	for name, n := range nodes {
		result.Tasks[name] = n.result
		if n.result.Status != StatusSucceeded {
			result.State = StateFailed
		}
	}

	slog.Info("Pipeline run finished", "pipeline", g.name, "state", result.State, "duration", result.Duration)
	return result, nil
}

func (g *Graph) runNode(ctx context.Context, n *node, nodes map[string]*node) {
	for _, dep := range n.task.Deps {
		<-nodes[dep].done
	}
	for _, dep := range n.task.Deps {
		if nodes[dep].result.Status != StatusSucceeded {
			n.result.Status = StatusSkipped
			slog.Warn("Skipping task, upstream did not succeed", "task", n.task.Name, "upstream", dep)
			return
		}
	}

	started := time.Now()
	n.result.Err = runWithRetry(ctx, n.task, &n.result.Attempts)
	n.result.Duration = time.Since(started)

	if n.result.Err != nil {
		n.result.Status = StatusFailed
		slog.Error("Task failed", "task", n.task.Name, "attempts", n.result.Attempts, "error", n.result.Err)
		return
	}
	n.result.Status = StatusSucceeded
	slog.Info("Task succeeded", "task", n.task.Name, "attempts", n.result.Attempts, "duration", n.result.Duration)
}

func runWithRetry(ctx context.Context, t Task, attempts *int) error {
	var err error
	for attempt := 0; attempt <= t.Retries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return err
		}

		*attempts++
		err = runTask(ctx, t)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) {
			return err
		}

		if attempt < t.Retries {
			slog.Warn("Task attempt failed, retrying", "task", t.Name, "attempt", attempt+1, "backoff", t.Backoff, "error", err)
			if sleepErr := sleep(ctx, t.Backoff); sleepErr != nil {
				return err
			}
		}
	}
	return err
}

// runTask reports a panic in the task body as a task failure.
func runTask(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, r)
		}
	}()
	if t.Run == nil {
		return nil
	}
	return t.Run(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ErrPermanent marks task errors that retrying cannot fix, such as a
// missing API key. Wrap with Permanent.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so the graph does not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }
