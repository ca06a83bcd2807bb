package work

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/fulmenhq/pyneat/pkg/logger"
)

// ExecutionResult represents the result of processing a work item. ItemIndex
// is the item's position in the manifest, so callers can restore discovery
// order after parallel completion.
type ExecutionResult struct {
	WorkItemID string        `json:"work_item_id"`
	ItemIndex  int           `json:"item_index"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// ExecutionSummary provides a summary of the execution
type ExecutionSummary struct {
	TotalItems    int           `json:"total_items"`
	Successful    int           `json:"successful"`
	Failed        int           `json:"failed"`
	WorkerCount   int           `json:"worker_count"`
	TotalDuration time.Duration `json:"total_duration"`
	GroupResults  []GroupResult `json:"group_results"`
}

// GroupResult provides results for a specific work group
type GroupResult struct {
	GroupID       string   `json:"group_id"`
	ItemCount     int      `json:"item_count"`
	SuccessCount  int      `json:"success_count"`
	FailureCount  int      `json:"failure_count"`
	ErrorMessages []string `json:"error_messages,omitempty"`
}

// WorkItemProcessor defines the interface for processing work items
type WorkItemProcessor interface {
	ProcessWorkItem(ctx context.Context, item *WorkItem) ExecutionResult
}

// DispatcherConfig configures the dispatcher
type DispatcherConfig struct {
	MaxWorkers       int
	ItemTimeout      time.Duration
	ProgressCallback func(result ExecutionResult)
}

// Dispatcher handles parallel execution of work manifests
type Dispatcher struct {
	config    DispatcherConfig
	processor WorkItemProcessor
}

// NewDispatcher creates a new work dispatcher
func NewDispatcher(config DispatcherConfig, processor WorkItemProcessor) *Dispatcher {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	if config.ItemTimeout <= 0 {
		config.ItemTimeout = 5 * time.Minute
	}

	return &Dispatcher{
		config:    config,
		processor: processor,
	}
}

type job struct {
	index int
	item  *WorkItem
}

// ExecuteManifest executes a work manifest. With a single worker, items are
// processed strictly in manifest order.
func (d *Dispatcher) ExecuteManifest(ctx context.Context, manifest *WorkManifest) (*ExecutionSummary, error) {
	logger.Debug(fmt.Sprintf("Dispatching %d work items to %d workers", len(manifest.WorkItems), d.config.MaxWorkers))
	start := time.Now()

	jobs := make(chan job, len(manifest.WorkItems))
	results := make(chan ExecutionResult, len(manifest.WorkItems))

	var wg sync.WaitGroup
	wg.Add(d.config.MaxWorkers)
	for i := 0; i < d.config.MaxWorkers; i++ {
		go d.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i := range manifest.WorkItems {
			select {
			case jobs <- job{index: i, item: &manifest.WorkItems[i]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	tally := newGroupTally(manifest.Groups)
	summary := &ExecutionSummary{WorkerCount: d.config.MaxWorkers}
	for result := range results {
		summary.TotalItems++
		if result.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
		if d.config.ProgressCallback != nil {
			d.config.ProgressCallback(result)
		}
		tally.record(result)
	}

	summary.TotalDuration = time.Since(start)
	summary.GroupResults = tally.inOrder(manifest.Groups)

	logger.Debug(fmt.Sprintf("Execution completed: %d successful, %d failed in %v", summary.Successful, summary.Failed, summary.TotalDuration))
	return summary, nil
}

func (d *Dispatcher) worker(ctx context.Context, jobs <-chan job, results chan<- ExecutionResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}

			began := time.Now()
			itemCtx, cancel := context.WithTimeout(ctx, d.config.ItemTimeout)
			result := d.processor.ProcessWorkItem(itemCtx, j.item)
			cancel()
			result.ItemIndex = j.index
			result.Duration = time.Since(began)

			select {
			case results <- result:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// groupTally accumulates per-group outcomes as results arrive.
type groupTally struct {
	byGroup map[string]*GroupResult
	groupOf map[string]string
}

func newGroupTally(groups []WorkGroup) *groupTally {
	t := &groupTally{
		byGroup: make(map[string]*GroupResult, len(groups)),
		groupOf: make(map[string]string),
	}
	for _, g := range groups {
		t.byGroup[g.ID] = &GroupResult{GroupID: g.ID, ItemCount: len(g.WorkItemIDs)}
		for _, id := range g.WorkItemIDs {
			t.groupOf[id] = g.ID
		}
	}
	return t
}

func (t *groupTally) record(result ExecutionResult) {
	id, ok := t.groupOf[result.WorkItemID]
	if !ok {
		return
	}
	gr := t.byGroup[id]
	if result.Success {
		gr.SuccessCount++
	} else {
		gr.FailureCount++
		gr.ErrorMessages = append(gr.ErrorMessages, result.Error)
	}
}

// inOrder returns the tallies following the manifest's group order.
func (t *groupTally) inOrder(groups []WorkGroup) []GroupResult {
	out := make([]GroupResult, 0, len(groups))
	for _, g := range groups {
		out = append(out, *t.byGroup[g.ID])
	}
	return out
}

// ValidateManifest validates a work manifest before execution. An empty
// manifest is valid: a target with no auditable sources yields a clean run.
func ValidateManifest(manifest *WorkManifest) error {
	ids := make(map[string]bool, len(manifest.WorkItems))
	for _, item := range manifest.WorkItems {
		if item.ID == "" {
			return fmt.Errorf("work item %s has no ID", item.Path)
		}
		ids[item.ID] = true
	}

	for _, group := range manifest.Groups {
		for _, id := range group.WorkItemIDs {
			if !ids[id] {
				return fmt.Errorf("group %s references non-existent work item %s", group.ID, id)
			}
		}
	}

	return nil
}
