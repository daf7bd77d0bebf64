package layer

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// Scheduler drives registered stacks through the three frame phases:
// Prepare for every stack on the calling (main) thread, Evaluate fanned out
// across a worker pool with one task per stack, and PostEvaluate back on the
// main thread. The phase barrier between Prepare, Evaluate, and PostEvaluate
// is the only synchronization the stacks require: layers within one stack
// always run sequentially, and no two phases of the same stack overlap.
type Scheduler interface {
	// Register adds a stack to the frame loop. Registering a name that is
	// already present replaces the previous stack without closing it.
	//
	// Parameters:
	//   - s: the stack to drive
	Register(s Stack)

	// Unregister removes the named stack from the frame loop. The stack is
	// not closed; the caller keeps ownership.
	//
	// Parameters:
	//   - name: the stack to remove
	Unregister(name string)

	// Step advances one frame: prepares every stack, evaluates them on the
	// worker pool, and runs their post-evaluation work. Blocks until the
	// frame's evaluation phase has fully completed.
	//
	// Parameters:
	//   - dt: the frame delta time in seconds
	Step(dt float32)

	// PhaseTimings returns the wall-clock durations of the last frame's
	// prepare, evaluate, and post-evaluate phases.
	//
	// Returns:
	//   - time.Duration: prepare phase duration
	//   - time.Duration: evaluate phase duration
	//   - time.Duration: post-evaluate phase duration
	PhaseTimings() (time.Duration, time.Duration, time.Duration)
}

type scheduler struct {
	mu      *sync.Mutex
	stacks  []Stack
	workers int

	// evalPool manages a bounded set of reusable goroutines for the parallel
	// evaluate phase. Workers persist across frames, avoiding per-frame
	// goroutine spawn/teardown overhead.
	evalPool worker.DynamicWorkerPool

	prepareTime time.Duration
	evalTime    time.Duration
	postTime    time.Duration
}

// Ensure scheduler implements Scheduler interface.
var _ Scheduler = &scheduler{}

// NewScheduler creates a frame scheduler with its own worker pool.
//
// Parameters:
//   - options: functional options to further configure the scheduler
//
// Returns:
//   - Scheduler: the newly created scheduler
func NewScheduler(options ...SchedulerBuilderOption) Scheduler {
	s := &scheduler{
		mu:      &sync.Mutex{},
		workers: max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(s)
	}

	// Initialize the pool after options so WithWorkers can override the
	// default. Queue size of 256 accommodates typical stack counts with
	// headroom.
	s.evalPool = worker.NewDynamicWorkerPool(s.workers, 256, 1*time.Second)
	return s
}

func (s *scheduler) Register(st Stack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.stacks {
		if existing.Name() == st.Name() {
			s.stacks[i] = st
			return
		}
	}
	s.stacks = append(s.stacks, st)
}

func (s *scheduler) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, st := range s.stacks {
		if st.Name() == name {
			s.stacks = append(s.stacks[:i], s.stacks[i+1:]...)
			return
		}
	}
}

func (s *scheduler) Step(dt float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	for _, st := range s.stacks {
		st.Prepare(dt)
	}
	s.prepareTime = time.Since(start)

	// One task per stack; layers within a stack stay strictly sequential.
	// A WaitGroup provides per-frame barrier sync since pool.Wait() blocks
	// until workers idle-exit which is unsuitable for frame-rate workloads.
	start = time.Now()
	var wg sync.WaitGroup
	for i, st := range s.stacks {
		wg.Add(1)
		stCap := st // capture for closure
		s.evalPool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				stCap.Evaluate()
				return nil, nil
			},
		})
	}
	wg.Wait()
	s.evalTime = time.Since(start)

	start = time.Now()
	for _, st := range s.stacks {
		st.PostEvaluate()
	}
	s.postTime = time.Since(start)
}

func (s *scheduler) PhaseTimings() (time.Duration, time.Duration, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prepareTime, s.evalTime, s.postTime
}
