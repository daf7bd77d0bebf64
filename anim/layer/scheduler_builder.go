package layer

// SchedulerBuilderOption is a functional option for configuring a Scheduler.
// Use the With* functions to create options.
type SchedulerBuilderOption func(s *scheduler)

// WithWorkers sets the number of worker goroutines used during the parallel
// evaluate phase. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - SchedulerBuilderOption: option function to apply
func WithWorkers(n int) SchedulerBuilderOption {
	return func(s *scheduler) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

// WithStacks registers initial stacks with the scheduler.
//
// Parameters:
//   - stacks: the stacks to drive
//
// Returns:
//   - SchedulerBuilderOption: option function to apply
func WithStacks(stacks ...Stack) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.stacks = append(s.stacks, stacks...)
	}
}
