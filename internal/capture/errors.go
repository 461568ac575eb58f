package capture

import "fmt"

// SetupError reports a browser or proxy acquisition failure. It is the only
// capture error that propagates to the caller; everything after SETUP is
// recovered locally and recorded in the capture log.
type SetupError struct {
	Resource string
	Err      error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup: acquiring %s: %v", e.Resource, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// StepError reports one failed or timed-out pipeline step. Steps fail
// individually; the pipeline advances past them.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
