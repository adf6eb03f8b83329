package calcbench

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultRequestTimeout is the deadline a single test request has to settle
const DefaultRequestTimeout = 5 * time.Second

// Result values reported for requests that did not produce a result
const (
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// OutcomeKind tells which way a raced request settled.
type OutcomeKind int

const (
	OutcomeSuccess          OutcomeKind = iota // 200 with result and equation
	OutcomeApplicationError                    // 4xx with error and equation
	OutcomeTransportError                      // Anything else going wrong
	OutcomeTimeout                             // Nothing settled before the deadline
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeApplicationError:
		return "application-error"
	case OutcomeTransportError:
		return "transport-error"
	case OutcomeTimeout:
		return "timeout"
	}
	return "unknown"
}

// An Outcome is the settled result of one test request.
type Outcome struct {
	Kind OutcomeKind

	Result         string // The evaluated result, or ResultError / ResultTimeout
	ErrorMessage   string // The service's error message of an application error
	EquationEchoed bool   // Whether the service echoed the submitted equation unchanged

	Err error // Why no result was obtained, for diagnostics
}

// outcomeSlot is a single-assignment cell. The first settle wins, every later one is a no-op.
type outcomeSlot struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newOutcomeSlot() *outcomeSlot {
	return &outcomeSlot{done: make(chan struct{})}
}

// settle stores o if the slot is still empty and reports whether it did
func (s *outcomeSlot) settle(o Outcome) bool {
	settled := false
	s.once.Do(func() {
		s.outcome = o
		settled = true
		close(s.done)
	})
	return settled
}

func (s *outcomeSlot) wait() Outcome {
	<-s.done
	return s.outcome
}

// calculator is the part of [ServiceClient] a racer needs
type calculator interface {
	Calc(ctx context.Context, equation string) (*CalcResponse, error)
}

// A requestRacer races test requests against a fixed deadline.
type requestRacer struct {
	client   calculator
	deadline time.Duration
}

// race submits equation and returns whichever outcome settles first: the response or the deadline.
// A response arriving after the deadline is discarded. The request itself is not cancelled.
func (r requestRacer) race(ctx context.Context, equation string) Outcome {
	slot := newOutcomeSlot()

	go func() {
		slot.settle(r.submit(ctx, equation))
	}()

	timer := time.NewTimer(r.deadline)
	defer timer.Stop()

	select {
	case <-slot.done:
	case <-timer.C:
		slot.settle(Outcome{
			Kind:   OutcomeTimeout,
			Result: ResultTimeout,
			Err:    &TimeoutError{Equation: equation, Deadline: r.deadline},
		})
	}
	return slot.wait()
}

// submit performs the request and classifies its response
func (r requestRacer) submit(ctx context.Context, equation string) Outcome {
	res, err := r.client.Calc(ctx, equation)
	if err == nil {
		return Outcome{
			Kind:           OutcomeSuccess,
			Result:         res.Result,
			EquationEchoed: res.Equation == equation,
		}
	}

	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return Outcome{
			Kind:           OutcomeApplicationError,
			Result:         ResultError,
			ErrorMessage:   appErr.Message,
			EquationEchoed: appErr.HasEquation && appErr.Equation == equation,
			Err:            err,
		}
	}

	return Outcome{
		Kind:   OutcomeTransportError,
		Result: ResultError,
		Err:    err,
	}
}
