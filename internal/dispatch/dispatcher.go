// Package dispatch fans a work set of test cases out across a bounded pool
// of workers, each executing the retry controller and the applicable
// validators, and fans the per-case records back in.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/evalops/deployverify/internal/models"
	"github.com/evalops/deployverify/internal/provider"
	"github.com/evalops/deployverify/internal/validators"
)

// DefaultWorkers is the pool size when none is configured. The workload is
// network-bound, so a handful of workers amortizes latency without acting
// like a load test.
const DefaultWorkers = 5

// Dispatcher executes test cases concurrently and scores each outcome.
type Dispatcher struct {
	caller   *provider.Caller
	registry *validators.Registry
	workers  int
	log      logrus.FieldLogger
}

// New builds a dispatcher over a retry controller and a validator registry.
func New(caller *provider.Caller, registry *validators.Registry, workers int, log logrus.FieldLogger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		caller:   caller,
		registry: registry,
		workers:  workers,
		log:      log,
	}
}

// Run schedules every case in arrival order across the worker pool and
// returns one QueryResult per completed case. Completion order is not
// promised; results carry the suite index for re-ordering. On cancellation
// workers stop pulling new cases, in-flight attempts are abandoned once
// their network call resolves, and the results completed so far are
// returned intact.
func (d *Dispatcher) Run(ctx context.Context, cases []*models.TestCase) []*models.QueryResult {
	var (
		mu  sync.Mutex
		out []*models.QueryResult
	)

	g := new(errgroup.Group)
	g.SetLimit(d.workers)

	for _, tc := range cases {
		if ctx.Err() != nil {
			break
		}
		tc := tc
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, ok := d.executeCase(ctx, tc)
			if !ok {
				return nil
			}
			mu.Lock()
			out = append(out, res)
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	return out
}

// executeCase runs one case end to end. It reports ok=false only when the
// attempt was abandoned by run-level cancellation; every other outcome,
// including a worker panic, is converted into a durable QueryResult so one
// case's failure never aborts its siblings.
func (d *Dispatcher) executeCase(ctx context.Context, tc *models.TestCase) (res *models.QueryResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("case", tc.ID).Errorf("worker panic: %v", r)
			res = &models.QueryResult{
				ID:        tc.ID,
				Index:     tc.Index,
				Status:    models.StatusInternalError,
				Request:   tc.Prepared,
				Error:     fmt.Sprintf("internal error: %v", r),
				Verdicts:  map[string]models.Verdict{},
				LastRunAt: time.Now().UTC(),
			}
			ok = true
		}
	}()

	attempt := d.caller.Execute(ctx, tc.Prepared)
	if ctx.Err() != nil && attempt.Outcome != provider.AttemptSucceeded {
		// Abandoned mid-flight; a later incremental run picks this case up.
		return nil, false
	}

	res = &models.QueryResult{
		ID:         tc.ID,
		Index:      tc.Index,
		Request:    tc.Prepared,
		Attempts:   attempt.Attempts,
		DurationMs: attempt.Duration.Milliseconds(),
		LastRunAt:  time.Now().UTC(),
		Verdicts:   make(map[string]models.Verdict),
	}

	switch attempt.Outcome {
	case provider.AttemptSucceeded:
		res.Status = models.StatusSucceeded
		res.Response = attempt.Response
		res.FinishReason = models.ResponseFinishReason(attempt.Response)
		res.Provider = models.ResponseProvider(attempt.Response)
	default:
		res.Status = models.StatusExhaustedRetries
		if attempt.Err != nil {
			res.Error = attempt.Err.Error()
		}
	}

	in := validators.Input{
		Case:     tc,
		OK:       res.Status == models.StatusSucceeded,
		Response: res.Response,
	}
	for _, v := range d.registry.For(tc) {
		verdict := score(v, in)
		res.Verdicts[v.Name()] = verdict
		if verdict.Err != "" {
			d.log.WithFields(logrus.Fields{
				"case":      tc.ID,
				"validator": v.Name(),
			}).Warn(verdict.Err)
		}
	}

	return res, true
}

// score shields the dispatcher from a panicking validator: the fault becomes
// a not-applicable verdict for that case only.
func score(v validators.Validator, in validators.Input) (verdict models.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = models.Verdict{
				Validator: v.Name(),
				Err:       fmt.Sprintf("validator panic: %v", r),
			}
		}
	}()
	return v.Score(in)
}
