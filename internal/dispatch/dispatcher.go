// Package dispatch invokes one or two inference backends for a routing
// decision and always produces a response, degrading to a static apology
// when nothing succeeds.
package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/bgdnvk/resonance/internal/ai"
	apperrors "github.com/bgdnvk/resonance/internal/errors"
	"github.com/bgdnvk/resonance/internal/model"
	"github.com/bgdnvk/resonance/internal/synth"
)

const (
	DefaultMaxInFlight  = 32
	DefaultRetryBackoff = 250 * time.Millisecond
)

// Backends are the two inference roles.
type Backends struct {
	Analytic   ai.Provider
	Empathetic ai.Provider
}

type Options struct {
	Tiers TierTable
	// MaxInFlight bounds concurrent dispatches; 0 means unbounded.
	MaxInFlight int
	// RetryBackoff is the pause before the single-path retry.
	RetryBackoff time.Duration
	// DualDeadline is the shared deadline of the dual path; 0 uses the
	// longer of the two tier timeouts.
	DualDeadline time.Duration
	Logger       *zap.Logger
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	backends Backends
	opts     Options
	sem      *semaphore.Weighted
	logger   *zap.Logger
}

func New(backends Backends, opts Options) *Dispatcher {
	if opts.Tiers == nil {
		opts.Tiers = DefaultTiers()
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	d := &Dispatcher{backends: backends, opts: opts, logger: opts.Logger}
	if opts.MaxInFlight > 0 {
		d.sem = semaphore.NewWeighted(int64(opts.MaxInFlight))
	}
	return d
}

func (d *Dispatcher) provider(role model.Backend) ai.Provider {
	if role == model.BackendEmpathetic {
		return d.backends.Empathetic
	}
	return d.backends.Analytic
}

// Dispatch runs the decision against the backends. It never returns an
// error: provider failures become a degraded or fallback response. All
// backend calls derive from ctx and are finished or cancelled on return.
func (d *Dispatcher) Dispatch(ctx context.Context, decision model.RoutingDecision, prompt string) (model.SynthesizedResponse, []model.BackendInvocation) {
	if d.sem != nil {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.logger.Warn("Dispatch abandoned while waiting for a slot", zap.Error(err))
			return synth.Fallback(), nil
		}
		defer d.sem.Release(1)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if decision.Primary == model.BackendDual {
		return d.dual(ctx, decision.Intensity, prompt)
	}
	resp, inv := d.single(ctx, decision.Primary, decision.Intensity, prompt)
	return resp, []model.BackendInvocation{inv}
}

func (d *Dispatcher) single(ctx context.Context, role model.Backend, intensity model.Intensity, prompt string) (model.SynthesizedResponse, model.BackendInvocation) {
	tier := d.opts.Tiers.Lookup(role, intensity)
	p := d.provider(role)
	inv := model.BackendInvocation{Prompt: prompt, Timeout: tier.Timeout}
	if p == nil {
		inv.BackendID = string(role)
		inv.Outcome = model.OutcomeError
		inv.Err = apperrors.New(apperrors.ProviderUnavailable, "no "+string(role)+" backend configured", nil)
		return synth.Fallback(), inv
	}
	inv.BackendID = p.Name()

	for attempt := 1; attempt <= 2; attempt++ {
		inv.Attempts = attempt
		text, err := p.Complete(ctx, prompt, tier.Params())
		if err == nil {
			inv.Outcome = model.OutcomeOK
			inv.Result = text
			inv.Err = nil
			return synth.Single(synth.Part{Content: text, Model: p.Name()}), inv
		}

		inv.Outcome = outcomeOf(err)
		inv.Err = err
		d.logger.Warn("Backend call failed",
			zap.String("backend", p.Name()),
			zap.String("role", string(role)),
			zap.Int("attempt", attempt),
			zap.String("code", string(apperrors.CodeOf(err))),
			zap.Error(err))

		if attempt == 2 || !apperrors.Retryable(err) || !sleepCtx(ctx, d.opts.RetryBackoff) {
			break
		}
	}
	return synth.Fallback(), inv
}

type dualResult struct {
	role model.Backend
	text string
	err  error
}

func (d *Dispatcher) dual(ctx context.Context, intensity model.Intensity, prompt string) (model.SynthesizedResponse, []model.BackendInvocation) {
	roles := []model.Backend{model.BackendAnalytic, model.BackendEmpathetic}
	invs := make([]model.BackendInvocation, len(roles))

	deadline := d.opts.DualDeadline
	if deadline <= 0 {
		for _, role := range roles {
			deadline = max(deadline, d.opts.Tiers.Lookup(role, intensity).Timeout)
		}
	}
	dctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Buffered so late finishers never block after the deadline.
	results := make(chan dualResult, len(roles))
	pending := 0
	for i, role := range roles {
		tier := d.opts.Tiers.Lookup(role, intensity)
		p := d.provider(role)
		invs[i] = model.BackendInvocation{Prompt: prompt, Timeout: tier.Timeout, Attempts: 1}
		if p == nil {
			invs[i].BackendID = string(role)
			invs[i].Outcome = model.OutcomeError
			invs[i].Err = apperrors.New(apperrors.ProviderUnavailable, "no "+string(role)+" backend configured", nil)
			continue
		}
		invs[i].BackendID = p.Name()
		pending++
		go func(role model.Backend, p ai.Provider, params ai.Params) {
			text, err := p.Complete(dctx, prompt, params)
			results <- dualResult{role: role, text: text, err: err}
		}(role, p, tier.Params())
	}

	for pending > 0 {
		select {
		case r := <-results:
			pending--
			i := indexOf(roles, r.role)
			if r.err != nil {
				invs[i].Outcome = outcomeOf(r.err)
				invs[i].Err = r.err
				d.logger.Warn("Dual backend call failed",
					zap.String("backend", invs[i].BackendID),
					zap.String("role", string(r.role)),
					zap.Error(r.err))
				continue
			}
			invs[i].Outcome = model.OutcomeOK
			invs[i].Result = r.text
		case <-dctx.Done():
			err := apperrors.New(apperrors.ProviderTimeout, "dual deadline reached", dctx.Err())
			if errors.Is(dctx.Err(), context.Canceled) {
				err = apperrors.New(apperrors.ProviderUnavailable, "request cancelled", dctx.Err())
			}
			for i := range invs {
				if invs[i].Outcome == "" {
					invs[i].Outcome = outcomeOf(err)
					invs[i].Err = err
				}
			}
			pending = 0
		}
	}

	var parts []synth.Part
	for _, inv := range invs {
		if inv.Outcome == model.OutcomeOK {
			parts = append(parts, synth.Part{Content: inv.Result, Model: inv.BackendID})
		}
	}
	switch len(parts) {
	case 2:
		return synth.Merge(parts[0], parts[1]), invs
	case 1:
		d.logger.Info("Dual dispatch degraded to one backend", zap.String("backend", parts[0].Model))
		return synth.Single(parts[0]), invs
	default:
		return synth.Fallback(), invs
	}
}

func indexOf(roles []model.Backend, role model.Backend) int {
	for i, r := range roles {
		if r == role {
			return i
		}
	}
	return 0
}

func outcomeOf(err error) model.Outcome {
	if apperrors.Is(err, apperrors.ProviderTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return model.OutcomeTimeout
	}
	return model.OutcomeError
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
