package permit

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/oarkflow/permit/logger"
	"github.com/oarkflow/permit/utils"
)

// Resolver answers permission questions. It is safe for concurrent use and
// holds no state beyond its cache backend and collaborators.
type Resolver struct {
	account  *AccountChecker
	personal *PersonalizedEvaluator
	pipeline *Pipeline
	actions  *ActionMap
	cache    *CacheManager
	group    singleflight.Group

	backend      CacheBackend
	cacheTTL     time.Duration
	metrics      recorder
	logger       logger.Logger
	traceIDFunc  logger.TraceIDFunc
	timeout      time.Duration
	batchWorkers int
	superusers   []string
	extraStages  []Stage
	now          func() time.Time
}

// NewResolver wires the account checker, grant evaluator and the default
// Role -> Implicit -> Default pipeline around the given providers.
func NewResolver(p Providers, opts ...Option) (*Resolver, error) {
	switch {
	case p.Membership == nil:
		return nil, fmt.Errorf("%w: membership", ErrNilProvider)
	case p.Grants == nil:
		return nil, fmt.Errorf("%w: grants", ErrNilProvider)
	case p.Roles == nil:
		return nil, fmt.Errorf("%w: roles", ErrNilProvider)
	case p.Defaults == nil:
		return nil, fmt.Errorf("%w: defaults", ErrNilProvider)
	}
	if p.Implicit == nil {
		p.Implicit = NewRuleRegistry()
	}
	r := &Resolver{
		cacheTTL:     DefaultCacheTTL,
		logger:       logger.NewNullLogger(),
		traceIDFunc:  uuid.NewString,
		batchWorkers: runtime.GOMAXPROCS(0),
		now:          time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.backend == nil {
		r.backend = NewMemoryCache()
	}
	if r.actions == nil {
		r.actions = StaticActionMap(DefaultBaseActions, nil)
	}
	pipeline, err := NewPipeline(
		NewRoleStage(p.Roles),
		NewImplicitStage(p.Implicit),
		NewDefaultStage(p.Defaults),
	)
	if err != nil {
		return nil, err
	}
	for _, s := range r.extraStages {
		if err := pipeline.InsertBefore(StageDefault, s); err != nil {
			return nil, err
		}
	}
	r.pipeline = pipeline
	r.account = NewAccountChecker(p.Membership, r.superusers...)
	r.personal = NewPersonalizedEvaluator(p.Grants, r.now)
	r.cache = NewCacheManager(r.backend, r.cacheTTL)
	return r, nil
}

// Pipeline returns the fallback pipeline for stage registration.
func (r *Resolver) Pipeline() *Pipeline { return r.pipeline }

// ActionMap returns the action registry in use.
func (r *Resolver) ActionMap() *ActionMap { return r.actions }

// Resolve reports whether the request is allowed. Tracing is ignored.
func (r *Resolver) Resolve(ctx context.Context, req Request) bool {
	req.Trace = false
	return r.ResolveDecision(ctx, req).Allowed
}

// ResolveDecision returns the structured decision. The cache is always
// consulted; a traced request recomputes because cached entries carry no trace.
func (r *Resolver) ResolveDecision(ctx context.Context, req Request) (d *Decision) {
	start := r.now()
	req = normalizeRequest(req)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			d = r.panicked(req, p)
		}
		r.finish(req, d, start)
	}()

	if err := ctx.Err(); err != nil {
		return aborted(err, r.now())
	}
	key, err := r.cache.Key(ctx, &req, r.actions.Hash())
	if err != nil {
		if isContextErr(err) {
			return aborted(err, r.now())
		}
		r.logger.Warn("decision cache unavailable", "error", err)
		key = ""
	}
	if key != "" {
		cached, ok, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			r.logger.Warn("decision cache read failed", "error", err)
		case ok && !req.Trace:
			r.metrics.incr(MetricCacheHits, nil)
			cached.Timestamp = r.now()
			return cached
		}
	}
	r.metrics.incr(MetricCacheMiss, nil)

	if req.Trace || key == "" {
		d = r.evaluate(ctx, req, req.Trace)
		r.store(ctx, key, d)
		return d
	}
	return r.coalesced(ctx, key, req)
}

// coalesced evaluates once for all concurrent misses on key.
func (r *Resolver) coalesced(ctx context.Context, key string, req Request) *Decision {
	ch := r.group.DoChan(key, func() (v any, err error) {
		// singleflight re-panics in its own goroutine, out of reach of the caller
		defer func() {
			if p := recover(); p != nil {
				v = r.panicked(req, p)
			}
		}()
		d := r.evaluate(ctx, req, false)
		r.store(ctx, key, d)
		return d, nil
	})
	select {
	case <-ctx.Done():
		return aborted(ctx.Err(), r.now())
	case res := <-ch:
		shared := *res.Val.(*Decision)
		// the leader may have been cancelled while this caller still has time
		if res.Shared && shared.Source == SourceException && ctx.Err() == nil {
			return r.evaluate(ctx, req, false)
		}
		return &shared
	}
}

// Explain recomputes the decision with tracing and returns diagnostics.
func (r *Resolver) Explain(ctx context.Context, req Request) (exp *Explanation) {
	start := r.now()
	req = normalizeRequest(req)
	req.Trace = true
	exp = &Explanation{
		TraceID:       r.traceIDFunc(),
		Request:       req,
		Tokens:        r.actions.Tokens(req.Action),
		KnownAction:   r.actions.Has(req.Action),
		ActionMapHash: r.actions.Hash(),
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			exp.Decision = r.panicked(req, p)
		}
		exp.Duration = r.now().Sub(start)
		r.finish(req, exp.Decision, start)
		r.logger.Info("permission explain", "trace_id", exp.TraceID, "action", string(req.Action), "allowed", exp.Decision.Allowed)
	}()
	if err := ctx.Err(); err != nil {
		exp.Decision = aborted(err, r.now())
		return exp
	}
	exp.Decision = r.evaluate(ctx, req, true)
	return exp
}

// InvalidateCache bumps the version of scope so later lookups miss.
func (r *Resolver) InvalidateCache(ctx context.Context, s Scope) error {
	if err := r.cache.Invalidate(ctx, s); err != nil {
		r.logger.Error("cache invalidation failed", "user", s.UserID, "tenant", s.TenantID, "error", err)
		return err
	}
	r.logger.Info("cache invalidated", "user", s.UserID, "tenant", s.TenantID)
	return nil
}

// ReloadActions re-merges the action map and bumps the global version when
// its content changed.
func (r *Resolver) ReloadActions(ctx context.Context) (bool, error) {
	changed, err := r.actions.Reload(ctx)
	if err != nil {
		return false, err
	}
	if changed {
		if err := r.cache.Invalidate(ctx, Scope{}); err != nil {
			return true, err
		}
		r.logger.Info("action map reloaded", "hash", r.actions.Hash(), "actions", r.actions.Len())
	}
	return changed, nil
}

// BatchResolve resolves requests concurrently and returns decisions in input
// order. The error is the context error when ctx ended during the batch.
func (r *Resolver) BatchResolve(ctx context.Context, reqs []Request) ([]*Decision, error) {
	out := make([]*Decision, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchWorkers)
	for i := range reqs {
		g.Go(func() error {
			out[i] = r.ResolveDecision(gctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()
	return out, ctx.Err()
}

// evaluate runs account, personalized and pipeline stages. It never panics.
func (r *Resolver) evaluate(ctx context.Context, req Request, trace bool) (d *Decision) {
	var steps []string
	note := func(format string, args ...any) {
		if trace {
			steps = append(steps, fmt.Sprintf(format, args...))
		}
	}
	decide := func(allowed bool, src Source, reason, matchedBy string) *Decision {
		return &Decision{Allowed: allowed, Source: src, Reason: reason, MatchedBy: matchedBy, Trace: steps, Timestamp: r.now()}
	}
	defer func() {
		if p := recover(); p != nil {
			d = r.panicked(req, p)
			d.Trace = steps
		}
	}()

	ev := &Evaluation{
		UserID:   req.UserID,
		TenantID: req.TenantID,
		Action:   req.Action,
		Resource: req.Resource,
		Tokens:   r.actions.Tokens(req.Action),
	}

	note("1. Checking account state...")
	acc := r.account.Check(ctx, req.UserID, req.TenantID)
	if acc.Err != nil {
		if ctx.Err() != nil {
			return aborted(ctx.Err(), r.now())
		}
		r.logger.Error("membership check failed", "user", req.UserID, "tenant", req.TenantID, "error", acc.Err)
		note("   ERROR: %v", acc.Err)
		return decide(false, SourceException, acc.Reason, "")
	}
	if err := acc.Blocked(); err != nil {
		note("   DENY: %v", err)
		return decide(false, SourceAccount, acc.Reason, "")
	}
	if acc.Bypass {
		note("   ALLOW: %s", acc.Reason)
		return decide(true, SourceAccount, acc.Reason, req.UserID)
	}
	note("   OK: active member of tenant")

	note("2. Checking personalized grants...")
	pr := r.personal.Evaluate(ctx, ev)
	for _, err := range pr.Skipped {
		r.logger.Warn("skipping malformed grant", "user", req.UserID, "action", string(req.Action), "error", err)
		note("   skipped: %v", err)
	}
	if pr.Err != nil {
		if ctx.Err() != nil {
			return aborted(ctx.Err(), r.now())
		}
		r.logger.Error("grant lookup failed", "user", req.UserID, "tenant", req.TenantID, "error", pr.Err)
		note("   ERROR: %v", pr.Err)
	}
	for _, c := range pr.Candidates {
		note("   %s score %d", grantLabel(&c.Grant), c.Score)
	}
	if pr.Conclusive {
		g := pr.Winner.Grant
		if g.Allow {
			return decide(true, SourcePersonalized, "personalized allow", g.ID)
		}
		return decide(false, SourcePersonalized, "personalized deny", g.ID)
	}
	note("   no applicable grant")

	note("3. Running policy pipeline...")
	out := r.pipeline.Run(ctx, ev, trace)
	steps = append(steps, out.Trace...)
	if out.Source == SourceException {
		return aborted(out.Result.Err, r.now())
	}
	if out.Stage == "" && ctx.Err() != nil {
		return aborted(ctx.Err(), r.now())
	}
	if out.Stage != "" {
		return decide(out.Result.Kind == Allow, out.Source, out.Result.Reason, out.Result.MatchedBy)
	}
	if pr.Err != nil && out.Ran > 0 && out.Failures == out.Ran {
		r.logger.Error("all permission providers unavailable", "user", req.UserID, "tenant", req.TenantID, "action", string(req.Action))
		return decide(false, SourceException, "all providers unavailable", "")
	}
	note("   DENY: pipeline exhausted")
	return decide(false, SourceDefault, out.Result.Reason, "")
}

func (r *Resolver) store(ctx context.Context, key string, d *Decision) {
	if key == "" || d.Source == SourceException {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("decision cache write panicked", "panic", fmt.Sprint(p))
		}
	}()
	if err := r.cache.Set(ctx, key, d); err != nil {
		r.logger.Warn("decision cache write failed", "error", err)
	}
}

func (r *Resolver) finish(req Request, d *Decision, start time.Time) {
	r.metrics.decision(d, r.now().Sub(start))
	r.logger.Debug("permission decision",
		"tenant", req.TenantID,
		"user", req.UserID,
		"action", string(req.Action),
		"resource", req.Resource,
		"allowed", d.Allowed,
		"source", string(d.Source),
		"reason", d.Reason,
	)
}

func (r *Resolver) panicked(req Request, p any) *Decision {
	r.logger.Error("panic during permission resolution",
		"tenant", req.TenantID, "user", req.UserID, "action", string(req.Action), "panic", fmt.Sprint(p))
	return &Decision{Source: SourceException, Reason: fmt.Sprintf("internal error: %v", p), Timestamp: r.now()}
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

func aborted(err error, now time.Time) *Decision {
	return &Decision{Source: SourceException, Reason: "resolution aborted: " + err.Error(), Timestamp: now}
}

func normalizeRequest(req Request) Request {
	req.Action = NormalizeAction(string(req.Action))
	req.Resource = utils.CanonicalResource(req.Resource)
	return req
}
