package permit

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// ResultKind tags a StageResult.
type ResultKind uint8

const (
	Abstain ResultKind = iota
	Allow
	Deny
	Failed
)

func (k ResultKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Failed:
		return "error"
	default:
		return "abstain"
	}
}

// StageResult is the answer of one pipeline stage.
type StageResult struct {
	Kind      ResultKind
	Reason    string
	MatchedBy string
	Err       error
}

func Allowed(reason, matchedBy string) StageResult {
	return StageResult{Kind: Allow, Reason: reason, MatchedBy: matchedBy}
}

func Denied(reason, matchedBy string) StageResult {
	return StageResult{Kind: Deny, Reason: reason, MatchedBy: matchedBy}
}

func Abstained(reason string) StageResult { return StageResult{Kind: Abstain, Reason: reason} }

func Errored(err error) StageResult { return StageResult{Kind: Failed, Err: err, Reason: err.Error()} }

// Conclusive reports whether the result ends the pipeline.
func (r StageResult) Conclusive() bool { return r.Kind == Allow || r.Kind == Deny }

// Evaluation carries the request through the pipeline.
type Evaluation struct {
	UserID   string
	TenantID string
	Action   ActionToken
	Resource string
	Tokens   []string // capability tokens from the ActionMap
}

// Stage is one fallback step of the pipeline.
type Stage interface {
	Name() string
	Source() Source
	Evaluate(ctx context.Context, ev *Evaluation) StageResult
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(ctx context.Context, ev *Evaluation) StageResult

type funcStage struct {
	name   string
	source Source
	fn     StageFunc
}

// NewStage wraps fn as a named stage reporting source on conclusive results.
func NewStage(name string, source Source, fn StageFunc) Stage {
	return &funcStage{name: name, source: source, fn: fn}
}

func (s *funcStage) Name() string   { return s.name }
func (s *funcStage) Source() Source { return s.source }
func (s *funcStage) Evaluate(ctx context.Context, ev *Evaluation) StageResult {
	return s.fn(ctx, ev)
}

// Pipeline is an ordered, named list of stages. Mutations are O(1) and
// publish a new snapshot; Run reads the snapshot without locking.
type Pipeline struct {
	mu     sync.Mutex
	order  *list.List
	byName map[string]*list.Element
	snap   atomic.Pointer[[]Stage]
}

func NewPipeline(stages ...Stage) (*Pipeline, error) {
	p := &Pipeline{order: list.New(), byName: make(map[string]*list.Element)}
	p.publish()
	for _, s := range stages {
		if err := p.Append(s); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Append adds a stage at the end.
func (p *Pipeline) Append(s Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byName[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrStageExists, s.Name())
	}
	p.byName[s.Name()] = p.order.PushBack(s)
	p.publish()
	return nil
}

// InsertBefore adds a stage in front of the named one.
func (p *Pipeline) InsertBefore(before string, s Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	mark, ok := p.byName[before]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStageNotFound, before)
	}
	if _, ok := p.byName[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrStageExists, s.Name())
	}
	p.byName[s.Name()] = p.order.InsertBefore(s, mark)
	p.publish()
	return nil
}

// InsertAfter adds a stage behind the named one.
func (p *Pipeline) InsertAfter(after string, s Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	mark, ok := p.byName[after]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStageNotFound, after)
	}
	if _, ok := p.byName[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrStageExists, s.Name())
	}
	p.byName[s.Name()] = p.order.InsertAfter(s, mark)
	p.publish()
	return nil
}

// Remove drops the named stage.
func (p *Pipeline) Remove(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStageNotFound, name)
	}
	p.order.Remove(el)
	delete(p.byName, name)
	p.publish()
	return nil
}

// Names returns stage names in execution order.
func (p *Pipeline) Names() []string {
	stages := p.Stages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name()
	}
	return names
}

// Stages returns the current snapshot.
func (p *Pipeline) Stages() []Stage { return *p.snap.Load() }

// caller holds mu
func (p *Pipeline) publish() {
	stages := make([]Stage, 0, p.order.Len())
	for el := p.order.Front(); el != nil; el = el.Next() {
		stages = append(stages, el.Value.(Stage))
	}
	p.snap.Store(&stages)
}

// PipelineOutcome is the result of running every stage up to the first
// conclusive one.
type PipelineOutcome struct {
	Result   StageResult
	Source   Source
	Stage    string
	Trace    []string
	Failures int
	Ran      int
}

// Run evaluates stages in order and stops at the first conclusive result.
// When tracing is off, Trace stays nil.
func (p *Pipeline) Run(ctx context.Context, ev *Evaluation, trace bool) PipelineOutcome {
	var out PipelineOutcome
	for _, s := range p.Stages() {
		if err := ctx.Err(); err != nil {
			out.Result = Errored(err)
			out.Source = SourceException
			return out
		}
		res := s.Evaluate(ctx, ev)
		out.Ran++
		if trace {
			out.Trace = append(out.Trace, fmt.Sprintf("   %s: %s %s", s.Name(), res.Kind, res.Reason))
		}
		switch res.Kind {
		case Failed:
			out.Failures++
			if isContextErr(res.Err) {
				out.Result = res
				out.Source = SourceException
				return out
			}
		case Allow, Deny:
			out.Result = res
			out.Source = s.Source()
			out.Stage = s.Name()
			return out
		}
	}
	out.Result = Denied("pipeline exhausted", "")
	out.Source = SourceDefault
	return out
}
