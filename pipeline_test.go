package permit

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func constStage(name string, res StageResult) Stage {
	return NewStage(name, SourceImplicit, func(context.Context, *Evaluation) StageResult { return res })
}

func TestPipelineOrdering(t *testing.T) {
	p, err := NewPipeline(constStage("a", Abstained("")), constStage("c", Abstained("")))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if err := p.InsertBefore("c", constStage("b", Abstained(""))); err != nil {
		t.Fatalf("insert before: %v", err)
	}
	if err := p.InsertAfter("c", constStage("d", Abstained(""))); err != nil {
		t.Fatalf("insert after: %v", err)
	}
	if got := strings.Join(p.Names(), ","); got != "a,b,c,d" {
		t.Fatalf("unexpected order %s", got)
	}
	if err := p.Remove("b"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := strings.Join(p.Names(), ","); got != "a,c,d" {
		t.Fatalf("unexpected order after remove %s", got)
	}
}

func TestPipelineRejectsDuplicatesAndUnknown(t *testing.T) {
	p, err := NewPipeline(constStage("a", Abstained("")))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if err := p.Append(constStage("a", Abstained(""))); !errors.Is(err, ErrStageExists) {
		t.Fatalf("expected ErrStageExists, got %v", err)
	}
	if err := p.InsertBefore("missing", constStage("x", Abstained(""))); !errors.Is(err, ErrStageNotFound) {
		t.Fatalf("expected ErrStageNotFound, got %v", err)
	}
	if err := p.Remove("missing"); !errors.Is(err, ErrStageNotFound) {
		t.Fatalf("expected ErrStageNotFound, got %v", err)
	}
	if _, err := NewPipeline(constStage("a", Abstained("")), constStage("a", Abstained(""))); err == nil {
		t.Fatalf("expected duplicate stages to be rejected")
	}
}

func TestPipelineRunStopsAtFirstConclusive(t *testing.T) {
	ran := false
	late := NewStage("late", SourceDefault, func(context.Context, *Evaluation) StageResult {
		ran = true
		return Allowed("late", "")
	})
	p, _ := NewPipeline(
		constStage("skip", Abstained("nothing")),
		constStage("broken", Errored(errors.New("boom"))),
		constStage("deny", Denied("no", "rule-1")),
		late,
	)
	out := p.Run(context.Background(), &Evaluation{}, true)
	if out.Result.Kind != Deny || out.Stage != "deny" || out.Source != SourceImplicit {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if ran {
		t.Fatalf("stage after a conclusive result must not run")
	}
	if out.Ran != 3 || out.Failures != 1 {
		t.Fatalf("expected 3 ran and 1 failure, got %d/%d", out.Ran, out.Failures)
	}
	if len(out.Trace) != 3 || !strings.Contains(out.Trace[1], "broken: error boom") {
		t.Fatalf("unexpected trace %v", out.Trace)
	}
}

func TestPipelineExhausted(t *testing.T) {
	p, _ := NewPipeline(constStage("a", Abstained("")))
	out := p.Run(context.Background(), &Evaluation{}, false)
	if out.Result.Kind != Deny || out.Source != SourceDefault || out.Stage != "" {
		t.Fatalf("expected exhausted deny, got %+v", out)
	}
	if out.Trace != nil {
		t.Fatalf("trace must stay nil when tracing is off")
	}
}

func TestPipelineStopsOnCancelledContext(t *testing.T) {
	p, _ := NewPipeline(constStage("a", Allowed("", "")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := p.Run(ctx, &Evaluation{}, false)
	if out.Source != SourceException || out.Ran != 0 {
		t.Fatalf("expected exception without running stages, got %+v", out)
	}
}

func TestRunSnapshotIgnoresConcurrentMutation(t *testing.T) {
	var p *Pipeline
	mutating := NewStage("mutating", SourceImplicit, func(context.Context, *Evaluation) StageResult {
		_ = p.Append(constStage("added", Allowed("added", "")))
		return Abstained("")
	})
	p, _ = NewPipeline(mutating)
	out := p.Run(context.Background(), &Evaluation{}, false)
	if out.Stage != "" || out.Ran != 1 {
		t.Fatalf("run must iterate its own snapshot, got %+v", out)
	}
	if len(p.Stages()) != 2 {
		t.Fatalf("expected the appended stage to be visible afterwards")
	}
}
