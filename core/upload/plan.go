package upload

import (
	"context"

	"flacshare/storage"
)

// ResourceKind identifies which blob a committed resource refers to.
type ResourceKind int

const (
	KindAudio ResourceKind = iota
	KindCover
)

func (k ResourceKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindCover:
		return "cover"
	default:
		return "unknown"
	}
}

// Namespace maps the kind to its blob namespace.
func (k ResourceKind) Namespace() storage.Namespace {
	if k == KindCover {
		return storage.NamespaceCover
	}
	return storage.NamespaceAudio
}

// Resource is one successfully written blob.
type Resource struct {
	Kind ResourceKind
	Key  string
}

type compensation struct {
	resource Resource
	undo     func(ctx context.Context) error
}

// commitPlan is a stack of compensating actions. An entry is pushed only after
// its write succeeded, so a failure at step k only ever undoes steps 1..k-1.
type commitPlan struct {
	steps []compensation
}

func (p *commitPlan) push(r Resource, undo func(ctx context.Context) error) {
	p.steps = append(p.steps, compensation{resource: r, undo: undo})
}

// Resources returns the committed resources in insertion order.
func (p *commitPlan) Resources() []Resource {
	out := make([]Resource, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.resource
	}
	return out
}

// rollback pops and runs every compensation in reverse order. Each undo is
// attempted exactly once; failures are collected, not retried.
func (p *commitPlan) rollback(ctx context.Context) []CompensationWarning {
	var warnings []CompensationWarning
	for len(p.steps) > 0 {
		last := len(p.steps) - 1
		step := p.steps[last]
		p.steps = p.steps[:last]

		if err := step.undo(ctx); err != nil {
			warnings = append(warnings, CompensationWarning{
				Kind: step.resource.Kind,
				Key:  step.resource.Key,
				Err:  err,
			})
		}
	}
	return warnings
}

func (p *commitPlan) discard() {
	p.steps = nil
}
