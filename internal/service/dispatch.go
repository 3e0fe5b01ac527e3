package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
)

// Dispatcher expands a job into its recipients.
type Dispatcher struct {
	bindings core.BindingStore
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(bindings core.BindingStore) (*Dispatcher, error) {
	if bindings == nil {
		return nil, errors.New("binding store is required")
	}
	return &Dispatcher{bindings: bindings}, nil
}

// Recipients returns the sorted, de-duplicated recipients of a job. An
// individual context has exactly one recipient, the context itself. A shared
// context without bindings yields an empty list.
func (d *Dispatcher) Recipients(ctx context.Context, desc *model.JobDescriptor) ([]string, error) {
	switch desc.ContextKind {
	case model.ContextIndividual:
		return []string{desc.ContextID}, nil
	case model.ContextShared:
		ids, err := d.bindings.ListRecipients(ctx, desc.ContextID)
		if err != nil {
			return nil, fmt.Errorf("list recipients of %s: %w", desc.ContextID, err)
		}
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
		slices.Sort(out)
		return slices.Compact(out), nil
	default:
		return nil, fmt.Errorf("%w: context kind %q", model.ErrInvalidDescriptor, desc.ContextKind)
	}
}
