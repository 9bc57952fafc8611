package observability

import (
	"context"

	"github.com/avhart/espalier/pkg/domain"
)

// Combine fans out lifecycle events to every given hook set, in order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, ev *domain.NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeEnter != nil {
					h.OnNodeEnter(ctx, ev)
				}
			}
		},
		OnNodeLeave: func(ctx context.Context, ev *domain.NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeLeave != nil {
					h.OnNodeLeave(ctx, ev)
				}
			}
		},
		OnModelCall: func(ctx context.Context, ev *domain.ModelEvent) {
			for _, h := range hooks {
				if h.OnModelCall != nil {
					h.OnModelCall(ctx, ev)
				}
			}
		},
		OnModelReturn: func(ctx context.Context, ev *domain.ModelEvent) {
			for _, h := range hooks {
				if h.OnModelReturn != nil {
					h.OnModelReturn(ctx, ev)
				}
			}
		},
	}
}
