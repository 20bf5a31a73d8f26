package engine

import (
	"context"

	"github.com/sentinelhq/sentinel/pkg/types"
)

// Subscriber receives every persisted event, in persistence order.
type Subscriber interface {
	Name() string
	OnEvent(ctx context.Context, evt *types.AttackEvent) error
}

// Resetter is implemented by subscribers that keep their own copy of the
// events. It is called after the store has been cleared.
type Resetter interface {
	Reset() error
}

type funcSubscriber struct {
	name string
	fn   func(context.Context, *types.AttackEvent) error
}

func (f funcSubscriber) Name() string { return f.name }

func (f funcSubscriber) OnEvent(ctx context.Context, evt *types.AttackEvent) error {
	return f.fn(ctx, evt)
}

// SubscriberFunc adapts a plain function.
func SubscriberFunc(name string, fn func(context.Context, *types.AttackEvent) error) Subscriber {
	return funcSubscriber{name: name, fn: fn}
}
