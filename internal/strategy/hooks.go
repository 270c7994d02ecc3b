package strategy

import (
	"github.com/web3guy0/crossarb/internal/events"
)

// Hooks is the strategy-level observer set for order lifecycle events.
// Concrete strategies embed NopHooks and override only what they need.
// Hooks run before the router's own bookkeeping, so a hook may still observe
// tracker state for the order that the event is about to retire.
type Hooks interface {
	OnBuyOrderCreated(ev events.OrderEvent)
	OnSellOrderCreated(ev events.OrderEvent)
	OnOrderFilled(ev events.OrderEvent)
	OnOrderFailed(ev events.OrderEvent)
	OnOrderCancelled(ev events.OrderEvent)
	OnOrderExpired(ev events.OrderEvent)
	OnBuyOrderCompleted(ev events.OrderEvent)
	OnSellOrderCompleted(ev events.OrderEvent)
}

// NopHooks implements Hooks with no-ops
type NopHooks struct{}

func (NopHooks) OnBuyOrderCreated(events.OrderEvent)   {}
func (NopHooks) OnSellOrderCreated(events.OrderEvent)  {}
func (NopHooks) OnOrderFilled(events.OrderEvent)       {}
func (NopHooks) OnOrderFailed(events.OrderEvent)       {}
func (NopHooks) OnOrderCancelled(events.OrderEvent)    {}
func (NopHooks) OnOrderExpired(events.OrderEvent)      {}
func (NopHooks) OnBuyOrderCompleted(events.OrderEvent)  {}
func (NopHooks) OnSellOrderCompleted(events.OrderEvent) {}
