package coreengine

import (
	"github.com/rs/zerolog"

	"github.com/midastrader/midas/bus"
	"github.com/midastrader/midas/execution"
)

// BrokerRunner subscribes to ORDER and submits each to a Broker,
// decoupling the OrderManager's sizing decision from the broker's fill
// simulation or live submission the way the retrieved TradingEngine
// decoupled signal generation from PaperBroker execution via its own
// internal channel.
type BrokerRunner struct {
	broker execution.Broker
	log    zerolog.Logger
	sub    *bus.Subscriber
}

// NewBrokerRunner wires a BrokerRunner to its bus and broker, subscribing
// to ORDER immediately so no order published before Run starts is missed.
func NewBrokerRunner(b *bus.Bus, broker execution.Broker, log zerolog.Logger) *BrokerRunner {
	return &BrokerRunner{
		broker: broker,
		log:    log.With().Str("component", "broker_runner").Logger(),
		sub:    b.Subscribe(bus.TopicOrder),
	}
}

// Run drains ORDER until the bus shuts down, submitting each to the
// broker. The broker itself is responsible for publishing TRADE and
// ORDER_UPDATE on both the accept and reject paths, so this loop only
// needs to log submission failures.
func (r *BrokerRunner) Run() {
	for {
		evt, ok := r.sub.Next()
		if !ok {
			return
		}
		order, ok := evt.Payload.(execution.Order)
		if !ok {
			continue
		}
		if _, err := r.broker.Submit(order); err != nil {
			r.log.Warn().Err(err).Uint64("order_id", order.OrderID).Msg("order submission failed")
		}
	}
}
