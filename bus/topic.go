// Package bus implements the process-wide event bus: queued topics with
// per-subscriber FIFO delivery, boolean flag topics backed by a condition
// variable, and a shutdown signal every blocking wait honours.
//
// The register/unregister/broadcast shape follows the WebSocketManager hub
// in the retrieved sherwood realtime package, generalized from a single
// broadcast channel to a fixed topic enumeration with per-topic subscriber
// fan-out. Unlike that hub, the bus runs no internal goroutine and uses
// mutex-guarded queues instead of channels.
package bus

// Topic identifies one of the bus's fixed set of channels. Unlike the
// teacher's websocket hub, which broadcasts one message type to one
// implicit channel, this bus has a closed topic enumeration so publish and
// subscribe calls are checked against a known set.
type Topic string

const (
	TopicData            Topic = "DATA"
	TopicOrderBook       Topic = "ORDER_BOOK"
	TopicSignal          Topic = "SIGNAL"
	TopicSignalUpdate    Topic = "SIGNAL_UPDATE"
	TopicOrder           Topic = "ORDER"
	TopicTrade           Topic = "TRADE"
	TopicTradeCommission Topic = "TRADE_COMMISSION"
	TopicPositionUpdate  Topic = "POSITION_UPDATE"
	TopicAccountUpdate   Topic = "ACCOUNT_UPDATE"
	TopicOrderUpdate     Topic = "ORDER_UPDATE"
	TopicEOD             Topic = "EOD"
)

// FlagTopic identifies one of the three boolean synchronization flags.
// These are disjoint from the queued Topic enumeration: a flag is a
// condition-protected bool, not a FIFO of events.
type FlagTopic string

const (
	FlagDataProcessed FlagTopic = "DATA_PROCESSED"
	FlagUpdateSystem  FlagTopic = "UPDATE_SYSTEM"
	FlagRolledOver    FlagTopic = "ROLLED_OVER"
)

// queuedTopics enumerates every valid queued Topic, used to pre-allocate
// subscriber registries at construction.
var queuedTopics = []Topic{
	TopicData,
	TopicOrderBook,
	TopicSignal,
	TopicSignalUpdate,
	TopicOrder,
	TopicTrade,
	TopicTradeCommission,
	TopicPositionUpdate,
	TopicAccountUpdate,
	TopicOrderUpdate,
	TopicEOD,
}

var flagTopics = []FlagTopic{
	FlagDataProcessed,
	FlagUpdateSystem,
	FlagRolledOver,
}
