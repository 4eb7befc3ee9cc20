package execution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/midastrader/midas/bus"
	"github.com/midastrader/midas/portfolio"
	"github.com/midastrader/midas/symbol"
)

// LiveBrokerConfig holds the connection details for a live venue,
// following the `[broker]` TOML section of spec.md §6.
type LiveBrokerConfig struct {
	RestURL   string
	StreamURL string
	APIKey    string
}

// LiveBroker submits orders to a real venue over HTTP and consumes fill
// and commission confirmations over a WebSocket stream. The HTTP client
// (retryablehttp) and WebSocket dial (gorilla/websocket) follow the same
// libraries dbn-go's fetch client and the retrieved sherwood realtime
// package use respectively; this package combines both roles, since in
// live trading order submission and execution-report consumption share
// one broker session.
type LiveBroker struct {
	cfg    LiveBrokerConfig
	client *retryablehttp.Client
	conn   *websocket.Conn

	symbols *symbol.Map
	pf      *portfolio.Server

	connected atomic.Bool
	b         *bus.Bus
	log       zerolog.Logger
}

// NewLiveBroker constructs a LiveBroker that has not yet connected. It
// shares the run's symbol map and portfolio server with the data adaptor,
// the same dependencies DummyBroker takes, so readLoop can apply fills
// and commissions to the authoritative portfolio state itself rather than
// only broadcasting them on the bus.
func NewLiveBroker(cfg LiveBrokerConfig, symbols *symbol.Map, pf *portfolio.Server, b *bus.Bus, log zerolog.Logger) *LiveBroker {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second

	return &LiveBroker{
		cfg:     cfg,
		client:  client,
		symbols: symbols,
		pf:      pf,
		b:       b,
		log:     log.With().Str("component", "live_broker").Logger(),
	}
}

func (l *LiveBroker) Name() string { return "live" }

// Connect dials the venue's execution-report WebSocket stream and starts
// a background reader that applies fills/commissions to the portfolio
// and republishes TRADE/TRADE_COMMISSION/POSITION_UPDATE/ACCOUNT_UPDATE/
// ORDER_UPDATE events onto the bus as they arrive.
func (l *LiveBroker) Connect() error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.Dial(l.cfg.StreamURL, nil)
	if err != nil {
		return fmt.Errorf("execution: live broker dial failed: %w", err)
	}
	l.conn = conn
	l.connected.Store(true)

	go l.readLoop()

	l.log.Info().Str("url", l.cfg.StreamURL).Msg("live broker connected")
	return nil
}

func (l *LiveBroker) Disconnect() error {
	l.connected.Store(false)
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}

func (l *LiveBroker) IsConnected() bool { return l.connected.Load() }

// readLoop drains execution reports off the stream until the connection
// closes or shutdown is signalled, applying each fill/commission to the
// authoritative portfolio state before republishing it as a TRADE,
// TRADE_COMMISSION, POSITION_UPDATE, ACCOUNT_UPDATE, or ORDER_UPDATE
// event — the same direct-call-then-publish pattern DummyBroker.Submit
// uses in backtest, so the portfolio ends up authoritative in both modes
// (see portfolio.Server.Run's doc comment for why Server itself does not
// also subscribe to these topics). Commission in live mode arrives as its
// own report rather than inline with the fill, per spec.md §9; it is
// reconciled onto the account's cash via ApplyCommission rather than
// rewriting the already-published Trade.
func (l *LiveBroker) readLoop() {
	for !l.b.ShuttingDown() {
		var report executionReport
		if err := l.conn.ReadJSON(&report); err != nil {
			if l.connected.Load() {
				l.log.Error().Err(err).Msg("live broker stream read failed")
			}
			return
		}
		switch report.Kind {
		case "fill":
			l.applyFill(report.Trade)
		case "commission":
			l.applyCommission(report.Commission)
		case "order_update":
			l.b.Publish(bus.TopicOrderUpdate, report.Order)
		}
	}
}

// applyFill updates the portfolio for a venue-reported fill and
// republishes the resulting Trade/Position/Account, mirroring
// DummyBroker.Submit's publish sequence.
func (l *LiveBroker) applyFill(trade portfolio.Trade) {
	sym, ok := l.symbols.ByID(symbol.InstrumentId(trade.InstrumentId))
	if !ok {
		l.log.Error().Uint32("instrument_id", trade.InstrumentId).Msg("live fill for unknown instrument, dropping")
		return
	}
	mult := contractMultipliers(sym.ContractSpec())
	pos, acct := l.pf.ApplyTrade(trade, mult)

	l.b.Publish(bus.TopicTrade, trade)
	l.b.Publish(bus.TopicPositionUpdate, pos)
	l.b.Publish(bus.TopicAccountUpdate, acct)
}

// applyCommission reconciles a venue-reported commission onto the
// account's cash and republishes both the raw commission report and the
// resulting account snapshot.
func (l *LiveBroker) applyCommission(c commissionReport) {
	acct := l.pf.ApplyCommission(c.Amount, time.Now().UnixNano())
	l.b.Publish(bus.TopicTradeCommission, c)
	l.b.Publish(bus.TopicAccountUpdate, acct)

	l.log.Debug().
		Uint64("trade_id", c.TradeID).
		Str("amount", c.Amount.String()).
		Msg("live commission reconciled")
}

// executionReport is the wire shape of one message on the venue's
// execution-report stream.
type executionReport struct {
	Kind       string                `json:"kind"`
	Trade      portfolio.Trade       `json:"trade,omitempty"`
	Commission commissionReport      `json:"commission,omitempty"`
	Order      portfolio.ActiveOrder `json:"order,omitempty"`
}

// commissionReport is the TRADE_COMMISSION payload: a commission amount
// keyed by the trade_id it belongs to, reconciled against the Trade
// record that arrived (or will arrive) on the fill path.
type commissionReport struct {
	TradeID uint64          `json:"trade_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// submitRequest is the REST payload for placing a live order.
type submitRequest struct {
	InstrumentId uint32 `json:"instrument_id"`
	Action       string `json:"action"`
	Quantity     string `json:"quantity"`
}

// submitResponse is the REST acknowledgement for an order submission. The
// actual fill/commission arrive asynchronously on the WebSocket stream;
// Submit blocks only for the venue's synchronous accept/reject decision.
type submitResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
}

// Submit posts an order to the venue's REST endpoint and returns once the
// venue synchronously accepts or rejects it. The resulting Trade is
// published asynchronously by readLoop when the fill report arrives, so
// Submit returns a zero Trade on success — callers needing the realized
// fill should observe the TRADE topic rather than this return value.
func (l *LiveBroker) Submit(order Order) (portfolio.Trade, error) {
	body, err := json.Marshal(submitRequest{
		InstrumentId: uint32(order.InstrumentId),
		Action:       actionName(order.Action),
		Quantity:     order.Quantity.String(),
	})
	if err != nil {
		return portfolio.Trade{}, fmt.Errorf("execution: encode order: %w", err)
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, l.cfg.RestURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return portfolio.Trade{}, fmt.Errorf("execution: build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.cfg.APIKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return portfolio.Trade{}, fmt.Errorf("execution: submit order: %w", err)
	}
	defer resp.Body.Close()

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return portfolio.Trade{}, fmt.Errorf("execution: decode order response: %w", err)
	}
	if !out.Accepted {
		l.b.Publish(bus.TopicOrderUpdate, portfolio.ActiveOrder{
			OrderID: order.OrderID, SignalID: order.SignalID,
			InstrumentId: uint32(order.InstrumentId), Action: order.Action,
			Quantity: order.Quantity, Status: portfolio.OrderStatusCancelled,
		})
		return portfolio.Trade{}, fmt.Errorf("execution: order rejected: %s", out.Reason)
	}

	return portfolio.Trade{}, nil
}

func actionName(a portfolio.Action) string {
	switch a {
	case portfolio.ActionLong:
		return "long"
	case portfolio.ActionCover:
		return "cover"
	case portfolio.ActionShort:
		return "short"
	default:
		return "sell"
	}
}
