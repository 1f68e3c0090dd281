package protocol

import "github.com/shubham-shewale/showmarket/pkg/models"

// TickMessage is a tick as sent to websocket subscribers and HTTP clients. TsMs is the
// upstream observation time; ReceivedAtMs is when the gateway sent it.
type TickMessage struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	TsMs         int64   `json:"ts_ms"`
	ReceivedAtMs int64   `json:"received_at_ms"`
}

func NewTickMessage(tick models.PriceTick, receivedAtMs int64) TickMessage {
	return TickMessage{
		Symbol:       tick.Symbol,
		Price:        tick.Price,
		TsMs:         tick.ObservedAtMs,
		ReceivedAtMs: receivedAtMs,
	}
}

type HealthResponse struct {
	Status      string `json:"status"`
	Subscribers int    `json:"subscribers"`
}

const (
	MsgPriceNotReady   = "price not ready"
	MsgUnsupported     = "unsupported symbol or interval"
	MsgKlinesFailed    = "upstream unavailable"
	MsgInvalidLimit    = "invalid limit"
	DefaultKlineWindow = "1m"
)
