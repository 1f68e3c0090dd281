package models

// PriceTick is a single price observation for a symbol.
type PriceTick struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	ObservedAtMs int64   `json:"ts_ms"` // unix millis, as reported (or observed) at the source
}

// Candle is one OHLCV bar. Candles are pass-through values and are never cached.
type Candle struct {
	OpenTimeMs int64   `json:"open_time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
}
