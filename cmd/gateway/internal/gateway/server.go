package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/feed"
	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/normalize"
	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/showmarket/pkg/models"
)

const btcSymbol = "BTCUSDT"

// PriceSource is the part of the hub the HTTP layer reads.
type PriceSource interface {
	hub.Source
	Snapshot() (models.PriceTick, bool)
	Latest(symbol string) (models.PriceTick, bool)
	Subscribers() int
}

type Server struct {
	prices  PriceSource
	candles feed.CandleSource
	logger  *zap.Logger
}

func NewServer(prices PriceSource, candles feed.CandleSource, logger *zap.Logger) *Server {
	return &Server{prices: prices, candles: candles, logger: logger}
}

// Routes registers the HTTP endpoints. Websocket sessions end when ctx is done.
func (s *Server) Routes(ctx context.Context) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /price", s.handleSnapshot)
	mux.HandleFunc("GET /price/btc", func(w http.ResponseWriter, r *http.Request) {
		tick, ok := s.prices.Latest(btcSymbol)
		s.writeTick(w, tick, ok)
	})
	mux.HandleFunc("GET /price/{symbol}", s.handleLatest)
	mux.HandleFunc("GET /klines/{symbol}", s.handleKlines)
	mux.HandleFunc("GET /ws/prices", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			s.logger.Debug("Upgrade failed", zap.Error(err))
			return
		}
		go NewSession(conn, s.prices, s.logger).Serve(ctx)
	})
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.HealthResponse{Status: "ok", Subscribers: s.prices.Subscribers()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	tick, ok := s.prices.Snapshot()
	s.writeTick(w, tick, ok)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	tick, ok := s.prices.Latest(r.PathValue("symbol"))
	s.writeTick(w, tick, ok)
}

func (s *Server) writeTick(w http.ResponseWriter, tick models.PriceTick, ok bool) {
	if !ok {
		http.Error(w, protocol.MsgPriceNotReady, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, tick)
}

func (s *Server) handleKlines(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = protocol.DefaultKlineWindow
	}

	limit := feed.DefaultCandleLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, protocol.MsgInvalidLimit, http.StatusBadRequest)
			return
		}
		limit = n
	}

	candles, err := s.candles.FetchCandles(r.Context(), symbol, interval, limit)
	if err != nil {
		if errors.Is(err, normalize.ErrUnsupportedSymbol) || errors.Is(err, normalize.ErrUnsupportedInterval) {
			http.Error(w, protocol.MsgUnsupported, http.StatusBadRequest)
			return
		}
		s.logger.Warn("Failed to fetch klines",
			zap.Error(err), zap.String("symbol", symbol), zap.String("interval", interval))
		http.Error(w, protocol.MsgKlinesFailed, http.StatusBadGateway)
		return
	}
	if candles == nil {
		candles = []models.Candle{}
	}
	writeJSON(w, http.StatusOK, candles)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
