// Package metrics exposes the trader's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_ticks_total", Help: "Trade ticks ingested by strategy instances"},
		[]string{"exchange", "symbol"},
	)
	CandlesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_candles_total", Help: "Candles opened, by kind (new, gap_fill)"},
		[]string{"exchange", "symbol", "kind"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_signals_total", Help: "Non-neutral strategy signals"},
		[]string{"strategy", "side"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_orders_total", Help: "Orders submitted, by result (ok, error)"},
		[]string{"exchange", "symbol", "side", "result"},
	)
	ConfirmPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_confirm_polls_total", Help: "Order status polls, by result (filled, pending, error)"},
		[]string{"exchange", "result"},
	)
	ActiveInstances = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "trader_active_instances", Help: "Currently active strategy instances"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, CandlesTotal, SignalsTotal, OrdersTotal, ConfirmPollsTotal, ActiveInstances)
}

// Server exposes /metrics on a bound listener.
type Server struct {
	ln  net.Listener
	srv *http.Server
}

// Listen binds addr. Bind errors are reported here, before anything is served.
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		ln:  ln,
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}, nil
}

// Addr is the bound address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Run serves until ctx is done, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(s.ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	<-errc
	return nil
}
