// Package engine runs strategy instances: it turns exchange ticks into
// candles, evaluates signals, places and confirms orders and keeps each
// instance's trade ledger marked to market.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/autotrader/broker"
	"github.com/rustyeddy/autotrader/ledger"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/metrics"
	"github.com/rustyeddy/autotrader/pkg/id"
)

// Coordinator is the registry of exchanges and active instances. Create one
// at startup and call Shutdown when done.
type Coordinator struct {
	log  zerolog.Logger
	opts Options

	mu        sync.Mutex
	exchanges map[string]broker.Client
	instances map[string]*Instance
}

func NewCoordinator(log zerolog.Logger, opts Options) *Coordinator {
	return &Coordinator{
		log:       log,
		opts:      opts.withDefaults(),
		exchanges: make(map[string]broker.Client),
		instances: make(map[string]*Instance),
	}
}

// Logbook returns the shared event stream.
func (c *Coordinator) Logbook() *Logbook { return c.opts.Logbook }

// RegisterExchange makes client available to activations under its name.
func (c *Coordinator) RegisterExchange(client broker.Client) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := client.Name()
	if _, ok := c.exchanges[name]; ok {
		return fmt.Errorf("exchange %q already registered", name)
	}
	c.exchanges[name] = client
	return nil
}

func (c *Coordinator) Exchange(name string) (broker.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	client, ok := c.exchanges[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExchange, name)
	}
	return client, nil
}

// Activate validates cfg, seeds the candle series from history and
// subscribes the new instance to its contract. Parameter errors are reported
// before the exchange is contacted. Zero historical candles fail with
// ErrNoHistoricalData and leave nothing behind.
func (c *Coordinator) Activate(ctx context.Context, cfg ActivationConfig) (*Instance, error) {
	tf, eval, err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("activate %s: %w", cfg, err)
	}
	client, err := c.Exchange(cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("activate %s: %w", cfg, err)
	}
	contract, err := client.Contract(cfg.Symbol)
	if err != nil {
		return nil, fmt.Errorf("activate %s: %w", cfg, err)
	}

	history, err := client.HistoricalCandles(ctx, contract, tf)
	if err != nil {
		return nil, fmt.Errorf("activate %s: history: %w", cfg, err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("activate %s: %w", cfg, ErrNoHistoricalData)
	}
	series, err := market.NewSeries(tf, history,
		market.WithGapTick(c.opts.FillGapTick),
		market.WithMaxGap(c.opts.MaxGapCandles),
	)
	if err != nil {
		if errors.Is(err, market.ErrNoCandles) {
			err = fmt.Errorf("%w: %v", ErrNoHistoricalData, err)
		}
		return nil, fmt.Errorf("activate %s: %w", cfg, err)
	}

	instID := id.Prefixed("inst")
	ictx, cancel := context.WithCancel(context.Background())
	inst := &Instance{
		id:       instID,
		cfg:      cfg,
		tf:       tf,
		client:   client,
		contract: contract,
		eval:     eval,
		opts:     c.opts,
		log: c.log.With().
			Str("instance", instID).
			Str("exchange", cfg.Exchange).
			Str("symbol", contract.Symbol()).
			Str("timeframe", string(tf)).
			Str("strategy", eval.Name()).
			Logger(),
		ctx:    ictx,
		cancel: cancel,
		active: true,
		series: series,
		ledger: ledger.New(),
	}

	unsub, err := client.Subscribe(contract, inst)
	if err != nil {
		inst.deactivate()
		return nil, fmt.Errorf("activate %s: subscribe: %w", cfg, err)
	}
	inst.mu.Lock()
	inst.unsubscribe = unsub
	inst.mu.Unlock()

	c.mu.Lock()
	c.instances[instID] = inst
	c.mu.Unlock()
	metrics.ActiveInstances.Inc()

	if n := series.Dropped(); n > 0 {
		inst.note(zerolog.WarnLevel, "dropped %d out-of-order historical candles", n)
	}
	inst.note(zerolog.InfoLevel, "activated %s on %s with %d candles", eval.Name(), contract, series.Len())
	return inst, nil
}

// Deactivate stops the instance and forgets it. Positions already open on
// the exchange are not touched.
func (c *Coordinator) Deactivate(instanceID string) error {
	c.mu.Lock()
	inst, ok := c.instances[instanceID]
	delete(c.instances, instanceID)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("deactivate %q: %w", instanceID, ErrInstanceNotFound)
	}
	if inst.deactivate() {
		metrics.ActiveInstances.Dec()
		inst.note(zerolog.InfoLevel, "deactivated")
	}
	return nil
}

func (c *Coordinator) Instance(instanceID string) (*Instance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst, ok := c.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("instance %q: %w", instanceID, ErrInstanceNotFound)
	}
	return inst, nil
}

// Instances returns the active instances ordered by id.
func (c *Coordinator) Instances() []*Instance {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Instance, 0, len(c.instances))
	for _, inst := range c.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].id < out[b].id })
	return out
}

// CloseTrade closes the open trade of an instance with reason.
func (c *Coordinator) CloseTrade(instanceID, reason string) error {
	inst, err := c.Instance(instanceID)
	if err != nil {
		return err
	}
	return inst.Close(reason)
}

// VoidTrade abandons the pending trade of an instance, typically one whose
// entry order was never confirmed, so the instance can trade again.
func (c *Coordinator) VoidTrade(instanceID, reason string) error {
	inst, err := c.Instance(instanceID)
	if err != nil {
		return err
	}
	_, err = inst.Void(reason)
	return err
}

// Shutdown deactivates every instance.
func (c *Coordinator) Shutdown() {
	for _, inst := range c.Instances() {
		_ = c.Deactivate(inst.ID())
	}
}
