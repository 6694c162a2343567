// Package journal keeps an append-only audit trail of closed trades. Nothing
// written here is read back by the engine.
package journal

import (
	"fmt"
	"strings"
	"time"
)

// TradeRecord is one realized trade.
type TradeRecord struct {
	TradeID     string
	Instance    string
	Exchange    string
	Symbol      string
	Strategy    string
	Side        string
	Quantity    float64
	EntryPrice  float64
	ExitPrice   float64
	OpenTime    time.Time
	CloseTime   time.Time
	RealizedPnL float64
	PnLAsset    string
	Reason      string
}

type Journal interface {
	RecordTrade(TradeRecord) error
	Close() error
}

// Kinds accepted by Open.
const (
	KindNone   = "none"
	KindCSV    = "csv"
	KindSQLite = "sqlite"
)

// Open builds the journal named by kind writing to path.
func Open(kind, path string) (Journal, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindNone:
		return Nop{}, nil
	case KindCSV:
		return NewCSV(path)
	case KindSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown journal kind %q (supported: none, csv, sqlite)", kind)
	}
}

// Nop discards every record.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) Close() error                  { return nil }
