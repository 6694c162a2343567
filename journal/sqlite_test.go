package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='trades'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "trades", name)
}

func TestSQLiteRecordTrade(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	rec := sampleRecord("T1")
	require.NoError(t, j.RecordTrade(rec))

	n, err := j.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// primary key rejects a duplicate trade id
	assert.Error(t, j.RecordTrade(rec))
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		tradeID   string
		symbol    string
		side      string
		qty       float64
		entry     float64
		exit      float64
		openTime  time.Time
		closeTime time.Time
		pnl       float64
		asset     string
		reason    string
	)
	err = db.QueryRow(`
		SELECT trade_id, symbol, side, quantity, entry_price, exit_price, open_time, close_time, realized_pnl, pnl_asset, reason
		FROM trades LIMIT 1`).Scan(
		&tradeID, &symbol, &side, &qty, &entry, &exit, &openTime, &closeTime, &pnl, &asset, &reason,
	)
	require.NoError(t, err)

	assert.Equal(t, rec.TradeID, tradeID)
	assert.Equal(t, rec.Symbol, symbol)
	assert.Equal(t, rec.Side, side)
	assert.InDelta(t, rec.Quantity, qty, 1e-9)
	assert.InDelta(t, rec.EntryPrice, entry, 1e-9)
	assert.InDelta(t, rec.ExitPrice, exit, 1e-9)
	assert.True(t, openTime.Equal(rec.OpenTime))
	assert.True(t, closeTime.Equal(rec.CloseTime))
	assert.InDelta(t, rec.RealizedPnL, pnl, 1e-18)
	assert.Equal(t, rec.PnLAsset, asset)
	assert.Equal(t, rec.Reason, reason)
}
