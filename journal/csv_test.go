package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(id string) TradeRecord {
	return TradeRecord{
		TradeID:     id,
		Instance:    "inst-1",
		Exchange:    "paper",
		Symbol:      "XBTUSD",
		Strategy:    "breakout",
		Side:        "long",
		Quantity:    100,
		EntryPrice:  20000,
		ExitPrice:   22000,
		OpenTime:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		CloseTime:   time.Date(2024, 1, 2, 4, 5, 6, 0, time.UTC),
		RealizedPnL: -4.545454545e-10,
		PnLAsset:    "XBT",
		Reason:      "TakeProfit",
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, csvHeader, rows[0])
}

func TestCSVJournalRecordTradeAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleRecord("T1")))
	require.NoError(t, j.Close())

	// reopening keeps the existing header and rows
	j, err = NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(sampleRecord("T2")))
	require.NoError(t, j.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "T1", rows[1][0])
	assert.Equal(t, "T2", rows[2][0])
	assert.Equal(t, "XBTUSD", rows[1][3])
	assert.Equal(t, "100", rows[1][6])
	assert.Equal(t, "2024-01-02T03:04:05Z", rows[1][9])
	assert.Equal(t, "-0.0000000004545454545", rows[1][11])
	assert.Equal(t, "TakeProfit", rows[1][13])
}

func TestOpen(t *testing.T) {
	t.Parallel()

	j, err := Open("none", "")
	require.NoError(t, err)
	assert.IsType(t, Nop{}, j)
	assert.NoError(t, j.RecordTrade(sampleRecord("x")))

	j, err = Open("CSV", filepath.Join(t.TempDir(), "t.csv"))
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, j)
	assert.NoError(t, j.Close())

	_, err = Open("parquet", "x")
	assert.Error(t, err)
	_, err = Open("sqlite", "")
	assert.Error(t, err)
}
