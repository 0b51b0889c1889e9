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

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

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

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('positions','equity','runs')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	assert.True(t, found["positions"])
	assert.True(t, found["equity"])
	assert.True(t, found["runs"])
}

func TestSQLitePositionRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	rec := samplePosition("P1", "R1", time.Date(2024, 4, 10, 15, 30, 0, 0, time.UTC))
	rec.Ambiguous = true
	require.NoError(t, j.RecordPosition(rec))

	got, err := j.GetPosition("P1")
	require.NoError(t, err)

	assert.Equal(t, rec.RunID, got.RunID)
	assert.Equal(t, rec.Side, got.Side)
	assert.Equal(t, rec.Leverage, got.Leverage)
	assert.InDelta(t, rec.Quantity, got.Quantity, 1e-12)
	assert.Equal(t, rec.Adjustments, got.Adjustments)
	assert.InDelta(t, rec.NetProfit, got.NetProfit, 1e-12)
	assert.True(t, rec.OpenTime.Equal(got.OpenTime))
	assert.True(t, rec.CloseTime.Equal(got.CloseTime))
	assert.Equal(t, "stop_loss", got.Reason)
	assert.True(t, got.Ambiguous)

	_, err = j.GetPosition("missing")
	assert.ErrorContains(t, err, "not found")

	// position IDs are unique
	assert.Error(t, j.RecordPosition(rec))
}

func TestSQLiteListPositions(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordPosition(samplePosition("B", "R1", base.Add(2*time.Hour))))
	require.NoError(t, j.RecordPosition(samplePosition("A", "R1", base.Add(time.Hour))))
	require.NoError(t, j.RecordPosition(samplePosition("C", "R2", base.Add(90*time.Minute))))

	got, err := j.ListPositions("R1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].PositionID)
	assert.Equal(t, "B", got[1].PositionID)

	between, err := j.ListPositionsClosedBetween(base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, "A", between[0].PositionID)
	assert.Equal(t, "C", between[1].PositionID)

	none, err := j.ListPositions("nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteEquity(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 2; i >= 0; i-- {
		require.NoError(t, j.RecordEquity(EquitySnapshot{
			RunID:     "R1",
			Time:      base.Add(time.Duration(i) * time.Minute),
			Balance:   1000,
			Available: 900,
			Reserved:  100,
			Equity:    1000 + float64(i),
		}))
	}
	require.NoError(t, j.RecordEquity(EquitySnapshot{RunID: "R2", Time: base, Balance: 5}))

	curve, err := j.ListEquity("R1")
	require.NoError(t, err)
	require.Len(t, curve, 3)
	for i, s := range curve {
		assert.True(t, base.Add(time.Duration(i)*time.Minute).Equal(s.Time))
		assert.Equal(t, 1000+float64(i), s.Equity)
		assert.Equal(t, 100.0, s.Reserved)
	}
}

func TestSQLiteRuns(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	older := Run{RunID: "R1", Created: created, Symbol: "BTCUSDT", Interval: "1m", Strategy: "bracket",
		Leverage: 10, Ratio: 0.01, Start: created, End: created.Add(time.Hour), Candles: 60,
		Positions: 4, Wins: 2, Losses: 2, StartBalance: 1000, EndBalance: 974.08, WinRate: 0.5}
	newer := older
	newer.RunID = "R2"
	newer.Created = created.Add(time.Hour)
	newer.Liquidated = true

	require.NoError(t, j.RecordRun(older))
	require.NoError(t, j.RecordRun(newer))

	// re-recording a run replaces it
	older.Notes = []string{"ignored"}
	older.EndBalance = 980
	require.NoError(t, j.RecordRun(older))

	got, err := j.GetRun("R1")
	require.NoError(t, err)
	assert.Equal(t, 980.0, got.EndBalance)
	assert.Equal(t, "bracket", got.Strategy)
	assert.Equal(t, 60, got.Candles)
	assert.False(t, got.Liquidated)

	runs, err := j.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "R2", runs[0].RunID)
	assert.True(t, runs[0].Liquidated)

	_, err = j.GetRun("R9")
	assert.ErrorContains(t, err, "not found")
}

func TestJournalImplementations(t *testing.T) {
	var _ Journal = (*SQLite)(nil)
	var _ RunRecorder = (*SQLite)(nil)
	var _ Journal = (*CSVJournal)(nil)
	var _ Journal = (*GormJournal)(nil)
	var _ RunRecorder = (*GormJournal)(nil)
	var _ Journal = (*Memory)(nil)
	var _ Journal = Discard{}
}

func TestMemoryJournal(t *testing.T) {
	t.Parallel()

	m := &Memory{}
	require.NoError(t, m.RecordPosition(PositionRecord{PositionID: "x"}))
	require.NoError(t, m.RecordEquity(EquitySnapshot{Equity: 1}))
	require.NoError(t, m.RecordRun(Run{RunID: "r"}))
	require.NoError(t, m.Close())

	assert.Len(t, m.Positions, 1)
	assert.Len(t, m.Equity, 1)
	assert.Len(t, m.Runs, 1)
	assert.True(t, m.Closed)
}
