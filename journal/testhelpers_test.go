package journal

import (
	"time"
)

func samplePosition(id, runID string, closeAt time.Time) PositionRecord {
	return PositionRecord{
		RunID:       runID,
		PositionID:  id,
		Symbol:      "BTCUSDT",
		Side:        "long",
		Leverage:    10,
		Quantity:    0.01,
		Adjustments: 1,
		EntryPrice:  1000,
		ExitPrice:   600,
		OpenTime:    closeAt.Add(-2 * time.Minute),
		CloseTime:   closeAt,
		Profit:      -40,
		Fees:        0.5,
		NetProfit:   -40.5,
		Reason:      "stop_loss",
	}
}
