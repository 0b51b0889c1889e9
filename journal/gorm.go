package journal

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// positionModel mirrors PositionRecord field for field so the two convert
// directly.
type positionModel struct {
	RunID       string `gorm:"index;size:32"`
	PositionID  string `gorm:"primaryKey;size:32"`
	Symbol      string
	Side        string
	Leverage    int
	Quantity    float64
	Adjustments int
	EntryPrice  float64
	ExitPrice   float64
	OpenTime    time.Time
	CloseTime   time.Time `gorm:"index"`
	Profit      float64
	Fees        float64
	NetProfit   float64
	Reason      string
	Ambiguous   bool
}

func (positionModel) TableName() string { return "positions" }

type equityModel struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"index:idx_equity_run_time;size:32"`
	Time      time.Time `gorm:"index:idx_equity_run_time"`
	Balance   float64
	Available float64
	Reserved  float64
	Equity    float64
}

func (equityModel) TableName() string { return "equity" }

type runModel struct {
	RunID        string `gorm:"primaryKey;size:32"`
	Created      time.Time
	Symbol       string
	Interval     string
	Strategy     string
	Dataset      string
	Leverage     int
	Ratio        float64
	StartTime    time.Time
	EndTime      time.Time
	Candles      int
	Positions    int
	Wins         int
	Losses       int
	Ambiguous    int
	StartBalance float64
	EndBalance   float64
	NetPL        float64
	ReturnPct    float64
	WinRate      float64
	MaxDDPct     float64
	Liquidated   bool
}

func (runModel) TableName() string { return "runs" }

// GormJournal stores records through gorm. NewPostgres is the usual entry
// point; NewGorm accepts any opened *gorm.DB.
type GormJournal struct {
	db *gorm.DB
}

func NewPostgres(dsn string) (*GormJournal, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewGorm(db)
}

func NewGorm(db *gorm.DB) (*GormJournal, error) {
	if err := db.AutoMigrate(&positionModel{}, &equityModel{}, &runModel{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &GormJournal{db: db}, nil
}

func (j *GormJournal) RecordPosition(p PositionRecord) error {
	m := positionModel(p)
	m.OpenTime = m.OpenTime.UTC()
	m.CloseTime = m.CloseTime.UTC()
	return j.db.Create(&m).Error
}

func (j *GormJournal) RecordEquity(e EquitySnapshot) error {
	return j.db.Create(&equityModel{
		RunID:     e.RunID,
		Time:      e.Time.UTC(),
		Balance:   e.Balance,
		Available: e.Available,
		Reserved:  e.Reserved,
		Equity:    e.Equity,
	}).Error
}

func (j *GormJournal) RecordRun(r Run) error {
	return j.db.Save(&runModel{
		RunID:        r.RunID,
		Created:      r.Created.UTC(),
		Symbol:       r.Symbol,
		Interval:     r.Interval,
		Strategy:     r.Strategy,
		Dataset:      r.Dataset,
		Leverage:     r.Leverage,
		Ratio:        r.Ratio,
		StartTime:    r.Start.UTC(),
		EndTime:      r.End.UTC(),
		Candles:      r.Candles,
		Positions:    r.Positions,
		Wins:         r.Wins,
		Losses:       r.Losses,
		Ambiguous:    r.Ambiguous,
		StartBalance: r.StartBalance,
		EndBalance:   r.EndBalance,
		NetPL:        r.NetPL,
		ReturnPct:    r.ReturnPct,
		WinRate:      r.WinRate,
		MaxDDPct:     r.MaxDDPct,
		Liquidated:   r.Liquidated,
	}).Error
}

// GetPosition returns a single position by ID.
func (j *GormJournal) GetPosition(positionID string) (PositionRecord, error) {
	var m positionModel
	err := j.db.First(&m, "position_id = ?", positionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PositionRecord{}, fmt.Errorf("position %q not found", positionID)
	}
	if err != nil {
		return PositionRecord{}, err
	}
	return PositionRecord(m), nil
}

// ListPositions returns a run's positions in closing order.
func (j *GormJournal) ListPositions(runID string) ([]PositionRecord, error) {
	var rows []positionModel
	err := j.db.Where("run_id = ?", runID).
		Order("close_time ASC").Order("position_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]PositionRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, PositionRecord(m))
	}
	return out, nil
}

func (j *GormJournal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
