package tradelog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"ha-futures-bot/models"
)

var csvHeader = []string{"time", "market", "qty", "leverage", "cause", "side", "trigger_price", "market_price", "type"}

// CSVJournal appends trade records to a CSV file, writing the header when
// the file is created.
type CSVJournal struct {
	path string
	mu   sync.Mutex
}

// NewCSVJournal opens or creates the journal at path.
func NewCSVJournal(path string) (*CSVJournal, error) {
	if path == "" {
		return nil, fmt.Errorf("empty trade log path: %w", models.ErrInvalidInput)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, err
		}
		f, err := os.Create(abs)
		if err != nil {
			return nil, err
		}
		w := csv.NewWriter(f)
		_ = w.Write(csvHeader)
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	}
	return &CSVJournal{path: abs}, nil
}

// Append writes one row. Existing rows are never rewritten.
func (j *CSVJournal) Append(_ context.Context, rec models.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	row := []string{
		rec.Time.UTC().Format(time.RFC3339), rec.Market, formatF(rec.Quantity), strconv.Itoa(rec.Leverage),
		rec.Cause, rec.Side, formatF(rec.TriggerPrice), formatF(rec.MarketPrice), rec.OrderType,
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// Recent returns the last n rows, oldest first.
func (j *CSVJournal) Recent(_ context.Context, n int) ([]models.TradeRecord, error) {
	if n <= 0 {
		n = 10
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.Open(j.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	var out []models.TradeRecord
	for i := 1; i < len(rows); i++ {
		rec, err := parseRow(rows[i])
		if err != nil {
			return nil, fmt.Errorf("trade log row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (j *CSVJournal) Close() error { return nil }

func parseRow(row []string) (models.TradeRecord, error) {
	if len(row) != len(csvHeader) {
		return models.TradeRecord{}, fmt.Errorf("%d columns: %w", len(row), models.ErrInvalidInput)
	}
	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return models.TradeRecord{}, fmt.Errorf("time %q: %w", row[0], models.ErrInvalidInput)
	}
	qty, _ := strconv.ParseFloat(row[2], 64)
	lev, _ := strconv.Atoi(row[3])
	trigger, _ := strconv.ParseFloat(row[6], 64)
	mark, _ := strconv.ParseFloat(row[7], 64)
	return models.TradeRecord{
		Time: ts, Market: row[1], Quantity: qty, Leverage: lev, Cause: row[4], Side: row[5],
		TriggerPrice: trigger, MarketPrice: mark, OrderType: row[8],
	}, nil
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
