package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ha-futures-bot/config"
	"ha-futures-bot/internal/constants"
	"ha-futures-bot/models"
	"ha-futures-bot/tradelog"
)

type recentReader interface {
	Recent(ctx context.Context, n int) ([]models.TradeRecord, error)
}

// roundTrip is an entry row matched with the exit row that closed it.
type roundTrip struct {
	Entry models.TradeRecord
	Exit  models.TradeRecord
	PnL   decimal.Decimal
}

// pairTrades walks the journal in order and matches each entry with the next
// exit for the same market. Entries still open at the end are returned apart.
func pairTrades(recs []models.TradeRecord) ([]roundTrip, []models.TradeRecord) {
	open := map[string]models.TradeRecord{}
	var trips []roundTrip
	for _, rec := range recs {
		if rec.OrderType != constants.OrderTypeExit {
			open[rec.Market] = rec
			continue
		}
		entry, ok := open[rec.Market]
		if !ok {
			continue
		}
		delete(open, rec.Market)
		trips = append(trips, roundTrip{Entry: entry, Exit: rec, PnL: tripPnL(entry, rec)})
	}
	var pending []models.TradeRecord
	for _, rec := range recs {
		if e, ok := open[rec.Market]; ok && e.Time.Equal(rec.Time) && rec.OrderType != constants.OrderTypeExit {
			pending = append(pending, rec)
		}
	}
	return trips, pending
}

// tripPnL is the unlevered price move times quantity, signed by side.
func tripPnL(entry, exit models.TradeRecord) decimal.Decimal {
	move := decimal.NewFromFloat(exit.MarketPrice).Sub(decimal.NewFromFloat(entry.MarketPrice))
	if entry.Side == string(models.SideShort) {
		move = move.Neg()
	}
	return move.Mul(decimal.NewFromFloat(entry.Quantity))
}

func filterTrips(trips []roundTrip, market string, since time.Time) []roundTrip {
	out := trips[:0:0]
	for _, tr := range trips {
		if market != "" && !strings.EqualFold(tr.Exit.Market, market) {
			continue
		}
		if tr.Exit.Time.Before(since) {
			continue
		}
		out = append(out, tr)
	}
	return out
}

func writeReport(w io.Writer, label, market string, trips []roundTrip) (total, wins, losses decimal.Decimal) {
	fmt.Fprintf(w, "Closed PnL %s for %s\n", label, market)
	fmt.Fprintf(w, "%-19s %-5s %-10s %-10s %-10s %-10s %s\n", "Time", "Side", "Qty", "Entry", "Exit", "PnL", "Cause")
	for _, tr := range trips {
		total = total.Add(tr.PnL)
		if tr.PnL.IsNegative() {
			losses = losses.Add(tr.PnL)
		} else {
			wins = wins.Add(tr.PnL)
		}
		fmt.Fprintf(w, "%-19s %-5s %-10.4f %-10.2f %-10.2f %-10s %s\n",
			tr.Exit.Time.In(time.Local).Format("2006-01-02 15:04"),
			tr.Entry.Side, tr.Entry.Quantity, tr.Entry.MarketPrice, tr.Exit.MarketPrice,
			tr.PnL.StringFixed(4), tr.Exit.Cause)
	}
	fmt.Fprintf(w, "\nTotal PnL: %s (wins %s, losses %s)\n", total.StringFixed(4), wins.StringFixed(4), losses.StringFixed(4))
	return total, wins, losses
}

func writeCSV(path string, trips []roundTrip) error {
	var b strings.Builder
	b.WriteString("time,side,qty,entry,exit,pnl,cause\n")
	for _, tr := range trips {
		fmt.Fprintf(&b, "%s,%s,%.4f,%.2f,%.2f,%s,%s\n",
			tr.Exit.Time.UTC().Format(time.RFC3339), tr.Entry.Side, tr.Entry.Quantity,
			tr.Entry.MarketPrice, tr.Exit.MarketPrice, tr.PnL.StringFixed(4), tr.Exit.Cause)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func main() {
	hours := flag.Int("hours", 24, "lookback window in hours")
	marketFlag := flag.String("market", "", "market symbol (defaults to config MARKET)")
	today := flag.Bool("today", false, "limit to current calendar day (local time); overrides -hours")
	limit := flag.Int("limit", 10000, "journal rows to read")
	outCSV := flag.String("out", "report.csv", "path to write CSV report (empty to disable)")
	flag.Parse()

	cfg := config.LoadConfig()
	if *marketFlag != "" {
		cfg.Market = strings.ToUpper(*marketFlag)
	}

	journal, err := tradelog.Open(cfg.TradeLogDSN, cfg.TradeLogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening trade journal: %v\n", err)
		os.Exit(1)
	}
	defer journal.Close()
	reader, ok := journal.(recentReader)
	if !ok {
		fmt.Fprintln(os.Stderr, "trade journal cannot be read back")
		os.Exit(1)
	}
	recs, err := reader.Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading trade journal: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	since := now.Add(-time.Duration(*hours) * time.Hour)
	label := fmt.Sprintf("last %dh", *hours)
	if *today {
		since = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		label = "today"
	}

	trips, pending := pairTrades(recs)
	trips = filterTrips(trips, cfg.Market, since)
	if len(trips) == 0 {
		fmt.Println("No closed positions in the selected window.")
	} else {
		writeReport(os.Stdout, label, cfg.Market, trips)
	}
	for _, p := range pending {
		fmt.Printf("Open: %s %s qty=%.4f entry=%.2f since %s\n", p.Market, p.Side, p.Quantity, p.MarketPrice, p.Time.Format(time.RFC3339))
	}

	if *outCSV != "" && len(trips) > 0 {
		if err := writeCSV(*outCSV, trips); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("CSV saved to %s\n", *outCSV)
	}
}
