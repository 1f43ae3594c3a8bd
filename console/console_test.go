package console

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }

func TestAnnouncerPlain(t *testing.T) {
	var buf bytes.Buffer
	a := NewWriter(&buf, false)
	a.now = fixedClock
	a.Header(3, "ETHUSDT", "FLAT")
	a.Order("BUY %s", "1.000")
	out := buf.String()
	if !strings.Contains(out, "09:30:00 ──── iteration 3 · ETHUSDT · FLAT ────") {
		t.Fatalf("unexpected header: %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Fatalf("plain output should not contain color codes: %q", out)
	}
}

func TestAnnouncerColor(t *testing.T) {
	var buf bytes.Buffer
	a := NewWriter(&buf, true)
	a.Signal("LONG")
	if !strings.Contains(buf.String(), clrSig+"LONG"+clrReset) {
		t.Fatalf("expected colored signal line: %q", buf.String())
	}
}

func TestNilAnnouncerIsSafe(t *testing.T) {
	var a *Announcer
	a.Warn("ignored")
}
