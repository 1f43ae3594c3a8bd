package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"ha-futures-bot/models"
)

type statusResponse struct {
	Time  time.Time       `json:"time"`
	State models.BotState `json:"state"`
}

func statusURL(addr string) (string, error) {
	url := strings.TrimSpace(addr)
	if url == "" {
		return "", fmt.Errorf("status address is empty")
	}
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}
	return strings.TrimRight(url, "/") + "/status", nil
}

func main() {
	defaultAddr := os.Getenv("STATUS_ADDR")
	if defaultAddr == "" {
		defaultAddr = "127.0.0.1:6061"
	}

	addr := flag.String("addr", defaultAddr, "status server address or URL")
	jsonOut := flag.Bool("json", false, "print raw JSON")
	timeout := flag.Duration("timeout", 5*time.Second, "HTTP timeout")
	flag.Parse()

	url, err := statusURL(*addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read response: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "status request error: %s\n%s\n", resp.Status, string(body))
		os.Exit(1)
	}
	if *jsonOut {
		fmt.Println(string(body))
		return
	}

	var payload statusResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse JSON: %v\n", err)
		os.Exit(1)
	}
	render(os.Stdout, payload)
}

func render(w io.Writer, payload statusResponse) {
	st := payload.State
	fmt.Fprintf(w, "Time: %s\n", formatTime(payload.Time))
	fmt.Fprintf(w, "Market: %s phase=%s iteration=%d updated=%s\n", st.Market, st.Phase, st.Iteration, formatTime(st.UpdatedAt))

	if len(st.TimeframeSignals) == 0 {
		fmt.Fprintf(w, "Signal: %+.2f\n", float64(st.LastSignal))
	} else {
		tfs := make([]string, 0, len(st.TimeframeSignals))
		for tf := range st.TimeframeSignals {
			tfs = append(tfs, tf)
		}
		sort.Strings(tfs)
		votes := make([]string, 0, len(tfs))
		for _, tf := range tfs {
			votes = append(votes, fmt.Sprintf("%s=%+.0f", tf, float64(st.TimeframeSignals[tf])))
		}
		fmt.Fprintf(w, "Signal: %+.2f votes: %s\n", float64(st.LastSignal), strings.Join(votes, " "))
	}

	if st.Phase == models.PhaseFlat || st.Quantity == 0 {
		fmt.Fprintln(w, "Position: none")
	} else {
		fmt.Fprintf(w, "Position: side=%s qty=%.4f entry=%.2f liq=%.2f\n",
			st.Side, st.Quantity, st.EntryPrice, st.Position.LiquidationPrice)
		if st.Protection == nil {
			fmt.Fprintln(w, "Protection: UNCONFIRMED")
		} else {
			fmt.Fprintf(w, "Protection: SL=%s (id %d) TP=%s (id %d)\n",
				st.Protection.StopLoss.StopPrice, st.Protection.StopLoss.OrderID,
				st.Protection.TakeProfit.StopPrice, st.Protection.TakeProfit.OrderID)
		}
	}

	if st.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", st.LastError)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.UTC().Format(time.RFC3339)
}
