package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ha-futures-bot/config"
	"ha-futures-bot/logging"
	"ha-futures-bot/models"
)

// TradeHistory is implemented by journals that can read back recent rows.
type TradeHistory interface {
	Recent(ctx context.Context, n int) ([]models.TradeRecord, error)
}

type statusResponse struct {
	Time  time.Time       `json:"time"`
	State models.BotState `json:"state"`
}

// NewRouter builds the diagnostics routes. hub and history may be nil.
func NewRouter(state *models.StateStore, hub *Hub, history TradeHistory) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/status", func(c *gin.Context) {
		c.IndentedJSON(http.StatusOK, statusResponse{Time: time.Now(), State: state.Snapshot()})
	})
	r.GET("/trades", func(c *gin.Context) {
		if history == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "trade history unavailable"})
			return
		}
		n, _ := strconv.Atoi(c.DefaultQuery("n", "20"))
		trades, err := history.Recent(c.Request.Context(), n)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, trades)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if hub != nil {
		r.GET("/events", func(c *gin.Context) {
			hub.ServeWS(c.Writer, c.Request, Message{Type: "status", Data: state.Snapshot()})
		})
	}
	return r
}

// StartServer starts a local HTTP status server for diagnostics.
func StartServer(cfg *config.Config, state *models.StateStore, hub *Hub, history TradeHistory, logger logging.LoggerInterface) *http.Server {
	addr := strings.TrimSpace(cfg.StatusAddr)
	if addr == "" || strings.EqualFold(addr, "off") || strings.EqualFold(addr, "disabled") {
		logger.Info("Status server disabled")
		return nil
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(state, hub, history),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Status server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server error: %v", err)
		}
	}()

	return server
}
