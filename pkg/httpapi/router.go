package httpapi

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dkalashnik/telegram-session-log/pkg/metrics"
	"github.com/dkalashnik/telegram-session-log/pkg/stats"
)

const requestIDHeader = "X-Request-ID"

type Records interface {
	Path() string
	Exists() bool
}

type Reports interface {
	Compute(ctx context.Context, userID int64) (stats.Report, error)
}

type Charts interface {
	Render(w io.Writer, title string, s stats.Series) error
}

type Sessions interface {
	Active() int
}

type Dependencies struct {
	Records  Records
	Reports  Reports
	Charts   Charts
	Sessions Sessions
	Metrics  *metrics.Metrics
}

type api struct {
	deps Dependencies
}

// NewRouter builds the read-only operations API.
func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())

	a := &api{deps: deps}
	r.GET("/healthz", a.health)
	r.GET("/metrics", a.metrics)
	r.GET("/export", a.export)
	r.GET("/users/:id/stats", a.userStats)
	r.GET("/users/:id/stats/chart.png", a.userChart)
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[httpapi] %s %s -> %d in %s (request %s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.GetString("request_id"))
	}
}

func (a *api) health(c *gin.Context) {
	active := 0
	if a.deps.Sessions != nil {
		active = a.deps.Sessions.Active()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "active_sessions": active})
}

func (a *api) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, a.deps.Metrics.Snapshot())
}

func (a *api) export(c *gin.Context) {
	if a.deps.Records == nil || !a.deps.Records.Exists() {
		c.JSON(http.StatusNotFound, gin.H{"error": "nothing to export"})
		return
	}
	c.FileAttachment(a.deps.Records.Path(), "sessions.json")
}

func (a *api) report(c *gin.Context) (stats.Report, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return stats.Report{}, false
	}
	report, err := a.deps.Reports.Compute(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[httpapi] stats for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute statistics"})
		return stats.Report{}, false
	}
	if report.Empty() {
		c.JSON(http.StatusNotFound, gin.H{"error": "no valid data", "user_id": userID})
		return stats.Report{}, false
	}
	return report, true
}

func (a *api) userStats(c *gin.Context) {
	report, ok := a.report(c)
	if !ok {
		return
	}
	summary, err := stats.Summarize(report)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report, "summary": summary})
}

func (a *api) userChart(c *gin.Context) {
	if a.deps.Charts == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "charts disabled"})
		return
	}
	report, ok := a.report(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := a.deps.Charts.Render(&buf, report.UserName, report.Series); err != nil {
		log.Printf("[httpapi] chart for user %d: %v", report.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not render chart"})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
