package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/database"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// Pinger is a dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type databasePinger struct {
	db *database.Database
}

func (p databasePinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// HealthController reports the state of the main database and, when
// configured, the task queue. An unconfigured queue is not a failure.
type HealthController struct {
	db      Pinger
	queue   Pinger
	version string
}

func NewHealthController(db *database.Database, version string) *HealthController {
	h := &HealthController{version: version}
	if db != nil {
		h.db = databasePinger{db: db}
	}
	return h
}

// WithQueue adds the task queue to the report.
func (h *HealthController) WithQueue(queue Pinger) *HealthController {
	h.queue = queue
	return h
}

func (h *HealthController) Status(c *gin.Context) {
	ctx := c.Request.Context()
	checks := map[string]string{
		"database": probe(ctx, h.db),
	}
	if h.queue != nil {
		checks["task_queue"] = probe(ctx, h.queue)
	}

	status := "healthy"
	statusCode := http.StatusOK
	for _, result := range checks {
		if result != "ok" && result != "not configured" {
			status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}
	}

	c.IndentedJSON(statusCode, HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	})
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "not configured"
	}
	if err := p.Ping(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
