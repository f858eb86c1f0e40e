package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/database/audit"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
)

type AuditController struct {
	backend *backend.Backend
}

func NewAuditController(b *backend.Backend) *AuditController {
	return &AuditController{backend: b}
}

// List returns a page of audit events, newest first. Admins only.
// GET /rest/v1/audit_events?user_id=&type=&limit=&offset=
func (ac *AuditController) List(c *gin.Context) {
	filter := audit.Filter{
		UserID:    c.Query("user_id"),
		EventType: entities.AuditEventType(c.Query("type")),
		Limit:     parseIntQuery(c, "limit", 25, 100),
		Offset:    parseIntQuery(c, "offset", 0, 0),
	}

	events, total, err := ac.backend.ListAuditEvents(c.Request.Context(), identity.PrincipalFrom(c), filter)
	if err != nil {
		respondError(c, err, "list audit events")
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    events,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: int64(filter.Offset+len(events)) < total,
	})
}
