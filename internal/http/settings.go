package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/identity"
)

// SettingRequest is the body of a setting change.
type SettingRequest struct {
	Value string `json:"value"`
}

// SettingsController exposes system settings to admins.
type SettingsController struct {
	backend *backend.Backend
}

func NewSettingsController(b *backend.Backend) *SettingsController {
	return &SettingsController{backend: b}
}

// GET /rest/v1/settings/:key
func (sc *SettingsController) Get(c *gin.Context) {
	setting, err := sc.backend.GetSetting(c.Request.Context(), identity.PrincipalFrom(c), c.Param("key"))
	if err != nil {
		respondError(c, err, "get setting")
		return
	}
	c.JSON(http.StatusOK, setting)
}

// PUT /rest/v1/settings/:key
func (sc *SettingsController) Set(c *gin.Context) {
	var req SettingRequest
	if !bindJSON(c, &req) {
		return
	}

	key := c.Param("key")
	if err := sc.backend.SetSetting(c.Request.Context(), identity.PrincipalFrom(c), key, req.Value); err != nil {
		respondError(c, err, "set setting")
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}
