package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/remote"
)

// PasscodeLookupRequest is the body of a passcode lookup and of a delivery
// request.
type PasscodeLookupRequest struct {
	Email string                   `json:"email"`
	Code  string                   `json:"code"`
	Type  entities.PasscodePurpose `json:"type"`
}

// PasscodesController exposes the otp_codes table and the delivery
// function.
type PasscodesController struct {
	backend *backend.Backend
}

func NewPasscodesController(b *backend.Backend) *PasscodesController {
	return &PasscodesController{backend: b}
}

// Upsert stores the passcode for (email, type), replacing any earlier one.
// PUT /rest/v1/otp_codes
func (pc *PasscodesController) Upsert(c *gin.Context) {
	var req remote.PasscodeUpsert
	if !bindJSON(c, &req) {
		return
	}
	if err := pc.backend.UpsertPasscode(c.Request.Context(), req); err != nil {
		respondError(c, err, "upsert passcode")
		return
	}
	c.Status(http.StatusNoContent)
}

// Lookup finds the live passcode matching email, code and type. The code
// travels in the body so it never lands in access logs.
// POST /rest/v1/otp_codes/lookup
func (pc *PasscodesController) Lookup(c *gin.Context) {
	var req PasscodeLookupRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := pc.backend.FindPasscode(c.Request.Context(), req.Email, req.Code, req.Type)
	if err != nil {
		respondError(c, err, "find passcode")
		return
	}
	c.JSON(http.StatusOK, record)
}

// MarkUsed consumes a passcode.
// PATCH /rest/v1/otp_codes/:id/used
func (pc *PasscodesController) MarkUsed(c *gin.Context) {
	if err := pc.backend.MarkPasscodeUsed(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "mark passcode used")
		return
	}
	c.Status(http.StatusNoContent)
}

// Deliver hands a passcode to the delivery channel.
// POST /functions/v1/deliver-passcode
func (pc *PasscodesController) Deliver(c *gin.Context) {
	var req PasscodeLookupRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := pc.backend.DispatchPasscode(c.Request.Context(), req.Email, req.Code, req.Type); err != nil {
		respondError(c, err, "deliver passcode")
		return
	}
	c.Status(http.StatusAccepted)
}
