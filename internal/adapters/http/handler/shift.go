// Package handler は React UI 向けの REST API を gin で提供します。
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ogurasousui/courier-shift/internal/adapters/presenter"
	"github.com/ogurasousui/courier-shift/internal/core/courier"
	"github.com/ogurasousui/courier-shift/internal/core/shift"
	"github.com/ogurasousui/courier-shift/internal/platform/auth"
)

// ShiftHTTPHandler はシフト API の HTTP 実装です。
type ShiftHTTPHandler struct {
	shifts   shift.UseCase
	couriers courier.UseCase
}

// NewShiftHTTPHandler は ShiftHTTPHandler を生成します。
func NewShiftHTTPHandler(shifts shift.UseCase, couriers courier.UseCase) *ShiftHTTPHandler {
	return &ShiftHTTPHandler{shifts: shifts, couriers: couriers}
}

// Register はルートを登録します。すべてのルートで Bearer トークンを要求します。
func (h *ShiftHTTPHandler) Register(r gin.IRouter, verifier *auth.Verifier) {
	shifts := r.Group("/shifts", auth.Middleware(verifier))
	{
		shifts.POST("/start", h.StartShift)
		shifts.POST("/end", h.EndShift)
		shifts.GET("/current", h.GetCurrentState)
		shifts.GET("/history", h.ListHistory)
		shifts.GET("/:id/events", h.ListEvents)
	}

	admin := r.Group("/admin", auth.Middleware(verifier), auth.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/couriers", h.ListCouriers)
	}
}

// StartShift は POST /shifts/start を処理します。
func (h *ShiftHTTPHandler) StartShift(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	rec, err := h.shifts.StartShift(c.Request.Context(), shift.StartShiftInput{CourierID: p.UserID})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Shift started", "shift": presenter.Record(rec)})
}

// EndShift は POST /shifts/end を処理します。
func (h *ShiftHTTPHandler) EndShift(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	rec, err := h.shifts.EndShift(c.Request.Context(), shift.EndShiftInput{CourierID: p.UserID})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Shift ended", "shift": presenter.Record(rec)})
}

// GetCurrentState は GET /shifts/current を処理します。
func (h *ShiftHTTPHandler) GetCurrentState(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	state, err := h.shifts.GetCurrentState(c.Request.Context(), shift.GetCurrentStateInput{CourierID: p.UserID})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, presenter.CurrentState(state))
}

// ListHistory は GET /shifts/history を処理します。
func (h *ShiftHTTPHandler) ListHistory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, shift.ErrInvalidLimit)
		return
	}

	records, err := h.shifts.ListHistory(c.Request.Context(), shift.ListHistoryInput{CourierID: p.UserID, Limit: limit})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"shifts": presenter.Records(records)})
}

// ListEvents は GET /shifts/:id/events を処理します。
func (h *ShiftHTTPHandler) ListEvents(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	events, err := h.shifts.ListEvents(c.Request.Context(), shift.ListEventsInput{
		CourierID: p.UserID,
		ShiftID:   c.Param("id"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": presenter.Events(events)})
}

// ListCouriers は GET /admin/couriers を処理します。
func (h *ShiftHTTPHandler) ListCouriers(c *gin.Context) {
	pageSize, err := queryInt(c, "page_size")
	if err != nil {
		writeError(c, courier.ErrInvalidPageSize)
		return
	}

	page, err := h.couriers.ListCouriers(c.Request.Context(), courier.ListCouriersInput{
		PageSize:  pageSize,
		PageToken: c.Query("page_token"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	var entries []*shift.RosterEntry
	if len(page.Couriers) > 0 {
		roster, err := h.shifts.GetRoster(c.Request.Context(), shift.GetRosterInput{CourierIDs: presenter.CourierIDs(page.Couriers)})
		if err != nil {
			writeError(c, err)
			return
		}
		entries = roster.Entries
	}

	c.JSON(http.StatusOK, gin.H{
		"couriers":        presenter.Couriers(page.Couriers, entries),
		"next_page_token": page.NextPageToken,
	})
}

func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromGin(c)
	if !ok || p.UserID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrMissingToken.Error()})
		return auth.Principal{}, false
	}
	return p, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
