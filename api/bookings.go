package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/Domenick1991/fieldbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type BookingHandler struct {
	service booking.BookingUseCase
	log     logrus.FieldLogger
}

type slotResponse struct {
	Start         string  `json:"start"`
	End           string  `json:"end"`
	MilesFromBase float64 `json:"milesFromBase"`
}

type availabilityResponse struct {
	DateISO string         `json:"dateISO"`
	Slots   []slotResponse `json:"slots"`
}

type clientResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type bookingResponse struct {
	Code       string         `json:"code"`
	Status     string         `json:"status"`
	Type       string         `json:"type"`
	PkgKey     string         `json:"pkgKey"`
	PkgMinutes int            `json:"pkgMinutes"`
	Address    string         `json:"address"`
	StartISO   string         `json:"startISO"`
	EndISO     string         `json:"endISO"`
	Client     clientResponse `json:"client"`
	CreatedAt  string         `json:"createdAt,omitempty"`
	UpdatedAt  string         `json:"updatedAt,omitempty"`
}

type codeRequest struct {
	Code string `json:"code"`
}

func NewBookingHandler(service booking.BookingUseCase, log logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{service: service, log: log}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/availability", h.availability)
	router.POST("/book", h.create)
	router.GET("/booking/:code", h.get)
	router.POST("/reschedule", h.reschedule)
	router.POST("/cancel", h.cancel)
}

func (h *BookingHandler) availability(c *gin.Context) {
	var req booking.AvailabilityInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Availability(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	slots := make([]slotResponse, 0, len(result.Slots))
	for _, s := range result.Slots {
		slots = append(slots, slotResponse{
			Start:         s.Start.Format(time.RFC3339),
			End:           s.End.Format(time.RFC3339),
			MilesFromBase: s.MilesFromBase,
		})
	}
	c.JSON(http.StatusOK, availabilityResponse{DateISO: result.DateISO, Slots: slots})
}

func (h *BookingHandler) create(c *gin.Context) {
	var req booking.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "code": created.Code})
}

func (h *BookingHandler) get(c *gin.Context) {
	found, err := h.service.GetBooking(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(found))
}

func (h *BookingHandler) reschedule(c *gin.Context) {
	var req booking.RescheduleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.service.RescheduleBooking(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"code":        updated.Code,
		"newStartISO": updated.Start.Format(time.RFC3339),
		"newEndISO":   updated.End().Format(time.RFC3339),
	})
}

func (h *BookingHandler) cancel(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.CancelBooking(c.Request.Context(), req.Code); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		Code:       b.Code,
		Status:     string(b.Status),
		Type:       b.Type,
		PkgKey:     b.PkgKey,
		PkgMinutes: b.PkgMinutes,
		Address:    b.Address,
		StartISO:   b.Start.Format(time.RFC3339),
		EndISO:     b.End().Format(time.RFC3339),
		Client:     clientResponse{Name: b.ClientName, Email: b.ClientEmail},
	}
	if !b.CreatedAt.IsZero() {
		resp.CreatedAt = b.CreatedAt.Format(time.RFC3339)
	}
	if !b.UpdatedAt.IsZero() {
		resp.UpdatedAt = b.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}
