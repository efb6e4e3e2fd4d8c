package api

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/Domenick1991/fieldbooking/internal/service/booking"
	"github.com/Domenick1991/fieldbooking/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

//go:embed pages/onetap.html
var pagesFS embed.FS

var oneTapPage = template.Must(template.ParseFS(pagesFS, "pages/onetap.html"))

const oneTapWhenLayout = "Mon, Jan 2 at 3:04 PM MST"

// OneTapHandler serves the link mailed with every confirmation. It acts on a
// GET and answers with a small HTML page rather than JSON.
type OneTapHandler struct {
	service     booking.BookingUseCase
	brand       string
	frontendURL string
	loc         *time.Location
	log         logrus.FieldLogger
}

type oneTapView struct {
	Brand     string
	Outcome   string
	When      string
	ManageURL string
}

func NewOneTapHandler(service booking.BookingUseCase, brand, frontendURL string, loc *time.Location, log logrus.FieldLogger) *OneTapHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &OneTapHandler{
		service:     service,
		brand:       brand,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		loc:         loc,
		log:         log,
	}
}

func (h *OneTapHandler) Register(router *gin.RouterGroup) {
	router.GET("/one-tap-reschedule", h.reschedule)
}

func (h *OneTapHandler) reschedule(c *gin.Context) {
	result, err := h.service.OneTapReschedule(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.render(c, h.failureStatus(err), oneTapView{Outcome: "failed", ManageURL: h.manageURL("")})
		return
	}

	view := oneTapView{Outcome: string(result.Outcome), ManageURL: h.manageURL(result.Booking.Code)}
	if result.Outcome == booking.OneTapRescheduled {
		view.When = result.Booking.Start.In(h.loc).Format(oneTapWhenLayout)
	}
	h.render(c, http.StatusOK, view)
}

func (h *OneTapHandler) failureStatus(err error) int {
	switch {
	case errors.Is(err, token.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCalendarBusy):
		return http.StatusServiceUnavailable
	default:
		h.log.WithError(err).Error("one-tap reschedule failed")
		return http.StatusInternalServerError
	}
}

func (h *OneTapHandler) manageURL(code string) string {
	if code == "" {
		return h.frontendURL + "/#/manage"
	}
	return h.frontendURL + "/#/manage/" + code
}

func (h *OneTapHandler) render(c *gin.Context, status int, view oneTapView) {
	view.Brand = h.brand
	var buf strings.Builder
	if err := oneTapPage.Execute(&buf, view); err != nil {
		h.log.WithError(err).Error("render one-tap page")
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", []byte(buf.String()))
}
