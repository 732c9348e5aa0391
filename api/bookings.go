package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/avolkoff/tourbooking/internal/domain"
	"github.com/avolkoff/tourbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	VisitorName      string   `json:"visitor_name"`
	VisitorEmail     string   `json:"visitor_email"`
	VisitDate        string   `json:"visit_date"`
	VisitTime        string   `json:"visit_time"`
	SelectedZones    []string `json:"selected_zones"`
	TotalAmountCents int64    `json:"total_amount_cents"`
}

type assignGuideRequest struct {
	GuideID         int64  `json:"guide_id"`
	ExpectedVersion *int64 `json:"expected_version"`
}

type completeTourRequest struct {
	Rating *int `json:"rating"`
}

type bookingResponse struct {
	ID               int64    `json:"id"`
	Reference        string   `json:"reference"`
	VisitorName      string   `json:"visitor_name"`
	VisitorEmail     string   `json:"visitor_email"`
	VisitDate        string   `json:"visit_date"`
	VisitTime        string   `json:"visit_time"`
	SelectedZones    []string `json:"selected_zones"`
	Status           string   `json:"status"`
	PaymentStatus    string   `json:"payment_status"`
	AssignedGuideID  *int64   `json:"assigned_guide_id,omitempty"`
	TotalAmountCents int64    `json:"total_amount_cents"`
	CheckInTime      string   `json:"check_in_time,omitempty"`
	CheckOutTime     string   `json:"check_out_time,omitempty"`
	VisitorRating    *int     `json:"visitor_rating,omitempty"`
	Version          int64    `json:"version"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/assign", RequireRoles(booking.RoleAdmin, booking.RoleCoordinator), h.assign)
	router.POST("/:id/start", h.start)
	router.POST("/:id/complete", h.complete)
	router.POST("/:id/check-in", RequireRoles(booking.RoleAdmin, booking.RoleCoordinator), h.checkIn)
	router.POST("/:id/check-out", RequireRoles(booking.RoleAdmin, booking.RoleCoordinator), h.checkOut)
	router.POST("/:id/cancel", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	visitDate, err := time.Parse("2006-01-02", req.VisitDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "visit_date must be YYYY-MM-DD"})
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		VisitorName:      req.VisitorName,
		VisitorEmail:     req.VisitorEmail,
		VisitDate:        visitDate,
		VisitTime:        req.VisitTime,
		SelectedZones:    req.SelectedZones,
		TotalAmountCents: req.TotalAmountCents,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) get(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) assign(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req assignGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.service.AssignGuide(c.Request.Context(), id, req.GuideID, req.ExpectedVersion, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) start(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.StartTour(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) complete(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req completeTourRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	b, err := h.service.CompleteTour(c.Request.Context(), id, req.Rating, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) checkIn(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.CheckIn(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) checkOut(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.CheckOut(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.service.CancelBooking(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func bookingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return 0, false
	}
	return id, true
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:               b.ID,
		Reference:        b.Reference,
		VisitorName:      b.VisitorName,
		VisitorEmail:     b.VisitorEmail,
		VisitDate:        b.VisitDate.Format("2006-01-02"),
		VisitTime:        b.VisitTime,
		SelectedZones:    b.SelectedZones,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		AssignedGuideID:  b.AssignedGuideID,
		TotalAmountCents: b.TotalAmountCents,
		VisitorRating:    b.VisitorRating,
		Version:          b.Version,
	}
	if b.CheckInTime != nil {
		resp.CheckInTime = b.CheckInTime.Format(time.RFC3339)
	}
	if b.CheckOutTime != nil {
		resp.CheckOutTime = b.CheckOutTime.Format(time.RFC3339)
	}
	return resp
}
