package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/avolkoff/tourbooking/internal/repository"
	"github.com/avolkoff/tourbooking/internal/service/assignment"
	"github.com/avolkoff/tourbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type GuideHandler struct {
	assignments assignment.AssignmentUseCase
	guides      repository.GuideRepository
}

type suggestRequest struct {
	VisitDate       string   `json:"visit_date"`
	VisitTime       string   `json:"visit_time"`
	SelectedZones   []string `json:"selected_zones"`
	ExcludeGuideIDs []int64  `json:"exclude_guide_ids"`
}

type suggestionResponse struct {
	GuideID   int64                `json:"guide_id"`
	GuideName string               `json:"guide_name"`
	Score     float64              `json:"score"`
	Breakdown assignment.Breakdown `json:"breakdown"`
	Reasons   []string             `json:"reasons"`
}

func NewGuideHandler(assignments assignment.AssignmentUseCase, guides repository.GuideRepository) *GuideHandler {
	return &GuideHandler{assignments: assignments, guides: guides}
}

func (h *GuideHandler) Register(router *gin.RouterGroup) {
	router.POST("/suggest", RequireRoles(booking.RoleAdmin, booking.RoleCoordinator), h.suggest)
	router.GET("/:id", h.get)
}

func (h *GuideHandler) suggest(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	visitDate, err := time.Parse("2006-01-02", req.VisitDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "visit_date must be YYYY-MM-DD"})
		return
	}

	suggestions, err := h.assignments.SuggestGuides(c.Request.Context(), assignment.SuggestInput{
		VisitDate:       visitDate,
		VisitTime:       req.VisitTime,
		SelectedZones:   req.SelectedZones,
		ExcludeGuideIDs: req.ExcludeGuideIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]suggestionResponse, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, suggestionResponse{
			GuideID:   s.Guide.ID,
			GuideName: s.Guide.Name,
			Score:     s.Score,
			Breakdown: s.Breakdown,
			Reasons:   s.Reasons,
		})
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": out})
}

func (h *GuideHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guide id"})
		return
	}

	guide, err := h.guides.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, guide)
}
