package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/assist/internal/http/dto"
	"basegraph.app/assist/internal/service"
)

type ReviewHandler struct {
	reviews service.ReviewService
}

func NewReviewHandler(reviews service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

func (h *ReviewHandler) Submit(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req dto.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	report, err := h.reviews.Submit(c.Request.Context(), id, req.Reviewer)
	if err != nil {
		respondError(c, err, "failed to submit report for review")
		return
	}
	c.JSON(http.StatusOK, dto.ToReviewResponse(report))
}

func (h *ReviewHandler) Approve(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req dto.ApproveReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	report, err := h.reviews.Approve(c.Request.Context(), id, req.Approver, req.Comments)
	if err != nil {
		respondError(c, err, "failed to approve report")
		return
	}
	c.JSON(http.StatusOK, dto.ToReviewResponse(report))
}

func (h *ReviewHandler) Reject(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req dto.RejectReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	report, err := h.reviews.Reject(c.Request.Context(), id, req.Rejector, req.Reasons)
	if err != nil {
		respondError(c, err, "failed to reject report")
		return
	}
	c.JSON(http.StatusOK, dto.ToReviewResponse(report))
}

func (h *ReviewHandler) Pending(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	reports, err := h.reviews.Pending(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "failed to list pending reviews")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": dto.ToReviewResponses(reports)})
}
