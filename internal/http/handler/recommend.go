package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/assist/internal/http/dto"
	"basegraph.app/assist/internal/recommender"
	"basegraph.app/assist/internal/service"
)

type RecommendHandler struct {
	recommender service.RecommendService
}

func NewRecommendHandler(recommender service.RecommendService) *RecommendHandler {
	return &RecommendHandler{recommender: recommender}
}

func (h *RecommendHandler) AnalyzeContext(c *gin.Context) {
	var req dto.AnalyzeContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	out, err := h.recommender.AnalyzeContext(c.Request.Context(), req.SessionID, req.Turns)
	if err != nil {
		respondError(c, err, "failed to analyze context")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *RecommendHandler) RecognizeIntent(c *gin.Context) {
	var req dto.RecognizeIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	out, err := h.recommender.RecognizeIntent(c.Request.Context(), req.SessionID, req.Utterance, req.Context)
	if err != nil {
		respondError(c, err, "failed to recognize intent")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *RecommendHandler) PredictNextIntent(c *gin.Context) {
	var req dto.NextIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	out, err := h.recommender.PredictNextIntent(c.Request.Context(), req.SessionID)
	if err != nil {
		respondError(c, err, "failed to predict next intent")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *RecommendHandler) ExtractEmotion(c *gin.Context) {
	var req dto.EmotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	out, err := h.recommender.ExtractEmotion(c.Request.Context(), req.Text)
	if err != nil {
		respondError(c, err, "failed to extract emotion")
		return
	}
	c.JSON(http.StatusOK, out)
}

// Scripts runs the full recommendation pipeline. A degraded pipeline still answers
// 200 with degraded set.
func (h *RecommendHandler) Scripts(c *gin.Context) {
	var req dto.RecommendScriptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	out, err := h.recommender.Recommend(c.Request.Context(), recommender.RecommendRequest{
		SessionID: req.SessionID,
		Turns:     req.Turns,
		Profile:   req.Profile,
		Count:     req.Count,
	})
	if err != nil {
		respondError(c, err, "failed to recommend scripts")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *RecommendHandler) Personalize(c *gin.Context) {
	var req dto.PersonalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	out, err := h.recommender.Personalize(c.Request.Context(), req.Script, req.Profile, req.Context)
	if err != nil {
		respondError(c, err, "failed to personalize script")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *RecommendHandler) Greeting(c *gin.Context) {
	var req dto.GreetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	out, err := h.recommender.GenerateGreeting(c.Request.Context(), req.Profile)
	if err != nil {
		respondError(c, err, "failed to generate greeting")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *RecommendHandler) Session(c *gin.Context) {
	out, err := h.recommender.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to load session")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *RecommendHandler) EndSession(c *gin.Context) {
	if err := h.recommender.EndSession(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "failed to end session")
		return
	}
	c.Status(http.StatusNoContent)
}
