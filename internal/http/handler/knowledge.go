package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/assist/internal/http/dto"
	"basegraph.app/assist/internal/knowledge"
	"basegraph.app/assist/internal/service"
)

type KnowledgeHandler struct {
	knowledge service.KnowledgeService
	assistant service.KnowledgeAssistant
}

func NewKnowledgeHandler(knowledge service.KnowledgeService, assistant service.KnowledgeAssistant) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: knowledge, assistant: assistant}
}

func (h *KnowledgeHandler) Add(c *gin.Context) {
	var req dto.AddScriptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ids, err := h.knowledge.Add(c.Request.Context(), req.Scripts)
	if err != nil {
		respondError(c, err, "failed to add scripts")
		return
	}
	c.JSON(http.StatusCreated, dto.AddScriptsResponse{IDs: ids})
}

func (h *KnowledgeHandler) Search(c *gin.Context) {
	var req dto.SearchScriptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	scripts, err := h.knowledge.Search(c.Request.Context(), req.Query, req.Category, req.Limit)
	if err != nil {
		respondError(c, err, "failed to search scripts")
		return
	}
	c.JSON(http.StatusOK, dto.SearchScriptsResponse{Scripts: scripts})
}

func (h *KnowledgeHandler) Delete(c *gin.Context) {
	var req dto.DeleteScriptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.knowledge.Delete(c.Request.Context(), req.IDs, req.Category); err != nil {
		respondError(c, err, "failed to delete scripts")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *KnowledgeHandler) ExtractQuestions(c *gin.Context) {
	var req dto.ExtractQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ext, err := h.assistant.ExtractQuestions(c.Request.Context(), req.Conversation, req.MaxQuestions)
	if err != nil {
		respondError(c, err, "failed to extract questions")
		return
	}
	c.JSON(http.StatusOK, ext)
}

func (h *KnowledgeHandler) ClassifyQuery(c *gin.Context) {
	var req dto.ClassifyQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	cls, err := h.assistant.ClassifyQuery(c.Request.Context(), req.Query, req.Categories)
	if err != nil {
		respondError(c, err, "failed to classify query")
		return
	}
	c.JSON(http.StatusOK, cls)
}

func (h *KnowledgeHandler) GenerateQuestions(c *gin.Context) {
	var req dto.GenerateQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	set, err := h.assistant.GenerateQuestions(c.Request.Context(), knowledge.QuestionRequest{
		Topic:    req.Topic,
		Kind:     req.QuestionType,
		Count:    req.Count,
		Category: req.Category,
	})
	if err != nil {
		respondError(c, err, "failed to generate questions")
		return
	}
	c.JSON(http.StatusOK, set)
}

func (h *KnowledgeHandler) GenerateScripts(c *gin.Context) {
	var req dto.GenerateScriptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	set, err := h.assistant.GenerateScripts(ctx, knowledge.ScriptRequest{
		Kind:          req.ScriptType,
		Count:         req.Count,
		Tone:          req.Tone,
		Scenario:      req.Scenario,
		CustomerType:  req.CustomerType,
		OverdueDays:   req.OverdueDays,
		RiskLevel:     req.CustomerRisk,
		ComplaintType: req.ComplaintType,
		Emotion:       req.Emotion,
	})
	if err != nil {
		respondError(c, err, "failed to generate scripts")
		return
	}

	resp := dto.GenerateScriptsResponse{ScriptSet: set}
	if req.Save {
		resp.IDs, err = h.knowledge.Add(ctx, set.Items(req.Category))
		if err != nil {
			respondError(c, err, "failed to save scripts")
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}
