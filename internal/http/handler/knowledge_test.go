package handler_test

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/internal/http/handler"
	"basegraph.app/assist/internal/knowledge"
	"basegraph.app/assist/internal/model"
)

var _ = Describe("KnowledgeHandler", func() {
	var (
		router    *gin.Engine
		svc       *mockKnowledgeService
		assistant *mockAssistant
	)

	BeforeEach(func() {
		router = newTestRouter()
		svc = &mockKnowledgeService{}
		assistant = &mockAssistant{}
		h := handler.NewKnowledgeHandler(svc, assistant)
		router.POST("/knowledge", h.Add)
		router.POST("/knowledge/search", h.Search)
		router.DELETE("/knowledge", h.Delete)
		router.POST("/knowledge/extract-questions", h.ExtractQuestions)
		router.POST("/knowledge/classify-intent", h.ClassifyQuery)
		router.POST("/knowledge/generate-questions", h.GenerateQuestions)
		router.POST("/knowledge/generate-scripts", h.GenerateScripts)
	})

	It("returns 201 with the assigned ids", func() {
		svc.addFn = func(_ context.Context, items []knowledge.Item) ([]string, error) {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Category).To(Equal("billing"))
			return []string{"s-1"}, nil
		}

		w := doJSON(router, http.MethodPost, "/knowledge", map[string]any{
			"scripts": []map[string]any{{"content": "您好，请提供您的账号。", "category": "billing"}},
		})

		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(decode(w)["ids"]).To(ConsistOf("s-1"))
	})

	It("returns 400 when no scripts are given", func() {
		w := doJSON(router, http.MethodPost, "/knowledge", map[string]any{"scripts": []any{}})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 400 with the field for invalid scripts", func() {
		svc.addFn = func(context.Context, []knowledge.Item) ([]string, error) {
			return nil, model.NewValidationError("scripts[0].success_rate", "must be within [0,1]")
		}
		w := doJSON(router, http.MethodPost, "/knowledge", map[string]any{
			"scripts": []map[string]any{{"content": "x", "success_rate": 3}},
		})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decode(w)["field"]).To(Equal("scripts[0].success_rate"))
	})

	It("passes the search filter through", func() {
		svc.searchFn = func(_ context.Context, query, category string, limit int) ([]model.CandidateScript, error) {
			Expect(query).To(Equal("账单"))
			Expect(category).To(Equal("billing"))
			Expect(limit).To(Equal(3))
			return []model.CandidateScript{{ID: "s-1", Relevance: 0.9}}, nil
		}

		w := doJSON(router, http.MethodPost, "/knowledge/search", map[string]any{"query": "账单", "category": "billing", "limit": 3})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w)["scripts"]).To(HaveLen(1))
	})

	It("returns 503 when the search service is unavailable", func() {
		svc.searchFn = func(context.Context, string, string, int) ([]model.CandidateScript, error) {
			return nil, &model.ServiceUnavailableError{Service: "search", Attempts: 3, Err: errors.New("timeout")}
		}

		w := doJSON(router, http.MethodPost, "/knowledge/search", map[string]any{"query": "账单"})

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(decode(w)["error"]).To(Equal("search service unavailable"))
	})

	It("returns 204 on delete", func() {
		w := doJSON(router, http.MethodDelete, "/knowledge", map[string]any{"category": "billing"})
		Expect(w.Code).To(Equal(http.StatusNoContent))
	})

	It("returns the extracted questions", func() {
		assistant.extractFn = func(_ context.Context, conversation string, limit int) (*knowledge.Extraction, error) {
			Expect(conversation).To(ContainSubstring("多扣"))
			Expect(limit).To(Equal(2))
			return &knowledge.Extraction{
				Questions: []knowledge.ExtractedQuestion{{Question: "为什么多扣了钱？", Emotion: model.EmotionAngry, Priority: 1}},
				KeyInfo:   knowledge.KeyInfo{MainTopic: "账单", KeyEntities: []string{}},
			}, nil
		}

		w := doJSON(router, http.MethodPost, "/knowledge/extract-questions", map[string]any{"conversation": "客户：多扣了钱", "max_questions": 2})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w)["questions"]).To(HaveLen(1))
	})

	It("returns 400 for a classification without a query", func() {
		w := doJSON(router, http.MethodPost, "/knowledge/classify-intent", map[string]any{"categories": []string{"billing"}})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 400 with the field the assistant rejected", func() {
		assistant.questionsFn = func(_ context.Context, req knowledge.QuestionRequest) (*knowledge.QuestionSet, error) {
			Expect(req.Kind).To(Equal(knowledge.QuestionKind("quiz")))
			return nil, model.NewValidationError("question_type", "unknown question type %q", req.Kind)
		}

		w := doJSON(router, http.MethodPost, "/knowledge/generate-questions", map[string]any{"topic": "话费", "question_type": "quiz"})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decode(w)["field"]).To(Equal("question_type"))
	})

	It("saves generated scripts when asked", func() {
		assistant.scriptsFn = func(_ context.Context, req knowledge.ScriptRequest) (*knowledge.ScriptSet, error) {
			Expect(req.Kind).To(Equal(knowledge.ScriptCollection))
			Expect(req.OverdueDays).To(Equal(45))
			Expect(req.RiskLevel).To(Equal("high_risk"))
			return &knowledge.ScriptSet{
				Kind: knowledge.ScriptCollection,
				Tone: "professional",
				Collection: []knowledge.CollectionScript{{
					Opening: "您好", Negotiation: "您的账单已逾期45天", CommitmentRequest: "请问哪天缴费？",
					RiskLevel: "high_risk", OverdueDays: 45,
				}},
			}, nil
		}
		svc.addFn = func(_ context.Context, items []knowledge.Item) ([]string, error) {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Category).To(Equal("collection"))
			Expect(items[0].Content).To(ContainSubstring("逾期45天"))
			return []string{"s-9"}, nil
		}

		w := doJSON(router, http.MethodPost, "/knowledge/generate-scripts", map[string]any{
			"script_type": "collection", "overdue_days": 45, "customer_risk": "high_risk",
			"save": true, "category": "collection",
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		body := decode(w)
		Expect(body["ids"]).To(ConsistOf("s-9"))
		Expect(body["collection"]).To(HaveLen(1))
	})

	It("returns 400 when saving without a category", func() {
		w := doJSON(router, http.MethodPost, "/knowledge/generate-scripts", map[string]any{"script_type": "call", "scenario": "续约", "save": true})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 503 when generation is unavailable", func() {
		assistant.scriptsFn = func(context.Context, knowledge.ScriptRequest) (*knowledge.ScriptSet, error) {
			return nil, &model.ServiceUnavailableError{Service: "generation", Attempts: 3, Err: errors.New("timeout")}
		}

		w := doJSON(router, http.MethodPost, "/knowledge/generate-scripts", map[string]any{"script_type": "call", "scenario": "续约"})

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
	})
})
