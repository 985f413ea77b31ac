package handler_test

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/internal/http/handler"
	"basegraph.app/assist/internal/model"
)

var _ = Describe("ReviewHandler", func() {
	var (
		router    *gin.Engine
		svc       *mockReviewService
		submitted model.Submitted
	)

	BeforeEach(func() {
		router = newTestRouter()
		svc = &mockReviewService{}
		h := handler.NewReviewHandler(svc)
		router.GET("/reviews/pending", h.Pending)
		router.POST("/reviews/:id/submit", h.Submit)
		router.POST("/reviews/:id/approve", h.Approve)
		router.POST("/reviews/:id/reject", h.Reject)
		submitted = model.Submitted{ReviewID: "rv-1", Reviewer: "lin", SubmittedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	})

	It("submits a report", func() {
		svc.submitFn = func(_ context.Context, id int64, reviewer string) (*model.InspectionReport, error) {
			Expect(id).To(Equal(int64(7)))
			return &model.InspectionReport{ID: id, Review: model.Generated{}.Submit("rv-1", reviewer, submitted.SubmittedAt)}, nil
		}

		w := doJSON(router, http.MethodPost, "/reviews/7/submit", map[string]string{"reviewer": "lin"})

		Expect(w.Code).To(Equal(http.StatusOK))
		resp := decode(w)
		Expect(resp["state"]).To(Equal("submitted"))
		Expect(resp["reviewer"]).To(Equal("lin"))
		Expect(resp["review_id"]).To(Equal("rv-1"))
	})

	It("returns 409 for an invalid transition", func() {
		svc.approveFn = func(_ context.Context, id int64, _, _ string) (*model.InspectionReport, error) {
			return nil, &model.ReviewStateError{ReportID: id, From: model.ReviewStateGenerated, Action: model.ReviewActionApprove}
		}

		w := doJSON(router, http.MethodPost, "/reviews/7/approve", map[string]string{"approver": "wang"})

		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(decode(w)["state"]).To(Equal("generated"))
	})

	It("returns the decision after rejection", func() {
		svc.rejectFn = func(_ context.Context, id int64, rejector string, reasons []string) (*model.InspectionReport, error) {
			rejected, err := submitted.Reject(rejector, reasons, submitted.SubmittedAt.Add(time.Hour))
			Expect(err).NotTo(HaveOccurred())
			return &model.InspectionReport{ID: id, Review: rejected}, nil
		}

		w := doJSON(router, http.MethodPost, "/reviews/7/reject", map[string]any{"rejector": "wang", "reasons": []string{"评分偏高"}})

		Expect(w.Code).To(Equal(http.StatusOK))
		resp := decode(w)
		Expect(resp["state"]).To(Equal("rejected"))
		Expect(resp["decided_by"]).To(Equal("wang"))
		Expect(resp["reasons"]).To(ConsistOf("评分偏高"))
	})

	It("returns 400 when rejecting without reasons", func() {
		w := doJSON(router, http.MethodPost, "/reviews/7/reject", map[string]any{"rejector": "wang", "reasons": []string{}})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 400 for a malformed id", func() {
		w := doJSON(router, http.MethodPost, "/reviews/x/submit", map[string]string{"reviewer": "lin"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("lists pending reviews", func() {
		svc.pendingFn = func(_ context.Context, limit int) ([]*model.InspectionReport, error) {
			Expect(limit).To(Equal(10))
			return []*model.InspectionReport{{ID: 7, Review: submitted}}, nil
		}

		w := doJSON(router, http.MethodGet, "/reviews/pending?limit=10", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w)["reviews"]).To(HaveLen(1))
	})

	It("rejects an out of range limit", func() {
		w := doJSON(router, http.MethodGet, "/reviews/pending?limit=0", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
