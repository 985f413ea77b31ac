package inspector_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/internal/inspector"
	"basegraph.app/assist/internal/model"
)

func score(v float64) *float64 { return &v }

func reportWith(overall float64, attitude, professionalism, compliance *float64, issueTypes ...string) *model.InspectionReport {
	r := &model.InspectionReport{
		ID:                   7,
		SessionID:            "s",
		OverallScore:         overall,
		AttitudeScore:        attitude,
		ProfessionalismScore: professionalism,
		ComplianceScore:      compliance,
		TurnCount:            4,
		CreatedAt:            time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Review:               model.Generated{},
	}
	for _, t := range issueTypes {
		r.Issues = append(r.Issues, model.QualityIssue{Dimension: model.DimensionAttitude, IssueType: t, Severity: model.SeverityLow, Description: "<b>bad</b>"})
	}
	return r
}

var _ = Describe("Export", func() {
	report := reportWith(72.5, score(60), score(85), nil, "curt_reply")

	It("exports json with review state", func() {
		body, ctype, err := inspector.Export(report, "json")
		Expect(err).NotTo(HaveOccurred())
		Expect(ctype).To(Equal("application/json"))

		var decoded map[string]any
		Expect(json.Unmarshal(body, &decoded)).To(Succeed())
		Expect(decoded["overall_score"]).To(Equal(72.5))
		Expect(decoded["compliance_score"]).To(BeNil())
	})

	It("exports text", func() {
		body, _, err := inspector.Export(report, "text")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("总体评分: 72.5"))
		Expect(string(body)).To(ContainSubstring("合规性: 不可用"))
	})

	It("exports escaped html", func() {
		body, ctype, err := inspector.Export(report, "HTML")
		Expect(err).NotTo(HaveOccurred())
		Expect(ctype).To(HavePrefix("text/html"))
		Expect(string(body)).To(ContainSubstring(`class="score pass"`))
		Expect(string(body)).To(ContainSubstring("&lt;b&gt;bad&lt;/b&gt;"))
	})

	It("rejects unknown formats", func() {
		_, _, err := inspector.Export(report, "pdf")
		Expect(model.IsValidation(err)).To(BeTrue())
	})
})

var _ = Describe("Summarize", func() {
	It("buckets scores and recommends training for weak dimensions", func() {
		s := inspector.Summarize([]*model.InspectionReport{
			reportWith(95, score(95), score(95), score(95), "a"),
			reportWith(82, score(70), score(90), score(86), "a", "b"),
			reportWith(61, score(55), score(70), score(58), "c", "a", "b"),
			reportWith(40, score(40), score(40), nil, "d", "e", "f"),
		})

		Expect(s.Total).To(Equal(4))
		Expect(s.AverageScore).To(Equal(69.5))
		Expect(s.Distribution).To(Equal(map[string]int{"excellent": 1, "good": 1, "pass": 1, "fail": 1}))
		Expect(s.Dimensions[model.DimensionCompliance]).To(Equal(79.7))
		Expect(s.TopIssues).To(HaveLen(5))
		Expect(s.TopIssues[0]).To(Equal(inspector.IssueCount{IssueType: "a", Count: 3}))
		Expect(s.TopIssues[1]).To(Equal(inspector.IssueCount{IssueType: "b", Count: 2}))
		Expect(s.Training).To(HaveLen(3))
	})

	It("handles an empty batch", func() {
		s := inspector.Summarize(nil)
		Expect(s.Total).To(BeZero())
		Expect(s.TopIssues).To(BeEmpty())
	})
})
