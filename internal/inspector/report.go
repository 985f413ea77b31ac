package inspector

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"basegraph.app/assist/internal/model"
)

const FormatHTML = "html"

//go:embed templates/*.html
var templates embed.FS

var reportTemplate = template.Must(template.ParseFS(templates, "templates/report.html"))

var dimensionLabels = map[model.Dimension]string{
	model.DimensionAttitude:        "服务态度",
	model.DimensionProfessionalism: "专业性",
	model.DimensionCompliance:      "合规性",
}

type scoreView struct {
	Label     string
	Value     float64
	Available bool
}

type reportView struct {
	*model.InspectionReport
	Scores []scoreView
}

func viewOf(r *model.InspectionReport) reportView {
	v := reportView{InspectionReport: r}
	for _, d := range model.Dimensions {
		sv := scoreView{Label: dimensionLabels[d]}
		if s := r.Score(d); s != nil {
			sv.Value, sv.Available = *s, true
		}
		v.Scores = append(v.Scores, sv)
	}
	return v
}

// Export renders a report as json, text or html. It returns the body and its
// content type.
func Export(r *model.InspectionReport, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		b, err := json.MarshalIndent(r, "", "  ")
		return b, "application/json", err
	case FormatText:
		return exportText(r), "text/plain; charset=utf-8", nil
	case FormatHTML:
		var buf bytes.Buffer
		if err := reportTemplate.Execute(&buf, viewOf(r)); err != nil {
			return nil, "", fmt.Errorf("rendering report: %w", err)
		}
		return buf.Bytes(), "text/html; charset=utf-8", nil
	}
	return nil, "", model.NewValidationError("format", "unsupported export format %q", format)
}

func exportText(r *model.InspectionReport) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "质检报告 #%d\n", r.ID)
	fmt.Fprintf(&b, "会话: %s  轮次: %d  状态: %s\n", r.SessionID, r.TurnCount, r.State())
	fmt.Fprintf(&b, "总体评分: %.1f\n", r.OverallScore)
	for _, s := range viewOf(r).Scores {
		if s.Available {
			fmt.Fprintf(&b, "  %s: %.1f\n", s.Label, s.Value)
		} else {
			fmt.Fprintf(&b, "  %s: 不可用\n", s.Label)
		}
	}
	if len(r.Issues) > 0 {
		b.WriteString("\n问题:\n")
		for _, is := range r.Issues {
			fmt.Fprintf(&b, "  - [%s/%s] 第%d轮 %s: %s\n", is.Dimension, is.Severity, is.TurnIndex, is.IssueType, is.Description)
		}
	}
	if len(r.Suggestions) > 0 {
		b.WriteString("\n改进建议:\n")
		for _, s := range r.Suggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	return []byte(b.String())
}

type IssueCount struct {
	IssueType string `json:"issue_type"`
	Count     int    `json:"count"`
}

type Summary struct {
	Total        int                         `json:"total"`
	AverageScore float64                     `json:"average_score"`
	Distribution map[string]int              `json:"distribution"`
	Dimensions   map[model.Dimension]float64 `json:"dimension_averages"`
	TopIssues    []IssueCount                `json:"top_issues"`
	Training     []string                    `json:"training_recommendations"`
}

const trainingThreshold = 80

// Summarize aggregates a batch of reports: score distribution, the most frequent issue
// types and training advice for dimensions averaging below 80.
func Summarize(reports []*model.InspectionReport) Summary {
	s := Summary{
		Total:        len(reports),
		Distribution: map[string]int{"excellent": 0, "good": 0, "pass": 0, "fail": 0},
		Dimensions:   map[model.Dimension]float64{},
		TopIssues:    []IssueCount{},
		Training:     []string{},
	}
	if len(reports) == 0 {
		return s
	}

	var sum float64
	dimSum := map[model.Dimension]float64{}
	dimN := map[model.Dimension]int{}
	issues := map[string]int{}
	for _, r := range reports {
		sum += r.OverallScore
		s.Distribution[bucket(r.OverallScore)]++
		for _, d := range model.Dimensions {
			if v := r.Score(d); v != nil {
				dimSum[d] += *v
				dimN[d]++
			}
		}
		for _, is := range r.Issues {
			issues[is.IssueType]++
		}
	}
	s.AverageScore = model.Round1(sum / float64(len(reports)))

	for _, d := range model.Dimensions {
		if dimN[d] == 0 {
			continue
		}
		avg := model.Round1(dimSum[d] / float64(dimN[d]))
		s.Dimensions[d] = avg
		if avg < trainingThreshold {
			s.Training = append(s.Training, fmt.Sprintf("%s平均分%.1f，建议安排%s专项培训", dimensionLabels[d], avg, dimensionLabels[d]))
		}
	}

	for t, n := range issues {
		s.TopIssues = append(s.TopIssues, IssueCount{IssueType: t, Count: n})
	}
	sort.Slice(s.TopIssues, func(a, b int) bool {
		if s.TopIssues[a].Count != s.TopIssues[b].Count {
			return s.TopIssues[a].Count > s.TopIssues[b].Count
		}
		return s.TopIssues[a].IssueType < s.TopIssues[b].IssueType
	})
	if len(s.TopIssues) > 5 {
		s.TopIssues = s.TopIssues[:5]
	}
	return s
}

func bucket(score float64) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 80:
		return "good"
	case score >= 60:
		return "pass"
	}
	return "fail"
}
