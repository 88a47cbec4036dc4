package entity

import (
	"fmt"
	"strings"
)

// ReviewStatus 审稿结论
type ReviewStatus string

const (
	ReviewStatusPass           ReviewStatus = "pass"
	ReviewStatusRevisionNeeded ReviewStatus = "revision_needed"
	ReviewStatusRewriteNeeded  ReviewStatus = "rewrite_needed"
)

// IssueSeverity 问题严重程度
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityMajor    IssueSeverity = "major"
	SeverityMinor    IssueSeverity = "minor"
)

// ReviewIssue 审稿发现的问题
type ReviewIssue struct {
	Category    string        `json:"category"`
	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
	Location    string        `json:"location,omitempty"`
	Suggestion  string        `json:"suggestion,omitempty"`
}

// ReviewFeedback 审稿反馈，原样传给 Writer
type ReviewFeedback struct {
	Status       ReviewStatus  `json:"status"`
	Score        int           `json:"score"`
	Summary      string        `json:"summary"`
	Issues       []ReviewIssue `json:"issues,omitempty"`
	Instructions string        `json:"revision_instructions,omitempty"`
}

// HasCritical 是否包含严重问题
func (f *ReviewFeedback) HasCritical() bool {
	for _, issue := range f.Issues {
		if issue.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Rewrite 是否需要整章重写而非局部修改
func (f *ReviewFeedback) Rewrite() bool {
	return f.Status == ReviewStatusRewriteNeeded
}

// Format 渲染为交给 Writer 的修改意见文本
func (f *ReviewFeedback) Format() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "审稿结论：%s（%d 分）\n", f.Status, f.Score)
	if s := strings.TrimSpace(f.Summary); s != "" {
		fmt.Fprintf(&b, "总体评价：%s\n", s)
	}
	if len(f.Issues) > 0 {
		b.WriteString("需要修改的问题：\n")
		for i, issue := range f.Issues {
			fmt.Fprintf(&b, "%d. [%s/%s] %s", i+1, issue.Severity, issue.Category, issue.Description)
			if issue.Location != "" {
				fmt.Fprintf(&b, "\n   位置：%s", issue.Location)
			}
			if issue.Suggestion != "" {
				fmt.Fprintf(&b, "\n   建议：%s", issue.Suggestion)
			}
			b.WriteString("\n")
		}
	}
	if s := strings.TrimSpace(f.Instructions); s != "" {
		fmt.Fprintf(&b, "修改指引：%s\n", s)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ReviewVerdict 审稿判定，Feedback 只在未通过时有意义
type ReviewVerdict struct {
	Pass     bool            `json:"pass"`
	Feedback *ReviewFeedback `json:"feedback,omitempty"`
	// ShortCircuit 未调用模型直接判定失败
	ShortCircuit bool `json:"short_circuit,omitempty"`
}

// PassVerdict 通过
func PassVerdict(feedback *ReviewFeedback) *ReviewVerdict {
	return &ReviewVerdict{Pass: true, Feedback: feedback}
}

// FailVerdict 未通过
func FailVerdict(feedback *ReviewFeedback) *ReviewVerdict {
	return &ReviewVerdict{Pass: false, Feedback: feedback}
}
