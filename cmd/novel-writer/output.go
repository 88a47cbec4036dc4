package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"novel-writer/internal/application/story"
	"novel-writer/internal/application/story/pipeline"
	"novel-writer/internal/domain/entity"
)

func printResults(w io.Writer, results []*pipeline.RunResult) {
	for _, r := range results {
		if r.State == entity.StateCommitted {
			words := 0
			if r.Chapter != nil {
				words = r.Chapter.WordCount
			}
			fmt.Fprintf(w, "第%d章 已提交：%d 字，尝试 %d 次，记忆事实 %d 条，用时 %s\n",
				r.Number, words, r.Attempts, r.Facts, r.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "第%d章 %s（%s）：%s\n", r.Number, r.State, r.Outcome, r.Reason)
		if r.Verdict != nil && r.Verdict.Feedback != nil {
			for _, line := range strings.Split(r.Verdict.Feedback.Format(), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}
}

func printSummary(w io.Writer, s *story.Summary) {
	fmt.Fprintf(w, "项目：%s (%s)\n", s.Title, s.ProjectID)
	fmt.Fprintf(w, "目录：%s\n", s.Root)
	if s.OutlineMissing {
		fmt.Fprintln(w, "大纲：未找到，运行 init 生成模板")
	} else {
		fmt.Fprintf(w, "大纲：%d 章，已提交 %d 章，剩余 %d 章\n", s.OutlineChapters, len(s.Committed), s.Remaining)
	}
	fmt.Fprintf(w, "总字数：%d\n", s.TotalWords)
	if s.Complete() {
		fmt.Fprintln(w, "下一章：无，大纲已写完")
	} else {
		fmt.Fprintf(w, "下一章：第%d章\n", s.NextChapter)
	}

	if s.Memory != nil {
		fmt.Fprintf(w, "记忆事实：%d 条", s.Memory.Total)
		if len(s.Memory.ByKind) > 0 {
			kinds := make([]string, 0, len(s.Memory.ByKind))
			for k, n := range s.Memory.ByKind {
				kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
			}
			sort.Strings(kinds)
			fmt.Fprintf(w, "（%s）", strings.Join(kinds, " "))
		}
		fmt.Fprintln(w)
	}

	for _, ch := range s.Committed {
		fmt.Fprintf(w, "  第%d章 %s  %d 字\n", ch.Number, ch.Title, ch.WordCount)
	}

	if run := s.LastRun; run != nil {
		fmt.Fprintf(w, "最近运行：第%d章 %s，第 %d 次尝试，更新于 %s\n",
			run.Chapter, run.State, run.Attempt, run.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		if run.Reason != "" {
			fmt.Fprintf(w, "  原因：%s\n", run.Reason)
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
