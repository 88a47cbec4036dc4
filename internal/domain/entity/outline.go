package entity

import (
	"fmt"
	"strings"
)

// OutlineEntry 大纲中的一章，外部编写，流水线只读
type OutlineEntry struct {
	Number    int      `json:"number" yaml:"number"`
	Title     string   `json:"title" yaml:"title"`
	Goal      string   `json:"goal" yaml:"goal"`
	KeyEvents []string `json:"key_events,omitempty" yaml:"key_events"`
}

// Render 渲染为提示词文本
func (e *OutlineEntry) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "第%d章：%s\n", e.Number, e.Title)
	if e.Goal != "" {
		b.WriteString(e.Goal)
		b.WriteString("\n")
	}
	for _, ev := range e.KeyEvents {
		b.WriteString("- ")
		b.WriteString(ev)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Outline 按章节号升序的大纲
type Outline []OutlineEntry

// Find 按章节号查找
func (o Outline) Find(number int) (*OutlineEntry, bool) {
	for i := range o {
		if o[i].Number == number {
			return &o[i], true
		}
	}
	return nil, false
}

// Numbers 全部章节号
func (o Outline) Numbers() []int {
	nums := make([]int, 0, len(o))
	for _, e := range o {
		nums = append(nums, e.Number)
	}
	return nums
}

// Last 最大章节号，空大纲返回 0
func (o Outline) Last() int {
	last := 0
	for _, e := range o {
		if e.Number > last {
			last = e.Number
		}
	}
	return last
}
