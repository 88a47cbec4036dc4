package project

import (
	"fmt"
	"strconv"
	"strings"
)

var chineseDigits = map[rune]int{
	'零': 0, '〇': 0,
	'一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var chineseUnits = map[rune]int{
	'十': 10, '百': 100, '千': 1000,
}

// ParseChapterNumber 解析章节号，支持阿拉伯数字与中文数字（如 十二、一百零五、两百）
func ParseChapterNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty chapter number")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("chapter number must be positive: %d", n)
		}
		return n, nil
	}

	total, digit := 0, 0
	for _, r := range s {
		if d, ok := chineseDigits[r]; ok {
			digit = d
			continue
		}
		unit, ok := chineseUnits[r]
		if !ok {
			return 0, fmt.Errorf("invalid chapter number %q", s)
		}
		// "十二" 省略了前面的 "一"
		if digit == 0 && unit == 10 {
			digit = 1
		}
		total += digit * unit
		digit = 0
	}
	total += digit
	if total < 1 {
		return 0, fmt.Errorf("invalid chapter number %q", s)
	}
	return total, nil
}
