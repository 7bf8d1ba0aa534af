// Package textutil 提供新闻文本处理的工具函数。
package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ellipsis 截断后追加的后缀。
const Ellipsis = "..."

var (
	spaceRegex      = regexp.MustCompile(`\s+`)
	sentenceRegex   = regexp.MustCompile(`[^.!?。！？]+[.!?。！？]*`)
	listMarkerRegex = regexp.MustCompile(`^([\d]+[\.\)]|[\-\*•])\s*`)
)

// Truncate 截断字符串到指定的最大 Unicode 字符数。
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// Snippet 返回前 maxLen 个字符，被截断时追加 "..."。
func Snippet(s string, maxLen int) string {
	s = CollapseSpace(s)
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return Truncate(s, maxLen) + Ellipsis
}

// CollapseSpace 将连续空白合并为一个空格并去除首尾空白。
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}

// WordCount 统计以空白分隔的词数。
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Sentences 按句末标点切分文本，返回去除空白后的非空句子。
func Sentences(s string) []string {
	var out []string
	for _, m := range sentenceRegex.FindAllString(s, -1) {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// UpperRatio 返回字母中大写字母的比例，没有字母时返回 0。
func UpperRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// PunctRatio 返回标点符号在非空白字符中的比例。
func PunctRatio(s string) float64 {
	var total, punct int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			punct++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(punct) / float64(total)
}

// Tokens 将文本转为小写并按非字母数字字符切分。
func Tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Squash 返回只保留小写字母和数字的形式，"Science Daily" 与 "ScienceDaily" 结果相同。
func Squash(s string) string {
	return strings.Join(Tokens(s), "")
}

// SplitByLines 按行分割文本，移除列表标记和空行。
func SplitByLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = listMarkerRegex.ReplaceAllString(line, "")
		line = strings.Trim(line, `"'`)
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}

// Clamp 将 v 限制在 [lo, hi] 范围内。
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
