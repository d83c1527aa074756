package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/allanpk716/docx-image-replacer/internal/domain"
)

// runSpanningMatcher 在逻辑文本流上做精确子串匹配，匹配结果可以跨越多个文本节点
type runSpanningMatcher struct{}

// NewTextMatcher 创建新的跨 run 匹配器
func NewTextMatcher() domain.TextMatcher {
	return &runSpanningMatcher{}
}

// FindFirst 查找第一个匹配
func (m *runSpanningMatcher) FindFirst(stream domain.TextStream, needle string) (domain.Match, bool) {
	match, ok := m.next(stream, needle, 0)
	return match, ok
}

// FindAll 从左到右查找所有不重叠的匹配
func (m *runSpanningMatcher) FindAll(stream domain.TextStream, needle string) []domain.Match {
	var matches []domain.Match

	from := 0
	for {
		match, ok := m.next(stream, needle, from)
		if !ok {
			break
		}
		matches = append(matches, match)
		// 下一次查找从本次匹配的结尾继续，保证不重叠
		from = match.End
	}

	return matches
}

// next 从 from 开始查找下一个不跨段落的匹配
func (m *runSpanningMatcher) next(stream domain.TextStream, needle string, from int) (domain.Match, bool) {
	if stream == nil || needle == "" {
		return domain.Match{}, false
	}

	text := stream.Text()
	for from <= len(text)-len(needle) {
		idx := strings.Index(text[from:], needle)
		if idx < 0 {
			return domain.Match{}, false
		}

		start := from + idx
		end := start + len(needle)
		if stream.Contiguous(start, end) {
			return domain.Match{Needle: needle, Start: start, End: end}, true
		}

		// 跨段落的候选被丢弃，从下一个字符继续
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}

	return domain.Match{}, false
}

// CountMatches 统计不重叠匹配的数量
func CountMatches(stream domain.TextStream, needle string) int {
	return len(NewTextMatcher().FindAll(stream, needle))
}

// ValidateKeywordFormat 验证关键词格式是否正确 (#key# 格式)
func ValidateKeywordFormat(keyword string) bool {
	if len(keyword) < 3 {
		return false
	}
	return strings.HasPrefix(keyword, "#") && strings.HasSuffix(keyword, "#")
}

// FormatKeyword 将关键词名称格式化为 #key# 格式
func FormatKeyword(keywordName string) string {
	if ValidateKeywordFormat(keywordName) {
		return keywordName
	}
	return "#" + keywordName + "#"
}
