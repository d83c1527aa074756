package domain

import "context"

// DocumentProcessor 文档处理器接口
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, inputPath, outputPath string, job Job) (*ProcessResult, error)
	ValidateDocument(inputPath string) error
}

// TextStream 去碎片化后的逻辑文本流
type TextStream interface {
	// Text 返回逻辑文本（已去除所有标记）
	Text() string
	// Contiguous 判断逻辑区间 [start, end) 是否位于同一段落内
	Contiguous(start, end int) bool
}

// TextMatcher 跨 run 文本匹配器接口
type TextMatcher interface {
	FindFirst(stream TextStream, needle string) (Match, bool)
	FindAll(stream TextStream, needle string) []Match
}

// Match 表示逻辑文本流中的一个匹配区间 [Start, End)
type Match struct {
	Needle string // 查找的文本
	Start  int    // 开始位置（含）
	End    int    // 结束位置（不含）
}

// Len 返回匹配长度
func (m Match) Len() int {
	return m.End - m.Start
}

// PayloadKind 替换内容的类型
type PayloadKind int

const (
	// PayloadText 普通文本，写入时做 XML 转义
	PayloadText PayloadKind = iota
	// PayloadBlock 预先渲染好的 XML 片段，原样插入
	PayloadBlock
)

// Payload 替换内容
type Payload struct {
	Kind  PayloadKind
	Value string
}

// TextPayload 创建文本替换内容
func TextPayload(text string) Payload {
	return Payload{Kind: PayloadText, Value: text}
}

// BlockPayload 创建 XML 片段替换内容
func BlockPayload(block string) Payload {
	return Payload{Kind: PayloadBlock, Value: block}
}

// Job 一次文档处理任务：文本替换和图片替换
type Job struct {
	Texts  map[string]string // 关键词 -> 替换文本
	Images map[string]string // 关键词 -> 图片路径
}

// Empty 判断任务是否没有任何替换项
func (j Job) Empty() bool {
	return len(j.Texts) == 0 && len(j.Images) == 0
}

// ProcessResult 处理结果
type ProcessResult struct {
	Success           bool
	ProcessedFiles    int
	Replacements      int
	ImageReplacements int
	Unmatched         []string // 未在文档中找到的关键词
	Residual          []string // 校验后仍残留在正文中的关键词
	Stats             []ReplacementStats
	Errors            []error
}

// ReplacementStats 单个关键词的替换统计
type ReplacementStats struct {
	Keyword     string
	Occurrences int
	Parts       map[string]int // 部件路径 -> 替换次数
}
