package docx

import (
	"strings"
)

// ReplaceLiteral 替换完全位于单个文本节点内的所有 from，不做跨 run 匹配。
// 只有发生替换的节点内容会被重写，其余字节保持不变。返回新的原始 XML 和替换次数。
func ReplaceLiteral(raw []byte, from, to string) ([]byte, int, error) {
	if from == "" || from == to {
		return raw, 0, nil
	}

	stream, err := Project(raw)
	if err != nil {
		return nil, 0, err
	}

	var edits []edit
	count := 0
	for i := range stream.nodes {
		node := &stream.nodes[i]
		n := strings.Count(node.Text, from)
		if n == 0 {
			continue
		}
		count += n

		text := strings.ReplaceAll(node.Text, from, to)
		edits = append(edits, edit{
			start: node.Content.Start,
			end:   node.Content.End,
			text:  EscapeText(text),
		})
		if tag, ok := spacePreserved(raw, node, text); ok {
			edits = append(edits, edit{start: node.Open.Start, end: node.Open.End, text: tag})
		}
	}

	if count == 0 {
		return raw, 0, nil
	}

	out, err := applyEdits(raw, edits)
	if err != nil {
		return nil, 0, err
	}
	return out, count, nil
}

// spacePreserved 文本首尾有空白时返回带 xml:space="preserve" 的开始标签
func spacePreserved(raw []byte, node *TextNode, text string) (string, bool) {
	if text == "" || strings.TrimSpace(text) == text {
		return "", false
	}
	return withPreserve(node.Open.slice(raw))
}
