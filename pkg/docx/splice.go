package docx

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/allanpk716/docx-image-replacer/internal/domain"
)

// edit 对原始 XML 的一次区间替换
type edit struct {
	start int
	end   int
	text  string
}

// cut 一个文本节点内被匹配覆盖的逻辑区间
type cut struct {
	lo, hi   int    // 逻辑位置，[lo, hi)
	insert   string // 插入到 lo 处的原始 XML
	inserted string // insert 对逻辑文本的贡献
	split    bool   // insert 把节点所在的 run 一分为二
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\r", "&#xD;",
)

// EscapeText 转义 XML 文本内容
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// Splice 把一个匹配替换为负载，返回新的原始 XML
func Splice(stream *TextStream, match domain.Match, payload domain.Payload) ([]byte, error) {
	return SpliceAll(stream, []domain.Match{match}, payload)
}

// SpliceAll 把一组互不重叠的匹配替换为同一个负载。
// 匹配之外的文本节点保持逐字节不变；部分覆盖的节点只去掉匹配到的字符，
// 节点自身的标签和属性不变；负载插入在匹配起点的位置。
func SpliceAll(stream *TextStream, matches []domain.Match, payload domain.Payload) ([]byte, error) {
	if stream == nil {
		return nil, fmt.Errorf("文本流为空")
	}
	if len(matches) == 0 {
		return stream.raw, nil
	}

	s := &splicer{
		stream: stream,
		cuts:   make(map[int][]cut),
	}

	prevEnd := 0
	for _, m := range matches {
		if m.Start < prevEnd {
			return nil, fmt.Errorf("匹配区间重叠: [%d, %d)", m.Start, m.End)
		}
		if err := s.add(m, payload); err != nil {
			return nil, err
		}
		prevEnd = m.End
	}

	out, err := applyEdits(stream.raw, s.finish())
	if err != nil {
		return nil, err
	}

	// 拼接结果必须仍是合法的 XML
	if _, err := Project(out); err != nil {
		return nil, err
	}
	return out, nil
}

type splicer struct {
	stream *TextStream
	edits  []edit
	cuts   map[int][]cut
	order  []int
}

func (s *splicer) add(m domain.Match, payload domain.Payload) error {
	stream := s.stream
	if m.Start < 0 || m.End > stream.Len() || m.Start >= m.End {
		return fmt.Errorf("无效的匹配区间: [%d, %d)", m.Start, m.End)
	}
	if m.Needle != "" && stream.text[m.Start:m.End] != m.Needle {
		return fmt.Errorf("匹配区间与文本不一致: %q", m.Needle)
	}
	if !stream.Contiguous(m.Start, m.End) {
		return fmt.Errorf("匹配跨越段落: [%d, %d)", m.Start, m.End)
	}

	head := &stream.nodes[stream.nodeOf[m.Start]]
	tail := &stream.nodes[stream.nodeOf[m.End-1]]

	var insert, inserted string
	var after edit
	hasAfter, split := false, false

	switch payload.Kind {
	case domain.PayloadText:
		insert = EscapeText(payload.Value)
		inserted = payload.Value
	case domain.PayloadBlock:
		switch {
		case head.Run == nil:
			// 文本节点不在 run 中，块放在节点之后
			after = edit{start: head.Close.End, end: head.Close.End, text: payload.Value}
			hasAfter = true
		case head.Run == tail.Run:
			// 在匹配起点把 run 一分为二，块夹在两段之间
			raw := stream.raw
			open := string(head.Open.slice(raw))
			if tag, ok := withPreserve(head.Open.slice(raw)); ok {
				open = tag
			}
			insert = string(head.Close.slice(raw)) +
				string(head.Run.Close.slice(raw)) +
				payload.Value +
				string(head.Run.Open.slice(raw)) +
				string(head.Run.Props.slice(raw)) +
				open
			split = true
		default:
			after = edit{start: head.Run.Close.End, end: head.Run.Close.End, text: payload.Value}
			hasAfter = true
		}
	default:
		return fmt.Errorf("未知的负载类型: %d", payload.Kind)
	}

	for i := head.Index; i <= tail.Index; i++ {
		node := &stream.nodes[i]
		lo := max(m.Start, node.Offset)
		hi := min(m.End, node.Offset+len(node.Text))
		if lo >= hi {
			continue
		}

		c := cut{lo: lo, hi: hi}
		if i == head.Index {
			c.insert = insert
			c.inserted = inserted
			c.split = split
		}
		if _, seen := s.cuts[i]; !seen {
			s.order = append(s.order, i)
		}
		s.cuts[i] = append(s.cuts[i], c)
	}

	if hasAfter {
		s.edits = append(s.edits, after)
	}
	return nil
}

// finish 把节点级的切分转换为原始 XML 上的编辑
func (s *splicer) finish() []edit {
	stream := s.stream
	edits := s.edits

	for _, idx := range s.order {
		node := &stream.nodes[idx]
		cuts := s.cuts[idx]

		if node.markup {
			// 含 CDATA 或注释的节点整体重写
			edits = append(edits, edit{
				start: node.Content.Start,
				end:   node.Content.End,
				text:  rebuildNode(node, cuts),
			})
		} else {
			for _, c := range cuts {
				edits = append(edits, edit{
					start: stream.rawStart[c.lo],
					end:   stream.rawEnd[c.hi-1],
					text:  c.insert,
				})
			}
		}

		if tag, ok := preserveSpace(stream.raw, node, cuts); ok {
			edits = append(edits, edit{start: node.Open.Start, end: node.Open.End, text: tag})
		}
	}

	return edits
}

// rebuildNode 生成节点替换后的内容
func rebuildNode(node *TextNode, cuts []cut) string {
	var b strings.Builder
	pos := node.Offset
	for _, c := range cuts {
		b.WriteString(EscapeText(node.Text[pos-node.Offset : c.lo-node.Offset]))
		b.WriteString(c.insert)
		pos = c.hi
	}
	b.WriteString(EscapeText(node.Text[pos-node.Offset:]))
	return b.String()
}

// resultText 节点替换后的逻辑文本
func resultText(node *TextNode, cuts []cut) string {
	var b strings.Builder
	pos := node.Offset
	for _, c := range cuts {
		b.WriteString(node.Text[pos-node.Offset : c.lo-node.Offset])
		b.WriteString(c.inserted)
		pos = c.hi
	}
	b.WriteString(node.Text[pos-node.Offset:])
	return b.String()
}

// preserveSpace 节点替换后首尾出现空白，或者节点被拆分时，
// 返回补上 xml:space="preserve" 的开始标签
func preserveSpace(raw []byte, node *TextNode, cuts []cut) (string, bool) {
	split := false
	for _, c := range cuts {
		split = split || c.split
	}

	if !split {
		text := resultText(node, cuts)
		if text == "" || strings.TrimSpace(text) == text {
			return "", false
		}
	}
	return withPreserve(node.Open.slice(raw))
}

// withPreserve 给没有 xml:space 的开始标签加上 xml:space="preserve"
func withPreserve(open []byte) (string, bool) {
	if bytes.Contains(open, []byte("xml:space")) {
		return "", false
	}

	gt := bytes.LastIndexByte(open, '>')
	if gt < 0 || bytes.HasSuffix(open, []byte("/>")) {
		return "", false
	}
	return string(open[:gt]) + ` xml:space="preserve"` + string(open[gt:]), true
}

// applyEdits 按起点顺序应用编辑，编辑之间不能重叠
func applyEdits(raw []byte, edits []edit) ([]byte, error) {
	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].start < edits[j].start
	})

	var b bytes.Buffer
	b.Grow(len(raw))

	pos := 0
	for _, e := range edits {
		if e.start < pos || e.end < e.start || e.end > len(raw) {
			return nil, fmt.Errorf("编辑区间冲突: [%d, %d)", e.start, e.end)
		}
		b.Write(raw[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.Write(raw[pos:])

	return b.Bytes(), nil
}
