package docx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	markupCompatNS   = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// span 原始 XML 中的字节区间 [Start, End)
type span struct {
	Start int
	End   int
}

func (s span) slice(raw []byte) []byte {
	return raw[s.Start:s.End]
}

// RunSpan 一个 w:r 元素在原始 XML 中的位置
type RunSpan struct {
	Open  span // <w:r ...>
	Props span // <w:rPr>...</w:rPr>，不存在时为空区间
	Close span // </w:r>
}

// TextNode 一个 w:t 文本节点
type TextNode struct {
	Index     int
	Paragraph int // 所属段落序号，不在段落内时为 -1
	Offset    int // 文本在逻辑流中的起点
	Open      span
	Content   span
	Close     span
	Run       *RunSpan // 所属的 run，可能为 nil
	Text      string   // 解码后的文本
	markup    bool     // 内容中含有 CDATA 或注释
}

// TextStream 把一个 XML 部件中所有 w:t 的文本按文档顺序拼接成的逻辑文本流，
// 每个逻辑字节都能映射回原始 XML 中的文本节点和字节区间。
type TextStream struct {
	raw      []byte
	text     string
	nodes    []TextNode
	nodeOf   []int // 逻辑字节 -> 节点序号
	rawStart []int // 逻辑字节 -> 原始区间起点（绝对偏移）
	rawEnd   []int // 逻辑字节 -> 原始区间终点（绝对偏移）
}

// Text 返回逻辑文本
func (s *TextStream) Text() string {
	return s.text
}

// Len 返回逻辑文本长度（字节）
func (s *TextStream) Len() int {
	return len(s.text)
}

// Nodes 返回所有文本节点
func (s *TextStream) Nodes() []TextNode {
	return s.nodes
}

// Locate 把逻辑位置映射到 (节点序号, 节点内容内的字节偏移)
func (s *TextStream) Locate(pos int) (int, int, bool) {
	if pos < 0 || pos >= len(s.text) {
		return 0, 0, false
	}
	node := s.nodeOf[pos]
	return node, s.rawStart[pos] - s.nodes[node].Content.Start, true
}

// Contiguous 判断逻辑区间 [start, end) 是否位于同一段落。
// 区间经过的每个节点都要检查，文本框的段落嵌在外层段落之内。
func (s *TextStream) Contiguous(start, end int) bool {
	if start < 0 || end > len(s.text) || start >= end {
		return false
	}
	first, last := s.nodeOf[start], s.nodeOf[end-1]
	paragraph := s.nodes[first].Paragraph
	for i := first + 1; i <= last; i++ {
		if s.nodes[i].Paragraph != paragraph {
			return false
		}
	}
	return true
}

// Project 解析原始 XML，构建逻辑文本流和偏移映射。
// 只有 wordprocessingml 命名空间下的 w:t 属于文本节点；w:delText、w:instrText、
// 校对和修订标记等都只是结构，mc:Fallback 中的备用内容不参与投影。
func Project(raw []byte) (*TextStream, error) {
	p := &projector{
		stream:  &TextStream{raw: raw},
		decoder: xml.NewDecoder(bytes.NewReader(raw)),
	}
	p.decoder.Strict = true

	if err := p.run(); err != nil {
		return nil, &MalformedXMLError{Cause: err}
	}

	return p.stream, nil
}

type projector struct {
	stream  *TextStream
	decoder *xml.Decoder
	text    strings.Builder

	depth      int
	paragraphs []int // 段落栈
	nextPara   int
	runs       []*runFrame
	fallback   int // 进入 mc:Fallback 时的深度，0 表示不在其中
	current    *TextNode
	currentBuf strings.Builder
}

type runFrame struct {
	depth int
	span  *RunSpan
	props int // rPr 起点，-1 表示未开始
}

func (p *projector) run() error {
	for {
		start := int(p.decoder.InputOffset())
		tok, err := p.decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		end := int(p.decoder.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			p.depth++
			if err := p.startElement(t, span{start, end}); err != nil {
				return err
			}
		case xml.EndElement:
			if err := p.endElement(t, span{start, end}); err != nil {
				return err
			}
			p.depth--
		case xml.CharData:
			if p.current != nil {
				if err := p.appendText(span{start, end}, []byte(t)); err != nil {
					return err
				}
			}
		default:
			if p.current != nil && start != end {
				p.current.markup = true
			}
		}
	}

	if p.depth != 0 || p.current != nil {
		return fmt.Errorf("XML 意外结束")
	}

	p.stream.text = p.text.String()
	return nil
}

func (p *projector) startElement(t xml.StartElement, s span) error {
	if p.current != nil {
		return fmt.Errorf("文本节点中出现元素 <%s>", t.Name.Local)
	}

	switch {
	case t.Name.Space == markupCompatNS && t.Name.Local == "Fallback":
		if p.fallback == 0 {
			p.fallback = p.depth
		}
	case t.Name.Space != wordprocessingNS:
	case t.Name.Local == "p":
		p.paragraphs = append(p.paragraphs, p.nextPara)
		p.nextPara++
	case t.Name.Local == "r":
		p.runs = append(p.runs, &runFrame{
			depth: p.depth,
			span:  &RunSpan{Open: s, Props: span{s.End, s.End}},
			props: -1,
		})
	case t.Name.Local == "rPr":
		if frame := p.topRun(); frame != nil && frame.depth == p.depth-1 {
			frame.props = s.Start
			if selfClosing(p.stream.raw, s) {
				frame.span.Props = s
				frame.props = -1
			}
		}
	case t.Name.Local == "t":
		if p.fallback != 0 {
			return nil
		}
		node := &TextNode{
			Index:     len(p.stream.nodes),
			Paragraph: -1,
			Offset:    p.text.Len(),
			Open:      s,
			Content:   span{s.End, s.End},
			Close:     span{s.End, s.End},
		}
		if len(p.paragraphs) > 0 {
			node.Paragraph = p.paragraphs[len(p.paragraphs)-1]
		}
		if frame := p.topRun(); frame != nil {
			node.Run = frame.span
		}
		if selfClosing(p.stream.raw, s) {
			p.stream.nodes = append(p.stream.nodes, *node)
			// 自闭合元素随后会收到一个合成的 EndElement
			p.depth--
			p.skipSyntheticEnd()
			return nil
		}
		p.current = node
		p.currentBuf.Reset()
	}
	return nil
}

// skipSyntheticEnd 读掉自闭合 w:t 的合成结束标签
func (p *projector) skipSyntheticEnd() {
	p.decoder.Token()
}

func (p *projector) endElement(t xml.EndElement, s span) error {
	if p.current != nil {
		if t.Name.Space != wordprocessingNS || t.Name.Local != "t" {
			return fmt.Errorf("文本节点未正确闭合: </%s>", t.Name.Local)
		}
		node := p.current
		node.Content.End = s.Start
		node.Close = s
		node.Text = p.currentBuf.String()
		p.stream.nodes = append(p.stream.nodes, *node)
		p.current = nil
		return nil
	}

	switch {
	case t.Name.Space == markupCompatNS && t.Name.Local == "Fallback":
		if p.fallback == p.depth {
			p.fallback = 0
		}
	case t.Name.Space != wordprocessingNS:
	case t.Name.Local == "p":
		if len(p.paragraphs) > 0 {
			p.paragraphs = p.paragraphs[:len(p.paragraphs)-1]
		}
	case t.Name.Local == "r":
		if frame := p.topRun(); frame != nil && frame.depth == p.depth {
			frame.span.Close = s
			p.runs = p.runs[:len(p.runs)-1]
		}
	case t.Name.Local == "rPr":
		if frame := p.topRun(); frame != nil && frame.depth == p.depth-1 && frame.props >= 0 {
			frame.span.Props = span{frame.props, s.End}
			frame.props = -1
		}
	}
	return nil
}

func (p *projector) topRun() *runFrame {
	if len(p.runs) == 0 {
		return nil
	}
	return p.runs[len(p.runs)-1]
}

// appendText 解码一段原始字符数据，并逐字节记录其在原始 XML 中的区间
func (p *projector) appendText(s span, decoded []byte) error {
	node := p.current
	raw := s.slice(p.stream.raw)
	if bytes.HasPrefix(raw, []byte("<![CDATA[")) {
		node.markup = true
	}

	text, starts, ends, err := decodeCharData(raw, s.Start)
	if err != nil {
		return err
	}
	if text != string(decoded) {
		return fmt.Errorf("文本解码不一致: %q != %q", text, decoded)
	}

	for i := 0; i < len(text); i++ {
		p.stream.nodeOf = append(p.stream.nodeOf, node.Index)
		p.stream.rawStart = append(p.stream.rawStart, starts[i])
		p.stream.rawEnd = append(p.stream.rawEnd, ends[i])
	}
	p.text.WriteString(text)
	p.currentBuf.WriteString(text)
	return nil
}

// decodeCharData 按 encoding/xml 的规则解码字符数据（实体、CDATA、换行规范化），
// 返回解码文本以及每个解码字节对应的原始区间
func decodeCharData(raw []byte, base int) (string, []int, []int, error) {
	var out []byte
	var starts, ends []int

	emit := func(b []byte, from, to int) {
		for _, c := range b {
			out = append(out, c)
			starts = append(starts, base+from)
			ends = append(ends, base+to)
		}
	}

	for i := 0; i < len(raw); {
		switch {
		case bytes.HasPrefix(raw[i:], []byte("<![CDATA[")):
			body := i + len("<![CDATA[")
			closeAt := bytes.Index(raw[body:], []byte("]]>"))
			if closeAt < 0 {
				return "", nil, nil, fmt.Errorf("CDATA 未闭合")
			}
			for j := body; j < body+closeAt; {
				if raw[j] == '\r' {
					next := j + 1
					if next < body+closeAt && raw[next] == '\n' {
						next++
					}
					emit([]byte{'\n'}, j, next)
					j = next
					continue
				}
				emit(raw[j:j+1], j, j+1)
				j++
			}
			i = body + closeAt + len("]]>")
		case raw[i] == '&':
			semi := bytes.IndexByte(raw[i:], ';')
			if semi < 0 {
				return "", nil, nil, fmt.Errorf("实体未闭合")
			}
			decoded, err := decodeEntity(string(raw[i+1 : i+semi]))
			if err != nil {
				return "", nil, nil, err
			}
			emit(decoded, i, i+semi+1)
			i += semi + 1
		case raw[i] == '\r':
			next := i + 1
			if next < len(raw) && raw[next] == '\n' {
				next++
			}
			emit([]byte{'\n'}, i, next)
			i = next
		default:
			emit(raw[i:i+1], i, i+1)
			i++
		}
	}

	return string(out), starts, ends, nil
}

func decodeEntity(name string) ([]byte, error) {
	switch name {
	case "lt":
		return []byte("<"), nil
	case "gt":
		return []byte(">"), nil
	case "amp":
		return []byte("&"), nil
	case "apos":
		return []byte("'"), nil
	case "quot":
		return []byte(`"`), nil
	}

	if strings.HasPrefix(name, "#") {
		var n uint64
		var err error
		if strings.HasPrefix(name, "#x") {
			n, err = strconv.ParseUint(name[2:], 16, 32)
		} else {
			n, err = strconv.ParseUint(name[1:], 10, 32)
		}
		if err == nil && utf8.ValidRune(rune(n)) {
			buf := make([]byte, utf8.UTFMax)
			return buf[:utf8.EncodeRune(buf, rune(n))], nil
		}
	}
	return nil, fmt.Errorf("无法识别的实体 &%s;", name)
}

// selfClosing 判断开始标签是否为自闭合形式
func selfClosing(raw []byte, s span) bool {
	return bytes.HasSuffix(bytes.TrimRight(s.slice(raw), " \t\r\n"), []byte("/>"))
}

// ExtractText 返回部件的逻辑文本
func ExtractText(raw []byte) (string, error) {
	stream, err := Project(raw)
	if err != nil {
		return "", err
	}
	return stream.Text(), nil
}
