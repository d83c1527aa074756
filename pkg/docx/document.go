package docx

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/allanpk716/docx-image-replacer/internal/domain"
	"github.com/allanpk716/docx-image-replacer/internal/matcher"
)

var docPrID = regexp.MustCompile(`<wp:docPr\b[^>]*?\sid="(\d+)"`)

// Option 文档选项
type Option func(*Document)

// WithImageTemplate 使用自定义的图片块模板，模板中可以使用
// {RID}、{WIDTH}、{HEIGHT}、{ID}、{NAME} 占位符
func WithImageTemplate(tpl string) Option {
	return func(d *Document) {
		if tpl != "" {
			d.template = tpl
		}
	}
}

// WithLiteralOnly 文本替换只处理完整位于单个文本节点内的匹配
func WithLiteralOnly() Option {
	return func(d *Document) {
		d.literalOnly = true
	}
}

// Document 一个打开的 DOCX 文档。
// 每个编辑操作都会读取当前内容、在内存中完成全部修改后一次性写回，
// 失败时文档保持调用前的状态。Document 不支持并发调用。
type Document struct {
	path        string
	archive     *archive
	template    string
	literalOnly bool
	matcher     domain.TextMatcher
}

// Open 打开 DOCX 文档
func Open(path string, opts ...Option) (*Document, error) {
	a, err := openArchive(path)
	if err != nil {
		return nil, err
	}

	d := &Document{
		path:     path,
		archive:  a,
		template: DefaultImageTemplate,
		matcher:  matcher.NewTextMatcher(),
	}
	for _, opt := range opts {
		opt(d)
	}

	log.Debugf("打开文档: %s", path)
	return d, nil
}

// Path 返回文档路径
func (d *Document) Path() string {
	return d.path
}

// Save 每个编辑操作都已落盘，Save 只检查文档是否仍处于打开状态
func (d *Document) Save() error {
	if d.archive == nil {
		return ErrClosed
	}
	return nil
}

// Close 关闭文档，重复调用是安全的
func (d *Document) Close() error {
	if d.archive == nil {
		return nil
	}
	err := d.archive.close()
	d.archive = nil
	return err
}

// TextParts 返回参与文本替换的部件：页眉、页脚，最后是正文
func (d *Document) TextParts() ([]string, error) {
	if d.archive == nil {
		return nil, ErrClosed
	}

	var headers, footers []string
	for _, name := range d.archive.names() {
		if !isHeaderFooterPart(name) {
			continue
		}
		if strings.HasPrefix(name, "word/header") {
			headers = append(headers, name)
		} else {
			footers = append(footers, name)
		}
	}
	sort.Strings(headers)
	sort.Strings(footers)

	parts := append(headers, footers...)
	return append(parts, DocumentPart), nil
}

// ExtractText 返回部件的逻辑文本
func (d *Document) ExtractText(part string) (string, error) {
	if d.archive == nil {
		return "", ErrClosed
	}

	raw, err := d.archive.read(part)
	if err != nil {
		return "", err
	}

	text, err := ExtractText(raw)
	if err != nil {
		return "", withPart(err, part)
	}
	return text, nil
}

// ReplaceText 在页眉、页脚和正文中把所有 from 替换为 to，返回替换次数。
// 没有匹配时文档保持不变，返回 0。
func (d *Document) ReplaceText(from, to string) (int, error) {
	return d.ReplaceTexts(map[string]string{from: to})
}

// ReplaceTexts 依次执行多组替换，所有部件修改完成后一次性写回。
// 较长的键先替换，相同长度按字典序，保证结果与 map 的遍历顺序无关。
func (d *Document) ReplaceTexts(texts map[string]string) (int, error) {
	stats, err := d.ReplaceTextsWithStats(texts)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, s := range stats {
		total += s.Occurrences
	}
	return total, nil
}

// ReplaceTextsWithStats 与 ReplaceTexts 相同，但按关键词返回替换统计，
// 顺序与替换顺序一致，没有匹配的关键词 Occurrences 为 0
func (d *Document) ReplaceTextsWithStats(texts map[string]string) ([]domain.ReplacementStats, error) {
	if d.archive == nil {
		return nil, ErrClosed
	}

	keys := make([]string, 0, len(texts))
	for from := range texts {
		if from == "" {
			return nil, fmt.Errorf("替换文本不能为空")
		}
		keys = append(keys, from)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	stats := make([]domain.ReplacementStats, len(keys))
	for i, key := range keys {
		stats[i] = domain.ReplacementStats{Keyword: key, Parts: make(map[string]int)}
	}

	parts, err := d.TextParts()
	if err != nil {
		return nil, err
	}

	changes := make(map[string][]byte)
	for _, part := range parts {
		raw, err := d.archive.read(part)
		if err != nil {
			return nil, err
		}

		content := raw
		partCount := 0
		for i, from := range keys {
			out, n, err := d.replaceInPart(content, from, texts[from])
			if err != nil {
				return nil, withPart(err, part)
			}
			if n > 0 {
				content = out
				partCount += n
				stats[i].Occurrences += n
				stats[i].Parts[part] = n
			}
		}

		if partCount > 0 {
			changes[part] = content
			log.Debugf("部件 %s 替换 %d 处", part, partCount)
		}
	}

	if err := d.archive.commit(changes); err != nil {
		return nil, err
	}
	return stats, nil
}

// replaceInPart 在单个部件中替换文本
func (d *Document) replaceInPart(raw []byte, from, to string) ([]byte, int, error) {
	if from == to {
		return raw, 0, nil
	}
	if d.literalOnly {
		return ReplaceLiteral(raw, from, to)
	}

	stream, err := Project(raw)
	if err != nil {
		return nil, 0, err
	}

	matches := d.matcher.FindAll(stream, from)
	if len(matches) == 0 {
		return raw, 0, nil
	}

	out, err := SpliceAll(stream, matches, domain.TextPayload(to))
	if err != nil {
		return nil, 0, err
	}
	return out, len(matches), nil
}

// ReplaceTextToImage 把正文中第一处 text 替换为图片，返回新图片的关系ID。
// 图片不存在时返回 ErrImageNotFound，没有匹配时返回 ErrNoMatch，
// 两种情况下文档都不会被修改。
func (d *Document) ReplaceTextToImage(text, imagePath string) (string, error) {
	if d.archive == nil {
		return "", ErrClosed
	}
	if text == "" {
		return "", fmt.Errorf("替换文本不能为空")
	}

	info, err := ReadImageInfo(imagePath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("读取图片 %s 失败: %w", imagePath, err)
	}

	body, err := d.archive.read(DocumentPart)
	if err != nil {
		return "", err
	}
	stream, err := Project(body)
	if err != nil {
		return "", withPart(err, DocumentPart)
	}

	match, ok := d.matcher.FindFirst(stream, text)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoMatch, text)
	}

	changes := make(map[string][]byte)

	name := mediaName(info)
	var relsRaw []byte
	if d.archive.has(RelationshipsPart) {
		if relsRaw, err = d.archive.read(RelationshipsPart); err != nil {
			return "", err
		}
	}
	rels, relID, err := AddRelationship(relsRaw, ImageRelationshipType, "media/"+name)
	if err != nil {
		return "", err
	}
	changes[RelationshipsPart] = rels
	changes[MediaDir+name] = data

	if d.archive.has(ContentTypesPart) {
		types, err := d.archive.read(ContentTypesPart)
		if err != nil {
			return "", err
		}
		updated, changed, err := EnsureDefaultContentType(types, info.Extension(), info.ContentType())
		if err != nil {
			return "", err
		}
		if changed {
			changes[ContentTypesPart] = updated
		}
	}

	block := ImageBlock(d.template, relID, info, nextDocPrID(body), name)
	out, err := Splice(stream, match, domain.BlockPayload(block))
	if err != nil {
		return "", withPart(err, DocumentPart)
	}
	changes[DocumentPart] = out

	if err := d.archive.commit(changes); err != nil {
		return "", err
	}

	log.Debugf("图片 %s 已插入 (%s, %dx%d)", imagePath, relID, info.Width, info.Height)
	return relID, nil
}

// nextDocPrID 返回正文中尚未使用的 wp:docPr id
func nextDocPrID(body []byte) int {
	maxID := 0
	for _, m := range docPrID.FindAllSubmatch(body, -1) {
		if n, err := strconv.Atoi(string(m[1])); err == nil && n > maxID {
			maxID = n
		}
	}
	return maxID + 1
}
