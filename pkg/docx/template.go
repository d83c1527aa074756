package docx

import (
	"sort"
	"strconv"
	"strings"
)

// PixelToEMU 像素到 EMU 的换算系数
const PixelToEMU = 8625

// 模板占位符
const (
	PlaceholderRID    = "{RID}"
	PlaceholderWidth  = "{WIDTH}"
	PlaceholderHeight = "{HEIGHT}"
	PlaceholderID     = "{ID}"
	PlaceholderName   = "{NAME}"
)

// DefaultImageTemplate 默认的内嵌图片块，是一个完整的 w:r
const DefaultImageTemplate = `<w:r><w:drawing xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
	`<wp:inline distT="0" distB="0" distL="0" distR="0">` +
	`<wp:extent cx="{WIDTH}" cy="{HEIGHT}"/>` +
	`<wp:effectExtent l="0" t="0" r="0" b="0"/>` +
	`<wp:docPr id="{ID}" name="{NAME}"/>` +
	`<wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/></wp:cNvGraphicFramePr>` +
	`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">` +
	`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
	`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
	`<pic:nvPicPr><pic:cNvPr id="0" name="{NAME}"/><pic:cNvPicPr/></pic:nvPicPr>` +
	`<pic:blipFill><a:blip r:embed="{RID}"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>` +
	`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="{WIDTH}" cy="{HEIGHT}"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>` +
	`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`

// RenderTemplate 用字面替换填充占位符，占位符之间互不影响
func RenderTemplate(tpl string, values map[string]string) string {
	if len(values) == 0 {
		return tpl
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	// 较长的占位符优先，避免前缀冲突
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, values[k])
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// ImageBlock 渲染图片块，宽高从像素换算为 EMU
func ImageBlock(tpl, relID string, info ImageInfo, docPrID int, name string) string {
	return RenderTemplate(tpl, map[string]string{
		PlaceholderRID:    relID,
		PlaceholderWidth:  strconv.FormatInt(int64(info.Width)*PixelToEMU, 10),
		PlaceholderHeight: strconv.FormatInt(int64(info.Height)*PixelToEMU, 10),
		PlaceholderID:     strconv.Itoa(docPrID),
		PlaceholderName:   EscapeAttr(name),
	})
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// EscapeAttr 转义 XML 属性值
func EscapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
