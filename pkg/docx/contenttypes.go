package docx

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// EnsureDefaultContentType 确保 [Content_Types].xml 中存在扩展名的默认类型，
// 已存在时原样返回，changed 为 false
func EnsureDefaultContentType(raw []byte, ext, contentType string) ([]byte, bool, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" || contentType == "" {
		return nil, false, fmt.Errorf("扩展名和内容类型不能为空")
	}

	doc, root, err := parseContentTypes(raw)
	if err != nil {
		return nil, false, err
	}

	insertAt := 0
	for _, def := range root.SelectElements("Default") {
		if strings.EqualFold(def.SelectAttrValue("Extension", ""), ext) {
			return raw, false, nil
		}
		insertAt = def.Index() + 1
	}

	def := etree.NewElement("Default")
	def.CreateAttr("Extension", ext)
	def.CreateAttr("ContentType", contentType)
	root.InsertChildAt(insertAt, def)

	return writeContentTypes(doc)
}

// EnsureOverrideContentType 确保部件有对应的 Override 类型，partName 以 / 开头
func EnsureOverrideContentType(raw []byte, partName, contentType string) ([]byte, bool, error) {
	if partName == "" || contentType == "" {
		return nil, false, fmt.Errorf("部件名和内容类型不能为空")
	}
	if !strings.HasPrefix(partName, "/") {
		partName = "/" + partName
	}

	doc, root, err := parseContentTypes(raw)
	if err != nil {
		return nil, false, err
	}

	for _, override := range root.SelectElements("Override") {
		if strings.EqualFold(override.SelectAttrValue("PartName", ""), partName) {
			return raw, false, nil
		}
	}

	override := root.CreateElement("Override")
	override.CreateAttr("PartName", partName)
	override.CreateAttr("ContentType", contentType)

	return writeContentTypes(doc)
}

func parseContentTypes(raw []byte) (*etree.Document, *etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, nil, &MalformedXMLError{Part: ContentTypesPart, Cause: err}
	}

	root := doc.Root()
	if root == nil || root.Tag != "Types" {
		return nil, nil, &MalformedXMLError{Part: ContentTypesPart, Cause: fmt.Errorf("缺少 Types 根元素")}
	}
	return doc, root, nil
}

func writeContentTypes(doc *etree.Document) ([]byte, bool, error) {
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, false, fmt.Errorf("序列化 %s 失败: %w", ContentTypesPart, err)
	}
	return out, true, nil
}
