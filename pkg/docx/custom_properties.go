package docx

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/gofiber/fiber/v2/log"
)

const (
	// HistoryPropertyName 保存替换历史的自定义属性名
	HistoryPropertyName = "DocxReplacerHistory"

	// CustomPropertiesRelType 自定义属性部件的包级关系类型
	CustomPropertiesRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/custom-properties"
	// CustomPropertiesContentType 自定义属性部件的内容类型
	CustomPropertiesContentType = "application/vnd.openxmlformats-officedocument.custom-properties+xml"

	customPropertiesNS = "http://schemas.openxmlformats.org/officeDocument/2006/custom-properties"
	docPropsVTypesNS   = "http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"
	propertyFmtID      = "{D5CDD505-2E9C-101B-9397-08002B2CF9AE}"
)

// 替换记录的类型
const (
	RecordText  = "text"
	RecordImage = "image"
)

// ReplacementRecord 一个关键词的替换记录
type ReplacementRecord struct {
	Keyword     string    `json:"keyword"`
	Replacement string    `json:"replacement"`
	Kind        string    `json:"kind"`
	Count       int       `json:"count"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

// ReplacementHistory 替换历史，每个关键词一条记录
type ReplacementHistory struct {
	Records []ReplacementRecord `json:"records"`
}

// Add 添加或更新关键词的记录，已存在时版本号加一
func (h *ReplacementHistory) Add(record ReplacementRecord) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	for i, existing := range h.Records {
		if existing.Keyword == record.Keyword {
			record.Version = existing.Version + 1
			h.Records[i] = record
			return
		}
	}

	record.Version = 1
	h.Records = append(h.Records, record)
}

// Find 查找关键词的记录
func (h *ReplacementHistory) Find(keyword string) (ReplacementRecord, bool) {
	for _, record := range h.Records {
		if record.Keyword == keyword {
			return record, true
		}
	}
	return ReplacementRecord{}, false
}

// CustomProperties docProps/custom.xml 部件
type CustomProperties struct {
	doc *etree.Document
}

// ParseCustomProperties 解析自定义属性部件，raw 为空时创建新部件
func ParseCustomProperties(raw []byte) (*CustomProperties, error) {
	doc := etree.NewDocument()
	if len(raw) == 0 {
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
		root := doc.CreateElement("Properties")
		root.CreateAttr("xmlns", customPropertiesNS)
		root.CreateAttr("xmlns:vt", docPropsVTypesNS)
		return &CustomProperties{doc: doc}, nil
	}

	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, &MalformedXMLError{Part: CustomPropertiesPart, Cause: err}
	}

	root := doc.Root()
	if root == nil || root.Tag != "Properties" {
		return nil, &MalformedXMLError{Part: CustomPropertiesPart, Cause: fmt.Errorf("缺少 Properties 根元素")}
	}
	if root.SelectAttr("xmlns:vt") == nil {
		root.CreateAttr("xmlns:vt", docPropsVTypesNS)
	}
	return &CustomProperties{doc: doc}, nil
}

// Names 返回所有属性名
func (p *CustomProperties) Names() []string {
	var names []string
	for _, prop := range p.doc.Root().SelectElements("property") {
		names = append(names, prop.SelectAttrValue("name", ""))
	}
	return names
}

// Get 返回属性值，属性值取第一个类型子元素的文本
func (p *CustomProperties) Get(name string) (string, bool) {
	prop := p.find(name)
	if prop == nil {
		return "", false
	}
	children := prop.ChildElements()
	if len(children) == 0 {
		return "", true
	}
	return children[0].Text(), true
}

// Set 设置字符串属性，新属性的 pid 为已有最大值加一
func (p *CustomProperties) Set(name, value string) {
	prop := p.find(name)
	if prop == nil {
		prop = p.doc.Root().CreateElement("property")
		prop.CreateAttr("fmtid", propertyFmtID)
		prop.CreateAttr("pid", strconv.Itoa(p.nextPID()))
		prop.CreateAttr("name", name)
	}

	for _, child := range prop.ChildElements() {
		prop.RemoveChild(child)
	}
	prop.CreateElement("vt:lpwstr").SetText(value)
}

// History 读取替换历史，没有记录时返回空历史
func (p *CustomProperties) History() (*ReplacementHistory, error) {
	history := &ReplacementHistory{}

	value, ok := p.Get(HistoryPropertyName)
	if !ok || value == "" {
		return history, nil
	}
	if err := json.Unmarshal([]byte(value), history); err != nil {
		return nil, fmt.Errorf("解析替换历史失败: %w", err)
	}
	return history, nil
}

// SetHistory 写入替换历史
func (p *CustomProperties) SetHistory(history *ReplacementHistory) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("序列化替换历史失败: %w", err)
	}
	p.Set(HistoryPropertyName, string(data))
	return nil
}

// Bytes 序列化部件
func (p *CustomProperties) Bytes() ([]byte, error) {
	return p.doc.WriteToBytes()
}

func (p *CustomProperties) find(name string) *etree.Element {
	for _, prop := range p.doc.Root().SelectElements("property") {
		if prop.SelectAttrValue("name", "") == name {
			return prop
		}
	}
	return nil
}

// nextPID 自定义属性的 pid 从 2 开始
func (p *CustomProperties) nextPID() int {
	maxPID := 1
	for _, prop := range p.doc.Root().SelectElements("property") {
		if pid, err := strconv.Atoi(prop.SelectAttrValue("pid", "")); err == nil && pid > maxPID {
			maxPID = pid
		}
	}
	return maxPID + 1
}

// ReplacementHistory 读取文档中保存的替换历史
func (d *Document) ReplacementHistory() (*ReplacementHistory, error) {
	if d.archive == nil {
		return nil, ErrClosed
	}
	if !d.archive.has(CustomPropertiesPart) {
		return &ReplacementHistory{}, nil
	}

	raw, err := d.archive.read(CustomPropertiesPart)
	if err != nil {
		return nil, err
	}
	props, err := ParseCustomProperties(raw)
	if err != nil {
		return nil, err
	}
	return props.History()
}

// RecordReplacements 把替换记录合并进文档的自定义属性。
// 文档还没有自定义属性部件时同时注册包级关系和内容类型。
func (d *Document) RecordReplacements(records []ReplacementRecord) error {
	if d.archive == nil {
		return ErrClosed
	}
	if len(records) == 0 {
		return nil
	}

	exists := d.archive.has(CustomPropertiesPart)
	var raw []byte
	if exists {
		var err error
		if raw, err = d.archive.read(CustomPropertiesPart); err != nil {
			return err
		}
	}

	props, err := ParseCustomProperties(raw)
	if err != nil {
		return err
	}
	history, err := props.History()
	if err != nil {
		return err
	}
	for _, record := range records {
		history.Add(record)
	}
	if err := props.SetHistory(history); err != nil {
		return err
	}

	out, err := props.Bytes()
	if err != nil {
		return fmt.Errorf("序列化 %s 失败: %w", CustomPropertiesPart, err)
	}
	changes := map[string][]byte{CustomPropertiesPart: out}

	if !exists {
		var pkgRels []byte
		if d.archive.has(PackageRelationshipsPart) {
			if pkgRels, err = d.archive.read(PackageRelationshipsPart); err != nil {
				return err
			}
		}
		rels, relID, err := AddRelationship(pkgRels, CustomPropertiesRelType, CustomPropertiesPart)
		if err != nil {
			return withPart(err, PackageRelationshipsPart)
		}
		changes[PackageRelationshipsPart] = rels
		log.Debugf("注册自定义属性部件 (%s)", relID)

		if d.archive.has(ContentTypesPart) {
			types, err := d.archive.read(ContentTypesPart)
			if err != nil {
				return err
			}
			updated, changed, err := EnsureOverrideContentType(types, "/"+CustomPropertiesPart, CustomPropertiesContentType)
			if err != nil {
				return err
			}
			if changed {
				changes[ContentTypesPart] = updated
			}
		}
	}

	return d.archive.commit(changes)
}
