package docx

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/beevik/etree"
)

const (
	// ImageRelationshipType 图片关系类型
	ImageRelationshipType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	relationshipsNS = "http://schemas.openxmlformats.org/package/2006/relationships"
)

var relIDNumber = regexp.MustCompile(`\d+`)

// Relationships 关系部件 (word/_rels/document.xml.rels)
type Relationships struct {
	doc *etree.Document
}

// NewRelationships 创建空的关系部件
func NewRelationships() *Relationships {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("Relationships")
	root.CreateAttr("xmlns", relationshipsNS)
	return &Relationships{doc: doc}
}

// ParseRelationships 解析关系部件
func ParseRelationships(raw []byte) (*Relationships, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, &MalformedXMLError{Part: RelationshipsPart, Cause: err}
	}

	root := doc.Root()
	if root == nil || root.Tag != "Relationships" {
		return nil, ErrRelationshipNamespace
	}
	return &Relationships{doc: doc}, nil
}

// IDs 返回所有已有的关系ID
func (r *Relationships) IDs() []string {
	var ids []string
	for _, rel := range r.doc.Root().SelectElements("Relationship") {
		ids = append(ids, rel.SelectAttrValue("Id", ""))
	}
	return ids
}

// Target 返回关系ID对应的目标
func (r *Relationships) Target(id string) (string, bool) {
	for _, rel := range r.doc.Root().SelectElements("Relationship") {
		if rel.SelectAttrValue("Id", "") == id {
			return rel.SelectAttrValue("Target", ""), true
		}
	}
	return "", false
}

// Add 追加一条关系，返回新分配的ID。ID 总是已有最大编号加一，不会复用空缺。
func (r *Relationships) Add(relType, target string) (string, error) {
	if relType == "" || target == "" {
		return "", fmt.Errorf("关系类型和目标不能为空")
	}

	id := NextRelationshipID(r.IDs())

	rel := r.doc.Root().CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)

	return id, nil
}

// Bytes 序列化关系部件
func (r *Relationships) Bytes() ([]byte, error) {
	return r.doc.WriteToBytes()
}

// NextRelationshipID 根据已有ID计算下一个ID。
// 每个ID取第一段数字作为编号，没有数字的ID按 0 处理；没有任何ID时返回 rId1。
func NextRelationshipID(ids []string) string {
	maxID := 0
	for _, id := range ids {
		digits := relIDNumber.FindString(id)
		if digits == "" {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		if n > maxID {
			maxID = n
		}
	}
	return "rId" + strconv.Itoa(maxID+1)
}

// AddRelationship 在原始关系部件中追加一条关系，返回新的部件内容和关系ID。
// raw 为空时创建新的关系部件。
func AddRelationship(raw []byte, relType, target string) ([]byte, string, error) {
	var rels *Relationships
	if len(raw) == 0 {
		rels = NewRelationships()
	} else {
		parsed, err := ParseRelationships(raw)
		if err != nil {
			return nil, "", err
		}
		rels = parsed
	}

	id, err := rels.Add(relType, target)
	if err != nil {
		return nil, "", err
	}

	out, err := rels.Bytes()
	if err != nil {
		return nil, "", fmt.Errorf("序列化关系部件失败: %w", err)
	}
	return out, id, nil
}
