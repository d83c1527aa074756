package docx

import (
	"errors"
	"fmt"
)

var (
	// ErrImageNotFound 图片文件不存在
	ErrImageNotFound = errors.New("图片文件不存在")
	// ErrNoMatch 文档中未找到要替换的文本
	ErrNoMatch = errors.New("未找到匹配文本")
	// ErrRelationshipNamespace 关系部件缺少 Relationships 根元素
	ErrRelationshipNamespace = errors.New("关系部件无效")
	// ErrClosed 文档已关闭
	ErrClosed = errors.New("文档已关闭")
)

// ContainerError 打开或保存 DOCX 压缩包失败
type ContainerError struct {
	Op    string
	Path  string
	Cause error
}

func (e *ContainerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s 失败: %v", e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s %s 失败", e.Op, e.Path)
}

func (e *ContainerError) Unwrap() error {
	return e.Cause
}

// MalformedXMLError 部件内容不是合法的 XML
type MalformedXMLError struct {
	Part  string
	Cause error
}

func (e *MalformedXMLError) Error() string {
	if e.Part == "" {
		return fmt.Sprintf("解析XML失败: %v", e.Cause)
	}
	return fmt.Sprintf("解析XML %s 失败: %v", e.Part, e.Cause)
}

func (e *MalformedXMLError) Unwrap() error {
	return e.Cause
}

// withPart 给 MalformedXMLError 补上部件路径
func withPart(err error, part string) error {
	var mErr *MalformedXMLError
	if errors.As(err, &mErr) && mErr.Part == "" {
		return &MalformedXMLError{Part: part, Cause: mErr.Cause}
	}
	return err
}

// IsContainerError 检查是否为压缩包错误
func IsContainerError(err error) bool {
	var cErr *ContainerError
	return errors.As(err, &cErr)
}

// IsMalformedXMLError 检查是否为XML格式错误
func IsMalformedXMLError(err error) bool {
	var mErr *MalformedXMLError
	return errors.As(err, &mErr)
}

// IsNoMatch 检查是否为未匹配错误
func IsNoMatch(err error) bool {
	return errors.Is(err, ErrNoMatch)
}
