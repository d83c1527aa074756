package docx

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DOCX 中固定位置的部件
const (
	DocumentPart             = "word/document.xml"
	HeaderPart               = "word/header1.xml"
	FooterPart               = "word/footer1.xml"
	RelationshipsPart        = "word/_rels/document.xml.rels"
	PackageRelationshipsPart = "_rels/.rels"
	ContentTypesPart         = "[Content_Types].xml"
	CustomPropertiesPart     = "docProps/custom.xml"
	MediaDir                 = "word/media/"
)

var errPartNotFound = errors.New("部件不存在")

// archive 对 DOCX 压缩包的独占访问。每次 commit 都会写入临时文件、
// 原子替换原文件并重新打开，之后的读取总能看到最新内容。
type archive struct {
	path   string
	reader *zip.ReadCloser
	files  map[string]*zip.File
}

// openArchive 打开 DOCX 压缩包
func openArchive(path string) (*archive, error) {
	a := &archive{path: path}
	if err := a.reopen(); err != nil {
		return nil, &ContainerError{Op: "打开DOCX文件", Path: path, Cause: err}
	}

	if !a.has(DocumentPart) {
		a.close()
		return nil, &ContainerError{Op: "打开DOCX文件", Path: path, Cause: fmt.Errorf("缺少 %s", DocumentPart)}
	}

	return a, nil
}

// reopen 重新打开压缩包并建立部件索引
func (a *archive) reopen() error {
	reader, err := zip.OpenReader(a.path)
	if err != nil {
		return err
	}

	a.reader = reader
	a.files = make(map[string]*zip.File, len(reader.File))
	for _, file := range reader.File {
		a.files[file.Name] = file
	}
	return nil
}

// has 检查部件是否存在
func (a *archive) has(name string) bool {
	_, ok := a.files[name]
	return ok
}

// read 读取部件内容
func (a *archive) read(name string) ([]byte, error) {
	file, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errPartNotFound, name)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("打开文件 %s 失败: %w", name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("读取文件 %s 失败: %w", name, err)
	}
	return content, nil
}

// names 按压缩包中的顺序返回所有部件路径
func (a *archive) names() []string {
	names := make([]string, 0, len(a.reader.File))
	for _, file := range a.reader.File {
		names = append(names, file.Name)
	}
	return names
}

// commit 把修改过的部件和新增部件一次性写回压缩包
func (a *archive) commit(changes map[string][]byte) error {
	if len(changes) == 0 {
		return nil
	}

	tmpPath, err := a.writeTemp(changes)
	if err != nil {
		return &ContainerError{Op: "保存DOCX文件", Path: a.path, Cause: err}
	}

	// Windows 下必须先关闭读取句柄才能替换文件
	a.reader.Close()

	if err := os.Rename(tmpPath, a.path); err != nil {
		os.Remove(tmpPath)
		if reopenErr := a.reopen(); reopenErr != nil {
			err = errors.Join(err, reopenErr)
		}
		return &ContainerError{Op: "保存DOCX文件", Path: a.path, Cause: err}
	}

	if err := a.reopen(); err != nil {
		return &ContainerError{Op: "重新打开DOCX文件", Path: a.path, Cause: err}
	}
	return nil
}

// writeTemp 在原文件所在目录生成新的压缩包，返回临时文件路径
func (a *archive) writeTemp(changes map[string][]byte) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(a.path), ".docx-save-*.tmp")
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}

	zipWriter := zip.NewWriter(tmp)

	for _, file := range a.reader.File {
		content, changed := changes[file.Name]
		if !changed {
			// 未修改的部件原样拷贝，不重新压缩
			if err := zipWriter.Copy(file); err != nil {
				return fail(fmt.Errorf("拷贝文件 %s 失败: %w", file.Name, err))
			}
			continue
		}

		header := &zip.FileHeader{
			Name:     file.Name,
			Method:   file.Method,
			Modified: file.Modified,
		}
		if err := writeEntry(zipWriter, header, content); err != nil {
			return fail(err)
		}
	}

	var added []string
	for name := range changes {
		if !a.has(name) {
			added = append(added, name)
		}
	}
	sort.Strings(added)

	for _, name := range added {
		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		if err := writeEntry(zipWriter, header, changes[name]); err != nil {
			return fail(err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fail(fmt.Errorf("关闭ZIP写入器失败: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("关闭临时文件失败: %w", err)
	}

	if info, err := os.Stat(a.path); err == nil {
		os.Chmod(tmpPath, info.Mode().Perm())
	}
	return tmpPath, nil
}

// writeEntry 写入单个压缩包条目
func writeEntry(zipWriter *zip.Writer, header *zip.FileHeader, content []byte) error {
	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("创建ZIP文件头 %s 失败: %w", header.Name, err)
	}
	if _, err := writer.Write(content); err != nil {
		return fmt.Errorf("写入文件 %s 失败: %w", header.Name, err)
	}
	return nil
}

// close 关闭压缩包
func (a *archive) close() error {
	if a.reader == nil {
		return nil
	}
	err := a.reader.Close()
	a.reader = nil
	a.files = nil
	return err
}

// isHeaderFooterPart 判断部件是否为页眉或页脚
func isHeaderFooterPart(name string) bool {
	return (strings.HasPrefix(name, "word/header") || strings.HasPrefix(name, "word/footer")) &&
		strings.HasSuffix(name, ".xml") && !strings.Contains(name[len("word/"):], "/")
}
