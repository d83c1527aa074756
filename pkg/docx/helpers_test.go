package docx

import (
	"archive/zip"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testWordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

	testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

	testPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

	testDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/><Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings" Target="settings.xml"/><Relationship Id="rId7" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/fontTable" Target="fontTable.xml"/></Relationships>`
)

// wordDocument 用段落内容拼出完整的 document.xml
func wordDocument(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document ` + testWordNS + `><w:body>` + body + `</w:body></w:document>`
}

// wordPart 用段落内容拼出页眉或页脚
func wordPart(root, body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:` + root + ` ` + testWordNS + `>` + body + `</w:` + root + `>`
}

// createTestDocx 在临时目录创建测试用的 docx，parts 会覆盖默认部件
func createTestDocx(t *testing.T, parts map[string]string) string {
	t.Helper()

	files := map[string]string{
		ContentTypesPart:  testContentTypes,
		"_rels/.rels":     testPackageRels,
		RelationshipsPart: testDocumentRels,
	}
	for name, content := range parts {
		files[name] = content
	}

	path := filepath.Join(t.TempDir(), "test.docx")
	writeDocx(t, path, files)
	return path
}

// writeDocx 按固定顺序写出 docx 压缩包
func writeDocx(t *testing.T, path string, parts map[string]string) {
	t.Helper()

	files := make(map[string]string, len(parts))
	for name, content := range parts {
		files[name] = content
	}

	file, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(file)
	for _, name := range []string{ContentTypesPart, "_rels/.rels", DocumentPart, RelationshipsPart} {
		if content, ok := files[name]; ok {
			writeZipEntry(t, w, name, content)
			delete(files, name)
		}
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writeZipEntry(t, w, name, files[name])
	}

	require.NoError(t, w.Close())
	require.NoError(t, file.Close())
}

func writeZipEntry(t *testing.T, w *zip.Writer, name, content string) {
	t.Helper()
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
}

// readZipPart 读取 docx 中的部件，不存在时返回 false
func readZipPart(t *testing.T, path, name string) (string, bool) {
	t.Helper()

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()

		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(content), true
	}
	return "", false
}

// zipPartNames 返回 docx 中所有部件路径
func zipPartNames(t *testing.T, path string) []string {
	t.Helper()

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

// writeTestPNG 生成指定尺寸的 PNG 图片
func writeTestPNG(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}

	path := filepath.Join(t.TempDir(), "image.png")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())
	return path
}
