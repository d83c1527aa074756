package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allanpk716/docx-image-replacer/pkg/docx"
)

func docxBytes(t *testing.T, body string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	parts := []struct{ name, content string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="xml" ContentType="application/xml"/></Types>`},
		{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body + `</w:body></w:document>`},
		{"word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`},
	}
	for _, part := range parts {
		f, err := w.Create(part.name)
		require.NoError(t, err)
		_, err = f.Write([]byte(part.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

type formFile struct {
	field, name string
	data        []byte
}

func newReplaceRequest(t *testing.T, job string, files ...formFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if job != "" {
		require.NoError(t, w.WriteField("job", job))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/replace", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// responseBodyText 把返回的 docx 写到临时文件并读取正文文本
func responseBodyText(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "resp.docx")
	require.NoError(t, os.WriteFile(path, data, 0644))

	doc, err := docx.Open(path)
	require.NoError(t, err)
	defer doc.Close()

	text, err := doc.ExtractText(docx.DocumentPart)
	require.NoError(t, err)
	return text
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestReplaceAPI_Health(t *testing.T) {
	app := NewApp(ServerOptions{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestReplaceAPI_Replace(t *testing.T) {
	app := NewApp(ServerOptions{WorkDir: t.TempDir()})

	document := docxBytes(t, `<w:p><w:r><w:t>客户：#NA</w:t></w:r><w:r><w:t>ME#</w:t></w:r></w:p><w:p><w:r><w:t>#LOGO#</w:t></w:r></w:p>`)
	job := `{
		"keywords": [{"key": "NAME", "value": "李四"}, {"key": "MISSING", "value": "x"}],
		"images": [{"key": "LOGO", "path": "logo"}],
		"wrap_keys": true
	}`

	resp, err := app.Test(newReplaceRequest(t, job,
		formFile{field: "document", name: "合同.docx", data: document},
		formFile{field: "logo", name: "logo.png", data: pngBytes(t, 8, 4)},
	), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, DocxContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, "1", resp.Header.Get("X-Replacements"))
	assert.Equal(t, "1", resp.Header.Get("X-Image-Replacements"))
	assert.Equal(t, url.QueryEscape("#MISSING#"), resp.Header.Get("X-Unmatched-Keywords"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), url.PathEscape("合同_processed.docx"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "客户：李四", responseBodyText(t, data))
}

func TestReplaceAPI_StrictNoMatch(t *testing.T) {
	app := NewApp(ServerOptions{WorkDir: t.TempDir()})

	resp, err := app.Test(newReplaceRequest(t, `{"keywords": [{"key": "#X#", "value": "y"}], "strict": true}`,
		formFile{field: "document", name: "a.docx", data: docxBytes(t, `<w:p><w:r><w:t>nothing</w:t></w:r></w:p>`)},
	), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeError(t, resp)
	assert.Equal(t, docx.ErrNoMatch.Error(), body.Error)
	assert.Equal(t, "#X#", body.Detail)
}

func TestReplaceAPI_BadRequests(t *testing.T) {
	document := formFile{field: "document", name: "a.docx", data: docxBytes(t, `<w:p/>`)}
	validJob := `{"keywords": [{"key": "#X#", "value": "y"}]}`

	tests := []struct {
		name  string
		job   string
		files []formFile
	}{
		{name: "missing document", job: validJob},
		{name: "not a docx name", job: validJob, files: []formFile{{field: "document", name: "a.txt", data: []byte("x")}}},
		{name: "missing job", files: []formFile{document}},
		{name: "invalid json", job: `{"keywords": [`, files: []formFile{document}},
		{name: "empty job", job: `{"keywords": []}`, files: []formFile{document}},
		{name: "missing image file", job: `{"keywords": [], "images": [{"key": "#L#", "path": "logo"}]}`, files: []formFile{document}},
		{name: "corrupt docx", job: validJob, files: []formFile{{field: "document", name: "a.docx", data: []byte("not a zip")}}},
	}

	app := NewApp(ServerOptions{WorkDir: t.TempDir()})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(newReplaceRequest(t, tt.job, tt.files...), -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			body := decodeError(t, resp)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestReplaceAPI_CleansWorkDir(t *testing.T) {
	workDir := t.TempDir()
	app := NewApp(ServerOptions{WorkDir: workDir})

	resp, err := app.Test(newReplaceRequest(t, `{"keywords": [{"key": "a", "value": "b"}]}`,
		formFile{field: "document", name: "a.docx", data: docxBytes(t, `<w:p><w:r><w:t>a</w:t></w:r></w:p>`)},
	), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
