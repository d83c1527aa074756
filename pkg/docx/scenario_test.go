package docx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_ComplexSplitKeyword(t *testing.T) {
	// Word 保存的文档带缩进，段落内的空白不属于文本
	body := `
		<w:p>
			<w:r>
				<w:t>#</w:t>
			</w:r>
			<w:r>
				<w:rPr>
					<w:b/>
				</w:rPr>
				<w:t>结构</w:t>
			</w:r>
			<w:proofErr w:type="gramStart"/>
			<w:r>
				<w:t>及</w:t>
			</w:r>
			<w:r>
				<w:rPr>
					<w:i/>
				</w:rPr>
				<w:t>组成</w:t>
			</w:r>
			<w:r>
				<w:t>#</w:t>
			</w:r>
		</w:p>
	`
	path := createTestDocx(t, map[string]string{DocumentPart: wordDocument(body)})
	doc := openTestDocument(t, path)

	count, err := doc.ReplaceText("#结构及组成#", "复杂替换内容")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	text, err := doc.ExtractText(DocumentPart)
	require.NoError(t, err)
	assert.Equal(t, "复杂替换内容", text)

	raw, ok := readZipPart(t, path, DocumentPart)
	require.True(t, ok)
	assert.Contains(t, raw, "<w:b/>")
	assert.Contains(t, raw, "<w:i/>")
	assert.Contains(t, raw, `<w:proofErr w:type="gramStart"/>`)
}

func TestScenario_MixedContentTwoRounds(t *testing.T) {
	body := `<w:p>` +
		`<w:r><w:t>#</w:t></w:r><w:r><w:t>Company</w:t></w:r><w:r><w:t>Name</w:t></w:r><w:r><w:t>#</w:t></w:r>` +
		`<w:r><w:t xml:space="preserve"> (公司) &amp; </w:t></w:r>` +
		`<w:r><w:t>#</w:t></w:r><w:r><w:t>数字</w:t></w:r><w:r><w:t>123</w:t></w:r><w:r><w:t>#</w:t></w:r>` +
		`</w:p>`
	path := createTestDocx(t, map[string]string{DocumentPart: wordDocument(body)})
	doc := openTestDocument(t, path)

	count, err := doc.ReplaceTexts(map[string]string{
		"#CompanyName#": "TechCorp技术公司",
		"#数字123#":      "编号456",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	text, err := doc.ExtractText(DocumentPart)
	require.NoError(t, err)
	assert.Equal(t, "TechCorp技术公司 (公司) & 编号456", text)

	// 第二轮替换上一轮写入的内容
	count, err = doc.ReplaceTexts(map[string]string{
		"TechCorp技术公司": "SuperTech超级科技",
		"编号456":        "ID<789>",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	text, err = doc.ExtractText(DocumentPart)
	require.NoError(t, err)
	assert.Equal(t, "SuperTech超级科技 (公司) & ID<789>", text)

	raw, ok := readZipPart(t, path, DocumentPart)
	require.True(t, ok)
	assert.Contains(t, raw, "(公司) &amp; ")
	assert.Contains(t, raw, "ID&lt;789&gt;")
}

func TestScenario_ReopenAndReplace(t *testing.T) {
	path := createTestDocx(t, map[string]string{
		DocumentPart: wordDocument(`<w:p><w:r><w:t>版本：#VER</w:t></w:r><w:r><w:t>SION#</w:t></w:r></w:p>`),
	})

	for i, version := range []string{"v1", "v2"} {
		doc, err := Open(path)
		require.NoError(t, err)

		needle := "#VERSION#"
		if i > 0 {
			needle = "v1"
		}
		count, err := doc.ReplaceText(needle, version)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		require.NoError(t, doc.Close())
	}

	doc := openTestDocument(t, path)
	text, err := doc.ExtractText(DocumentPart)
	require.NoError(t, err)
	assert.Equal(t, "版本：v2", text)
}
