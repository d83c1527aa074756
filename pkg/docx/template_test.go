package docx

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	assert.Equal(t, "rId8:100x200", RenderTemplate("{RID}:{WIDTH}x{HEIGHT}", map[string]string{
		"{RID}":    "rId8",
		"{WIDTH}":  "100",
		"{HEIGHT}": "200",
	}))

	// 替换结果不会被再次替换
	assert.Equal(t, "{B}x", RenderTemplate("{A}{B}", map[string]string{"{A}": "{B}", "{B}": "x"}))

	assert.Equal(t, "{A}", RenderTemplate("{A}", nil))
}

func TestImageBlock(t *testing.T) {
	info := ImageInfo{Width: 10, Height: 20, Format: "png"}
	block := ImageBlock(DefaultImageTemplate, "rId8", info, 3, `a"b.png`)

	assert.Contains(t, block, `r:embed="rId8"`)
	assert.Contains(t, block, `cx="`+strconv.Itoa(10*PixelToEMU)+`"`)
	assert.Contains(t, block, `cy="`+strconv.Itoa(20*PixelToEMU)+`"`)
	assert.Contains(t, block, `<wp:docPr id="3" name="a&quot;b.png"/>`)
	assert.False(t, strings.ContainsAny(block, "{}"), "所有占位符都应被替换")

	// 渲染后的块必须是合法的 XML 片段
	_, err := Project([]byte(`<w:p ` + testWordNS + `>` + block + `</w:p>`))
	require.NoError(t, err)
}
