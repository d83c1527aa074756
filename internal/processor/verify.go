package processor

import (
	"fmt"

	nguyendocx "github.com/nguyenthenguyen/docx"

	"github.com/allanpk716/docx-image-replacer/internal/matcher"
	"github.com/allanpk716/docx-image-replacer/pkg/docx"
)

// Verifier 用独立的 docx 读取器重新打开输出文件，检查关键词是否仍残留在正文中
type Verifier struct{}

// NewVerifier 创建校验器
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Residual 返回仍出现在正文逻辑文本中的关键词
func (v *Verifier) Residual(path string, keywords []string) ([]string, error) {
	r, err := nguyendocx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("重新打开输出文件失败: %w", err)
	}
	defer r.Close()

	stream, err := docx.Project([]byte(r.Editable().GetContent()))
	if err != nil {
		return nil, fmt.Errorf("解析输出正文失败: %w", err)
	}

	var residual []string
	for _, keyword := range keywords {
		if keyword != "" && matcher.CountMatches(stream, keyword) > 0 {
			residual = append(residual, keyword)
		}
	}
	return residual, nil
}
