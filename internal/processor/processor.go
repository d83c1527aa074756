package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofiber/fiber/v2/log"

	"github.com/allanpk716/docx-image-replacer/internal/domain"
	"github.com/allanpk716/docx-image-replacer/pkg/docx"
)

// Options 文档处理选项
type Options struct {
	LiteralOnly   bool   // 只替换完整位于单个文本节点内的关键词
	ImageTemplate string // 自定义图片块模板，为空时使用内置模板
	VerifyOutput  bool   // 处理完成后重新打开输出文件检查残留关键词
	RecordHistory bool   // 把替换记录写入文档自定义属性
}

// documentProcessor 文档处理器实现
type documentProcessor struct {
	options  Options
	verifier *Verifier
}

// NewDocumentProcessor 创建新的文档处理器
func NewDocumentProcessor(options Options) domain.DocumentProcessor {
	return &documentProcessor{
		options:  options,
		verifier: NewVerifier(),
	}
}

// ProcessDocument 把输入文档复制到输出路径，在副本上依次执行文本替换和图片替换。
// 输入文件不会被修改，处理失败时删除不完整的输出文件。
func (dp *documentProcessor) ProcessDocument(ctx context.Context, inputPath, outputPath string, job domain.Job) (*domain.ProcessResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 验证输入参数
	if err := dp.ValidateDocument(inputPath); err != nil {
		return nil, fmt.Errorf("文档验证失败: %w", err)
	}

	if outputPath == "" {
		return nil, fmt.Errorf("输出路径不能为空")
	}

	if job.Empty() {
		return nil, fmt.Errorf("替换映射不能为空")
	}

	if samePath(inputPath, outputPath) {
		return nil, fmt.Errorf("输出路径不能与输入路径相同: %s", outputPath)
	}

	log.Infof("开始处理文档: %s", inputPath)

	if err := copyFile(inputPath, outputPath); err != nil {
		return nil, err
	}

	result, err := dp.process(ctx, outputPath, job)
	if err != nil {
		os.Remove(outputPath)
		return nil, err
	}

	log.Infof("文档处理完成，已保存到: %s (文本 %d 处，图片 %d 处)",
		outputPath, result.Replacements, result.ImageReplacements)
	return result, nil
}

// process 在输出文件上执行替换
func (dp *documentProcessor) process(ctx context.Context, path string, job domain.Job) (*domain.ProcessResult, error) {
	doc, err := docx.Open(path, dp.documentOptions()...)
	if err != nil {
		return nil, fmt.Errorf("打开文档失败: %w", err)
	}
	defer doc.Close()

	result := &domain.ProcessResult{ProcessedFiles: 1}
	var records []docx.ReplacementRecord

	if len(job.Texts) > 0 {
		stats, err := doc.ReplaceTextsWithStats(job.Texts)
		if err != nil {
			return nil, fmt.Errorf("文本替换失败: %w", err)
		}
		result.Stats = stats
		for _, s := range stats {
			result.Replacements += s.Occurrences
			if s.Occurrences == 0 {
				result.Unmatched = append(result.Unmatched, s.Keyword)
				continue
			}
			records = append(records, docx.ReplacementRecord{
				Keyword:     s.Keyword,
				Replacement: job.Texts[s.Keyword],
				Kind:        docx.RecordText,
				Count:       s.Occurrences,
			})
		}
	}

	for _, key := range sortedKeys(job.Images) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		relID, err := doc.ReplaceTextToImage(key, job.Images[key])
		switch {
		case err == nil:
			result.ImageReplacements++
			records = append(records, docx.ReplacementRecord{
				Keyword:     key,
				Replacement: filepath.Base(job.Images[key]),
				Kind:        docx.RecordImage,
				Count:       1,
			})
			log.Debugf("关键词 %s 已替换为图片 (%s)", key, relID)
		case docx.IsNoMatch(err):
			result.Unmatched = append(result.Unmatched, key)
		default:
			return nil, fmt.Errorf("替换图片关键词 %s 失败: %w", key, err)
		}
	}

	if dp.options.RecordHistory {
		if err := doc.RecordReplacements(records); err != nil {
			return nil, fmt.Errorf("记录替换历史失败: %w", err)
		}
	}

	if err := doc.Close(); err != nil {
		return nil, fmt.Errorf("关闭文档失败: %w", err)
	}

	sort.Strings(result.Unmatched)
	for _, key := range result.Unmatched {
		log.Warnf("文档中未找到关键词: %s", key)
	}

	if dp.options.VerifyOutput {
		residual, err := dp.verifier.Residual(path, jobKeys(job))
		if err != nil {
			return nil, fmt.Errorf("校验输出文件失败: %w", err)
		}
		result.Residual = residual
	}

	result.Success = true
	return result, nil
}

func (dp *documentProcessor) documentOptions() []docx.Option {
	var opts []docx.Option
	if dp.options.LiteralOnly {
		opts = append(opts, docx.WithLiteralOnly())
	}
	if dp.options.ImageTemplate != "" {
		opts = append(opts, docx.WithImageTemplate(dp.options.ImageTemplate))
	}
	return opts
}

// ValidateDocument 验证文档是否有效
func (dp *documentProcessor) ValidateDocument(inputPath string) error {
	if inputPath == "" {
		return fmt.Errorf("输入路径不能为空")
	}

	doc, err := docx.Open(inputPath)
	if err != nil {
		return fmt.Errorf("无法打开文档: %w", err)
	}
	return doc.Close()
}

// copyFile 复制文件，必要时创建目标目录
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("打开输入文件失败: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("复制文件失败: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("复制文件失败: %w", err)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, err := filepath.Abs(a)
	if err != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func jobKeys(job domain.Job) []string {
	return append(sortedKeys(job.Texts), sortedKeys(job.Images)...)
}
