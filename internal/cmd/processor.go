package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/allanpk716/docx-image-replacer/internal/config"
	"github.com/allanpk716/docx-image-replacer/internal/domain"
	"github.com/allanpk716/docx-image-replacer/internal/processor"
)

// NewJob 根据配置生成处理任务
func NewJob(manager config.ConfigManager, cfg *config.Config) domain.Job {
	return domain.Job{
		Texts:  manager.GetKeywordMap(cfg),
		Images: manager.GetImageMap(cfg),
	}
}

// ProcessorOptions 根据配置生成文档处理选项
func ProcessorOptions(cfg *config.Config) processor.Options {
	if cfg == nil || cfg.Processing == nil {
		return processor.Options{}
	}
	return processor.Options{
		LiteralOnly:   cfg.Processing.LiteralOnly,
		ImageTemplate: cfg.Processing.ImageTemplate,
		VerifyOutput:  cfg.Processing.VerifyOutput,
		RecordHistory: cfg.Processing.RecordHistory,
	}
}

// ExecuteProcessing 执行处理逻辑
func ExecuteProcessing(ctx context.Context, docProcessor domain.DocumentProcessor, args *CommandLineArgs, cfg *config.Config, job domain.Job) (*domain.ProcessResult, error) {
	if args.InputFile != "" {
		// 单文件处理
		return ProcessSingleFile(ctx, docProcessor, args.InputFile, args.OutputFile, job)
	}
	// 批量处理
	return ProcessBatchFiles(ctx, docProcessor, args.InputDir, args.OutputDir, cfg, job)
}

// ProcessSingleFile 处理单个文件
func ProcessSingleFile(ctx context.Context, docProcessor domain.DocumentProcessor, inputFile, outputFile string, job domain.Job) (*domain.ProcessResult, error) {
	log.Infof("处理文件: %s -> %s", inputFile, outputFile)

	result, err := docProcessor.ProcessDocument(ctx, inputFile, outputFile, job)
	if err != nil {
		return nil, fmt.Errorf("处理文件失败: %w", err)
	}

	reportResidual(outputFile, result)
	return result, nil
}

// ProcessBatchFiles 批量处理文件，单个文件失败不会中断其余文件
func ProcessBatchFiles(ctx context.Context, docProcessor domain.DocumentProcessor, inputDir, outputDir string, cfg *config.Config, job domain.Job) (*domain.ProcessResult, error) {
	// 创建输出目录
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	// 查找所有 DOCX 文件
	docxFiles, err := FindDocxFiles(inputDir, cfg)
	if err != nil {
		return nil, fmt.Errorf("查找 DOCX 文件失败: %w", err)
	}

	if len(docxFiles) == 0 {
		return nil, fmt.Errorf("在目录 %s 中没有找到 DOCX 文件", inputDir)
	}

	log.Infof("找到 %d 个 DOCX 文件", len(docxFiles))

	total := &domain.ProcessResult{}
	for i, inputFile := range docxFiles {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		// 生成输出文件路径
		relPath, err := filepath.Rel(inputDir, inputFile)
		if err != nil {
			return total, fmt.Errorf("计算相对路径失败: %w", err)
		}

		outputFile := filepath.Join(outputDir, relPath)

		log.Infof("[%d/%d] 处理文件: %s", i+1, len(docxFiles), inputFile)

		result, err := docProcessor.ProcessDocument(ctx, inputFile, outputFile, job)
		if err != nil {
			log.Errorf("处理文件失败 %s: %v", inputFile, err)
			total.Errors = append(total.Errors, fmt.Errorf("%s: %w", inputFile, err))
			continue
		}

		reportResidual(outputFile, result)
		total.ProcessedFiles++
		total.Replacements += result.Replacements
		total.ImageReplacements += result.ImageReplacements
	}

	total.Success = len(total.Errors) == 0
	log.Infof("批量处理完成，共处理 %d 个文件，失败 %d 个", total.ProcessedFiles, len(total.Errors))
	return total, nil
}

// FindDocxFiles 查找目录中的所有 DOCX 文件，跳过 Word 临时文件和配置中排除的文件
func FindDocxFiles(dir string, cfg *config.Config) ([]string, error) {
	var docxFiles []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || strings.ToLower(filepath.Ext(path)) != ".docx" {
			return nil
		}

		// 排除临时文件
		filename := filepath.Base(path)
		if strings.HasPrefix(filename, "~$") {
			return nil
		}
		if cfg != nil && cfg.ShouldExclude(filename) {
			log.Debugf("跳过排除的文件: %s", path)
			return nil
		}

		docxFiles = append(docxFiles, path)
		return nil
	})

	return docxFiles, err
}

func reportResidual(outputFile string, result *domain.ProcessResult) {
	if len(result.Residual) > 0 {
		log.Warnf("%s 中仍残留关键词: %s", outputFile, strings.Join(result.Residual, ", "))
	}
	log.Infof("文件处理完成: %s", outputFile)
}
