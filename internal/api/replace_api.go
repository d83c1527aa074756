package api

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/allanpk716/docx-image-replacer/internal/config"
	"github.com/allanpk716/docx-image-replacer/internal/domain"
	"github.com/allanpk716/docx-image-replacer/internal/processor"
	"github.com/allanpk716/docx-image-replacer/pkg/docx"
)

// DocxContentType Word 文档的 MIME 类型
const DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ReplaceRequest 替换请求中的 job 字段。
// 图片关键词的 path 是同一请求中图片文件的表单字段名。
type ReplaceRequest struct {
	Keywords    []config.Keyword      `json:"keywords"`
	Images      []config.ImageKeyword `json:"images,omitempty"`
	WrapKeys    bool                  `json:"wrap_keys,omitempty"`
	LiteralOnly bool                  `json:"literal_only,omitempty"`
	Strict      bool                  `json:"strict,omitempty"` // 有关键词未找到时返回 422
}

// ReplaceAPI 文档替换接口
type ReplaceAPI struct {
	Router        fiber.Router
	ConfigManager config.ConfigManager
	ImageTemplate string
	WorkDir       string // 临时文件目录，为空时使用系统临时目录
}

// Register 注册路由
func (api *ReplaceAPI) Register() {
	api.Router.Get("/health", func(c *fiber.Ctx) error {
		return ApplySuccessToResponse(c, fiber.Map{"status": "ok"})
	})

	// 上传 document 文件和 job JSON，返回替换后的文档
	api.Router.Post("/replace", func(c *fiber.Ctx) error {
		workDir, err := os.MkdirTemp(api.WorkDir, "replace-*")
		if err != nil {
			return ApplyErrorToResponse(c, "创建临时目录失败", err)
		}
		defer os.RemoveAll(workDir)

		name, inputPath, err := saveDocument(c, workDir)
		if err != nil {
			return ApplyErrorToResponse(c, "读取上传文档失败", err)
		}

		req, err := parseReplaceRequest(c.FormValue("job"))
		if err != nil {
			return ApplyErrorToResponse(c, "解析 job 失败", err)
		}

		job, options, err := api.buildJob(c, req, name, workDir)
		if err != nil {
			return ApplyErrorToResponse(c, "生成处理任务失败", err)
		}

		outputPath := filepath.Join(workDir, "output.docx")
		result, err := processor.NewDocumentProcessor(options).ProcessDocument(c.UserContext(), inputPath, outputPath, job)
		if err != nil {
			if docx.IsContainerError(err) || docx.IsMalformedXMLError(err) {
				return ApplyErrorToResponse(c, "文档无效", badRequest("文档无效", err))
			}
			return ApplyErrorToResponse(c, "处理文档失败", err)
		}

		if req.Strict && len(result.Unmatched) > 0 {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
				Error:  docx.ErrNoMatch.Error(),
				Detail: strings.Join(result.Unmatched, ", "),
			})
		}

		data, err := os.ReadFile(outputPath)
		if err != nil {
			return ApplyErrorToResponse(c, "读取输出文档失败", err)
		}

		log.Infof("文档 %s 处理完成: 文本 %d 处, 图片 %d 处", name, result.Replacements, result.ImageReplacements)

		c.Set(fiber.HeaderContentType, DocxContentType)
		c.Set(fiber.HeaderContentDisposition, contentDisposition(outputName(name)))
		c.Set("X-Replacements", strconv.Itoa(result.Replacements))
		c.Set("X-Image-Replacements", strconv.Itoa(result.ImageReplacements))
		if len(result.Unmatched) > 0 {
			c.Set("X-Unmatched-Keywords", url.QueryEscape(strings.Join(result.Unmatched, ",")))
		}
		return c.Send(data)
	})
}

// buildJob 校验请求并保存上传的图片
func (api *ReplaceAPI) buildJob(c *fiber.Ctx, req *ReplaceRequest, name, workDir string) (domain.Job, processor.Options, error) {
	processing := config.DefaultProcessing()
	processing.WrapKeys = req.WrapKeys
	processing.LiteralOnly = req.LiteralOnly
	processing.ImageTemplate = api.ImageTemplate
	processing.VerifyOutput = false

	cfg := &config.Config{
		ProjectName: name,
		Version:     config.CurrentVersion,
		Keywords:    req.Keywords,
		Images:      req.Images,
		Processing:  processing,
	}
	if err := api.ConfigManager.ValidateConfig(cfg); err != nil {
		return domain.Job{}, processor.Options{}, badRequest("job 无效", err)
	}

	// 图片字段替换为保存后的本地路径
	for i, image := range cfg.Images {
		fh, err := c.FormFile(image.Path)
		if err != nil {
			return domain.Job{}, processor.Options{}, badRequest(fmt.Sprintf("缺少图片文件 %s", image.Path), err)
		}
		path := filepath.Join(workDir, fmt.Sprintf("image_%d%s", i, strings.ToLower(filepath.Ext(fh.Filename))))
		if err := c.SaveFile(fh, path); err != nil {
			return domain.Job{}, processor.Options{}, fmt.Errorf("保存图片失败: %w", err)
		}
		cfg.Images[i].Path = path
	}

	job := domain.Job{
		Texts:  api.ConfigManager.GetKeywordMap(cfg),
		Images: api.ConfigManager.GetImageMap(cfg),
	}
	options := processor.Options{
		LiteralOnly:   processing.LiteralOnly,
		ImageTemplate: processing.ImageTemplate,
	}
	return job, options, nil
}

func saveDocument(c *fiber.Ctx, workDir string) (string, string, error) {
	fh, err := c.FormFile("document")
	if err != nil {
		return "", "", badRequest("缺少 document 文件", err)
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".docx") {
		return "", "", badRequest("document 必须是 .docx 文件", nil)
	}

	path := filepath.Join(workDir, "input.docx")
	if err := c.SaveFile(fh, path); err != nil {
		return "", "", fmt.Errorf("保存文档失败: %w", err)
	}
	return filepath.Base(fh.Filename), path, nil
}

func parseReplaceRequest(raw string) (*ReplaceRequest, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, badRequest("缺少 job 字段", nil)
	}

	var req ReplaceRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, badRequest("job 不是合法的 JSON", err)
	}
	return &req, nil
}

func outputName(name string) string {
	return (&config.Config{Processing: config.DefaultProcessing()}).OutputName(name)
}

func contentDisposition(name string) string {
	return fmt.Sprintf(`attachment; filename="output.docx"; filename*=UTF-8''%s`, url.PathEscape(name))
}
