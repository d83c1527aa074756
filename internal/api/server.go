package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/allanpk716/docx-image-replacer/internal/config"
)

// ServerOptions HTTP 服务选项
type ServerOptions struct {
	AppName       string
	BodyLimit     int    // 上传大小上限（字节），0 使用默认值
	ImageTemplate string // 自定义图片块模板
	WorkDir       string
}

// DefaultBodyLimit 默认上传大小上限
const DefaultBodyLimit = 32 * 1024 * 1024

// NewApp 创建注册好全部路由的 fiber 应用
func NewApp(options ServerOptions) *fiber.App {
	bodyLimit := options.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		AppName:               options.AppName,
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})

	replaceAPI := &ReplaceAPI{
		Router:        app.Group("/api"),
		ConfigManager: config.NewConfigManager(),
		ImageTemplate: options.ImageTemplate,
		WorkDir:       options.WorkDir,
	}
	replaceAPI.Register()

	return app
}
