package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/allanpk716/docx-image-replacer/internal/cmd"
	"github.com/allanpk716/docx-image-replacer/internal/config"
	"github.com/allanpk716/docx-image-replacer/internal/processor"
)

func main() {
	os.Exit(run())
}

// run 执行命令行流程并返回退出码，defer 在退出前都会执行
func run() int {
	// 解析命令行参数
	args := cmd.ParseCommandLineArgs()

	// 处理版本和帮助信息
	if args.ShowVersion {
		fmt.Printf("%s v%s\n", cmd.AppName, cmd.AppVersion)
		return 0
	}

	if args.ShowHelp {
		cmd.ShowUsage()
		return 0
	}

	// 设置日志级别
	if args.Verbose {
		log.SetLevel(log.LevelDebug)
	} else {
		log.SetLevel(log.LevelInfo)
	}

	log.Infof("启动 %s v%s", cmd.AppName, cmd.AppVersion)

	// 验证参数
	if err := cmd.ValidateArgs(args); err != nil {
		cmd.ShowUsage()
		log.Errorf("参数验证失败: %v", err)
		return 2
	}

	configManager := config.NewConfigManager()

	if args.InitTemplate != "" {
		if err := writeTemplate(configManager, args); err != nil {
			log.Errorf("生成配置模板失败: %v", err)
			return 1
		}
		return 0
	}

	// 加载配置文件
	cfg, err := configManager.LoadConfig(args.ConfigFile)
	if err != nil {
		log.Errorf("加载配置文件失败: %v", err)
		return 1
	}

	log.Infof("成功加载配置文件: %s (项目: %s, 关键词数量: %d, 图片关键词数量: %d)",
		args.ConfigFile, cfg.ProjectName, len(cfg.Keywords), len(cfg.Images))

	job := cmd.NewJob(configManager, cfg)
	if job.Empty() {
		log.Error("没有找到有效的关键词")
		return 1
	}

	// 创建上下文，Ctrl+C 时停止后续文件
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	docProcessor := processor.NewDocumentProcessor(cmd.ProcessorOptions(cfg))
	result, err := cmd.ExecuteProcessing(ctx, docProcessor, args, cfg, job)
	if err != nil {
		log.Errorf("处理失败: %v", err)
		return 1
	}

	if !result.Success {
		log.Errorf("处理完成，但有 %d 个文件失败", len(result.Errors))
		return 1
	}

	log.Info("处理完成")
	return 0
}

// writeTemplate 生成配置模板
func writeTemplate(manager config.ConfigManager, args *cmd.CommandLineArgs) error {
	if _, err := os.Stat(args.ConfigFile); err == nil {
		return fmt.Errorf("配置文件已存在: %s", args.ConfigFile)
	}

	cfg, err := config.GenerateTemplate(args.InitTemplate)
	if err != nil {
		return err
	}

	if err := manager.SaveConfig(cfg, args.ConfigFile); err != nil {
		return err
	}

	log.Infof("配置模板已写入: %s", args.ConfigFile)
	return nil
}
