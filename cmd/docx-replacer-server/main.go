package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/log"

	"github.com/allanpk716/docx-image-replacer/internal/api"
	"github.com/allanpk716/docx-image-replacer/internal/cmd"
)

func main() {
	addr := flag.String("addr", ":8080", "监听地址")
	bodyLimit := flag.Int("body-limit", api.DefaultBodyLimit, "上传大小上限（字节）")
	templateFile := flag.String("image-template", "", "自定义图片块模板文件")
	workDir := flag.String("work-dir", "", "临时文件目录")
	verbose := flag.Bool("verbose", false, "详细输出")
	showVersion := flag.Bool("version", false, "显示版本信息")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s-server v%s\n", cmd.AppName, cmd.AppVersion)
		return
	}

	if *verbose {
		log.SetLevel(log.LevelDebug)
	} else {
		log.SetLevel(log.LevelInfo)
	}

	var imageTemplate string
	if *templateFile != "" {
		data, err := os.ReadFile(*templateFile)
		if err != nil {
			log.Fatalf("读取图片模板失败: %v", err)
		}
		imageTemplate = string(data)
	}

	app := api.NewApp(api.ServerOptions{
		AppName:       cmd.AppName,
		BodyLimit:     *bodyLimit,
		ImageTemplate: imageTemplate,
		WorkDir:       *workDir,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("正在关闭服务...")
		if err := app.Shutdown(); err != nil {
			log.Errorf("关闭服务失败: %v", err)
		}
	}()

	log.Infof("%s v%s 监听 %s", cmd.AppName, cmd.AppVersion, *addr)
	if err := app.Listen(*addr); err != nil {
		log.Fatalf("服务启动失败: %v", err)
	}
}
