package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// AppName 应用名称
	AppName = "docx-replacer"
	// AppVersion 应用版本
	AppVersion = "2.0.0"
)

// CommandLineArgs 命令行参数结构
type CommandLineArgs struct {
	ConfigFile   string
	InputFile    string
	OutputFile   string
	InputDir     string
	OutputDir    string
	InitTemplate string
	ShowVersion  bool
	ShowHelp     bool
	Verbose      bool
}

// ParseCommandLineArgs 解析命令行参数
func ParseCommandLineArgs() *CommandLineArgs {
	args, err := ParseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		// flag.ExitOnError 已经处理了错误输出
		os.Exit(2)
	}
	return args
}

// ParseArgs 用指定的 FlagSet 解析参数
func ParseArgs(fs *flag.FlagSet, arguments []string) (*CommandLineArgs, error) {
	args := &CommandLineArgs{}

	fs.StringVar(&args.ConfigFile, "config", "config.json", "配置文件路径")
	fs.StringVar(&args.InputFile, "input", "", "输入 DOCX 文件路径")
	fs.StringVar(&args.OutputFile, "output", "", "输出 DOCX 文件路径")
	fs.StringVar(&args.InputDir, "input-dir", "", "输入目录路径（批量处理）")
	fs.StringVar(&args.OutputDir, "output-dir", "", "输出目录路径（批量处理）")
	fs.StringVar(&args.InitTemplate, "init", "", "生成配置模板 (basic|image) 并写入 -config 指定的路径")
	fs.BoolVar(&args.ShowVersion, "version", false, "显示版本信息")
	fs.BoolVar(&args.ShowHelp, "help", false, "显示帮助信息")
	fs.BoolVar(&args.Verbose, "verbose", false, "详细输出")

	if err := fs.Parse(arguments); err != nil {
		return nil, err
	}
	return args, nil
}

// ValidateArgs 验证命令行参数
func ValidateArgs(args *CommandLineArgs) error {
	if args.ConfigFile == "" {
		return fmt.Errorf("配置文件路径不能为空")
	}

	// 生成模板时不需要输入文件
	if args.InitTemplate != "" {
		return nil
	}

	// 检查是单文件处理还是批量处理
	hasSingleFile := args.InputFile != "" || args.OutputFile != ""
	hasBatchMode := args.InputDir != "" || args.OutputDir != ""

	if !hasSingleFile && !hasBatchMode {
		return fmt.Errorf("必须指定输入文件或输入目录")
	}

	if hasSingleFile && hasBatchMode {
		return fmt.Errorf("不能同时指定单文件和批量处理模式")
	}

	if hasSingleFile {
		if args.InputFile == "" {
			return fmt.Errorf("单文件模式下必须指定输入文件")
		}
		if args.OutputFile == "" {
			// 自动生成输出文件名
			args.OutputFile = GenerateOutputFileName(args.InputFile)
		}
	}

	if hasBatchMode {
		if args.InputDir == "" {
			return fmt.Errorf("批量模式下必须指定输入目录")
		}
		if args.OutputDir == "" {
			// 自动生成输出目录名
			args.OutputDir = filepath.Clean(args.InputDir) + "_processed"
		}
	}

	return nil
}

// GenerateOutputFileName 生成输出文件名
func GenerateOutputFileName(inputFile string) string {
	ext := filepath.Ext(inputFile)
	base := strings.TrimSuffix(inputFile, ext)
	return base + "_processed" + ext
}

// ShowUsage 输出帮助信息
func ShowUsage() {
	PrintUsage(os.Stdout)
}

// PrintUsage 把帮助信息写到 w
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, `%s v%s - DOCX 关键词替换工具（支持文本和图片）

用法:
  单文件: %[1]s -config config.json -input input.docx [-output output.docx]
  批量:   %[1]s -config config.json -input-dir ./docs [-output-dir ./out]
  模板:   %[1]s -config config.json -init basic|image

参数:
  -config      配置文件路径 (默认 config.json)
  -input       输入 DOCX 文件路径
  -output      输出 DOCX 文件路径 (默认在输入文件名后加 _processed)
  -input-dir   输入目录路径（批量处理）
  -output-dir  输出目录路径（默认在输入目录名后加 _processed）
  -init        生成配置模板
  -verbose     详细输出
  -version     显示版本信息
  -help        显示帮助信息
`, AppName, AppVersion)
}
