package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/allanpk716/docx-image-replacer/internal/matcher"
)

// CurrentVersion 当前配置文件版本
const CurrentVersion = "2.0"

// Keyword 表示一个文本关键词配置项
type Keyword struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	SourceFile string `json:"source_file,omitempty"`
	Enabled    *bool  `json:"enabled,omitempty"`
	Category   string `json:"category,omitempty"`
}

// ImageKeyword 表示一个替换为图片的关键词
type ImageKeyword struct {
	Key     string `json:"key"`
	Path    string `json:"path"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// ProcessingConfig 处理配置
type ProcessingConfig struct {
	OutputSuffix    string   `json:"output_suffix"`
	VerifyOutput    bool     `json:"verify_output"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`
	WrapKeys        bool     `json:"wrap_keys"`
	LiteralOnly     bool     `json:"literal_only,omitempty"`
	ImageTemplate   string   `json:"image_template,omitempty"`
	RecordHistory   bool     `json:"record_history,omitempty"`
}

// Config 表示完整的配置文件结构
type Config struct {
	ProjectName string            `json:"project_name"`
	Keywords    []Keyword         `json:"keywords"`
	Images      []ImageKeyword    `json:"images,omitempty"`
	Processing  *ProcessingConfig `json:"processing,omitempty"`
	Version     string            `json:"version,omitempty"`
	CreatedAt   *time.Time        `json:"created_at,omitempty"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`

	// 旧版本使用的字段名，加载时迁移到 Processing
	LegacyProcessing *ProcessingConfig `json:"processing_config,omitempty"`
}

// ConfigManager 配置管理接口
type ConfigManager interface {
	LoadConfig(filePath string) (*Config, error)
	ParseConfig(data []byte) (*Config, error)
	ValidateConfig(config *Config) error
	GetKeywordMap(config *Config) map[string]string
	GetImageMap(config *Config) map[string]string
	SaveConfig(config *Config, filePath string) error
}

// MigrationHandler 配置迁移处理器
type MigrationHandler func(*Config) error

// configManager 配置管理器实现
type configManager struct {
	migrationHandlers map[string]MigrationHandler
}

// NewConfigManager 创建新的配置管理器
func NewConfigManager() ConfigManager {
	cm := &configManager{
		migrationHandlers: make(map[string]MigrationHandler),
	}
	// 没有版本号的配置视为 v1.0
	cm.migrationHandlers[""] = cm.migrateFromV1ToV2
	cm.migrationHandlers["1.0"] = cm.migrateFromV1ToV2
	return cm
}

// DefaultProcessing 返回默认的处理配置
func DefaultProcessing() *ProcessingConfig {
	return &ProcessingConfig{
		OutputSuffix:    "_processed",
		VerifyOutput:    true,
		ExcludePatterns: []string{"~$*", "*.tmp"},
	}
}

// LoadConfig 从文件加载配置
func (cm *configManager) LoadConfig(filePath string) (*Config, error) {
	if filePath == "" {
		return nil, fmt.Errorf("配置文件路径不能为空")
	}

	// 检查文件是否存在
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("配置文件不存在: %s", filePath)
	}

	// 检查文件扩展名
	if ext := filepath.Ext(filePath); ext != ".json" {
		return nil, fmt.Errorf("配置文件必须是 JSON 格式，当前文件: %s", ext)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config, err := cm.ParseConfig(data)
	if err != nil {
		return nil, err
	}

	// 图片路径相对于配置文件所在目录
	config.ResolveImagePaths(filepath.Dir(filePath))
	return config, nil
}

// ParseConfig 解析 JSON 配置，完成迁移、默认值和验证
func (cm *configManager) ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if migrate, ok := cm.migrationHandlers[config.Version]; ok {
		if err := migrate(&config); err != nil {
			return nil, fmt.Errorf("配置迁移失败: %w", err)
		}
	}

	setDefaultValues(&config)

	if err := cm.ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// ValidateConfig 验证配置的有效性
func (cm *configManager) ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("配置不能为空")
	}

	if config.ProjectName == "" {
		return fmt.Errorf("项目名称不能为空")
	}

	if len(config.Keywords) == 0 && len(config.Images) == 0 {
		return fmt.Errorf("关键词列表不能为空")
	}

	// 文本关键词和图片关键词共用同一个命名空间，按替换时使用的形式比较
	wrap := config.Processing != nil && config.Processing.WrapKeys
	keySet := make(map[string]bool)
	for i, keyword := range config.Keywords {
		if keyword.Key == "" {
			return fmt.Errorf("第 %d 个关键词的 key 不能为空", i+1)
		}
		if keyword.Value == "" {
			return fmt.Errorf("第 %d 个关键词的 value 不能为空", i+1)
		}
		key := formatKey(keyword.Key, wrap)
		if keySet[key] {
			return fmt.Errorf("关键词重复: %s", keyword.Key)
		}
		keySet[key] = true
	}

	for i, image := range config.Images {
		if image.Key == "" {
			return fmt.Errorf("第 %d 个图片关键词的 key 不能为空", i+1)
		}
		if image.Path == "" {
			return fmt.Errorf("第 %d 个图片关键词的 path 不能为空", i+1)
		}
		key := formatKey(image.Key, wrap)
		if keySet[key] {
			return fmt.Errorf("关键词重复: %s", image.Key)
		}
		keySet[key] = true
	}

	if config.Processing != nil {
		for _, pattern := range config.Processing.ExcludePatterns {
			if _, err := filepath.Match(pattern, ""); err != nil {
				return fmt.Errorf("排除模式无效 %q: %w", pattern, err)
			}
		}
	}

	return nil
}

// GetKeywordMap 将启用的文本关键词转换为映射表
func (cm *configManager) GetKeywordMap(config *Config) map[string]string {
	if config == nil {
		return nil
	}

	wrap := config.Processing != nil && config.Processing.WrapKeys
	keywordMap := make(map[string]string)
	for _, keyword := range config.Keywords {
		if !isEnabled(keyword.Enabled) {
			continue
		}
		keywordMap[formatKey(keyword.Key, wrap)] = keyword.Value
	}

	return keywordMap
}

// GetImageMap 将启用的图片关键词转换为 关键词 -> 图片路径 映射表
func (cm *configManager) GetImageMap(config *Config) map[string]string {
	if config == nil {
		return nil
	}

	wrap := config.Processing != nil && config.Processing.WrapKeys
	imageMap := make(map[string]string)
	for _, image := range config.Images {
		if !isEnabled(image.Enabled) {
			continue
		}
		imageMap[formatKey(image.Key, wrap)] = image.Path
	}

	return imageMap
}

// SaveConfig 保存配置到文件
func (cm *configManager) SaveConfig(config *Config, filePath string) error {
	if err := cm.ValidateConfig(config); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	now := time.Now()
	if config.CreatedAt == nil {
		config.CreatedAt = &now
	}
	config.UpdatedAt = &now

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// ResolveImagePaths 把相对的图片路径转换为基于 baseDir 的路径
func (c *Config) ResolveImagePaths(baseDir string) {
	for i := range c.Images {
		if c.Images[i].Path != "" && !filepath.IsAbs(c.Images[i].Path) {
			c.Images[i].Path = filepath.Join(baseDir, c.Images[i].Path)
		}
	}
}

// ShouldExclude 判断文件名是否匹配排除模式
func (c *Config) ShouldExclude(name string) bool {
	if c.Processing == nil {
		return false
	}
	base := filepath.Base(name)
	for _, pattern := range c.Processing.ExcludePatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// OutputName 根据输出后缀生成输出文件名
func (c *Config) OutputName(inputName string) string {
	suffix := DefaultProcessing().OutputSuffix
	if c.Processing != nil && c.Processing.OutputSuffix != "" {
		suffix = c.Processing.OutputSuffix
	}
	ext := filepath.Ext(inputName)
	return strings.TrimSuffix(inputName, ext) + suffix + ext
}

// migrateFromV1ToV2 从v1.0迁移到v2.0。v1.0 的关键词总是自动补上 #，迁移后保持这一行为。
func (cm *configManager) migrateFromV1ToV2(config *Config) error {
	config.Version = CurrentVersion

	if config.Processing == nil {
		config.Processing = config.LegacyProcessing
	}
	config.LegacyProcessing = nil

	if config.Processing == nil {
		config.Processing = DefaultProcessing()
	}
	config.Processing.WrapKeys = true

	log.Debugf("配置已从v1.0迁移到v%s", CurrentVersion)
	return nil
}

// setDefaultValues 设置默认值
func setDefaultValues(config *Config) {
	if config.Version == "" {
		config.Version = CurrentVersion
	}

	if config.Processing == nil {
		config.Processing = DefaultProcessing()
	}
	if config.Processing.OutputSuffix == "" {
		config.Processing.OutputSuffix = DefaultProcessing().OutputSuffix
	}
}

// GenerateTemplate 生成配置模板
func GenerateTemplate(templateType string) (*Config, error) {
	enabled := true
	now := time.Now()

	config := &Config{
		ProjectName: "示例项目",
		Version:     CurrentVersion,
		CreatedAt:   &now,
		Keywords: []Keyword{
			{Key: "#产品名称#", Value: "示例产品", Enabled: &enabled, Category: "基础信息"},
			{Key: "#公司名称#", Value: "示例公司", Enabled: &enabled, Category: "基础信息"},
			{Key: "#版本号#", Value: "v1.0", Enabled: &enabled, Category: "版本信息"},
		},
		Processing: DefaultProcessing(),
	}

	switch templateType {
	case "basic":
	case "image":
		config.Images = []ImageKeyword{
			{Key: "#公司标志#", Path: "logo.png", Enabled: &enabled},
		}
	default:
		return nil, fmt.Errorf("未知的模板类型: %s", templateType)
	}

	return config, nil
}

func isEnabled(enabled *bool) bool {
	return enabled == nil || *enabled
}

func formatKey(key string, wrap bool) string {
	if wrap {
		return matcher.FormatKeyword(key)
	}
	return key
}
