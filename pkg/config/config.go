package config

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/goccy/go-yaml"
)

// Config 应用配置
type Config struct {
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Queue    QueueConfig    `yaml:"queue"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
}

// OpenAIConfig OpenAI 配置
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // 留空使用官方地址，可指向代理
	Model   string `yaml:"model"`
}

// PipelineConfig 转录管道配置
type PipelineConfig struct {
	MaxChunkBytes  int64  `yaml:"max_chunk_bytes"` // 单个分片的体积上限（Whisper 限制 25MB，留余量）
	SampleRate     int    `yaml:"sample_rate"`
	Bitrate        string `yaml:"bitrate"` // 语音场景 32k 够用
	TimeoutMinutes int    `yaml:"timeout_minutes"`
}

// QueueConfig 队列配置
type QueueConfig struct {
	Type       string         `yaml:"type"` // memory / rabbitmq
	BufferSize int            `yaml:"buffer_size"`
	Prefetch   int            `yaml:"prefetch"` // RabbitMQ QoS 预取数量
	RabbitMQ   RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig RabbitMQ 配置
type RabbitMQConfig struct {
	URL       string `yaml:"url"`
	QueueName string `yaml:"queue_name"`
}

// StorageConfig 任务存储配置
type StorageConfig struct {
	Type     string         `yaml:"type"` // memory / redis / postgres / hybrid
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port          int    `yaml:"port"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
	UploadDir     string `yaml:"upload_dir"`
	OutputDir     string `yaml:"output_dir"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}

	return &config, nil
}

// Validate 验证配置并填充默认值
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" || c.OpenAI.APIKey == "your-openai-api-key-here" {
		return fmt.Errorf("请在配置文件中设置有效的 OpenAI API Key")
	}

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "whisper-1"
	}

	if c.Pipeline.MaxChunkBytes <= 0 {
		c.Pipeline.MaxChunkBytes = 20 * 1024 * 1024 // 默认 20MB
	}

	if c.Pipeline.SampleRate <= 0 {
		c.Pipeline.SampleRate = 16000
	}

	if c.Pipeline.Bitrate == "" {
		c.Pipeline.Bitrate = "32k"
	}

	if c.Pipeline.TimeoutMinutes <= 0 {
		c.Pipeline.TimeoutMinutes = 30
	}

	if c.Queue.Type == "" {
		c.Queue.Type = "memory"
	}

	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 100
	}

	if c.Queue.Prefetch <= 0 {
		c.Queue.Prefetch = 3
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}

	if c.Storage.Redis.TTLHours <= 0 {
		c.Storage.Redis.TTLHours = 24
	}

	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}

	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = 2 * 1024 * 1024 * 1024 // 默认 2GB
	}

	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "uploads"
	}

	if c.Server.OutputDir == "" {
		c.Server.OutputDir = "outputs"
	}

	return nil
}

// CheckFFmpeg 检查 ffmpeg / ffprobe 是否已安装
// 管道依赖外部工具，缺失时应在启动阶段报错，而不是等到第一个任务失败
func CheckFFmpeg() error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("未找到 %s，请安装 FFmpeg 并加入 PATH", tool)
		}
	}
	return nil
}
