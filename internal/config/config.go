package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是 TTS 中继服务的顶层配置结构。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig HTTP/WebSocket 服务配置。
type ServerConfig struct {
	// Listen 监听地址，如 ":3002"。
	Listen string `yaml:"listen"`

	// StreamPath 客户端 TTS 流式接口路径。
	// 只有该路径接受 WebSocket 升级，其它升级请求会被直接断开。
	StreamPath string `yaml:"stream_path"`
}

// DatabaseConfig 数据库配置。
type DatabaseConfig struct {
	// Path 数据库文件路径，为空则使用默认路径 ~/.ttsrelay/ttsrelay.db。
	Path string `yaml:"path"`
}

// SynthesisConfig 上游语音合成后端配置。
type SynthesisConfig struct {
	APIURL       string  `yaml:"api_url"`
	APIKey       string  `yaml:"api_key"`
	Model        string  `yaml:"model"`
	DefaultVoice string  `yaml:"default_voice"`
	Speed        float64 `yaml:"speed"`

	// IdleTimeout 上游空闲超时（秒）。
	// 上游连接超过该时长没有任何消息视为任务失败，设为 -1 禁用。
	IdleTimeout int `yaml:"idle_timeout"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${MINIMAX_API_KEY}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":3002"
	}
	if cfg.Server.StreamPath == "" {
		cfg.Server.StreamPath = "/api/tts/stream"
	}
	if cfg.Synthesis.APIURL == "" {
		cfg.Synthesis.APIURL = "wss://api.minimaxi.com/ws/v1/t2a_v2"
	}
	if cfg.Synthesis.Model == "" {
		cfg.Synthesis.Model = "speech-02-turbo"
	}
	if cfg.Synthesis.DefaultVoice == "" {
		cfg.Synthesis.DefaultVoice = "male-qn-jingying-jingpin"
	}
	if cfg.Synthesis.Speed == 0 {
		cfg.Synthesis.Speed = 1.0
	}
	if cfg.Synthesis.IdleTimeout == 0 {
		cfg.Synthesis.IdleTimeout = 60 // 默认 60 秒
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// 去除 API Key 两端可能的空白（环境变量展开后常见）
	cfg.Synthesis.APIKey = strings.TrimSpace(cfg.Synthesis.APIKey)
}
