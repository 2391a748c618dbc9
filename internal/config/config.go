// Package config 提供 svcboot 的配置管理功能
package config

import (
	"errors"
	"time"
)

// Config 定义 svcboot 的完整配置结构
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Server  ServerConfig  `mapstructure:"server"`
	Sampler SamplerConfig `mapstructure:"sampler"`
	Store   StoreConfig   `mapstructure:"store"`
	Module  ModuleConfig  `mapstructure:"module"`
	Check   CheckConfig   `mapstructure:"check"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServiceConfig 服务身份配置
type ServiceConfig struct {
	Name string `mapstructure:"name"` // 服务名称
	ID   string `mapstructure:"id"`   // 实例标识，为空时启动阶段生成
}

// ServerConfig 诊断 HTTP 服务配置
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`      // 监听地址
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`     // 请求读取超时
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // 优雅关闭超时
}

// SamplerConfig 进程快照采样配置
type SamplerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`   // 是否启用采样
	Interval  time.Duration `mapstructure:"interval"`  // 采样间隔
	Retention time.Duration `mapstructure:"retention"` // 快照保留时长，0 表示不清理
}

// StoreConfig 快照存储配置
type StoreConfig struct {
	Path string `mapstructure:"path"` // sqlite 数据库路径，":memory:" 表示内存库
}

// ModuleConfig 模块身份配置
type ModuleConfig struct {
	// Imports 本模块包的导入路径前缀，外部键名为 import
	Imports string `mapstructure:"import"`
}

// CheckConfig 架构检查配置
type CheckConfig struct {
	OutputDir          string   `mapstructure:"output_dir"`           // 报告输出目录
	ResourcesDir       string   `mapstructure:"resources_dir"`        // 随构建发布的资源目录，可选
	SkipDirs           []string `mapstructure:"skip_dirs"`            // 额外跳过的目录名
	ProhibitDirectExit bool     `mapstructure:"prohibit_direct_exit"` // 是否禁止库代码直接退出进程
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别: debug, info, warn, error
	Output     string `mapstructure:"output"`       // 输出方式: console, file, both
	FilePath   string `mapstructure:"file_path"`    // 日志文件路径
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单文件最大大小(MB)
	MaxBackups int    `mapstructure:"max_backups"`  // 最大保留文件数
	MaxAgeDays int    `mapstructure:"max_age_days"` // 最大保留天数
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errors.New("service.name is required")
	}

	if c.Server.ListenAddr == "" {
		return errors.New("server.listen_addr is required")
	}

	// 采样开启时检查采样参数
	if c.Sampler.Enabled {
		if c.Sampler.Interval < time.Second {
			return errors.New("sampler.interval must be at least 1s")
		}
		if c.Sampler.Retention < 0 {
			return errors.New("sampler.retention must not be negative")
		}
		if c.Sampler.Retention > 0 && c.Sampler.Retention < c.Sampler.Interval {
			return errors.New("sampler.retention must not be shorter than sampler.interval")
		}
		if c.Store.Path == "" {
			return errors.New("store.path is required when sampler is enabled")
		}
	}

	if c.Check.OutputDir == "" {
		return errors.New("check.output_dir is required")
	}

	// 检查日志级别
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if c.Log.Level != "" && !validLevels[c.Log.Level] {
		return errors.New("log.level must be one of: debug, info, warn, error")
	}

	// 检查日志输出方式
	validOutputs := map[string]bool{
		"console": true,
		"file":    true,
		"both":    true,
	}
	if c.Log.Output != "" && !validOutputs[c.Log.Output] {
		return errors.New("log.output must be one of: console, file, both")
	}

	return nil
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "svcboot",
			ID:   "",
		},
		Server: ServerConfig{
			ListenAddr:      ":9080",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Sampler: SamplerConfig{
			Enabled:   true,
			Interval:  30 * time.Second,
			Retention: 24 * time.Hour,
		},
		Store: StoreConfig{
			Path: "/var/lib/svcboot/snapshots.db",
		},
		Module: ModuleConfig{
			Imports: "",
		},
		Check: CheckConfig{
			OutputDir:          "build/archcheck",
			ResourcesDir:       "",
			SkipDirs:           nil,
			ProhibitDirectExit: true,
		},
		Log: LogConfig{
			Level:      "info",
			Output:     "both",
			FilePath:   "/var/log/svcboot/svcboot.log",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 7,
		},
	}
}
