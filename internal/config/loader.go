package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Loader 配置加载器
type Loader struct {
	v       *viper.Viper
	config  *Config
	mu      sync.RWMutex
	watches []func(*Config)
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{
		v:       viper.New(),
		config:  Default(),
		watches: make([]func(*Config), 0),
	}
}

// Load 从指定路径加载配置
// 支持多个路径，后面的配置会覆盖前面的；文件不存在时沿用默认值
func (l *Loader) Load(paths ...string) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.v.SetConfigType("yaml")

	// 设置环境变量前缀和自动读取
	l.v.SetEnvPrefix("SVCBOOT")
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	l.setDefaults()

	for _, path := range paths {
		l.v.SetConfigFile(path)
		if err := l.v.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				continue
			}
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	l.config = cfg
	return cfg, nil
}

// setDefaults 设置默认值
func (l *Loader) setDefaults() {
	def := Default()

	l.v.SetDefault("service.name", def.Service.Name)
	l.v.SetDefault("service.id", def.Service.ID)
	l.v.SetDefault("server.listen_addr", def.Server.ListenAddr)
	l.v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	l.v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)
	l.v.SetDefault("sampler.enabled", def.Sampler.Enabled)
	l.v.SetDefault("sampler.interval", def.Sampler.Interval)
	l.v.SetDefault("sampler.retention", def.Sampler.Retention)
	l.v.SetDefault("store.path", def.Store.Path)
	l.v.SetDefault("module.import", def.Module.Imports)
	l.v.SetDefault("check.output_dir", def.Check.OutputDir)
	l.v.SetDefault("check.resources_dir", def.Check.ResourcesDir)
	l.v.SetDefault("check.skip_dirs", def.Check.SkipDirs)
	l.v.SetDefault("check.prohibit_direct_exit", def.Check.ProhibitDirectExit)
	l.v.SetDefault("log.level", def.Log.Level)
	l.v.SetDefault("log.output", def.Log.Output)
	l.v.SetDefault("log.file_path", def.Log.FilePath)
	l.v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	l.v.SetDefault("log.max_backups", def.Log.MaxBackups)
	l.v.SetDefault("log.max_age_days", def.Log.MaxAgeDays)
}

// Get 获取当前配置（线程安全）
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Watch 监听配置变更
// callback 会在配置变更且通过验证后被调用
func (l *Loader) Watch(callback func(*Config)) error {
	l.mu.Lock()
	l.watches = append(l.watches, callback)
	l.mu.Unlock()

	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.mu.Lock()
		defer l.mu.Unlock()

		cfg := &Config{}
		if err := l.v.Unmarshal(cfg); err != nil {
			// 配置解析失败，保持原配置
			return
		}
		if err := cfg.Validate(); err != nil {
			// 配置无效，保持原配置
			return
		}

		l.config = cfg

		for _, watch := range l.watches {
			watch(cfg)
		}
	})

	l.v.WatchConfig()
	return nil
}

// LoadAndValidate 加载并验证配置
func LoadAndValidate(paths ...string) (*Config, error) {
	loader := NewLoader()
	cfg, err := loader.Load(paths...)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
