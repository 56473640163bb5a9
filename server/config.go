package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// ServerConfig HTTP 监听设置
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig 日志输出设置（zap + lumberjack 滚动文件）
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug / info / warn / error
	Format     string `mapstructure:"format"` // console / json
	File       string `mapstructure:"file"`   // 为空则不写文件
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Stdout     bool   `mapstructure:"stdout"`
}

// GameConfig 房间设置
type GameConfig struct {
	RoomName      string        `mapstructure:"room_name"`
	PatchInterval time.Duration `mapstructure:"patch_interval"`
	SendBuffer    int           `mapstructure:"send_buffer"`
}

// TransportConfig WebSocket 读写参数
type TransportConfig struct {
	ReadLimit    int64         `mapstructure:"read_limit"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// RateLimitConfig 每个连接的入站限流；MessagesPerSecond 为 0 表示不限流
type RateLimitConfig struct {
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// AuthConfig 加入房间时是否要求身份令牌
type AuthConfig struct {
	RequireToken bool `mapstructure:"require_token"`
}

// ProcessEnv 直接从进程环境读取的值
type ProcessEnv struct {
	InstanceID string        `env:"NODE_APP_INSTANCE" envDefault:"NONE"`
	AuthSecret string        `env:"CROSSROADS_AUTH_SECRET" envDefault:"crossroads-dev-secret"`
	TokenTTL   time.Duration `env:"CROSSROADS_AUTH_TOKEN_TTL" envDefault:"24h"`
}

// Config 顶层配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Game      GameConfig      `mapstructure:"game"`
	Transport TransportConfig `mapstructure:"transport"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Env       ProcessEnv      `mapstructure:"-"`
}

// LoadConfig 读取配置：默认值 → 配置文件（可选）→ CROSSROADS_ 前缀环境变量，最后校验
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CROSSROADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := env.Parse(&cfg.Env); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfig 只含默认值的配置（测试与嵌入使用）
func DefaultConfig() Config {
	cfg, err := LoadConfig("")
	if err != nil {
		// 默认值本身必须合法；只有环境变量写错时才会走到这里
		Log.Warnf("default config with environment failed, using built-ins: %v", err)
		v := viper.New()
		setDefaults(v)
		_ = v.Unmarshal(&cfg)
		cfg.Env = ProcessEnv{InstanceID: "NONE", AuthSecret: "crossroads-dev-secret", TokenTTL: 24 * time.Hour}
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":2567")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "server.log")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 7)
	v.SetDefault("logging.compress", false)
	v.SetDefault("logging.stdout", true)

	v.SetDefault("game.room_name", "my_room")
	v.SetDefault("game.patch_interval", "50ms")
	v.SetDefault("game.send_buffer", 64)

	v.SetDefault("transport.read_limit", 1<<20)
	v.SetDefault("transport.read_timeout", "60s")
	v.SetDefault("transport.write_timeout", "5s")
	v.SetDefault("transport.ping_interval", "54s")

	v.SetDefault("ratelimit.messages_per_second", 60)
	v.SetDefault("ratelimit.burst", 120)

	v.SetDefault("auth.require_token", false)
}

// Validate 检查全部配置项，一次返回所有问题
func (c Config) Validate() error {
	var err error
	if c.Server.Addr == "" {
		err = multierr.Append(err, errors.New("server.addr must not be empty"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		err = multierr.Append(err, fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		err = multierr.Append(err, fmt.Errorf("logging.format must be one of [console, json], got %q", c.Logging.Format))
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		err = multierr.Append(err, errors.New("logging rotation limits must not be negative"))
	}

	if c.Game.RoomName == "" {
		err = multierr.Append(err, errors.New("game.room_name must not be empty"))
	}
	if c.Game.PatchInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("game.patch_interval must be positive, got %s", c.Game.PatchInterval))
	}
	if c.Game.SendBuffer < 1 {
		err = multierr.Append(err, fmt.Errorf("game.send_buffer must be >= 1, got %d", c.Game.SendBuffer))
	}

	if c.Transport.ReadLimit < 1 {
		err = multierr.Append(err, fmt.Errorf("transport.read_limit must be >= 1, got %d", c.Transport.ReadLimit))
	}
	if c.Transport.ReadTimeout <= 0 || c.Transport.WriteTimeout <= 0 {
		err = multierr.Append(err, errors.New("transport timeouts must be positive"))
	}
	if c.Transport.PingInterval <= 0 || c.Transport.PingInterval >= c.Transport.ReadTimeout {
		err = multierr.Append(err, errors.New("transport.ping_interval must be positive and shorter than transport.read_timeout"))
	}

	if c.RateLimit.MessagesPerSecond < 0 {
		err = multierr.Append(err, errors.New("ratelimit.messages_per_second must not be negative"))
	}
	if c.RateLimit.MessagesPerSecond > 0 && c.RateLimit.Burst < 1 {
		err = multierr.Append(err, fmt.Errorf("ratelimit.burst must be >= 1 when limiting, got %d", c.RateLimit.Burst))
	}

	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
