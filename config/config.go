// Package config 提供服务的配置加载能力。
//
// 配置来源及优先级（高到低）：
//  1. 环境变量（前缀 PERMITWATCH_，层级以 _ 分隔，如 PERMITWATCH_POOL_MAX_CONNECTIONS）
//  2. .env 文件（通过 godotenv 注入环境变量）
//  3. config.yaml 配置文件
//  4. 内置默认值
//
// 基本使用：
//
//	cfg, err := config.Load()
//	if err != nil {
//	    panic(err)
//	}
//	fmt.Println(cfg.Pool.MaxConnections) // 默认 50
package config

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/opencivic/permitwatch/clog"
	"github.com/opencivic/permitwatch/metrics"
	"github.com/opencivic/permitwatch/xerrors"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "PERMITWATCH"

// Config 服务的完整配置
type Config struct {
	// Database 数据库后端配置
	Database DatabaseConfig `mapstructure:"database"`

	// Pool 连接池配置
	Pool PoolConfig `mapstructure:"pool"`

	// CronJob 批处理/定时任务执行模式标志
	// 为 true 时检出的连接不安装语句超时，避免长任务被截断
	CronJob bool `mapstructure:"cron_job"`

	// Server 运维 HTTP 服务配置
	Server ServerConfig `mapstructure:"server"`

	// Log 日志配置
	Log clog.Config `mapstructure:"log"`

	// Metrics 指标配置
	Metrics metrics.Config `mapstructure:"metrics"`
}

// DatabaseConfig 数据库后端配置
type DatabaseConfig struct {
	// DSN 连接串。postgres://... 走客户端/服务器引擎和连接池；
	// 其他值视为 SQLite 文件路径，直连、不经过连接池
	DSN string `mapstructure:"dsn"`
}

// PoolConfig 连接池配置，默认值与生产部署一致
type PoolConfig struct {
	// MinConnections 预热的最小连接数（默认 5）
	MinConnections int `mapstructure:"min_connections"`

	// MaxConnections 连接数上限（默认 50）
	MaxConnections int `mapstructure:"max_connections"`

	// ConnectTimeout 建立新物理连接的超时（默认 10s）
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// StatementTimeout 单条语句的执行上限（默认 "30s"）
	StatementTimeout string `mapstructure:"statement_timeout"`
}

// ServerConfig 运维 HTTP 服务配置
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load 加载完整配置。
//
// .env 文件不存在时静默忽略；config.yaml 不存在时仅使用
// 环境变量和默认值。
func Load(opts ...Option) (*Config, error) {
	o := &options{configName: "config", paths: []string{".", "./configs"}}
	for _, opt := range opts {
		opt(o)
	}

	// .env 注入环境变量，缺失不是错误
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName(o.configName)
	v.SetConfigType("yaml")
	for _, p := range o.paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, xerrors.Wrapf(err, "failed to read config file %s", o.configName)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, xerrors.Wrap(err, "failed to unmarshal config")
	}

	// 配置文件变更时重新解析并回调
	if o.onChange != nil {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated := &Config{}
			if err := v.Unmarshal(updated); err == nil {
				o.onChange(updated)
			}
		})
		v.WatchConfig()
	}

	return cfg, nil
}

// setDefaults 注册全部默认值。
// 注：AutomaticEnv 只对已注册的键生效，所有键都必须在这里声明。
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", "permitwatch.db")

	v.SetDefault("pool.min_connections", 5)
	v.SetDefault("pool.max_connections", 50)
	v.SetDefault("pool.connect_timeout", 10*time.Second)
	v.SetDefault("pool.statement_timeout", "30s")

	v.SetDefault("cron_job", false)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.service_name", "permitwatch")
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}

// Option 配置加载选项
type Option func(*options)

type options struct {
	configName string
	paths      []string
	onChange   func(*Config)
}

// WithConfigName 指定配置文件名（不含扩展名）
func WithConfigName(name string) Option {
	return func(o *options) { o.configName = name }
}

// WithPaths 指定配置文件搜索路径，替换默认路径
func WithPaths(paths ...string) Option {
	return func(o *options) { o.paths = paths }
}

// WithOnChange 注册配置文件变更回调
func WithOnChange(fn func(*Config)) Option {
	return func(o *options) { o.onChange = fn }
}
