package config

import (
	"strings"
	"time"

	"github.com/blues/donation/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Task     TaskConfig     `mapstructure:"task"`
	Donation DonationConfig `mapstructure:"donation"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Events   EventsConfig   `mapstructure:"events"`
	Rates    RatesConfig    `mapstructure:"rates"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, mysql
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig 链配置，按网络名索引
type ChainConfig struct {
	Networks map[string]NetworkConfig `mapstructure:"networks"`
}

// NetworkConfig 单个网络配置
type NetworkConfig struct {
	ChainId       int64   `mapstructure:"chain_id"`      // 链ID
	RpcUrl        string  `mapstructure:"rpc_url"`       // RPC节点URL
	Confirmations uint64  `mapstructure:"confirmations"` // 终局所需确认数
	RateLimit     float64 `mapstructure:"rate_limit"`    // 每秒请求数，0 不限速
	Burst         int     `mapstructure:"burst"`
	Enabled       bool    `mapstructure:"enabled"`
}

// MonitorConfig 确认监控配置
type MonitorConfig struct {
	Interval       int `mapstructure:"interval"`        // 秒
	BatchSize      int `mapstructure:"batch_size"`      // 每轮拉取的待确认捐赠数
	PoolSize       int `mapstructure:"pool_size"`       // 协程池大小
	PendingTimeout int `mapstructure:"pending_timeout"` // 秒，超时未上链视为失败
}

type TaskConfig struct {
	SweepInterval   int `mapstructure:"sweep_interval"`   // 秒
	ReceiptInterval int `mapstructure:"receipt_interval"` // 秒
	BatchSize       int `mapstructure:"batch_size"`
}

// DonationConfig 捐赠规则
type DonationConfig struct {
	Minimums          map[string]string            `mapstructure:"minimums"`           // 币种 -> 最小金额
	NetworkMinimums   map[string]map[string]string `mapstructure:"network_minimums"`   // 网络 -> 币种 -> 最小金额
	ReceiptThresholds map[string]string            `mapstructure:"receipt_thresholds"` // 币种 -> 开票门槛
	AggregateRetries  int                          `mapstructure:"aggregate_retries"`
}

type CacheConfig struct {
	Driver    string `mapstructure:"driver"` // memory, redis
	TTL       int    `mapstructure:"ttl"`    // 秒
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	Password  string `mapstructure:"password"`
}

type EventsConfig struct {
	Driver  string `mapstructure:"driver"` // memory, nats
	NatsURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

// RatesConfig 静态汇率（币种 -> USD）
type RatesConfig struct {
	USD map[string]string `mapstructure:"usd"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// MonitorInterval 监控轮询间隔
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.Interval) * time.Second
}

// CacheTTL 缓存过期时间
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "donation")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("monitor.interval", 15)
	v.SetDefault("monitor.batch_size", 200)
	v.SetDefault("monitor.pool_size", 16)
	v.SetDefault("monitor.pending_timeout", 86400)
	v.SetDefault("task.sweep_interval", 300)
	v.SetDefault("task.receipt_interval", 600)
	v.SetDefault("task.batch_size", 100)
	v.SetDefault("donation.minimums", map[string]string{
		"ETH":   "0.001",
		"WETH":  "0.001",
		"MATIC": "0.001",
		"USDC":  "1",
		"DAI":   "1",
	})
	v.SetDefault("donation.receipt_thresholds", map[string]string{
		"ETH":   "0.01",
		"WETH":  "0.01",
		"MATIC": "10",
		"USDC":  "10",
		"DAI":   "10",
	})
	v.SetDefault("donation.aggregate_retries", 5)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl", 60)
	v.SetDefault("cache.redis_addr", "127.0.0.1:6379")
	v.SetDefault("events.driver", "memory")
	v.SetDefault("events.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("events.subject", "donation.confirmed")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/donation")

	setDefaults(v)

	// 自动读取环境变量，database.host -> DATABASE_HOST
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
