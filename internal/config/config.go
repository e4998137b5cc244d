package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	MySQL    MySQLConfig    `json:"mysql"`
	Redis    RedisConfig    `json:"redis"`
	Security SecurityConfig `json:"security"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env       string  `json:"env"`        // 运行环境: local / prod
	LogLevel  string  `json:"log_level"`  // 日志级别: debug / info / warn / error
	HTTPAddr  string  `json:"http_addr"`  // API 服务监听地址
	PageSize  int     `json:"page_size"`  // 列表接口单页上限
	RateLimit float64 `json:"rate_limit"` // 限流速率（token/s），0 表示关闭
	RateBurst float64 `json:"rate_burst"` // 限流桶容量
}

// MySQLConfig MySQL 数据库配置。
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串
}

// RedisConfig Redis 配置。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret     string `json:"jwt_secret"`     // JWT 签名密钥
	AdminName     string `json:"admin_name"`     // 启动时种子管理员用户名
	AdminEmail    string `json:"admin_email"`    // 种子管理员邮箱（为空则不创建）
	AdminPassword string `json:"admin_password"` // 种子管理员密码
}

// Load 从 JSON 文件加载配置。
//
// 文件不存在时使用默认值；环境变量始终可以覆盖。
//
// 参数:
//
//	configPath: 配置文件路径（为空使用默认路径 "configs/config.json"）
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault 加载配置，失败时返回默认配置（不报错）。
func LoadOrDefault(configPath ...string) *Config {
	cfg, err := Load(configPath...)
	if err != nil {
		fallback := getDefaultConfig()
		applyEnvOverrides(fallback)
		return fallback
	}
	return cfg
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:       "local",
			LogLevel:  "info",
			HTTPAddr:  ":8081",
			PageSize:  10,
			RateLimit: 3,
			RateBurst: 5,
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/taskr?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Security: SecurityConfig{
			JWTSecret: "dev_secret_change_me",
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.PageSize == 0 {
		cfg.App.PageSize = defaults.App.PageSize
	}
	if cfg.App.RateLimit == 0 {
		cfg.App.RateLimit = defaults.App.RateLimit
	}
	if cfg.App.RateBurst == 0 {
		cfg.App.RateBurst = defaults.App.RateBurst
	}
	if cfg.MySQL.DSN == "" {
		cfg.MySQL.DSN = defaults.MySQL.DSN
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_host", "DB_HOST")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("admin_password", "ADMIN_PASSWORD")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_PAGE_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.App.PageSize = i
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateLimit = f
		}
	}
	if v := os.Getenv("APP_RATE_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateBurst = f
		}
	}

	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Security.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_NAME"); v != "" {
		cfg.Security.AdminName = v
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Security.AdminEmail = v
	}
	if v := viper.GetString("admin_password"); v != "" {
		cfg.Security.AdminPassword = v
	}

	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.MySQL.DSN = v
	} else if hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_host") != "" || viper.GetString("db_password") != "" {
		parsed := parseMySQLDSN(cfg.MySQL.DSN)
		if v := viper.GetString("db_host"); v != "" {
			host := v
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = host + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = host[:strings.Index(host, ":")]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.MySQL.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(key, addr, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if idx := strings.Index(addr, ":"); idx >= 0 && idx+1 < len(addr) {
		return addr[idx+1:]
	}
	return fallback
}

// parseMySQLDSN 解析 DSN，失败时返回可继续修改的空白配置。
func parseMySQLDSN(dsn string) *mysql.Config {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		parsed = mysql.NewConfig()
		parsed.Net = "tcp"
		parsed.Addr = "localhost:3306"
	}
	return parsed
}
