package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	App      AppConfig      `mapstructure:"app"`
	Source   SourceConfig   `mapstructure:"source"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port      int        `mapstructure:"port"`
	BaseURL   string     `mapstructure:"base_url"`
	BodyLimit int64      `mapstructure:"body_limit"` // 字节
	CORS      CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AppConfig 通用运行参数
type AppConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Location 返回配置时区，无效时回退到本地时区
func (a *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// 课表数据源类型
const (
	SourceFile     = "file"
	SourceRemote   = "remote"
	SourceDatabase = "database"
)

// SourceConfig 课表数据源配置
type SourceConfig struct {
	Kind        string        `mapstructure:"kind"`      // file | remote | database
	ReadOnly    bool          `mapstructure:"read_only"` // true 时禁止一切写入
	File        string        `mapstructure:"file"`
	Remote      RemoteConfig  `mapstructure:"remote"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	RefreshCron string        `mapstructure:"refresh_cron"`
}

// RemoteConfig 远程课表服务配置
type RemoteConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	GatewayURL string        `mapstructure:"gateway_url"` // 远程 /admin/login、/admin/update 的根地址
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CalendarConfig 校历配置
type CalendarConfig struct {
	File       string           `mapstructure:"file"`
	ExamNotice ExamNoticeConfig `mapstructure:"exam_notice"`
}

// ExamNoticeConfig 课表页考试安排提示块
type ExamNoticeConfig struct {
	Until    string `mapstructure:"until"` // YYYY-MM-DD，为空表示不展示
	Semester string `mapstructure:"semester"`
	ExamType string `mapstructure:"exam_type"`
}

// UntilDate 解析提示块截止日期（当天 23:59:59 仍展示）
func (e *ExamNoticeConfig) UntilDate(loc *time.Location) (time.Time, bool) {
	if e.Until == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation("2006-01-02", e.Until, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d.Add(24*time.Hour - time.Second), true
}

// APIConfig 只读数据接口配置
type APIConfig struct {
	Key string `mapstructure:"key"` // x-api-key，为空表示不校验
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 管理员认证配置
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	AccessTokenTTL    time.Duration `mapstructure:"access_token_ttl"`
	AdminUsername     string        `mapstructure:"admin_username"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"` // bcrypt
	LoginRateLimit    int           `mapstructure:"login_rate_limit"`
	LoginRateWindow   time.Duration `mapstructure:"login_rate_window"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > .env > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.body_limit", 2<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("app.timezone", "Asia/Kolkata")

	v.SetDefault("source.kind", SourceFile)
	v.SetDefault("source.read_only", false)
	v.SetDefault("source.file", "./data/timetable.json")
	v.SetDefault("source.remote.url", "")
	v.SetDefault("source.remote.api_key", "")
	v.SetDefault("source.remote.gateway_url", "")
	v.SetDefault("source.remote.timeout", "15s")
	v.SetDefault("source.cache_ttl", "5m")
	v.SetDefault("source.refresh_cron", "@every 10m")

	v.SetDefault("calendar.file", "./data/academicCalendar.json")
	v.SetDefault("calendar.exam_notice.semester", "odd")
	v.SetDefault("calendar.exam_notice.exam_type", "t2_exam")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "academic_info")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Kolkata")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// 凭据只从配置文件或环境变量注入，默认值仅用于让 AutomaticEnv 识别这些键
	v.SetDefault("api.key", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_username", "")
	v.SetDefault("auth.admin_password_hash", "")
	v.SetDefault("auth.access_token_ttl", "2h")
	v.SetDefault("auth.login_rate_limit", 10)
	v.SetDefault("auth.login_rate_window", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("ACAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: app.timezone 无效: %w", err)
	}

	switch c.Source.Kind {
	case SourceFile:
		if c.Source.File == "" {
			return fmt.Errorf("配置校验失败: source.file 不能为空")
		}
	case SourceRemote:
		if c.Source.Remote.URL == "" {
			return fmt.Errorf("配置校验失败: source.remote.url 不能为空")
		}
	case SourceDatabase:
	default:
		return fmt.Errorf("配置校验失败: source.kind 只能是 file/remote/database，实际为 %q", c.Source.Kind)
	}

	// 远程模式登录由远程网关完成，本地不签发 Token
	if c.Source.Kind != SourceRemote && !c.Source.ReadOnly {
		if len(c.Auth.JWTSecret) < 16 {
			return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
		}
		if c.Auth.AdminUsername == "" || c.Auth.AdminPasswordHash == "" {
			return fmt.Errorf("配置校验失败: auth.admin_username 与 auth.admin_password_hash 必须通过配置注入")
		}
	}

	if _, err := time.Parse("2006-01-02", c.Calendar.ExamNotice.Until); c.Calendar.ExamNotice.Until != "" && err != nil {
		return fmt.Errorf("配置校验失败: calendar.exam_notice.until 需为 YYYY-MM-DD: %w", err)
	}
	return nil
}
