package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
source:
  kind: file
  file: ./testdata.json
  cache_ttl: 30s
auth:
  jwt_secret: "0123456789abcdef"
  admin_username: admin
  admin_password_hash: "$2a$10$abcdefghijklmnopqrstuv"
calendar:
  exam_notice:
    until: "2024-10-18"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Source.CacheTTL != 30*time.Second {
		t.Errorf("配置文件未生效: %+v", cfg.Server)
	}
	if cfg.App.Timezone != "Asia/Kolkata" || cfg.Auth.AccessTokenTTL != 2*time.Hour {
		t.Errorf("默认值未生效: tz=%s ttl=%s", cfg.App.Timezone, cfg.Auth.AccessTokenTTL)
	}

	until, ok := cfg.Calendar.ExamNotice.UntilDate(cfg.App.Location())
	if !ok || until.Hour() != 23 || until.Day() != 18 {
		t.Errorf("截止日期解析错误: %v %v", until, ok)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: remote
  remote:
    url: https://example.invalid/api/timetable
`)
	t.Setenv("ACAD_SERVER_PORT", "7070")
	t.Setenv("ACAD_SOURCE_REMOTE_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Server.Port != 7070 || cfg.Source.Remote.APIKey != "from-env" {
		t.Errorf("环境变量未覆盖: port=%d key=%q", cfg.Server.Port, cfg.Source.Remote.APIKey)
	}
}

func validConfig() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		App:    AppConfig{Timezone: "UTC"},
		Source: SourceConfig{Kind: SourceFile, File: "t.json"},
		Auth: AuthConfig{
			JWTSecret:         "0123456789abcdef",
			AdminUsername:     "admin",
			AdminPasswordHash: "hash",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"合法配置", func(c *Config) {}, ""},
		{"端口越界", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"时区无效", func(c *Config) { c.App.Timezone = "Mars/Olympus" }, "app.timezone"},
		{"未知数据源", func(c *Config) { c.Source.Kind = "ftp" }, "source.kind"},
		{"远程缺少 url", func(c *Config) { c.Source.Kind = SourceRemote }, "source.remote.url"},
		{"密钥过短", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"缺少管理员", func(c *Config) { c.Auth.AdminPasswordHash = "" }, "admin_password_hash"},
		{"只读模式无需管理员", func(c *Config) { c.Source.ReadOnly = true; c.Auth = AuthConfig{} }, ""},
		{"远程模式无需本地密钥", func(c *Config) {
			c.Source.Kind = SourceRemote
			c.Source.Remote.URL = "https://example.invalid"
			c.Auth = AuthConfig{}
		}, ""},
		{"截止日期格式错误", func(c *Config) { c.Calendar.ExamNotice.Until = "18/10/2024" }, "exam_notice.until"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("期望通过，实际 %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("期望包含 %q 的错误，实际 %v", tt.wantErr, err)
			}
		})
	}
}
