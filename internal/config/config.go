// Package config assembles the runtime configuration from environment
// variables. main loads .env via godotenv first; everything here reads
// plain env vars with defaults and fails with an initialization error
// on missing credentials or unparseable values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"scriptparser-go/internal/errs"
)

type Config struct {
	Port string

	// Budgets. Each stage deadline is clamped to the remaining share of
	// TotalBudget at stage entry.
	TotalBudget    time.Duration
	ResolveTimeout time.Duration
	ASRTimeout     time.Duration
	LLMTimeout     time.Duration
	UploadTimeout  time.Duration

	MaxUploadSize     int64
	AllowedExtensions []string
	StagingDir        string

	ASR     ASRConfig
	Primary ProviderConfig
	Backup  ProviderConfig
	OSS     OSSConfig
}

type ASRConfig struct {
	Endpoint string
	APIKey   string
	Language string
}

// ProviderConfig points at one OpenAI-compatible analysis endpoint.
type ProviderConfig struct {
	Name    string
	BaseURL string
	Model   string
	APIKey  string
}

type OSSConfig struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
}

// Configured reports whether the OSS group is fully present. When it
// is not, the file branch is disabled rather than the whole service.
func (o OSSConfig) Configured() bool {
	return o.Bucket != "" && o.AccessKeyID != "" && o.AccessKeySecret != ""
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:       envOr("PORT", "8000"),
		StagingDir: envOr("STAGING_DIR", filepath.Join(os.TempDir(), "scriptparser")),
		ASR: ASRConfig{
			Endpoint: os.Getenv("ASR_ENDPOINT"),
			APIKey:   os.Getenv("ASR_API_KEY"),
			Language: envOr("ASR_LANGUAGE", "zh"),
		},
		Primary: ProviderConfig{
			Name:    "primary",
			BaseURL: envOr("LLM_PRIMARY_BASE_URL", "https://api.deepseek.com"),
			Model:   envOr("LLM_PRIMARY_MODEL", "deepseek-chat"),
			APIKey:  os.Getenv("LLM_PRIMARY_API_KEY"),
		},
		Backup: ProviderConfig{
			Name:    "backup",
			BaseURL: envOr("LLM_BACKUP_BASE_URL", "https://api.moonshot.cn/v1"),
			Model:   envOr("LLM_BACKUP_MODEL", "moonshot-v1-8k"),
			APIKey:  os.Getenv("LLM_BACKUP_API_KEY"),
		},
		OSS: OSSConfig{
			Endpoint:        envOr("OSS_ENDPOINT", "oss-cn-beijing.aliyuncs.com"),
			Bucket:          os.Getenv("OSS_BUCKET"),
			AccessKeyID:     os.Getenv("OSS_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("OSS_ACCESS_KEY_SECRET"),
		},
	}

	var err error
	if cfg.TotalBudget, err = envDuration("TOTAL_BUDGET", 50*time.Second); err != nil {
		return nil, err
	}
	if cfg.ResolveTimeout, err = envDuration("RESOLVE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ASRTimeout, err = envDuration("ASR_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = envDuration("LLM_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.UploadTimeout, err = envDuration("OSS_UPLOAD_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxUploadSize, err = envInt64("MAX_UPLOAD_SIZE", 100*1024*1024); err != nil {
		return nil, err
	}
	cfg.AllowedExtensions = splitExtensions(envOr("ALLOWED_EXTENSIONS", ".mp4,.mov,.m4a,.mp3,.wav,.aac,.flac"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.ASR.Endpoint == "" {
		missing = append(missing, "ASR_ENDPOINT")
	}
	if c.ASR.APIKey == "" {
		missing = append(missing, "ASR_API_KEY")
	}
	if c.Primary.APIKey == "" {
		missing = append(missing, "LLM_PRIMARY_API_KEY")
	}
	if c.Backup.APIKey == "" {
		missing = append(missing, "LLM_BACKUP_API_KEY")
	}
	if len(missing) > 0 {
		return errs.Newf(errs.KindInitialization, "missing required configuration: %s", strings.Join(missing, ", "))
	}

	// OSS is all-or-nothing: a half-configured group is a deployment
	// mistake, a fully absent one just disables the file branch.
	o := c.OSS
	partial := o.Bucket != "" || o.AccessKeyID != "" || o.AccessKeySecret != ""
	if partial && !o.Configured() {
		return errs.New(errs.KindInitialization, "incomplete OSS configuration: OSS_BUCKET, OSS_ACCESS_KEY_ID and OSS_ACCESS_KEY_SECRET must be set together")
	}

	if c.TotalBudget <= 0 {
		return errs.New(errs.KindInitialization, "TOTAL_BUDGET must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return errs.New(errs.KindInitialization, "MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

// ExtensionAllowed checks an original filename against the allow-list.
func (c *Config) ExtensionAllowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, allowed := range c.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func splitExtensions(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	return out
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// bare numbers mean seconds, matching the historical config
		if secs, convErr := strconv.Atoi(v); convErr == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return 0, errs.Wrap(errs.KindInitialization, fmt.Sprintf("invalid duration in %s", k), err)
	}
	return d, nil
}

func envInt64(k string, def int64) (int64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errs.Wrap(errs.KindInitialization, fmt.Sprintf("invalid integer in %s", k), err)
	}
	return n, nil
}
