package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"

	"landowebtool/internal/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LANDOWEBTOOL_"

// encPrefix marks a value encrypted with EncryptValue.
const encPrefix = "enc:"

// Config is the root configuration.
type Config struct {
	Serper SerperConfig `yaml:"serper"`
	Tools  ToolsConfig  `yaml:"tools"`
	Host   HostConfig   `yaml:"host"`
	Logger LoggerConfig `yaml:"logger"`
	Tracer TracerConfig `yaml:"tracer"`
}

// SerperConfig holds the API credentials and the retry policy.
type SerperConfig struct {
	APIKey     string        `yaml:"api_key"`
	SearchURL  string        `yaml:"search_url"`
	ScrapeURL  string        `yaml:"scrape_url"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// ToolsConfig holds the user-facing tool settings.
type ToolsConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MaxResults int           `yaml:"max_results"`
	Timeout    time.Duration `yaml:"timeout"`
}

// HostConfig controls admission of tool calls when serving MCP.
type HostConfig struct {
	CallTimeout   time.Duration `yaml:"call_timeout"`
	MaxConcurrent int64         `yaml:"max_concurrent"`
	RateLimit     float64       `yaml:"rate_limit"`
	RateBurst     int           `yaml:"rate_burst"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Serper: SerperConfig{
			SearchURL:  "https://google.serper.dev/search",
			ScrapeURL:  "https://scrape.serper.dev",
			MaxRetries: 3,
			RetryDelay: time.Second,
		},
		Tools: ToolsConfig{
			Enabled:    true,
			MaxResults: domain.DefaultMaxResults,
			Timeout:    domain.DefaultTimeout,
		},
		Host: HostConfig{
			CallTimeout:   60 * time.Second,
			MaxConcurrent: 3,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Settings returns the tool settings view of cfg.
func (c *Config) Settings() domain.Settings {
	return domain.Settings{
		APIKey:     c.Serper.APIKey,
		Enabled:    c.Tools.Enabled,
		MaxResults: c.Tools.MaxResults,
		Timeout:    c.Tools.Timeout,
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file is not an error: defaults and env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("%w: read config: %w", domain.ErrConfigLoad, err)
	default:
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve config path: %w", domain.ErrConfigLoad, err)
		}
		if err := validatePermissions(absPath); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config: %w", domain.ErrConfigLoad, err)
		}
	}

	ApplyEnvOverrides(cfg)

	if err := decryptSecrets(cfg, os.Getenv(EnvPrefix+"CONFIG_KEY")); err != nil {
		return nil, fmt.Errorf("decrypt secrets: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps LANDOWEBTOOL_* env vars to config fields. Values that
// fail to parse are ignored. SERPER_API_KEY is honored when no key is set.
func ApplyEnvOverrides(cfg *Config) {
	setString(&cfg.Serper.APIKey, "SERPER_API_KEY")
	if cfg.Serper.APIKey == "" {
		cfg.Serper.APIKey = os.Getenv("SERPER_API_KEY")
	}
	setString(&cfg.Serper.SearchURL, "SERPER_SEARCH_URL")
	setString(&cfg.Serper.ScrapeURL, "SERPER_SCRAPE_URL")
	setInt(&cfg.Serper.MaxRetries, "SERPER_MAX_RETRIES")
	setDuration(&cfg.Serper.RetryDelay, "SERPER_RETRY_DELAY")

	setBool(&cfg.Tools.Enabled, "TOOLS_ENABLED")
	setInt(&cfg.Tools.MaxResults, "TOOLS_MAX_RESULTS")
	if v := os.Getenv(EnvPrefix + "TOOLS_TIMEOUT"); v != "" {
		// Bare numbers are seconds, matching the settings UI.
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Tools.Timeout = time.Duration(n) * time.Second
		} else if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Tools.Timeout = d
		}
	}

	setDuration(&cfg.Host.CallTimeout, "HOST_CALL_TIMEOUT")
	if v := os.Getenv(EnvPrefix + "HOST_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Host.MaxConcurrent = n
		}
	}
	if v := os.Getenv(EnvPrefix + "HOST_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Host.RateLimit = f
		}
	}
	setInt(&cfg.Host.RateBurst, "HOST_RATE_BURST")

	setString(&cfg.Logger.Level, "LOGGER_LEVEL")
	setString(&cfg.Logger.Format, "LOGGER_FORMAT")
	setString(&cfg.Logger.Output, "LOGGER_OUTPUT")
	setBool(&cfg.Tracer.Enabled, "TRACER_ENABLED")
	setString(&cfg.Tracer.Exporter, "TRACER_EXPORTER")
}

func setString(dst *string, name string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setBool(dst *bool, name string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, name string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

// decryptSecrets replaces "enc:..." secrets with their plaintext. An encrypted
// value without a passphrase is an error rather than a silently unusable key.
func decryptSecrets(cfg *Config, passphrase string) error {
	secrets := map[string]*string{
		"serper.api_key": &cfg.Serper.APIKey,
	}
	for name, fp := range secrets {
		if !strings.HasPrefix(*fp, encPrefix) {
			continue
		}
		if passphrase == "" {
			return fmt.Errorf("%w: %s is encrypted but %sCONFIG_KEY is not set", domain.ErrDecryption, name, EnvPrefix)
		}
		decrypted, err := DecryptValue(strings.TrimPrefix(*fp, encPrefix), passphrase)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*fp = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
// The result carries the "enc:" prefix and can be pasted into the config file.
func EncryptValue(plaintext, passphrase string) (string, error) {
	if passphrase == "" {
		return "", fmt.Errorf("%w: empty passphrase", domain.ErrConfig)
	}
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: enc:hex(salt):hex(nonce+ciphertext)
	return encPrefix + hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts a value produced by EncryptValue, without its "enc:" prefix.
func DecryptValue(encrypted, passphrase string) (string, error) {
	salt, data, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("%w: invalid encrypted format", domain.ErrDecryption)
	}

	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("%w: decode salt: %w", domain.ErrDecryption, err)
	}
	dataBytes, err := hex.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext: %w", domain.ErrDecryption, err)
	}

	gcm, err := newGCM(passphrase, saltBytes)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(dataBytes) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrDecryption)
	}

	nonce, ciphertext := dataBytes[:nonceSize], dataBytes[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDecryption, err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file is not writable by group or others,
// since it may hold the API key.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: stat config: %w", domain.ErrConfigLoad, err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("%w: config file %s has insecure permissions %o (want 0600 or 0644)", domain.ErrConfigLoad, path, mode)
	}
	return nil
}
