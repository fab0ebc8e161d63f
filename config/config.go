// config/config.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DefaultPath is where the config file is read from when neither --config
// nor CONTACTRELAY_CONFIG is given.
const DefaultPath = "/etc/contactrelay/config.toml"

// EnvPrefix prefixes every environment override, e.g.
// CONTACTRELAY_SERVER_SMTP_PASSWORD.
const EnvPrefix = "CONTACTRELAY"

// ServerSettings groups the listener and SMTP relay settings.
type ServerSettings struct {
	IP         string `mapstructure:"ip" yaml:"ip"`
	Port       int    `mapstructure:"port" yaml:"port"`
	MaxPayload int64  `mapstructure:"max_payload" yaml:"max_payload"`

	SMTPServer      string        `mapstructure:"smtp_server" yaml:"smtp_server"`
	SMTPPort        int           `mapstructure:"smtp_port" yaml:"smtp_port"`
	SMTPUser        string        `mapstructure:"smtp_user" yaml:"smtp_user"`
	SMTPPassword    string        `mapstructure:"smtp_password" yaml:"smtp_password"`
	SMTPHello       string        `mapstructure:"smtp_hello" yaml:"smtp_hello"`
	SMTPTimeout     time.Duration `mapstructure:"smtp_timeout" yaml:"smtp_timeout"`
	SMTPPoolSize    int           `mapstructure:"smtp_pool_size" yaml:"smtp_pool_size"`
	SMTPIdleTimeout time.Duration `mapstructure:"smtp_idle_timeout" yaml:"smtp_idle_timeout"`

	// runtime
	Env      string `mapstructure:"env" yaml:"env"`             // "dev" | "prod"
	LogLevel string `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error …

	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// Addr returns the listen address in host:port form.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.IP, s.Port)
}

// ProbeSettings configures the email deliverability probe.
type ProbeSettings struct {
	FromEmail string        `mapstructure:"from_email" yaml:"from_email"`
	HelloName string        `mapstructure:"hello_name" yaml:"hello_name"`
	SMTPCheck bool          `mapstructure:"smtp_check" yaml:"smtp_check"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Workers   int           `mapstructure:"workers" yaml:"workers"`

	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
}

// Target is the mailbox that receives relayed messages for an endpoint.
type Target struct {
	Email     string `mapstructure:"email" yaml:"email"`
	EmailName string `mapstructure:"email_name" yaml:"email_name"`
}

// EndpointConfig describes one site allowed to submit contact messages.
type EndpointConfig struct {
	Identifier       string `mapstructure:"identifier" yaml:"identifier"`
	Name             string `mapstructure:"name" yaml:"name"`
	Domain           string `mapstructure:"domain" yaml:"domain"`
	FromEmail        string `mapstructure:"from_email" yaml:"from_email"`
	MaxMessageLength int    `mapstructure:"max_message_length" yaml:"max_message_length"`
	MaxNameLength    int    `mapstructure:"max_name_length" yaml:"max_name_length"`
	Target           Target `mapstructure:"target" yaml:"target"`
}

// Config is the immutable snapshot read at startup. It is shared by every
// request and must not be modified after Load returns.
type Config struct {
	Server    ServerSettings   `mapstructure:"server" yaml:"server"`
	Probe     ProbeSettings    `mapstructure:"probe" yaml:"probe"`
	Endpoints []EndpointConfig `mapstructure:"endpoints" yaml:"endpoints"`

	path string
}

// Path returns the file the config was read from.
func (c *Config) Path() string {
	return c.path
}

// Lookup returns the first endpoint whose identifier equals id.
func (c *Config) Lookup(id string) (EndpointConfig, bool) {
	for _, ep := range c.Endpoints {
		if ep.Identifier == id {
			return ep, true
		}
	}
	return EndpointConfig{}, false
}

// DuplicateIdentifiers lists identifiers declared more than once, in the
// order their second occurrence appears.
func (c *Config) DuplicateIdentifiers() []string {
	seen := make(map[string]int, len(c.Endpoints))
	var dups []string
	for _, ep := range c.Endpoints {
		seen[ep.Identifier]++
		if seen[ep.Identifier] == 2 {
			dups = append(dups, ep.Identifier)
		}
	}
	return dups
}

// Origins returns the distinct endpoint domains in declared order.
func (c *Config) Origins() []string {
	seen := make(map[string]struct{}, len(c.Endpoints))
	out := make([]string, 0, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		d := strings.TrimSpace(ep.Domain)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// ResolvePath picks the config path: explicit flag value, then the
// CONTACTRELAY_CONFIG environment variable, then DefaultPath.
func ResolvePath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG")); p != "" {
		return p
	}
	return DefaultPath
}

// Flags declares the command-line flags. Parse it, then hand it to Load so
// the override flags take effect.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "config file path (default $"+EnvPrefix+"_CONFIG or "+DefaultPath+")")
	fs.Bool("print-config", false, "print the effective config with secrets redacted and exit")
	fs.String("log_level", "", "override server.log_level")
	fs.String("env", "", `override server.env: "dev"|"prod"`)
	return fs
}

// flagKeys maps override flags to config keys.
var flagKeys = map[string]string{
	"log_level": "server.log_level",
	"env":       "server.env",
}

// Load reads and validates the config file at path.
// Final precedence (highest wins): flags > env > config file > defaults.
func Load(logger *zap.Logger, path string, flags ...*pflag.FlagSet) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Optionally load .env (real env still wins over .env)
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded .env file")
	}

	b, err := readFile(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys() {
		_ = v.BindEnv(k)
	}
	setDefaults(v)
	for _, fs := range flags {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	v.SetConfigType(configType(path))
	if err := v.ReadConfig(bytes.NewReader(b)); err != nil {
		return nil, &Error{Kind: KindParse, Path: path, Err: err}
	}

	cfg := Config{path: path}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Kind: KindParse, Path: path, Err: err}
	}
	if err := applyDurations(v, &cfg); err != nil {
		return nil, &Error{Kind: KindInvalid, Path: path, Err: err}
	}

	if err := validate(cfg); err != nil {
		return nil, &Error{Kind: KindInvalid, Path: path, Err: err}
	}

	for _, id := range cfg.DuplicateIdentifiers() {
		logger.Warn("duplicate endpoint identifier; the first declared endpoint wins",
			zap.String("identifier", id), zap.String("file", path))
	}
	logger.Info("config file loaded",
		zap.String("file", path),
		zap.Int("endpoints", len(cfg.Endpoints)),
	)

	return &cfg, nil
}

// readFile reads path and classifies failures the way an operator needs to
// see them: missing, unreadable, or something else.
func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		return b, nil
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &Error{Kind: KindNotFound, Path: path, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return nil, &Error{Kind: KindPermission, Path: path, Err: err, Detail: permissionDetail(path)}
	}

	// Reading a directory fails with EISDIR on unix rather than a permission error.
	if fi, statErr := os.Stat(path); statErr == nil && fi.IsDir() {
		return nil, &Error{Kind: KindPermission, Path: path, Err: err, Detail: "path is a directory, not a file"}
	}
	return nil, &Error{Kind: KindRead, Path: path, Err: err}
}

func permissionDetail(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return ""
	}
	if fi.IsDir() {
		return "path is a directory, not a file"
	}
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("readonly: %t", fi.Mode().Perm()&0o200 == 0)
	}
	return fmt.Sprintf("mode %o", fi.Mode().Perm())
}

func configType(path string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "yaml", "yml", "json", "toml":
		return ext
	default:
		return "toml"
	}
}

func envKeys() []string {
	return []string{
		"server.ip", "server.port", "server.max_payload",
		"server.smtp_server", "server.smtp_port", "server.smtp_user", "server.smtp_password",
		"server.smtp_hello", "server.smtp_timeout", "server.smtp_pool_size", "server.smtp_idle_timeout",
		"server.env", "server.log_level",
		"server.read_timeout", "server.write_timeout", "server.shutdown_timeout", "server.request_timeout",
		"probe.from_email", "probe.hello_name", "probe.smtp_check", "probe.timeout", "probe.workers",
		"probe.cache_ttl", "probe.redis_addr", "probe.redis_password", "probe.redis_db",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.ip", "127.0.0.1")
	v.SetDefault("server.port", 8088)
	v.SetDefault("server.max_payload", int64(4096))

	v.SetDefault("server.smtp_port", 25)
	v.SetDefault("server.smtp_hello", "localhost")
	v.SetDefault("server.smtp_timeout", "30s")
	v.SetDefault("server.smtp_pool_size", 4)
	v.SetDefault("server.smtp_idle_timeout", "60s")

	v.SetDefault("server.env", "prod")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.request_timeout", "50s")

	v.SetDefault("probe.hello_name", "localhost")
	v.SetDefault("probe.smtp_check", true)
	v.SetDefault("probe.timeout", "15s")
	v.SetDefault("probe.workers", 8)
	v.SetDefault("probe.cache_ttl", "1h")
	v.SetDefault("probe.redis_db", 0)
}

func validate(cfg Config) error {
	var missing []string
	var invalid []string

	s := cfg.Server
	if s.Port <= 0 || s.Port > 65535 {
		invalid = append(invalid, "server.port must be in 1..65535")
	}
	if s.MaxPayload <= 0 {
		invalid = append(invalid, "server.max_payload must be > 0")
	}
	if strings.TrimSpace(s.SMTPServer) == "" {
		missing = append(missing, "server.smtp_server")
	}
	if s.SMTPPort <= 0 || s.SMTPPort > 65535 {
		invalid = append(invalid, "server.smtp_port must be in 1..65535")
	}
	if s.SMTPPoolSize <= 0 {
		invalid = append(invalid, "server.smtp_pool_size must be > 0")
	}
	if s.SMTPTimeout <= 0 {
		invalid = append(invalid, "server.smtp_timeout must be > 0")
	}
	if cfg.Probe.Timeout <= 0 {
		invalid = append(invalid, "probe.timeout must be > 0")
	}
	if cfg.Probe.CacheTTL < 0 {
		invalid = append(invalid, "probe.cache_ttl must be >= 0")
	}

	if len(cfg.Endpoints) == 0 {
		missing = append(missing, "at least one [[endpoints]] entry")
	}
	for i, ep := range cfg.Endpoints {
		at := fmt.Sprintf("endpoints[%d]", i)
		if strings.TrimSpace(ep.Identifier) == "" {
			missing = append(missing, at+".identifier")
		}
		if strings.TrimSpace(ep.Domain) == "" {
			missing = append(missing, at+".domain")
		}
		if strings.TrimSpace(ep.FromEmail) == "" {
			missing = append(missing, at+".from_email")
		}
		if strings.TrimSpace(ep.Target.Email) == "" {
			missing = append(missing, at+".target.email")
		}
		if ep.MaxNameLength <= 0 {
			invalid = append(invalid, at+".max_name_length must be > 0")
		}
		if ep.MaxMessageLength <= 0 {
			invalid = append(invalid, at+".max_message_length must be > 0")
		}
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(invalid, ", "))
	}
	return errors.New(strings.Join(parts, " | "))
}
