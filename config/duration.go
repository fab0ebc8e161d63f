// config/duration.go
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// durationKeys maps viper keys to the Config fields they populate. Viper's
// decoder turns a bare integer into nanoseconds, so every duration is
// re-read from the raw value here.
func durationKeys(cfg *Config) map[string]*time.Duration {
	return map[string]*time.Duration{
		"server.smtp_timeout":      &cfg.Server.SMTPTimeout,
		"server.smtp_idle_timeout": &cfg.Server.SMTPIdleTimeout,
		"server.read_timeout":      &cfg.Server.ReadTimeout,
		"server.write_timeout":     &cfg.Server.WriteTimeout,
		"server.shutdown_timeout":  &cfg.Server.ShutdownTimeout,
		"server.request_timeout":   &cfg.Server.RequestTimeout,
		"probe.timeout":            &cfg.Probe.Timeout,
		"probe.cache_ttl":          &cfg.Probe.CacheTTL,
	}
}

// applyDurations re-parses every duration key from v into cfg.
// probe.cache_ttl may be zero (cache disabled); all others must be > 0.
func applyDurations(v *viper.Viper, cfg *Config) error {
	var bad []string
	for key, dst := range durationKeys(cfg) {
		raw := v.Get(key)
		if key == "probe.cache_ttl" && isZero(raw) {
			*dst = 0
			continue
		}
		d, err := parseDurationFlexible(raw, *dst)
		if err != nil {
			bad = append(bad, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		*dst = d
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid durations: %s", strings.Join(bad, ", "))
	}
	return nil
}

func isZero(raw interface{}) bool {
	switch t := raw.(type) {
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case time.Duration:
		return t == 0
	case string:
		s := strings.TrimSpace(t)
		return s == "0" || s == "0s"
	}
	return false
}

// parseDurationFlexible accepts strings like "90s"/"2m", numeric seconds, or time.Duration.
// Returns def on empty/unknown types; returns def + error on invalid strings.
func parseDurationFlexible(raw interface{}, def time.Duration) (time.Duration, error) {
	switch t := raw.(type) {
	case time.Duration:
		if t <= 0 {
			return def, fmt.Errorf("duration must be >0")
		}
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def, nil
		}
		if d, err := time.ParseDuration(s); err == nil {
			if d <= 0 {
				return def, fmt.Errorf("duration must be >0")
			}
			return d, nil
		}
		// Allow plain seconds in string form, e.g. "120"
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			if n <= 0 {
				return def, fmt.Errorf("seconds must be >0")
			}
			return time.Duration(n) * time.Second, nil
		}
		return def, fmt.Errorf("cannot parse duration %q", s)
	case int:
		if t <= 0 {
			return def, fmt.Errorf("seconds must be >0")
		}
		return time.Duration(t) * time.Second, nil
	case int64:
		if t <= 0 {
			return def, fmt.Errorf("seconds must be >0")
		}
		return time.Duration(t) * time.Second, nil
	case float64:
		if t <= 0 {
			return def, fmt.Errorf("seconds must be >0")
		}
		return time.Duration(t * float64(time.Second)), nil
	default:
		return def, nil
	}
}
