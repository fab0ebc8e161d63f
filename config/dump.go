package config

import (
	"gopkg.in/yaml.v3"
)

const redacted = "[REDACTED]"

// Dump returns a YAML rendering of the config with secrets redacted.
// It is what --print-config writes.
func (c *Config) Dump() (string, error) {
	b, err := yaml.Marshal(c.redactedCopy())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Config) redactedCopy() Config {
	cp := *c
	if cp.Server.SMTPPassword != "" {
		cp.Server.SMTPPassword = redacted
	}
	if cp.Probe.RedisPassword != "" {
		cp.Probe.RedisPassword = redacted
	}
	cp.Endpoints = append([]EndpointConfig(nil), c.Endpoints...)
	return cp
}
