package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from YAML and environment variables
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables in YAML
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(cfg)
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overrideWithEnv applies `env:` struct tags on top of the YAML values, so a
// set environment variable always wins over the file.
func overrideWithEnv(cfg *Config) {
	applyEnvTags(reflect.ValueOf(cfg).Elem())
}

func applyEnvTags(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if fieldVal.Kind() == reflect.Struct {
			applyEnvTags(fieldVal)
			continue
		}

		envKey := field.Tag.Get("env")
		if envKey == "" {
			continue
		}
		envValue, exists := os.LookupEnv(envKey)
		if !exists {
			continue
		}

		switch {
		case field.Type == reflect.TypeOf(time.Duration(0)):
			if d, err := time.ParseDuration(envValue); err == nil {
				fieldVal.SetInt(int64(d))
			}
		case fieldVal.Kind() == reflect.String:
			fieldVal.SetString(envValue)
		case fieldVal.Kind() == reflect.Int:
			if intValue, err := strconv.Atoi(envValue); err == nil {
				fieldVal.SetInt(int64(intValue))
			}
		case fieldVal.Kind() == reflect.Bool:
			if boolValue, err := strconv.ParseBool(envValue); err == nil {
				fieldVal.SetBool(boolValue)
			}
		case fieldVal.Kind() == reflect.Float64:
			if floatValue, err := strconv.ParseFloat(envValue, 64); err == nil {
				fieldVal.SetFloat(floatValue)
			}
		case fieldVal.Kind() == reflect.Slice && field.Type.Elem().Kind() == reflect.String:
			fieldVal.Set(reflect.ValueOf(strings.Split(envValue, ",")))
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.Port == 0 {
		cfg.Port = 8443
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Encoding == "" {
		cfg.Logger.Encoding = "console"
	}
	if cfg.Door.RelayTimeout <= 0 {
		cfg.Door.RelayTimeout = 5 * time.Second
	}
	if cfg.Door.DefaultDoorID == "" {
		cfg.Door.DefaultDoorID = "front"
	}
	if cfg.Matcher.Timeout <= 0 {
		cfg.Matcher.Timeout = 10 * time.Second
	}
	if cfg.Matcher.MinConfidence <= 0 {
		cfg.Matcher.MinConfidence = 0.70
	}
	if cfg.Matcher.AutoApprove <= 0 {
		cfg.Matcher.AutoApprove = 0.85
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.Max <= 0 {
		cfg.RateLimit.Max = 10
	}
	if cfg.RateLimit.KeyPrefix == "" {
		cfg.RateLimit.KeyPrefix = "doorrl:"
	}
	if cfg.RateLimit.SweepSlack <= 0 {
		cfg.RateLimit.SweepSlack = 5 * time.Second
	}
	if cfg.Session.TokenTTL <= 0 {
		cfg.Session.TokenTTL = 15 * time.Minute
	}
	if cfg.Session.Issuer == "" {
		cfg.Session.Issuer = "access-service"
	}
	if cfg.Audit.SweepInterval <= 0 {
		cfg.Audit.SweepInterval = time.Hour
	}
}

func validate(cfg *Config) error {
	if cfg.Matcher.AutoApprove < cfg.Matcher.MinConfidence {
		return fmt.Errorf("matcher: auto_approve_confidence %.2f below min_confidence %.2f",
			cfg.Matcher.AutoApprove, cfg.Matcher.MinConfidence)
	}
	if cfg.Telemetry.Kafka.Enabled && len(cfg.Telemetry.Kafka.Brokers) == 0 {
		return fmt.Errorf("telemetry: kafka enabled without brokers")
	}
	if cfg.Telemetry.Elastic.Enabled {
		if cfg.Telemetry.Elastic.Endpoint == "" {
			return fmt.Errorf("telemetry: elastic enabled without endpoint")
		}
		if !cfg.Telemetry.Kafka.Enabled {
			return fmt.Errorf("telemetry: elastic sink requires the kafka audit topic")
		}
	}
	return nil
}
