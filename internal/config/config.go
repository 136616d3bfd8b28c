package config

import "time"

type Config struct {
	Env         string       `yaml:"env" env:"APP_ENV"`
	Port        int          `yaml:"port" env:"PORT"`
	DatabaseURL string       `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string       `yaml:"redis_url" env:"REDIS_URL"`
	Logger      LoggerConfig `yaml:"logger"`

	Door      DoorConfig      `yaml:"door"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Session   SessionConfig   `yaml:"session"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LoggerConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// DoorConfig covers the door relay and the shared secret guarding it.
// Secret may be inlined (development) or resolved at startup from AWS
// Secrets Manager when SecretRef names a secret id.
type DoorConfig struct {
	Secret        string        `yaml:"secret" env:"DOOR_SECRET"`
	SecretRef     string        `yaml:"secret_ref" env:"DOOR_SECRET_REF"`
	RelayURL      string        `yaml:"relay_url" env:"DOOR_RELAY_URL"`
	RelayTimeout  time.Duration `yaml:"relay_timeout"`
	DefaultDoorID string        `yaml:"default_door_id"`
}

// MatcherConfig describes the face matcher sidecar and the decision
// thresholds applied to its results. Liveness is required unless AllowNonLive
// is set explicitly; the zero value of this struct is the strict policy.
type MatcherConfig struct {
	URL           string        `yaml:"url" env:"MATCHER_URL"`
	Timeout       time.Duration `yaml:"timeout"`
	MinConfidence float64       `yaml:"min_confidence"`
	AutoApprove   float64       `yaml:"auto_approve_confidence"`
	AllowNonLive  bool          `yaml:"allow_non_live"`
}

type RateLimitConfig struct {
	Window          time.Duration `yaml:"window"`
	Max             int           `yaml:"max"`
	KeyPrefix       string        `yaml:"key_prefix"`
	SweepSlack      time.Duration `yaml:"sweep_slack"`
	StrictOnFailure bool          `yaml:"strict_on_failure"`
}

type SessionConfig struct {
	SigningKey string        `yaml:"signing_key" env:"SESSION_SIGNING_KEY"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	Issuer     string        `yaml:"issuer"`
}

// AuditConfig bounds how long access attempts are kept. Zero Retention
// disables pruning entirely; the log is then append-only forever.
type AuditConfig struct {
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type TelemetryConfig struct {
	Kafka   KafkaAuditConfig   `yaml:"kafka"`
	Elastic ElasticAuditConfig `yaml:"elastic"`
}

type KafkaAuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	TopicAccess   string        `yaml:"topic_access"`
	GroupID       string        `yaml:"group_id"`
	BatchSize     int           `yaml:"batch_size"`
	FlushEvery    time.Duration `yaml:"flush_every"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	MinBytes      int           `yaml:"min_bytes"`
	MaxBytes      int           `yaml:"max_bytes"`
	TLS           bool          `yaml:"tls"`
}

// ElasticAuditConfig drives the optional search sink. When enabled together
// with Kafka, a bridge consumes the access topic and bulk-indexes attempts
// into daily indices.
type ElasticAuditConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key" env:"ELASTIC_API_KEY"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password" env:"ELASTIC_PASSWORD"`
	IndexPrefix string        `yaml:"index_prefix"`
	FlushSize   int           `yaml:"flush_size"`
	FlushEvery  time.Duration `yaml:"flush_every"`
	Timeout     time.Duration `yaml:"timeout"`
}

// IsDevelopment reports whether the service runs in the explicitly named
// development mode. Only this mode may relax the shared-secret requirement.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
