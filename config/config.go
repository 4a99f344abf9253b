package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/hupe1980/agentwire"
	"github.com/hupe1980/agentwire/logging"
	"gopkg.in/yaml.v3"
)

// Config is the complete agentwire configuration.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Node      NodeConfig      `yaml:"node"`
	Polling   PollingConfig   `yaml:"polling"`
	Responder ResponderConfig `yaml:"responder"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AgentConfig selects the agent variant and its identity.
type AgentConfig struct {
	Kind string `yaml:"kind"`
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// NodeConfig configures the streaming variant.
type NodeConfig struct {
	URL string `yaml:"url"`

	ReconnectDelay time.Duration `yaml:"-"`
	ErrorBackoff   time.Duration `yaml:"-"`
	ConnectTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ReconnectDelayRaw string `yaml:"reconnect_delay"`
	ErrorBackoffRaw   string `yaml:"error_backoff"`
	ConnectTimeoutRaw string `yaml:"connect_timeout"`
}

// PollingConfig configures the polling variant.
type PollingConfig struct {
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key"`

	Interval       time.Duration `yaml:"-"`
	RequestTimeout time.Duration `yaml:"-"`

	IntervalRaw       string `yaml:"interval"`
	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// ResponderConfig configures model-backed replies.
type ResponderConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Provider      string   `yaml:"provider"`
	Model         string   `yaml:"model"`
	APIKey        string   `yaml:"api_key"`
	BaseURL       string   `yaml:"base_url"`
	Temperature   *float64 `yaml:"temperature"`
	MaxTokens     int64    `yaml:"max_tokens"`
	Instruction   string   `yaml:"instruction"`
	HistoryLimit  int      `yaml:"history_limit"`
	FallbackReply string   `yaml:"fallback_reply"`

	CallDelay    time.Duration `yaml:"-"`
	CallDelayRaw string        `yaml:"call_delay"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// Supported responder providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderEcho      = "echo"
)

// Load reads a configuration file from the given path and returns a parsed,
// defaulted and validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for in-memory YAML.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or the empty
// string when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Agent.Kind == "" {
		c.Agent.Kind = string(agentwire.KindNode)
	}
	if c.Agent.Name == "" {
		c.Agent.Name = c.Agent.Kind + "-agent"
	}
	if c.Node.ReconnectDelay == 0 {
		c.Node.ReconnectDelay = 5 * time.Second
	}
	if c.Node.ErrorBackoff == 0 {
		c.Node.ErrorBackoff = time.Second
	}
	if c.Node.ConnectTimeout == 0 {
		c.Node.ConnectTimeout = 30 * time.Second
	}
	if c.Polling.Interval == 0 {
		c.Polling.Interval = 5 * time.Second
	}
	if c.Polling.RequestTimeout == 0 {
		c.Polling.RequestTimeout = 30 * time.Second
	}
	if c.Responder.Provider == "" {
		c.Responder.Provider = ProviderOpenAI
	}
	if c.Responder.Temperature == nil {
		t := 0.7
		c.Responder.Temperature = &t
	}
	if c.Responder.HistoryLimit == 0 {
		c.Responder.HistoryLimit = 10
	}
	if c.Responder.CallDelayRaw == "" && c.Responder.CallDelay == 0 {
		c.Responder.CallDelay = 500 * time.Millisecond
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and
// valid. It returns the first failure encountered.
func (c *Config) Validate() error {
	kind, err := agentwire.ParseKind(c.Agent.Kind)
	if err != nil {
		return fmt.Errorf("agent.kind: %w", err)
	}

	switch kind {
	case agentwire.KindNode:
		if c.Node.URL == "" {
			return fmt.Errorf("node.url is required for node agents")
		}
	case agentwire.KindPolling:
		if c.Polling.APIURL == "" {
			return fmt.Errorf("polling.api_url is required for polling agents")
		}
	}

	if c.Responder.Enabled {
		switch c.Responder.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderEcho:
		default:
			return fmt.Errorf("responder.provider %q is not supported", c.Responder.Provider)
		}
		if c.Responder.HistoryLimit < 2 {
			return fmt.Errorf("responder.history_limit must be at least 2")
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be json or text")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"node.reconnect_delay", cfg.Node.ReconnectDelayRaw, &cfg.Node.ReconnectDelay},
		{"node.error_backoff", cfg.Node.ErrorBackoffRaw, &cfg.Node.ErrorBackoff},
		{"node.connect_timeout", cfg.Node.ConnectTimeoutRaw, &cfg.Node.ConnectTimeout},
		{"polling.interval", cfg.Polling.IntervalRaw, &cfg.Polling.Interval},
		{"polling.request_timeout", cfg.Polling.RequestTimeoutRaw, &cfg.Polling.RequestTimeout},
		{"responder.call_delay", cfg.Responder.CallDelayRaw, &cfg.Responder.CallDelay},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}

	return nil
}

// LogLevel returns the parsed logging level.
func (c *Config) LogLevel() logging.LogLevel {
	l, _ := logging.ParseLevel(c.Logging.Level)
	return l
}

// AgentOptions maps the agent, node and polling sections onto agentwire
// options. Responder, logger and observer are wired by the caller.
func (c *Config) AgentOptions() func(o *agentwire.Options) {
	return func(o *agentwire.Options) {
		o.Kind = agentwire.Kind(c.Agent.Kind)
		o.Name = c.Agent.Name
		o.AgentID = c.Agent.ID

		o.NodeURL = c.Node.URL
		o.ReconnectDelay = c.Node.ReconnectDelay
		o.ConnectTimeout = c.Node.ConnectTimeout
		o.ErrorBackoff = c.Node.ErrorBackoff

		o.APIURL = c.Polling.APIURL
		o.APIKey = c.Polling.APIKey
		o.PollInterval = c.Polling.Interval
		o.RequestTimeout = c.Polling.RequestTimeout
	}
}
