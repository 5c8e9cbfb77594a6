package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"PastryDHT/internal/logger"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can carry human-readable
// values like "200ms" or "5s" (plain integers are read as nanoseconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	return fmt.Errorf("invalid duration: %s", value.Value)
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

type FileLoggerConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

type LoggerConfig struct {
	Active   bool             `yaml:"active"`
	Level    string           `yaml:"level"`
	Encoding string           `yaml:"encoding"`
	Mode     string           `yaml:"mode"`
	File     FileLoggerConfig `yaml:"file"`
}

type BootstrapConfig struct {
	Mode  string   `yaml:"mode"`
	Peers []string `yaml:"peers"`
}

type GossipConfig struct {
	Interval Duration `yaml:"interval"`
}

type TimeoutConfig struct {
	Connect Duration `yaml:"connect"`
	Read    Duration `yaml:"read"`
}

type DHTConfig struct {
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Gossip    GossipConfig    `yaml:"gossip"`
	Timeout   TimeoutConfig   `yaml:"timeout"`
}

type NodeConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	DHT       DHTConfig       `yaml:"dht"`
	Node      NodeConfig      `yaml:"node"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoadConfig loads the configuration from a YAML file at the given path.
//
// This function performs only syntactic parsing of the YAML file. To
// validate the configuration structure and check for missing or invalid
// fields, call cfg.ValidateConfig() after loading.
//
// Note that the identifier-space geometry (id bits, digit width, routing
// rows, leaf-set size) is deliberately absent here: geometry is fixed at
// initialization time through domain.NewSpace, and every node of a
// deployment must share it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	return &cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Only node-specific or deployment-dependent fields are
// overridable:
//
//	NODE_HOST        -> cfg.Node.Host
//	NODE_PORT        -> cfg.Node.Port
//	BOOTSTRAP_MODE   -> cfg.DHT.Bootstrap.Mode
//	BOOTSTRAP_PEERS  -> cfg.DHT.Bootstrap.Peers (comma-separated list)
//	GOSSIP_INTERVAL  -> cfg.DHT.Gossip.Interval (Go duration string)
//	TRACE_ENABLED    -> cfg.Telemetry.Tracing.Enabled
//	TRACE_EXPORTER   -> cfg.Telemetry.Tracing.Exporter
//	LOGGER_ENABLED   -> cfg.Logger.Active
//	LOGGER_LEVEL     -> cfg.Logger.Level
//	LOGGER_ENCODING  -> cfg.Logger.Encoding
//	LOGGER_MODE      -> cfg.Logger.Mode
//	LOGGER_FILE_PATH -> cfg.Logger.File.Path
//
// Integer values are parsed with strconv.Atoi and ignored when invalid;
// booleans accept "true", "1" or "yes" (case-insensitive) as true.
func (cfg *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NODE_HOST"); v != "" {
		cfg.Node.Host = v
	}
	if v := os.Getenv("NODE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Node.Port = port
		}
	}
	if v := os.Getenv("BOOTSTRAP_MODE"); v != "" {
		cfg.DHT.Bootstrap.Mode = v
	}
	if v := os.Getenv("BOOTSTRAP_PEERS"); v != "" {
		parts := strings.Split(v, ",")
		peers := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				peers = append(peers, p)
			}
		}
		cfg.DHT.Bootstrap.Peers = peers
	}
	if v := os.Getenv("GOSSIP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DHT.Gossip.Interval = Duration(d)
		}
	}
	if v := os.Getenv("TRACE_ENABLED"); v != "" {
		cfg.Telemetry.Tracing.Enabled = isTruthy(v)
	}
	if v := os.Getenv("TRACE_EXPORTER"); v != "" {
		cfg.Telemetry.Tracing.Exporter = v
	}
	if v := os.Getenv("LOGGER_ENABLED"); v != "" {
		cfg.Logger.Active = isTruthy(v)
	}
	if v := os.Getenv("LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("LOGGER_ENCODING"); v != "" {
		cfg.Logger.Encoding = v
	}
	if v := os.Getenv("LOGGER_MODE"); v != "" {
		cfg.Logger.Mode = v
	}
	if v := os.Getenv("LOGGER_FILE_PATH"); v != "" {
		cfg.Logger.File.Path = v
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// ValidateConfig performs structural validation of the loaded
// configuration. All detected issues are accumulated and returned as a
// single error. If the configuration is valid, the method returns nil.
func (cfg *Config) ValidateConfig() error {
	var errs []string

	// --- Logger ---
	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
		if cfg.Logger.File.MaxSize < 0 || cfg.Logger.File.MaxBackups < 0 || cfg.Logger.File.MaxAge < 0 {
			errs = append(errs, "logger.file.* values must be non-negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	// --- DHT ---
	switch cfg.DHT.Bootstrap.Mode {
	case "static":
		for _, p := range cfg.DHT.Bootstrap.Peers {
			if _, _, err := net.SplitHostPort(p); err != nil {
				errs = append(errs, fmt.Sprintf("invalid peer address %q in bootstrap.peers: %v", p, err))
			}
		}
	case "init":
		// first node of a fresh ring, no extra constraint
	default:
		errs = append(errs, fmt.Sprintf("invalid bootstrap.mode: %s (must be static or init)", cfg.DHT.Bootstrap.Mode))
	}
	if cfg.DHT.Gossip.Interval < 0 {
		errs = append(errs, "dht.gossip.interval must be >= 0 (0 disables gossip)")
	}
	if cfg.DHT.Timeout.Connect < 0 || cfg.DHT.Timeout.Read < 0 {
		errs = append(errs, "dht.timeout values must be >= 0 (0 selects the default)")
	}

	// --- Node ---
	if cfg.Node.Port < 0 || cfg.Node.Port > 65535 {
		errs = append(errs, fmt.Sprintf("node.port must be in [0,65535], got %d", cfg.Node.Port))
	}

	// --- Telemetry ---
	if cfg.Telemetry.Tracing.Enabled {
		switch cfg.Telemetry.Tracing.Exporter {
		case "stdout":
		default:
			errs = append(errs, fmt.Sprintf("invalid telemetry.tracing.exporter: %s", cfg.Telemetry.Tracing.Exporter))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig prints the loaded configuration at DEBUG level. Useful for
// debugging startup issues and verifying the file parsed as expected.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("Loaded configuration",
		// Logger
		logger.F("logger.active", cfg.Logger.Active),
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),
		logger.F("logger.file.path", cfg.Logger.File.Path),

		// DHT
		logger.F("dht.bootstrap.mode", cfg.DHT.Bootstrap.Mode),
		logger.F("dht.bootstrap.peers", cfg.DHT.Bootstrap.Peers),
		logger.F("dht.gossip.interval", cfg.DHT.Gossip.Interval.String()),
		logger.F("dht.timeout.connect", cfg.DHT.Timeout.Connect.String()),
		logger.F("dht.timeout.read", cfg.DHT.Timeout.Read.String()),

		// Node
		logger.F("node.host", cfg.Node.Host),
		logger.F("node.port", cfg.Node.Port),

		// Telemetry
		logger.F("telemetry.tracing.enabled", cfg.Telemetry.Tracing.Enabled),
		logger.F("telemetry.tracing.exporter", cfg.Telemetry.Tracing.Exporter),
	)
}
