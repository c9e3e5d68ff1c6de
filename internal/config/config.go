package config

import (
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/deeplink/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "deeplink.json"

	// DefaultPort is the default server port.
	DefaultPort = 8080

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultRoutes is the default route file.
	DefaultRoutes = "routes.yaml"

	// DefaultMetricsPath is where metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultWebSocketPath is where browsers connect.
	DefaultWebSocketPath = "/ws"

	// DefaultServiceName is the tracing service name.
	DefaultServiceName = "deeplink"
)

// Route sources.
const (
	RoutesFromFile = "file"
	RoutesFromS3   = "s3"
)

// Environment variables that override the file.
const (
	EnvPort     = "DEEPLINK_PORT"
	EnvHost     = "DEEPLINK_HOST"
	EnvLogLevel = "DEEPLINK_LOG_LEVEL"
)

// Config represents deeplink.json.
type Config struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// Routes is the path of the YAML route file, or the object key when
	// RoutesSource is "s3".
	Routes string `json:"routes,omitempty"`

	// RoutesSource selects where the route file is read from: "file" or "s3".
	RoutesSource string `json:"routesSource,omitempty"`

	// S3 locates the route file in S3.
	S3 S3Config `json:"s3,omitempty"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Tracing contains OpenTelemetry settings.
	Tracing TracingConfig `json:"tracing,omitempty"`

	// WebSocket contains browser connection settings.
	WebSocket WebSocketConfig `json:"websocket,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// S3Config locates an object in S3.
type S3Config struct {
	Bucket string `json:"bucket,omitempty"`
	Key    string `json:"key,omitempty"`
	Region string `json:"region,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled serves metrics at Path.
	Enabled bool `json:"enabled,omitempty"`

	// Path is the metrics endpoint (default: "/metrics").
	Path string `json:"path,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// ServiceName names the tracer (default: "deeplink").
	ServiceName string `json:"serviceName,omitempty"`
}

// WebSocketConfig contains browser connection settings.
type WebSocketConfig struct {
	// Path is the WebSocket endpoint (default: "/ws").
	Path string `json:"path,omitempty"`

	// ReadTimeout is how long a connection may stay silent (e.g., "60s").
	ReadTimeout string `json:"readTimeout,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		Routes:       DefaultRoutes,
		RoutesSource: RoutesFromFile,
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		Tracing: TracingConfig{
			ServiceName: DefaultServiceName,
		},
		WebSocket: WebSocketConfig{
			Path:        DefaultWebSocketPath,
			ReadTimeout: "60s",
		},
		LogLevel: "info",
	}
}

// Load reads configuration from the specified directory.
// It looks for deeplink.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path))
		}
		return nil, errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Routes == "" {
		c.Routes = DefaultRoutes
	}
	if c.RoutesSource == "" {
		c.RoutesSource = RoutesFromFile
	}
	if c.S3.Key == "" {
		c.S3.Key = c.Routes
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
	if c.WebSocket.Path == "" {
		c.WebSocket.Path = DefaultWebSocketPath
	}
	if c.WebSocket.ReadTimeout == "" {
		c.WebSocket.ReadTimeout = "60s"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ApplyEnv overrides fields from the environment. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvHost); v != "" {
		c.Host = v
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.New(errors.CodeConfigInvalid).
				WithDetail(EnvPort + " must be a number, got " + strconv.Quote(v))
		}
		c.Port = port
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("Port must be between 0 and 65535")
	}
	switch c.RoutesSource {
	case RoutesFromFile:
		if c.Routes == "" {
			return errors.New(errors.CodeConfigInvalid).
				WithDetail("routes must name a route file")
		}
	case RoutesFromS3:
		if c.S3.Bucket == "" || c.S3.Key == "" {
			return errors.New(errors.CodeConfigInvalid).
				WithDetail("routesSource \"s3\" requires s3.bucket and s3.key")
		}
	default:
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("routesSource must be \"file\" or \"s3\", got " + strconv.Quote(c.RoutesSource))
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if _, err := c.ReadTimeout(); err != nil {
		return err
	}
	return nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the base URL of the server.
func (c *Config) URL() string {
	return "http://" + c.Address()
}

// RoutesPath returns the absolute path to the route file.
func (c *Config) RoutesPath() string {
	if filepath.IsAbs(c.Routes) {
		return c.Routes
	}
	return filepath.Join(c.Dir(), c.Routes)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, errors.New(errors.CodeConfigInvalid).
			WithDetail("logLevel must be debug, info, warn or error").
			Wrap(err)
	}
	return level, nil
}

// ReadTimeout parses WebSocket.ReadTimeout.
func (c *Config) ReadTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.WebSocket.ReadTimeout)
	if err != nil || d <= 0 {
		return 0, errors.New(errors.CodeConfigInvalid).
			WithDetail("websocket.readTimeout must be a positive duration such as \"60s\"")
	}
	return d, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the directory containing
// deeplink.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or its nearest parent holding deeplink.json.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
