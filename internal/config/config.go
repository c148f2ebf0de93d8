package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath            = "/etc/godaikin/config.yaml"
	DefaultGRPCAddr        = "0.0.0.0:9000"
	DefaultHTTPAddr        = "0.0.0.0:8080"
	DefaultMQTTPort        = 1883
	DefaultPrefix          = "godaikin"
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultKeepAlive       = 30 * time.Second
	DefaultRefreshInterval = 60 * time.Second
	DefaultRequestTimeout  = 15 * time.Second
	DefaultRegion          = "ap-southeast-1"
	DefaultClientID        = "36f6piu770fotfscvhi3jb1vb7"
	DefaultBaseURL         = "https://c7zkf7l933.execute-api.ap-southeast-1.amazonaws.com/prod/"
	DefaultRatePerMinute   = 30
	DefaultRatePerDay      = 5000
	DefaultNATSPrefix      = "godaikin"
)

// Config is the bridge configuration.
type Config struct {
	Daikin   DaikinConfig   `yaml:"daikin"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Logging  LoggingConfig  `yaml:"logging"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	NATS     NATSConfig     `yaml:"nats"`
}

type DaikinConfig struct {
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	BaseURL         string        `yaml:"base_url"`
	Region          string        `yaml:"region"`
	ClientID        string        `yaml:"client_id"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	Rate            RateConfig    `yaml:"rate"`
}

type RateConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

type MQTTConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	ClientID        string        `yaml:"client_id"`
	Prefix          string        `yaml:"prefix"`
	DiscoveryPrefix string        `yaml:"discovery_prefix"`
	KeepAlive       time.Duration `yaml:"keepalive"`
}

// BrokerURL returns the tcp:// URL paho expects.
func (m MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", m.Host, m.Port)
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load reads the optional YAML file at path, applies env overrides, and validates.
// An empty path skips the file and relies on defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GRPCAddr reads grpc.addr from the file at path without validating the rest,
// so tools can find the bridge with a partial config.
func GRPCAddr(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	var partial struct {
		GRPC GRPCConfig `yaml:"grpc"`
	}
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return "", fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("GODAIKIN_GRPC_ADDR"); v != "" {
		return v, nil
	}
	return partial.GRPC.Addr, nil
}

func defaultConfig() *Config {
	return &Config{
		Daikin: DaikinConfig{
			BaseURL:         DefaultBaseURL,
			Region:          DefaultRegion,
			ClientID:        DefaultClientID,
			RefreshInterval: DefaultRefreshInterval,
			RequestTimeout:  DefaultRequestTimeout,
			Rate: RateConfig{
				PerMinute: DefaultRatePerMinute,
				PerDay:    DefaultRatePerDay,
			},
		},
		MQTT: MQTTConfig{
			Port:            DefaultMQTTPort,
			Prefix:          DefaultPrefix,
			DiscoveryPrefix: DefaultDiscoveryPrefix,
			KeepAlive:       DefaultKeepAlive,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		HTTP:    HTTPConfig{Addr: DefaultHTTPAddr},
		GRPC:    GRPCConfig{Addr: DefaultGRPCAddr},
		NATS:    NATSConfig{SubjectPrefix: DefaultNATSPrefix},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GODAIKIN_USERNAME"); v != "" {
		cfg.Daikin.Username = v
	}
	if v := os.Getenv("GODAIKIN_PASSWORD"); v != "" {
		cfg.Daikin.Password = v
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Daikin.RefreshInterval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Port = port
		}
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GODAIKIN_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("GODAIKIN_GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}
}

// Validate reports every missing or out-of-range field at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Daikin.Username) == "" {
		errs = append(errs, errors.New("daikin.username is required"))
	}
	if c.Daikin.Password == "" {
		errs = append(errs, errors.New("daikin.password is required"))
	}
	if c.Daikin.BaseURL == "" {
		errs = append(errs, errors.New("daikin.base_url is required"))
	}
	if c.Daikin.RefreshInterval <= 0 {
		errs = append(errs, errors.New("daikin.refresh_interval must be positive"))
	}
	if c.Daikin.Rate.PerMinute < 0 || c.Daikin.Rate.PerDay < 0 {
		errs = append(errs, errors.New("daikin.rate limits must not be negative"))
	}
	if c.MQTT.Host == "" {
		errs = append(errs, errors.New("mqtt.host is required"))
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		errs = append(errs, fmt.Errorf("mqtt.port %d out of range", c.MQTT.Port))
	}
	if c.MQTT.Prefix == "" || strings.ContainsAny(c.MQTT.Prefix, "+#/") {
		errs = append(errs, fmt.Errorf("mqtt.prefix %q is invalid", c.MQTT.Prefix))
	}
	if c.MQTT.DiscoveryPrefix == "" {
		errs = append(errs, errors.New("mqtt.discovery_prefix is required"))
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, errors.New("influxdb.url and influxdb.bucket are required when enabled"))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required when enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
