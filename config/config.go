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

type Config struct {
	NodeHost        string        `yaml:"node_host"`
	RPCPort         int           `yaml:"rpc_port"`
	RPCUser         string        `yaml:"rpc_user"`
	RPCPassword     string        `yaml:"rpc_password"`
	RPCUseTLS       bool          `yaml:"rpc_tls"`
	TargetHeight    int64         `yaml:"target_height"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ListenHost      string        `yaml:"listen_host"`
	ListenPort      int           `yaml:"listen_port"`
	LogLevel        string        `yaml:"log_level"`
	MaxPeers        int           `yaml:"max_peers"`
}

func Default() *Config {
	return &Config{
		RPCPort:         9292,
		RefreshInterval: 10 * time.Second,
		RequestTimeout:  8 * time.Second,
		ListenHost:      "0.0.0.0",
		ListenPort:      4000,
		LogLevel:        "info",
		MaxPeers:        10,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE and finally the environment. The result is validated.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var errs []error

	if v, ok := os.LookupEnv("TERANODE_HOST"); ok {
		c.NodeHost = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("TERANODE_RPC_USER"); ok {
		c.RPCUser = v
	}
	if v, ok := os.LookupEnv("TERANODE_RPC_PASS"); ok {
		c.RPCPassword = v
	}
	if v, ok := os.LookupEnv("LISTEN_HOST"); ok {
		c.ListenHost = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		c.LogLevel = v
	}

	errs = append(errs,
		envInt("TERANODE_RPC_PORT", &c.RPCPort),
		envInt("LISTEN_PORT", &c.ListenPort),
		envInt("MAX_PEERS", &c.MaxPeers),
		envInt64("TARGET_HEIGHT", &c.TargetHeight),
		envBool("TERANODE_RPC_TLS", &c.RPCUseTLS),
		envDurationMs("REFRESH_INTERVAL_MS", &c.RefreshInterval),
		envDurationMs("REQUEST_TIMEOUT_MS", &c.RequestTimeout),
	)

	return errors.Join(errs...)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.NodeHost == "" {
		errs = append(errs, errors.New("node host is required (TERANODE_HOST)"))
	}
	if c.RPCUser == "" || c.RPCPassword == "" {
		errs = append(errs, errors.New("rpc credentials are required (TERANODE_RPC_USER, TERANODE_RPC_PASS)"))
	}
	if !validPort(c.RPCPort) {
		errs = append(errs, fmt.Errorf("invalid rpc port %d", c.RPCPort))
	}
	if !validPort(c.ListenPort) {
		errs = append(errs, fmt.Errorf("invalid listen port %d", c.ListenPort))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval))
	}
	if c.RequestTimeout <= 0 || c.RequestTimeout >= c.RefreshInterval {
		errs = append(errs, fmt.Errorf("request timeout %s must be positive and shorter than the refresh interval %s",
			c.RequestTimeout, c.RefreshInterval))
	}
	if c.TargetHeight < 0 {
		errs = append(errs, fmt.Errorf("target height must not be negative, got %d", c.TargetHeight))
	}
	if c.MaxPeers < 0 {
		errs = append(errs, fmt.Errorf("max peers must not be negative, got %d", c.MaxPeers))
	}

	return errors.Join(errs...)
}

// RPCURL is the node's JSON-RPC endpoint.
func (c *Config) RPCURL() string {
	scheme := "http"
	if c.RPCUseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/", scheme, c.NodeHost, c.RPCPort)
}

func (c *Config) ListenAddr() string {
	return c.ListenHost + ":" + strconv.Itoa(c.ListenPort)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envInt64(key string, dst *int64) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDurationMs(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	ms, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}
