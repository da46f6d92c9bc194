package config

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "config.yaml"

	defaultApplicationPort      = 8080
	defaultFeeMin               = 100
	defaultFeeMax               = 1000
	defaultFeeIntervals         = 5
	defaultUpdateFrequency      = 100
	defaultMaxConcurrentUpdates = 16
	maxAutoRPCTimeout           = 30 * time.Second

	// maxSeconds is the longest period a time.Duration can hold.
	maxSeconds = uint64(math.MaxInt64 / int64(time.Second))
)

// Source holds the connection parameters of a single lnd node
type Source struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Macaroon string `yaml:"macaroon" json:"macaroon"`
	Cert     string `yaml:"cert" json:"cert"`
}

// PolicyConfig holds the tunables of the fee and htlc computation
type PolicyConfig struct {
	DynamicFees     bool   `yaml:"dynamic_fees" json:"dynamic_fees"`
	FeeMin          uint64 `yaml:"dynamic_fee_min" json:"dynamic_fee_min"`
	FeeMax          uint64 `yaml:"dynamic_fee_max" json:"dynamic_fee_max"`
	FeeIntervals    uint32 `yaml:"dynamic_fee_intervals" json:"dynamic_fee_intervals"`
	UpdateFrequency uint64 `yaml:"dynamic_fee_update_frequency" json:"dynamic_fee_update_frequency"`
}

type AppConfig struct {
	ApplicationPort uint16   `yaml:"application_port" json:"application_port"`
	Sources         []Source `yaml:"sources" json:"sources"`
	PolicyConfig    `yaml:",inline"`

	// RPCTimeout bounds every node call in seconds. Zero picks half the
	// update frequency, capped at 30 seconds.
	RPCTimeout           uint64   `yaml:"rpc_timeout" json:"rpc_timeout"`
	MaxConcurrentUpdates int      `yaml:"max_concurrent_updates" json:"max_concurrent_updates"`
	CorsAllowedOrigins   []string `yaml:"cors_allowed_origins" json:"cors_allowed_origins,omitempty"`
}

// ConfigLoadError is returned for a config file that exists but can't be used
type ConfigLoadError struct {
	Path string
	Err  error
}

func (err *ConfigLoadError) Error() string {
	return fmt.Sprintf("Could not load config %v: %v", err.Path, err.Err)
}

func (err *ConfigLoadError) Unwrap() error {
	return err.Err
}

func Default() *AppConfig {
	return &AppConfig{
		ApplicationPort: defaultApplicationPort,
		Sources:         []Source{},
		PolicyConfig: PolicyConfig{
			DynamicFees:     true,
			FeeMin:          defaultFeeMin,
			FeeMax:          defaultFeeMax,
			FeeIntervals:    defaultFeeIntervals,
			UpdateFrequency: defaultUpdateFrequency,
		},
		MaxConcurrentUpdates: defaultMaxConcurrentUpdates,
	}
}

// Load reads the YAML config at path on top of the defaults. A missing file
// isn't an error, the defaults are returned instead.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		log.WithField("path", path).Warn("No config file found, using default configuration")
		log.Debugf("Config: %+v", cfg)
		return cfg, nil
	}
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}

	for i := range cfg.Sources {
		cfg.Sources[i].Cert = CleanAndExpandPath(cfg.Sources[i].Cert)
		cfg.Sources[i].Macaroon = CleanAndExpandPath(cfg.Sources[i].Macaroon)
	}

	return cfg, nil
}

// Parse decodes a YAML document on top of the defaults and validates it.
// Unknown fields are rejected.
func Parse(data []byte) (*AppConfig, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Errorf("yaml formatting error: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.FeeIntervals < 1 {
		return errors.New("dynamic_fee_intervals must be at least 1")
	}
	if c.FeeMax > math.MaxUint32 {
		return errors.Errorf("dynamic_fee_max (%d) must not exceed %d", c.FeeMax, uint64(math.MaxUint32))
	}
	if c.FeeMax < c.FeeMin {
		return errors.Errorf("dynamic_fee_max (%d) must not be lower than dynamic_fee_min (%d)", c.FeeMax, c.FeeMin)
	}
	if c.UpdateFrequency < 1 {
		return errors.New("dynamic_fee_update_frequency must be at least 1 second")
	}
	if c.UpdateFrequency > maxSeconds {
		return errors.Errorf("dynamic_fee_update_frequency (%d) must not exceed %d seconds", c.UpdateFrequency, maxSeconds)
	}
	if c.RPCTimeout > maxSeconds {
		return errors.Errorf("rpc_timeout (%d) must not exceed %d seconds", c.RPCTimeout, maxSeconds)
	}
	if c.RPCTimeout != 0 && c.RPCTimeout >= c.UpdateFrequency {
		return errors.Errorf("rpc_timeout (%d) must be shorter than dynamic_fee_update_frequency (%d)",
			c.RPCTimeout, c.UpdateFrequency)
	}
	if c.MaxConcurrentUpdates < 1 {
		return errors.New("max_concurrent_updates must be at least 1")
	}
	for i, source := range c.Sources {
		if strings.TrimSpace(source.Endpoint) == "" {
			return errors.Errorf("sources[%d]: endpoint required", i)
		}
	}
	return nil
}

func (c *AppConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateFrequency) * time.Second
}

func (c *AppConfig) RPCTimeoutDuration() time.Duration {
	if c.RPCTimeout != 0 {
		return time.Duration(c.RPCTimeout) * time.Second
	}
	timeout := c.UpdateInterval() / 2
	if timeout > maxAutoRPCTimeout {
		timeout = maxAutoRPCTimeout
	}
	return timeout
}

// Clone returns a deep copy of the config
func (c *AppConfig) Clone() *AppConfig {
	clone := *c
	if c.Sources != nil {
		clone.Sources = append(make([]Source, 0, len(c.Sources)), c.Sources...)
	}
	if c.CorsAllowedOrigins != nil {
		clone.CorsAllowedOrigins = append(make([]string, 0, len(c.CorsAllowedOrigins)), c.CorsAllowedOrigins...)
	}
	return &clone
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
