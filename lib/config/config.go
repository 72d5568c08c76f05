// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the spool daemon.
//
// Configuration is loaded from a single YAML file specified by:
//   - SPOOL_CONFIG environment variable, or
//   - --config flag passed to the command
//
// Every field has a working default; a daemon started with no file at
// all relays to a collector on localhost. There is no automatic
// discovery and environment variables never override file values, so
// a deployment is auditable from the file alone.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the spool daemon.
type Config struct {
	// Service identifies the monitored service in exported telemetry.
	Service ServiceConfig `yaml:"service"`

	// Server configures the upstream collector connection.
	Server ServerConfig `yaml:"server"`

	// Runtime configures the daemon's local filesystem and scheduling
	// footprint.
	Runtime RuntimeConfig `yaml:"runtime"`

	// Heartbeat configures the liveness announcer.
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`

	// Log configures daemon logging.
	Log LogConfig `yaml:"log"`
}

// ServiceConfig identifies the monitored service.
type ServiceConfig struct {
	// Name is the logical service name attached to every exported
	// item. Default: unnamed-service
	Name string `yaml:"name"`

	// Instance distinguishes this daemon from others reporting the
	// same service. Default: <hostname>:<pid> at startup.
	Instance string `yaml:"instance"`

	// Language is the language tag reported in announcements, normally
	// the language of the instrumented producers rather than of the
	// daemon. Default: unknown
	Language string `yaml:"language"`
}

// ServerConfig configures the upstream collector connection.
type ServerConfig struct {
	// Address is the collector endpoint, host:port.
	// Default: 127.0.0.1:4317
	Address string `yaml:"address"`

	// Protocol selects the export transport: "grpc" or "http".
	// Default: grpc
	Protocol string `yaml:"protocol"`

	// Authentication is an opaque token sent with every export as the
	// "authentication" header. Empty sends no header.
	Authentication string `yaml:"authentication"`

	// TLS configures transport security. Plaintext when disabled.
	TLS TLSConfig `yaml:"tls"`

	// Timeout bounds each export call. Default: 10s
	Timeout Duration `yaml:"timeout"`

	// Compression is the HTTP request body encoding: "none", "gzip",
	// "zstd", or "lz4". Ignored for gRPC. Default: none
	Compression string `yaml:"compression"`
}

// TLSConfig configures transport security for the collector
// connection.
type TLSConfig struct {
	// Enable switches the connection to TLS.
	Enable bool `yaml:"enable"`

	// CAPath is a PEM file with the trusted CA certificates. Empty
	// uses the system roots.
	CAPath string `yaml:"ca_path"`

	// CertPath and KeyPath enable mutual TLS when both are set.
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
}

// RuntimeConfig configures the daemon's local footprint.
type RuntimeConfig struct {
	// Directory holds the daemon's socket and lock files.
	// Default: /tmp/spool
	Directory string `yaml:"directory"`

	// Socket overrides the producer socket path.
	// Default: <directory>/spool.sock
	Socket string `yaml:"socket"`

	// Lock overrides the singleton lock file path.
	// Default: <directory>/spool.pid
	Lock string `yaml:"lock"`

	// QueueCapacity is the relay queue size in items. Default: 255
	QueueCapacity int `yaml:"queue_capacity"`

	// Workers pins GOMAXPROCS when positive; 0 keeps the Go default
	// (host parallelism). Default: 0
	Workers int `yaml:"workers"`
}

// HeartbeatConfig configures the liveness announcer.
type HeartbeatConfig struct {
	// Interval is the time between announcements. Default: 30s
	Interval Duration `yaml:"interval"`

	// ReportFactor spaces out full property reports: every Nth
	// announcement carries the full property set, the rest are pings.
	// Default: 10
	ReportFactor int `yaml:"report_factor"`
}

// LogConfig configures daemon logging.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`

	// File redirects structured logs to a file. Empty logs to stderr,
	// which a detached daemon has pointed at /dev/null.
	File string `yaml:"file"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the default configuration. A daemon running on it
// relays to a plaintext gRPC collector on localhost.
func Default() *Config {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}

	return &Config{
		Service: ServiceConfig{
			Name:     "unnamed-service",
			Instance: hostname + ":" + strconv.Itoa(os.Getpid()),
			Language: "unknown",
		},
		Server: ServerConfig{
			Address:     "127.0.0.1:4317",
			Protocol:    "grpc",
			Timeout:     Duration(10 * time.Second),
			Compression: "none",
		},
		Runtime: RuntimeConfig{
			Directory:     "/tmp/spool",
			QueueCapacity: 255,
			Workers:       0,
		},
		Heartbeat: HeartbeatConfig{
			Interval:     Duration(30 * time.Second),
			ReportFactor: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the SPOOL_CONFIG environment variable.
// When the variable is unset the defaults are returned as-is.
func Load() (*Config, error) {
	configPath := os.Getenv("SPOOL_CONFIG")
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// the defaults. The file is the single source of truth; environment
// variables do not override its values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// SocketPath returns the producer socket path, derived from the
// runtime directory unless overridden.
func (c *Config) SocketPath() string {
	if c.Runtime.Socket != "" {
		return c.Runtime.Socket
	}
	return filepath.Join(c.Runtime.Directory, "spool.sock")
}

// LockPath returns the singleton lock file path, derived from the
// runtime directory unless overridden.
func (c *Config) LockPath() string {
	if c.Runtime.Lock != "" {
		return c.Runtime.Lock
	}
	return filepath.Join(c.Runtime.Directory, "spool.pid")
}

// EnsureRuntimeDir creates the runtime directory if it does not exist.
func (c *Config) EnsureRuntimeDir() error {
	if err := os.MkdirAll(c.Runtime.Directory, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", c.Runtime.Directory, err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.Name == "" {
		errs = append(errs, fmt.Errorf("service.name is required"))
	}
	if c.Service.Instance == "" {
		errs = append(errs, fmt.Errorf("service.instance is required"))
	}

	if c.Server.Address == "" {
		errs = append(errs, fmt.Errorf("server.address is required"))
	}
	if c.Server.Protocol != "grpc" && c.Server.Protocol != "http" {
		errs = append(errs, fmt.Errorf("server.protocol must be grpc or http, got %q", c.Server.Protocol))
	}
	if c.Server.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("server.timeout must be positive"))
	}
	compressions := []string{"none", "gzip", "zstd", "lz4"}
	if !slices.Contains(compressions, c.Server.Compression) {
		errs = append(errs, fmt.Errorf("server.compression must be one of: %v", compressions))
	}
	if (c.Server.TLS.CertPath == "") != (c.Server.TLS.KeyPath == "") {
		errs = append(errs, fmt.Errorf("server.tls.cert_path and server.tls.key_path must be set together"))
	}

	if c.Runtime.Directory == "" {
		errs = append(errs, fmt.Errorf("runtime.directory is required"))
	}
	if c.Runtime.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("runtime.queue_capacity must be positive"))
	}
	if c.Runtime.Workers < 0 {
		errs = append(errs, fmt.Errorf("runtime.workers must not be negative"))
	}

	if c.Heartbeat.Interval <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat.interval must be positive"))
	}
	if c.Heartbeat.ReportFactor <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat.report_factor must be positive"))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
