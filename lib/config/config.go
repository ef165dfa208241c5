// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "HOPEDIT_CONFIG"

// Config is the complete hopedit configuration.
type Config struct {
	// Shell is the program started at every tunneled hop. It must
	// speak POSIX sh.
	Shell string `yaml:"shell"`

	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	SSH       SSHConfig       `yaml:"ssh"`
	Sudo      SudoConfig      `yaml:"sudo"`
	Container ContainerConfig `yaml:"container"`
	Editor    EditorConfig    `yaml:"editor"`
	Log       LogConfig       `yaml:"log"`
}

// TimeoutsConfig bounds the blocking phases of a chain's life.
type TimeoutsConfig struct {
	// Connect bounds bringing up each hop.
	Connect time.Duration `yaml:"connect"`

	// Command bounds a single request/response exchange. An exchange
	// that exceeds it tears the chain down.
	Command time.Duration `yaml:"command"`

	// Teardown is how long a closing chain waits for its root process
	// before killing its process group.
	Teardown time.Duration `yaml:"teardown"`
}

// SSHConfig configures ssh hops.
type SSHConfig struct {
	// Program is the OpenSSH client binary.
	Program string `yaml:"program"`

	// Client selects how the first ssh hop is made: "openssh" spawns
	// Program, "native" dials in-process. Later ssh hops always run
	// Program on the previous host.
	Client string `yaml:"client"`

	// KnownHosts is the known_hosts file the native client verifies
	// host keys against.
	KnownHosts string `yaml:"known_hosts"`

	// IdentityFiles are private keys the native client offers after
	// the agent's keys. Passphrase-protected keys are skipped.
	IdentityFiles []string `yaml:"identity_files"`

	// ExtraArgs are passed to Program before the destination.
	ExtraArgs []string `yaml:"extra_args"`
}

// SudoConfig configures sudo hops.
type SudoConfig struct {
	Program   string   `yaml:"program"`
	ExtraArgs []string `yaml:"extra_args"`
}

// ContainerConfig names the container engine binaries.
type ContainerConfig struct {
	Docker string `yaml:"docker"`
	Podman string `yaml:"podman"`
}

// EditorConfig holds buffer defaults.
type EditorConfig struct {
	// DefaultMode is "auto", "text", "hex", or "tagtree".
	DefaultMode string `yaml:"default_mode"`

	// HexWidth is the number of bytes per hex view row.
	HexWidth int `yaml:"hex_width"`

	// MaxFileSize is the largest file Open will load, in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
}

// LogConfig configures the command logger.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// File, when set, receives log output instead of stderr.
	File string `yaml:"file"`
}

// SSH client selectors.
const (
	SSHClientOpenSSH = "openssh"
	SSHClientNative  = "native"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Shell: "sh",
		Timeouts: TimeoutsConfig{
			Connect:  30 * time.Second,
			Command:  60 * time.Second,
			Teardown: 5 * time.Second,
		},
		SSH: SSHConfig{
			Program:    "ssh",
			Client:     SSHClientOpenSSH,
			KnownHosts: "${HOME}/.ssh/known_hosts",
		},
		Sudo: SudoConfig{Program: "sudo"},
		Container: ContainerConfig{
			Docker: "docker",
			Podman: "podman",
		},
		Editor: EditorConfig{
			DefaultMode: "auto",
			HexWidth:    16,
			MaxFileSize: 64 << 20,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the file named by HOPEDIT_CONFIG, or returns the expanded
// defaults when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads the configuration at path, merged over Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.SSH.Program = expandVars(c.SSH.Program, vars)
	c.SSH.KnownHosts = expandVars(c.SSH.KnownHosts, vars)
	for i, path := range c.SSH.IdentityFiles {
		c.SSH.IdentityFiles[i] = expandVars(path, vars)
	}
	c.Sudo.Program = expandVars(c.Sudo.Program, vars)
	c.Container.Docker = expandVars(c.Container.Docker, vars)
	c.Container.Podman = expandVars(c.Container.Podman, vars)
	c.Log.File = expandVars(c.Log.File, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default}, preferring vars
// over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error

	if c.Shell == "" {
		errs = append(errs, errors.New("shell is required"))
	}
	for name, value := range map[string]time.Duration{
		"timeouts.connect":  c.Timeouts.Connect,
		"timeouts.command":  c.Timeouts.Command,
		"timeouts.teardown": c.Timeouts.Teardown,
	} {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, value))
		}
	}
	if c.SSH.Program == "" {
		errs = append(errs, errors.New("ssh.program is required"))
	}
	if c.SSH.Client != SSHClientOpenSSH && c.SSH.Client != SSHClientNative {
		errs = append(errs, fmt.Errorf("ssh.client must be %q or %q, got %q", SSHClientOpenSSH, SSHClientNative, c.SSH.Client))
	}
	if c.SSH.Client == SSHClientNative && c.SSH.KnownHosts == "" {
		errs = append(errs, errors.New("ssh.known_hosts is required for the native client"))
	}
	for _, path := range c.SSH.IdentityFiles {
		if !filepath.IsAbs(path) {
			errs = append(errs, fmt.Errorf("ssh.identity_files entry %q must be absolute", path))
		}
	}
	if c.Sudo.Program == "" {
		errs = append(errs, errors.New("sudo.program is required"))
	}
	if c.Container.Docker == "" || c.Container.Podman == "" {
		errs = append(errs, errors.New("container.docker and container.podman are required"))
	}

	modes := []string{"auto", "text", "hex", "tagtree"}
	if !slices.Contains(modes, c.Editor.DefaultMode) {
		errs = append(errs, fmt.Errorf("editor.default_mode must be one of %v, got %q", modes, c.Editor.DefaultMode))
	}
	if c.Editor.HexWidth < 1 || c.Editor.HexWidth > 64 {
		errs = append(errs, fmt.Errorf("editor.hex_width must be between 1 and 64, got %d", c.Editor.HexWidth))
	}
	if c.Editor.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("editor.max_file_size must be positive, got %d", c.Editor.MaxFileSize))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of %v, got %q", levels, c.Log.Level))
	}

	return errors.Join(errs...)
}
