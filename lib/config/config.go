// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/telecli/lib/account"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "TELECLI_CONFIG"

// Config is the complete telecli configuration.
type Config struct {
	Channels ChannelsConfig `yaml:"channels"`
	Agent    AgentConfig    `yaml:"agent"`
	Commands CommandsConfig `yaml:"commands"`
	Mentions MentionsConfig `yaml:"mentions"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ChannelsConfig holds the telecli channel section and the defaults
// shared by every channel integration.
type ChannelsConfig struct {
	Defaults account.Defaults      `yaml:"defaults"`
	Telecli  account.ChannelConfig `yaml:"telecli"`
}

// AgentConfig describes the agent that receives admitted messages.
type AgentConfig struct {
	// ID names the agent in session keys. Default: main.
	ID string `yaml:"id"`

	// Command is run once per admitted message with the inbound
	// envelope as JSON on stdin. Empty disables dispatch: messages are
	// still recorded but nothing replies.
	Command []string `yaml:"command"`

	// WorkingDirectory for Command. Empty inherits.
	WorkingDirectory string `yaml:"working_directory"`

	// Timeout bounds one Command run. Default: 2m.
	Timeout time.Duration `yaml:"timeout"`
}

// CommandsConfig controls text control commands such as /reset.
type CommandsConfig struct {
	// TextCommands enables recognizing control commands in message
	// text. Default: true.
	TextCommands *bool `yaml:"text_commands"`

	// UseAccessGroups restricts commands to allow-listed senders.
	// Default: true.
	UseAccessGroups *bool `yaml:"use_access_groups"`

	// Names lists the recognized commands, without the slash.
	Names []string `yaml:"names"`
}

// AllowTextCommands reports whether text commands are handled.
func (c CommandsConfig) AllowTextCommands() bool {
	return c.TextCommands == nil || *c.TextCommands
}

// AccessGroups reports whether commands require allow-list membership.
func (c CommandsConfig) AccessGroups() bool {
	return c.UseAccessGroups == nil || *c.UseAccessGroups
}

// MentionsConfig controls mention detection and group mention gating.
type MentionsConfig struct {
	// Patterns are case-insensitive regular expressions. A message
	// matching any of them mentions the agent.
	Patterns []string `yaml:"patterns"`

	// RequireInGroups drops group messages that do not mention the
	// agent. Default: true.
	RequireInGroups *bool `yaml:"require_in_groups"`

	// Groups overrides RequireInGroups per group, keyed by the group's
	// peer id (for example "-42").
	Groups map[string]bool `yaml:"groups"`
}

// StorageConfig locates the SQLite databases.
type StorageConfig struct {
	PairingDB string `yaml:"pairing_db"`
	SessionDB string `yaml:"session_db"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is a host:port for /metrics. Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// Default returns the configuration used as the base before a file is
// decoded over it.
func Default() *Config {
	stateDir := "${XDG_STATE_HOME:-${HOME}/.local/state}/telecli"
	return &Config{
		Agent: AgentConfig{
			ID:      "main",
			Timeout: 2 * time.Minute,
		},
		Commands: CommandsConfig{
			Names: []string{"new", "reset", "status", "stop", "help"},
		},
		Storage: StorageConfig{
			PairingDB: stateDir + "/pairing.db",
			SessionDB: stateDir + "/sessions.db",
		},
	}
}

// Load loads the file named by TELECLI_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your telecli config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document. extension selects the
// format: ".json" and ".jsonc" are JSON with comments, anything else is
// YAML.
func Parse(data []byte, extension string) (*Config, error) {
	switch strings.ToLower(extension) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.expandVariables()
	if cfg.Agent.ID = strings.TrimSpace(cfg.Agent.ID); cfg.Agent.ID == "" {
		cfg.Agent.ID = "main"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	expandSettings := func(settings *account.Settings) {
		for _, field := range []*string{settings.TelePath, settings.ConfigFile} {
			if field != nil {
				*field = expandVars(*field)
			}
		}
	}
	expandSettings(&c.Channels.Telecli.Settings)
	for id, settings := range c.Channels.Telecli.Accounts {
		expandSettings(&settings)
		c.Channels.Telecli.Accounts[id] = settings
	}
	c.Storage.PairingDB = expandVars(c.Storage.PairingDB)
	c.Storage.SessionDB = expandVars(c.Storage.SessionDB)
	c.Agent.WorkingDirectory = expandVars(c.Agent.WorkingDirectory)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-((?:[^{}]|\$\{[^}]*\})*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. A default may itself
// contain one level of ${VAR}.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 && parts[2] != "" {
			return expandVars(parts[2])
		}
		return ""
	})
}

// Validate reports every invalid value, joined.
func (c *Config) Validate() error {
	var errs []error

	for _, problem := range c.Channels.Telecli.Settings.Validate() {
		errs = append(errs, fmt.Errorf("channels.telecli: %w", problem))
	}
	for id, settings := range c.Channels.Telecli.Accounts {
		for _, problem := range settings.Validate() {
			errs = append(errs, fmt.Errorf("channels.telecli.accounts.%s: %w", id, problem))
		}
	}
	if err := c.Channels.Defaults.GroupPolicy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("channels.defaults: %w", err))
	}
	if c.Agent.Timeout < 0 {
		errs = append(errs, fmt.Errorf("agent.timeout must not be negative"))
	}
	for index, pattern := range c.Mentions.Patterns {
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			errs = append(errs, fmt.Errorf("mentions.patterns[%d]: %w", index, err))
		}
	}
	if c.Storage.PairingDB == "" {
		errs = append(errs, fmt.Errorf("storage.pairing_db is required"))
	}
	if c.Storage.SessionDB == "" {
		errs = append(errs, fmt.Errorf("storage.session_db is required"))
	}

	return errors.Join(errs...)
}

// Account resolves accountID against the current channel section.
func (c *Config) Account(accountID string) account.Account {
	return account.Resolve(c.Channels.Telecli, accountID)
}

// RequireMention reports whether group peerID requires an explicit
// mention before a message reaches the agent.
func (c *Config) RequireMention(peerID string) bool {
	if override, ok := c.Mentions.Groups[peerID]; ok {
		return override
	}
	return c.Mentions.RequireInGroups == nil || *c.Mentions.RequireInGroups
}
