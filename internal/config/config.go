// Package config loads stagewright.yaml. Every field is optional; a
// missing file yields the built-in defaults, and a present file
// overrides only the fields it sets.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is looked up in the working directory when no explicit
// config path is given.
const DefaultPath = "stagewright.yaml"

// Viewport is the browser window size.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Browser selects how pages are provided: a locally launched headless
// browser, or an existing one reachable over a websocket endpoint.
type Browser struct {
	Headless  bool     `yaml:"headless"`
	ConnectWS string   `yaml:"connect_ws"`
	Viewport  Viewport `yaml:"viewport"`
	Video     bool     `yaml:"video"`
}

// Login describes the UI login flow driven on account switches.
type Login struct {
	Path               string `yaml:"path"`
	IdentifierSelector string `yaml:"identifier_selector"`
	SecretSelector     string `yaml:"secret_selector"`
	SubmitSelector     string `yaml:"submit_selector"`
}

type Output struct {
	Dir string `yaml:"dir"`
}

type Timeouts struct {
	ActionMS int `yaml:"action_ms"`
	WaitMS   int `yaml:"wait_ms"`
}

// Action is the wait budget for post-action waits.
func (t Timeouts) Action() time.Duration {
	return time.Duration(t.ActionMS) * time.Millisecond
}

// Wait is the wait budget for assertion polling.
func (t Timeouts) Wait() time.Duration {
	return time.Duration(t.WaitMS) * time.Millisecond
}

type History struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Notify struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Config is the root of stagewright.yaml.
type Config struct {
	BaseURL      string   `yaml:"base_url"`
	AccountsFile string   `yaml:"accounts_file"`
	Output       Output   `yaml:"output"`
	Browser      Browser  `yaml:"browser"`
	Login        Login    `yaml:"login"`
	Timeouts     Timeouts `yaml:"timeouts"`
	History      History  `yaml:"history"`
	Server       Server   `yaml:"server"`
	Notify       Notify   `yaml:"notify"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Output: Output{Dir: "storage/scenarios"},
		Browser: Browser{
			Headless: true,
			Viewport: Viewport{Width: 1920, Height: 1080},
		},
		Login: Login{
			Path:               "/login",
			IdentifierSelector: "[name=email], #email, input[type=email]",
			SecretSelector:     "[name=password], #password, input[type=password]",
			SubmitSelector:     "button[type=submit], input[type=submit]",
		},
		Timeouts: Timeouts{ActionMS: 10000, WaitMS: 3000},
		History:  History{Path: "storage/stagewright-history.db"},
		Server:   Server{Addr: ":9173"},
	}
}

// Load reads the config at path. Empty path means DefaultPath; a
// missing file returns defaults. ${VAR} references in values are
// expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{[^}]+\}`)

// expandEnv rewrites ${VAR} references. The braced form only: a bare
// dollar sign stays untouched so CSS attribute selectors survive.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}
