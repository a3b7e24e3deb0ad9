package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/vulnlife/internal/timeline"
	"github.com/kokistudios/vulnlife/internal/vocab"
)

// ServerConfig holds the browser editor's listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EditorConfig holds render pipeline settings.
type EditorConfig struct {
	DebounceMS int    `yaml:"debounce_ms"`
	TimeOrder  string `yaml:"time_order"` // insertion, basic-info-first
	Autosave   bool   `yaml:"autosave"`
	Style      string `yaml:"highlight_style,omitempty"`
}

// RemoteConfig holds Gist sync settings.
type RemoteConfig struct {
	TokenEnv string `yaml:"token_env"`
	Filename string `yaml:"filename"`
	Public   bool   `yaml:"public"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// Config holds vulnlife configuration.
type Config struct {
	Version    string           `yaml:"version"`
	Server     ServerConfig     `yaml:"server,omitempty"`
	Editor     EditorConfig     `yaml:"editor,omitempty"`
	Remote     RemoteConfig     `yaml:"remote,omitempty"`
	Vocabulary vocab.Vocabulary `yaml:"vocabulary,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults. Vocabulary entries
// in config.yaml extend the built-in lists rather than replace them.
func DefaultConfig() Config {
	return Config{
		Version: "1",
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 7878,
		},
		Editor: EditorConfig{
			DebounceMS: 300,
			TimeOrder:  string(timeline.PolicyInsertion),
			Autosave:   true,
			Style:      "github",
		},
		Remote: RemoteConfig{
			TokenEnv: "GITHUB_TOKEN",
			Filename: "vulnerability-report.md",
		},
	}
}

// Vocab returns the built-in vocabulary extended by the configured one.
func (c Config) Vocab() vocab.Vocabulary {
	return vocab.Default().Merge(c.Vocabulary)
}

// Policy returns the configured time-node ordering.
func (c Config) Policy() timeline.Policy {
	return timeline.ParsePolicy(c.Editor.TimeOrder)
}

// Store represents a loaded VULNLIFE_HOME.
type Store struct {
	Home   string
	Config Config
}

// Issue represents a health check finding.
type Issue struct {
	Severity string // "warning" or "error"
	Message  string
}

var layout = []string{"drafts", "exports"}

// Home returns the VULNLIFE_HOME path, respecting the VULNLIFE_HOME env var.
func Home() string {
	if h := os.Getenv("VULNLIFE_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".vulnlife")
	}
	return filepath.Join(home, ".vulnlife")
}

// Init creates the VULNLIFE_HOME directory structure.
func Init(home string, force bool) error {
	if _, err := os.Stat(home); err == nil && !force {
		return fmt.Errorf("VULNLIFE_HOME already exists at %s (use --force to reinitialize)", home)
	}
	for _, d := range append([]string{""}, layout...) {
		p := filepath.Join(home, d)
		if err := os.MkdirAll(p, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	s := &Store{Home: home, Config: DefaultConfig()}
	return s.SaveConfig()
}

// Load reads an existing VULNLIFE_HOME. Missing config fields are filled
// from defaults.
func Load(home string) (*Store, error) {
	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read VULNLIFE_HOME config at %s: %w", cfgPath, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config.yaml: %w", err)
	}
	return &Store{Home: home, Config: cfg}, nil
}

// Open loads home, falling back to defaults in memory when it was never
// initialized. Commands that only read reports work without `vulnlife init`.
func Open(home string) (*Store, error) {
	if _, err := os.Stat(filepath.Join(home, "config.yaml")); os.IsNotExist(err) {
		return &Store{Home: home, Config: DefaultConfig()}, nil
	}
	return Load(home)
}

// SaveConfig writes the current config to config.yaml.
func (s *Store) SaveConfig() error {
	data, err := yaml.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(s.Home, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Home, err)
	}
	cfgPath := filepath.Join(s.Home, "config.yaml")
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ConfigKeys lists the keys accepted by SetConfigValue.
var ConfigKeys = []string{
	"server.host", "server.port",
	"editor.debounce_ms", "editor.time_order", "editor.autosave", "editor.highlight_style",
	"remote.token_env", "remote.filename", "remote.public", "remote.base_url",
	"vocabulary.todo_marker", "vocabulary.pending_marker",
	"vocabulary.sentinel_phrases", "vocabulary.placeholder_roles", "vocabulary.example_domains",
	"vocabulary.stage_aliases",
}

// SetConfigValue sets a config value by dot-path key (e.g. "server.port").
// List-valued vocabulary keys take a comma-separated value that is appended.
func (s *Store) SetConfigValue(key, value string) error {
	switch key {
	case "server.host":
		s.Config.Server.Host = value
	case "server.port":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("server.port must be an integer between 1 and 65535")
		}
		s.Config.Server.Port = n
	case "editor.debounce_ms":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("editor.debounce_ms must be a non-negative integer")
		}
		s.Config.Editor.DebounceMS = n
	case "editor.time_order":
		if !knownPolicy(value) {
			return fmt.Errorf("editor.time_order must be %q or %q", timeline.PolicyInsertion, timeline.PolicyBasicInfoFirst)
		}
		s.Config.Editor.TimeOrder = string(timeline.ParsePolicy(value))
	case "editor.autosave":
		s.Config.Editor.Autosave = value == "true"
	case "editor.highlight_style":
		s.Config.Editor.Style = value
	case "remote.token_env":
		s.Config.Remote.TokenEnv = value
	case "remote.filename":
		if !strings.HasSuffix(value, ".md") {
			return fmt.Errorf("remote.filename must end in .md")
		}
		s.Config.Remote.Filename = value
	case "remote.public":
		s.Config.Remote.Public = value == "true"
	case "remote.base_url":
		s.Config.Remote.BaseURL = value
	case "vocabulary.todo_marker":
		s.Config.Vocabulary.TodoMarker = value
	case "vocabulary.pending_marker":
		s.Config.Vocabulary.PendingMarker = value
	case "vocabulary.sentinel_phrases":
		s.Config.Vocabulary.SentinelPhrases = append(s.Config.Vocabulary.SentinelPhrases, splitList(value)...)
	case "vocabulary.placeholder_roles":
		s.Config.Vocabulary.PlaceholderRoles = append(s.Config.Vocabulary.PlaceholderRoles, splitList(value)...)
	case "vocabulary.example_domains":
		s.Config.Vocabulary.ExampleDomains = append(s.Config.Vocabulary.ExampleDomains, splitList(value)...)
	case "vocabulary.stage_aliases":
		aliases, err := parseAliases(value)
		if err != nil {
			return err
		}
		if s.Config.Vocabulary.StageAliases == nil {
			s.Config.Vocabulary.StageAliases = map[string]int{}
		}
		for k, n := range aliases {
			s.Config.Vocabulary.StageAliases[k] = n
		}
	default:
		return fmt.Errorf("unknown config key: %s\nValid keys: %s", key, strings.Join(ConfigKeys, ", "))
	}
	return s.SaveConfig()
}

func knownPolicy(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), string(timeline.PolicyInsertion)) || timeline.ParsePolicy(value) != timeline.PolicyInsertion
}

// parseAliases reads "fragment=N" pairs such as "patch=5,exploit=8".
func parseAliases(value string) (map[string]int, error) {
	out := map[string]int{}
	for _, p := range splitList(value) {
		k, v, ok := strings.Cut(p, "=")
		n, err := strconv.Atoi(strings.TrimSpace(v))
		k = strings.TrimSpace(k)
		if !ok || k == "" || err != nil || n < 1 || n > 9 {
			return nil, fmt.Errorf("vocabulary.stage_aliases takes fragment=N pairs with N from 1 to 9, got %q", p)
		}
		out[k] = n
	}
	return out, nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Path resolves a path within VULNLIFE_HOME.
func (s *Store) Path(parts ...string) string {
	all := append([]string{s.Home}, parts...)
	return filepath.Join(all...)
}

// CheckHealth verifies VULNLIFE_HOME structure integrity.
func CheckHealth(home string) []Issue {
	var issues []Issue

	for _, dir := range layout {
		p := filepath.Join(home, dir)
		info, err := os.Stat(p)
		if err != nil {
			issues = append(issues, Issue{"error", fmt.Sprintf("missing directory: %s", p)})
		} else if !info.IsDir() {
			issues = append(issues, Issue{"error", fmt.Sprintf("expected directory but found file: %s", p)})
		}
	}

	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("cannot read config.yaml: %v", err)})
		return issues
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("config.yaml is not valid YAML: %v", err)})
		return issues
	}
	if cfg.Editor.TimeOrder != "" && !knownPolicy(cfg.Editor.TimeOrder) {
		issues = append(issues, Issue{"warning", fmt.Sprintf("unknown editor.time_order %q, using %s", cfg.Editor.TimeOrder, timeline.PolicyInsertion)})
	}
	if cfg.Remote.TokenEnv != "" && os.Getenv(cfg.Remote.TokenEnv) == "" {
		issues = append(issues, Issue{"warning", fmt.Sprintf("%s is not set; gist sync is disabled", cfg.Remote.TokenEnv)})
	}
	issues = append(issues, checkDrafts(home)...)
	return issues
}

func checkDrafts(home string) []Issue {
	var issues []Issue
	entries, err := os.ReadDir(filepath.Join(home, "drafts"))
	if err != nil {
		return issues
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != draftExt {
			issues = append(issues, Issue{"warning", fmt.Sprintf("unexpected entry in drafts: %s", e.Name())})
		}
	}
	return issues
}

// FixIssues attempts to repair simple issues in VULNLIFE_HOME.
func FixIssues(home string) []string {
	var fixed []string

	for _, dir := range layout {
		p := filepath.Join(home, dir)
		if _, err := os.Stat(p); err != nil {
			if err := os.MkdirAll(p, 0755); err == nil {
				fixed = append(fixed, fmt.Sprintf("recreated missing directory: %s", dir))
			}
		}
	}

	cfgPath := filepath.Join(home, "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		s := &Store{Home: home, Config: DefaultConfig()}
		if s.SaveConfig() == nil {
			fixed = append(fixed, "recreated missing config.yaml with defaults")
		}
	}

	return fixed
}
