package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ssh352/nexus/internal/domain/value"
)

// Config holds every setting of the quote board.
// Load reads it from YAML, then lets environment variables override the
// deployment-specific parts.
type Config struct {
	Table   Table   `yaml:"table"`
	Feed    Feed    `yaml:"feed"`
	Server  Server  `yaml:"server"`
	Seed    string  `yaml:"seed"`
	Logging Logging `yaml:"logging"`
}

// Column declares one table column and the kind of value it holds
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type Table struct {
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
	Index   []int    `yaml:"index"`
}

type Feed struct {
	URL              string `yaml:"url"`
	Subscribe        string `yaml:"subscribe"`
	ReadTimeoutSec   int    `yaml:"read_timeout_sec"`
	PingIntervalSec  int    `yaml:"ping_interval_sec"`
	ClearOnReconnect bool   `yaml:"clear_on_reconnect"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level  string `yaml:"level"`
	SeqURL string `yaml:"seq_url"`
}

// Default returns a configuration for a two-column quote table with no
// feed attached
func Default() *Config {
	return &Config{
		Table: Table{
			Name: "quotes",
			Columns: []Column{
				{Name: "security", Type: "security"},
				{Name: "price", Type: "money"},
			},
			Index: []int{0},
		},
		Feed: Feed{
			ReadTimeoutSec:  60,
			PingIntervalSec: 30,
		},
		Server:  Server{Port: 4444},
		Logging: Logging{Level: "info"},
	}
}

// Load reads the config file at path on top of Default()
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overrideWithEnv(cfg *Config) error {
	if v := os.Getenv("NEXUS_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("NEXUS_SEQ_URL"); v != "" {
		cfg.Logging.SeqURL = v
	}
	if v := os.Getenv("NEXUS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NEXUS_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NEXUS_SERVER_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if len(c.Table.Columns) == 0 {
		return fmt.Errorf("table %q declares no columns", c.Table.Name)
	}
	seen := make(map[string]bool, len(c.Table.Columns))
	for i, col := range c.Table.Columns {
		if col.Name == "" {
			return fmt.Errorf("column %d has no name", i)
		}
		if seen[col.Name] {
			return fmt.Errorf("column %q declared twice", col.Name)
		}
		seen[col.Name] = true
		if _, err := value.ParseKind(col.Type); err != nil {
			return fmt.Errorf("column %q: %w", col.Name, err)
		}
	}

	if len(c.Table.Index) == 0 {
		return fmt.Errorf("table %q needs at least one index column", c.Table.Name)
	}
	for _, idx := range c.Table.Index {
		if idx < 0 || idx >= len(c.Table.Columns) {
			return fmt.Errorf("index column %d is out of bounds for %d columns", idx, len(c.Table.Columns))
		}
	}

	if c.Feed.URL != "" && !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
		return fmt.Errorf("invalid feed URL: %s", c.Feed.URL)
	}
	if c.Feed.ReadTimeoutSec < 0 || c.Feed.PingIntervalSec < 0 {
		return fmt.Errorf("feed timeouts must not be negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return nil
}

// ColumnNames lists the declared column names in order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Kinds resolves the declared column types. Call after Validate.
func (t Table) Kinds() []value.Kind {
	kinds := make([]value.Kind, len(t.Columns))
	for i, c := range t.Columns {
		kinds[i], _ = value.ParseKind(c.Type)
	}
	return kinds
}
