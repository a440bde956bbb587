package datarecording

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrUnknownBackend is returned for an unsupported recorder type.
var ErrUnknownBackend = errors.New("datarecording: unknown backend")

// RecorderConfig selects and configures a backend.
type RecorderConfig struct {
	// Type is "sqlite" (default) or "clickhouse".
	Type string `yaml:"type" json:"type"`

	// Path is the SQLite file name without the extension.
	Path string `yaml:"path" json:"path"`

	// ConnStr is a ClickHouse URL such as
	// clickhouse://host:9000/db?username=u&password=p. It overrides the
	// separate connection fields.
	ConnStr  string `yaml:"conn_str" json:"conn_str"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Database string `yaml:"database" json:"database"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`

	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// ParseTarget turns a command-line target such as "sqlite:run1" or
// "clickhouse://host:9000/db" into a config.
func ParseTarget(target string) (RecorderConfig, error) {
	switch {
	case target == "" || target == "sqlite":
		return RecorderConfig{Type: "sqlite"}, nil
	case strings.HasPrefix(target, "sqlite:"):
		return RecorderConfig{
			Type: "sqlite",
			Path: strings.TrimPrefix(target, "sqlite:"),
		}, nil
	case strings.HasPrefix(target, "clickhouse://"):
		cfg := RecorderConfig{Type: "clickhouse", ConnStr: target}
		if err := cfg.parseConnStr(); err != nil {
			return RecorderConfig{}, err
		}

		return cfg, nil
	}

	return RecorderConfig{}, fmt.Errorf("%w: %q", ErrUnknownBackend, target)
}

func (c *RecorderConfig) parseConnStr() error {
	u, err := url.Parse(c.ConnStr)
	if err != nil {
		return fmt.Errorf("datarecording: bad connection string: %w", err)
	}

	c.Host = u.Hostname()
	c.Port = 9000

	if p := u.Port(); p != "" {
		c.Port, err = strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("datarecording: bad port %q: %w", p, err)
		}
	}

	c.Database = strings.TrimPrefix(u.Path, "/")
	if c.Database == "" {
		c.Database = "default"
	}

	q := u.Query()
	c.Username = q.Get("username")
	c.Password = q.Get("password")

	if c.Username == "" && u.User != nil {
		c.Username = u.User.Username()
		c.Password, _ = u.User.Password()
	}

	if c.Username == "" {
		c.Username = "default"
	}

	return nil
}

// NewWithConfig creates the backend the config selects.
func NewWithConfig(cfg RecorderConfig) (DataRecorder, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite":
		w, err := newSQLiteWriter(cfg.Path)
		if err != nil {
			return nil, err
		}

		if cfg.BatchSize > 0 {
			w.batchSize = cfg.BatchSize
		}

		return w, nil
	case "clickhouse":
		if cfg.ConnStr != "" {
			if err := cfg.parseConnStr(); err != nil {
				return nil, err
			}
		}

		return NewClickHouseRecorder(cfg)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Type)
}
