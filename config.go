package norm

import (
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when no config file exists in the search
// path.
var ErrConfigNotFound = errors.New("norm: no config file found")

// Config describes a database connection. It is usually loaded from a
// .norm.yaml file, but can be constructed directly.
type Config struct {
	// URI is the bolt/neo4j connection URI, e.g. "neo4j://localhost:7687".
	URI string `yaml:"uri"`

	// Username and Password authenticate the connection. Empty username
	// means no auth.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Database selects a database other than the server default.
	Database string `yaml:"database,omitempty"`

	// Logger receives query-level debug logs. Nil disables logging.
	Logger *zap.Logger `yaml:"-"`
}

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{".norm.yaml", ".norm.yml", "norm.yaml", "norm.yml"}

// LoadConfig finds and loads the nearest config file walking up from dir.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads a config from a specific path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
