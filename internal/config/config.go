package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vbonduro/cashreg/internal/domain"
)

// DefaultPath is where the register looks for its configuration when
// CASHREG_CONFIG is not set.
const DefaultPath = "config/config.json"

// Store is a nested key-value view of a configuration file with dotted-path
// lookup ("shopify.api_key").
type Store struct {
	path   string
	values map[string]any
}

// New wraps an already decoded mapping.
func New(values map[string]any) *Store {
	if values == nil {
		values = map[string]any{}
	}
	return &Store{values: values}
}

// Load reads a JSON (or, by extension, YAML) configuration file. A missing or
// malformed file is reported as domain.ErrConfig.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: config file not found at %s", domain.ErrConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", domain.ErrConfig, path, err)
	}

	values, err := decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid config file %s: %v", domain.ErrConfig, path, err)
	}
	s := New(values)
	s.path = path
	return s, nil
}

func decode(path string, data []byte) (map[string]any, error) {
	var values map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// Path is the file the store was loaded from, or "" for New.
func (s *Store) Path() string {
	return s.path
}

// Get walks key one segment at a time and returns def when any segment is
// missing or the value is null.
func (s *Store) Get(key string, def any) any {
	var cur any = s.values
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return def
		}
	}
	return cur
}

func (s *Store) String(key, def string) string {
	switch v := s.Get(key, nil).(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// Float returns def when key is absent. A present value that is not a number
// is a domain.ErrConfig error, never a silent default.
func (s *Store) Float(key string, def float64) (float64, error) {
	switch v := s.Get(key, nil).(type) {
	case nil:
		return def, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %v", domain.ErrConfig, key, v)
	}
}

// Int is Float for whole numbers.
func (s *Store) Int(key string, def int) (int, error) {
	switch v := s.Get(key, nil).(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be a whole number, got %v", domain.ErrConfig, key, s.Get(key, nil))
}

// Section returns the mapping stored under name ("shopify", "app"), or an
// empty map.
func (s *Store) Section(name string) map[string]any {
	if m, ok := s.Get(name, nil).(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Default returns the configuration written on first run.
func Default() map[string]any {
	return map[string]any{
		"shopify": map[string]any{
			"api_key":    "your_shopify_api_key",
			"password":   "your_shopify_api_password",
			"store_name": "your-store-name",
		},
		"app": map[string]any{
			"tax_rate":      0.08,
			"id_image_dir":  "id_images/",
			"database_file": "cash_register.db",
			"min_age":       21,
		},
	}
}

// WriteDefault creates path (and its directory) holding Default().
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(Default(), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
