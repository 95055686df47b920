// Package config loads flag defaults from a JSON or YAML file for kong.
//
// Keys match flag names case-insensitively, ignoring '-' and '_', so
// "allow-nan", "allow_nan" and "allowNaN" all set --allow-nan. The keys
// inputPath and outputPath are accepted as aliases for input and output.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// aliases maps normalized file keys to normalized flag names.
var aliases = map[string]string{
	"inputpath":  "input",
	"outputpath": "output",
	"npz":        "input",
	"json":       "output",
}

// Resolver resolves flag values from a decoded configuration file.
type Resolver struct {
	values map[string]any
}

var _ kong.Resolver = (*Resolver)(nil)

// Loader is a kong.ConfigurationLoader for JSON and YAML files.
func Loader(r io.Reader) (kong.Resolver, error) {
	return Load(r)
}

// Load decodes a configuration document. JSON is accepted as YAML.
func Load(r io.Reader) (*Resolver, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	values := make(map[string]any, len(raw))
	for k, v := range raw {
		key := normalize(k)
		if alias, ok := aliases[key]; ok {
			key = alias
		}
		if _, dup := values[key]; dup {
			return nil, fmt.Errorf("config key %q given more than once", k)
		}
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("config key %q must be a scalar", k)
		}
		values[key] = v
	}
	return &Resolver{values: values}, nil
}

// Validate implements kong.Resolver.
func (r *Resolver) Validate(app *kong.Application) error {
	return nil
}

// Resolve implements kong.Resolver.
func (r *Resolver) Resolve(context *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
	v, ok := r.Lookup(flag.Name)
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Lookup returns the configured value for a flag name.
func (r *Resolver) Lookup(flag string) (any, bool) {
	v, ok := r.values[normalize(flag)]
	if !ok || v == nil {
		return nil, false
	}
	switch x := v.(type) {
	case string, bool:
		return x, true
	default:
		return fmt.Sprint(x), true
	}
}

func normalize(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "-", "")
	return strings.ReplaceAll(key, "_", "")
}
