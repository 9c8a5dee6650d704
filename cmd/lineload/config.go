package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// configLoader reads a YAML document (JSON is accepted as well, being a
// subset of YAML) whose keys are flag names, with "-" or "_" as separator.
// Lists become comma-separated values.
func configLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return kong.ResolverFunc(func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		for _, key := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			if value, ok := values[key]; ok {
				return flagValue(value), nil
			}
		}
		return nil, nil
	}), nil
}

// flagValue renders a decoded YAML value the way it would be typed on the
// command line.
func flagValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}
