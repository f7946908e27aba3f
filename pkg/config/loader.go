// Package config loads env-tagged structs from the process environment and
// optional dotenv files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Load fills cfg from its `env` struct tags. Variables come from the process
// environment first, then from dotenvFiles in order; missing files are
// skipped. Dotenv values never leak into the process environment.
//
// Every invalid or missing required variable is reported, not just the first.
func Load(cfg any, dotenvFiles ...string) error {
	vars, err := environment(dotenvFiles)
	if err != nil {
		return err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("parse config: %s", describe(err))
	}
	return nil
}

func environment(dotenvFiles []string) (map[string]string, error) {
	vars := env.ToMap(os.Environ())
	for _, f := range dotenvFiles {
		fileVars, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load dotenv %s: %w", f, err)
		}
		for k, v := range fileVars {
			if _, set := vars[k]; !set {
				vars[k] = v
			}
		}
	}
	return vars, nil
}

func describe(err error) string {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return err.Error()
	}
	msgs := make([]string, 0, len(agg.Errors))
	for _, e := range agg.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}
