// Package env reads process configuration from the environment, used as
// the fallback default for command-line flags.
package env

import (
	"os"
	"strconv"
)

// WithDefaultString returns the value of the named environment variable,
// or def if it is unset or empty.
func WithDefaultString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// WithDefaultInt returns the named environment variable parsed as an int,
// or def if it is unset, empty, or not a valid integer.
func WithDefaultInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
