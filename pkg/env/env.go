package env

import "os"

// Get reads the named environment variable, falling back to def when it is
// unset or empty. Empty counts as unset so blank values in container specs
// do not override defaults.
func Get(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}
