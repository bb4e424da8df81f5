// Package env reads process configuration from environment variables.
// The cmd wiring is the only consumer; handlers and the storage engine
// never touch the environment directly.
package env

import (
	"fmt"
	"os"
	"strconv"
)

// GetString returns the named variable, or the default when it is unset
// or empty. With no default it returns "".
func GetString(name string, defaultValue ...string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

// MustGetString panics when the named variable is unset or empty. Used
// for settings the process cannot start without, like database
// credentials.
func MustGetString(name string) string {
	value := os.Getenv(name)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", name))
	}
	return value
}

// GetInt parses the named variable as a decimal integer, falling back to
// the default when it is unset or unparsable.
func GetInt(name string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return defaultValue
	}
	return value
}
