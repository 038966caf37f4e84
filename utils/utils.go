// Package utils provides helpers shared by the commands.
package utils

import (
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ExpandPath expands tilde and all environment variables from the given path.
func ExpandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}

// IsStdin reports whether a source argument refers to standard input.
func IsStdin(arg string) bool {
	return arg == "" || strings.TrimSpace(arg) == "-"
}
