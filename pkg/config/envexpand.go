package config

import "os"

// ExpandEnv expands environment variables in config file content using Go's
// standard library, supporting both ${VAR} and $VAR syntax. Missing
// variables expand to empty string; validation is left to the caller.
//
// Direct translation of tarsy's pkg/config/envexpand.go — the original is
// already a minimal idiomatic wrapper around os.ExpandEnv.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
