// Package config loads shipyard.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([-?])([^}]*))?\}`)

// ExpandEnv expands variable references in input from the process
// environment. See Expand.
func ExpandEnv(input string) (string, error) {
	return Expand(input, os.LookupEnv)
}

// Expand replaces variable references in input using lookup:
//
//	${VAR}           value of VAR, empty when unset
//	${VAR:-default}  default when VAR is unset or empty
//	${VAR:?message}  error when VAR is unset or empty
//
// Every missing required variable is reported in the returned error.
func Expand(input string, lookup func(string) (string, bool)) (string, error) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, op, arg := groups[1], groups[2], groups[3]
		if value, ok := lookup(name); ok && value != "" {
			return value
		}
		switch op {
		case "-":
			return arg
		case "?":
			msg := name + " is required"
			if arg != "" {
				msg = fmt.Sprintf("%s: %s", name, arg)
			}
			missing = append(missing, msg)
		}
		return ""
	})
	if len(missing) > 0 {
		return "", errors.New("missing environment variables: " + strings.Join(missing, "; "))
	}
	return out, nil
}
