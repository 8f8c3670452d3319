package draft

import (
	"regexp"
	"strings"

	"github.com/pyloft/console/pkg/types"
)

var envKeyPattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// NormalizeKey uppercases and trims an env var key, mirroring the editor's
// on-change behavior.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// ValidEnvKey reports whether a normalized key is well-formed. An invalid
// key only warns; it never blocks submission.
func ValidEnvKey(key string) bool {
	return envKeyPattern.MatchString(key)
}

// NormalizeEnvVars prepares the env var list for submission: keys are
// uppercased, entries with empty trimmed keys are elided, and duplicate keys
// are last-write-wins while keeping the position of the first occurrence.
func NormalizeEnvVars(vars []types.EnvVar) []types.EnvVar {
	out := make([]types.EnvVar, 0, len(vars))
	index := make(map[string]int, len(vars))
	for _, v := range vars {
		key := NormalizeKey(v.Key)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i].Value = v.Value
			continue
		}
		index[key] = len(out)
		out = append(out, types.EnvVar{Key: key, Value: v.Value})
	}
	return out
}
