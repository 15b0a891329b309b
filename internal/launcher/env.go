package launcher

import (
	"os"
	"slices"
	"strings"
)

// EnvSource supplies the environment a job inherits.
type EnvSource interface {
	Environ() []string
}

// OSEnv is the launcher process's own environment.
type OSEnv struct{}

func (OSEnv) Environ() []string { return os.Environ() }

// StaticEnv is a fixed environment, mostly useful in tests.
type StaticEnv []string

func (e StaticEnv) Environ() []string { return slices.Clone(e) }

// MergeEnv renders base with overrides applied. Inherited entries keep their
// order and overridden keys are replaced in place; only the first occurrence
// of a repeated inherited key survives. Keys that are new are appended in
// sorted order. Entries without '=' pass through unless overridden.
func MergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(base))

	for _, kv := range base {
		key := envKey(kv)
		if seen[key] {
			continue
		}
		seen[key] = true
		if v, ok := overrides[key]; ok {
			out = append(out, key+"="+v)
			continue
		}
		out = append(out, kv)
	}

	var added []string
	for k := range overrides {
		if !seen[k] {
			added = append(added, k)
		}
	}
	slices.Sort(added)
	for _, k := range added {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

func envKey(kv string) string {
	if k, _, ok := strings.Cut(kv, "="); ok {
		return k
	}
	return kv
}
