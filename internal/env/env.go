package env

import (
	"os"
	"strings"
)

type Var map[string]string

// Env composes the environment handed to spawned child processes: the OS
// environment as the base, forced overrides on top, then per-process entries.
// Values may reference other variables as ${VAR}; expansion uses the composed
// map and does not recurse.
type Env struct {
	Forced Var // overrides applied to every child (locale pinning etc.)
	base   Var // cached OS environment
}

func New() *Env {
	return &Env{Forced: make(Var)}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			if k == "" {
				continue
			}
			base[k] = kv[i+1:]
		}
	}
	e.base = base
}

// Force sets an override applied to every composed environment.
func (e *Env) Force(k, v string) {
	if e.Forced == nil {
		e.Forced = make(Var)
	}
	e.Forced[k] = v
}

// Merge builds the final "K=V" slice for one child: OS base, then forced
// overrides, then perProc entries, later layers winning. Malformed perProc
// entries (no '=' or empty key) are skipped.
func (e *Env) Merge(perProc []string) []string {
	if e.base == nil {
		e.FromOS()
	}
	m := make(Var, len(e.base)+len(e.Forced)+len(perProc))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.Forced {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for _, kv := range perProc {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			if k == "" {
				continue
			}
			m[k] = kv[i+1:]
		}
	}
	expanded := make(Var, len(m))
	for k, v := range m {
		expanded[k] = expand(v, m)
	}
	out := make([]string, 0, len(expanded))
	for k, v := range expanded {
		out = append(out, k+"="+v)
	}
	return out
}

// expand replaces ${VAR} occurrences using the composed map. Unknown
// references are left verbatim.
func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
