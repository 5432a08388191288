package proc

import (
	"sync"

	"github.com/ledgerbench/ledgerbench/internal/env"
)

var (
	envOnce sync.Once
	procEnv *env.Env
)

// mergedEnv layers the spec's extra KEY=VALUE pairs over the current
// environment, later entries winning, with ${VAR} references expanded. A
// single consistent UTF-8 locale is forced at the spawn boundary so child
// output lands in the run log without mojibake.
func mergedEnv(extra []string) []string {
	envOnce.Do(func() {
		procEnv = env.New()
		procEnv.Force("LANG", "C.UTF-8")
		procEnv.Force("LC_ALL", "C.UTF-8")
	})
	return procEnv.Merge(extra)
}
