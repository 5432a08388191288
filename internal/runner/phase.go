package runner

// Phase names one step of the run pipeline. The pipeline is linear:
// teardown, startup, await_ready, warmup, reset, load_test; a fatal failure
// in await_ready or reset branches to aborted.
type Phase string

const (
	PhaseTeardown   Phase = "teardown"
	PhaseStartup    Phase = "startup"
	PhaseAwaitReady Phase = "await_ready"
	PhaseWarmup     Phase = "warmup"
	PhaseReset      Phase = "reset"
	PhaseLoadTest   Phase = "load_test"
)

// Exit codes owned by the orchestrator. A run that reaches the load test
// propagates the runner's exit code verbatim instead.
const (
	ExitFatal       = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)
