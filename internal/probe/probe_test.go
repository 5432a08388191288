package probe

import (
	"context"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/container"
)

// fakeAPI serves canned container state keyed by compose service label.
type fakeAPI struct {
	byService map[string][]container.Summary
	inspects  map[string]container.InspectResponse
	listErr   error
}

func (f *fakeAPI) ContainerList(_ context.Context, options container.ListOptions) ([]container.Summary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	for _, label := range options.Filters.Get("label") {
		if name, ok := strings.CutPrefix(label, labelService+"="); ok {
			return f.byService[name], nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) ContainerInspect(_ context.Context, id string) (container.InspectResponse, error) {
	return f.inspects[id], nil
}

func running(id, name string) container.Summary {
	return container.Summary{ID: id, Names: []string{"/" + name}, State: "running"}
}

func inspectState(runningState bool, health string) container.InspectResponse {
	st := &container.State{Running: runningState}
	if runningState {
		st.Status = "running"
	} else {
		st.Status = "exited"
	}
	if health != "" {
		st.Health = &container.Health{Status: health}
	}
	return container.InspectResponse{ContainerJSONBase: &container.ContainerJSONBase{State: st}}
}

func TestProbe_NoHealthCheckRunningIsReady(t *testing.T) {
	api := &fakeAPI{
		byService: map[string][]container.Summary{"a": {running("a1", "proj-a-1")}},
		inspects:  map[string]container.InspectResponse{"a1": inspectState(true, "")},
	}
	p := NewWithAPI(api, "proj")
	st, err := p.Probe(context.Background(), "a")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !st.Ready() {
		t.Fatalf("running service without health check must be ready: %+v", st)
	}
}

func TestProbe_UnhealthyIsNotReadyRegardlessOfRunning(t *testing.T) {
	api := &fakeAPI{
		byService: map[string][]container.Summary{"b": {running("b1", "proj-b-1")}},
		inspects:  map[string]container.InspectResponse{"b1": inspectState(true, "unhealthy")},
	}
	st, err := NewWithAPI(api, "proj").Probe(context.Background(), "b")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if st.Ready() {
		t.Fatalf("unhealthy service must not be ready: %+v", st)
	}
}

func TestProbe_StartingHealthIsNotReady(t *testing.T) {
	api := &fakeAPI{
		byService: map[string][]container.Summary{"b": {running("b1", "proj-b-1")}},
		inspects:  map[string]container.InspectResponse{"b1": inspectState(true, "starting")},
	}
	st, _ := NewWithAPI(api, "proj").Probe(context.Background(), "b")
	if st.Ready() {
		t.Fatal("health=starting must not count as ready")
	}
}

func TestProbe_ZeroInstancesNeverReady(t *testing.T) {
	api := &fakeAPI{byService: map[string][]container.Summary{}}
	st, err := NewWithAPI(api, "proj").Probe(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if st.Ready() {
		t.Fatal("service with zero instances must never be ready")
	}
	if !strings.Contains(st.Summary(), "no instances discovered") {
		t.Fatalf("summary should mention missing instances: %q", st.Summary())
	}
}

func TestProbe_StoppedInstanceNotReady(t *testing.T) {
	api := &fakeAPI{
		byService: map[string][]container.Summary{"a": {{ID: "a1", Names: []string{"/a-1"}, State: "exited"}}},
		inspects:  map[string]container.InspectResponse{"a1": inspectState(false, "")},
	}
	st, _ := NewWithAPI(api, "proj").Probe(context.Background(), "a")
	if st.Ready() {
		t.Fatal("exited-only service must not be ready")
	}
}

func TestProbeAll_ErrorDegradesToEmptyStatus(t *testing.T) {
	api := &fakeAPI{listErr: context.DeadlineExceeded}
	statuses := NewWithAPI(api, "proj").ProbeAll(context.Background(), []string{"a", "b"})
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	for _, st := range statuses {
		if st.Ready() {
			t.Fatalf("errored probe must read as not ready: %+v", st)
		}
	}
}
