package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Compose labels used to discover service containers.
const (
	labelProject = "com.docker.compose.project"
	labelService = "com.docker.compose.service"
)

// ContainerAPI is the slice of the Docker client the prober needs.
type ContainerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// InstanceStatus is the observed state of one container backing a service.
type InstanceStatus struct {
	ID             string
	Name           string
	State          string // created, running, exited, ...
	Running        bool
	HasHealthCheck bool
	Health         string // healthy, unhealthy, starting; empty without a check
}

// ServiceStatus is the observed state of one named service. It is recomputed
// on every probe and never cached across polls.
type ServiceStatus struct {
	Name      string
	Instances []InstanceStatus
}

// Ready reports whether the service satisfies the readiness predicate: at
// least one running instance, and every instance that declares a health check
// currently reports healthy. A service with zero discovered instances is
// never ready.
func (s ServiceStatus) Ready() bool {
	running := 0
	for _, in := range s.Instances {
		if in.Running {
			running++
		}
		if in.HasHealthCheck && in.Health != "healthy" {
			return false
		}
	}
	return running > 0
}

// Summary renders a one-line diagnostic for the service.
func (s ServiceStatus) Summary() string {
	if len(s.Instances) == 0 {
		return fmt.Sprintf("%s: no instances discovered", s.Name)
	}
	parts := make([]string, 0, len(s.Instances))
	for _, in := range s.Instances {
		p := fmt.Sprintf("%s state=%s", in.Name, in.State)
		if in.HasHealthCheck {
			p += " health=" + in.Health
		}
		parts = append(parts, p)
	}
	return fmt.Sprintf("%s: %s", s.Name, strings.Join(parts, ", "))
}

// Prober inspects compose service containers through the Docker API.
type Prober struct {
	api     ContainerAPI
	project string
}

// New builds a Prober from an environment-configured Docker client.
func New(project string) (*Prober, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("probe: docker client: %w", err)
	}
	return NewWithAPI(cli, project), nil
}

// NewWithAPI builds a Prober over an existing API client. Tests use this to
// inject fakes.
func NewWithAPI(api ContainerAPI, project string) *Prober {
	return &Prober{api: api, project: project}
}

// Probe returns a point-in-time ServiceStatus for one named service.
func (p *Prober) Probe(ctx context.Context, service string) (ServiceStatus, error) {
	st := ServiceStatus{Name: service}
	args := filters.NewArgs(filters.Arg("label", labelService+"="+service))
	if p.project != "" {
		args.Add("label", labelProject+"="+p.project)
	}
	list, err := p.api.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return st, fmt.Errorf("probe: list %s: %w", service, err)
	}
	for _, c := range list {
		in := InstanceStatus{
			ID:      c.ID,
			Name:    containerName(c),
			State:   string(c.State),
			Running: string(c.State) == "running",
		}
		insp, err := p.api.ContainerInspect(ctx, c.ID)
		if err == nil && insp.State != nil {
			in.Running = insp.State.Running
			in.State = insp.State.Status
			if insp.State.Health != nil {
				in.HasHealthCheck = true
				in.Health = insp.State.Health.Status
			}
		}
		st.Instances = append(st.Instances, in)
	}
	return st, nil
}

// ProbeAll probes every listed service. Probe errors degrade to an empty
// status for that service; the caller sees them as "not ready".
func (p *Prober) ProbeAll(ctx context.Context, services []string) []ServiceStatus {
	out := make([]ServiceStatus, 0, len(services))
	for _, svc := range services {
		st, err := p.Probe(ctx, svc)
		if err != nil {
			st = ServiceStatus{Name: svc}
		}
		out = append(out, st)
	}
	return out
}

func containerName(c container.Summary) string {
	if len(c.Names) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	if len(c.ID) >= 12 {
		return c.ID[:12]
	}
	return c.ID
}
