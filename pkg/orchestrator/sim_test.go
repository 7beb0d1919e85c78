package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/herd/pkg/executor"
	"github.com/cuemby/herd/pkg/naming"
	"github.com/cuemby/herd/pkg/provision"
	"github.com/cuemby/herd/pkg/swarm"
	"github.com/cuemby/herd/pkg/types"
)

// simHost is one machine of the simulated cluster
type simHost struct {
	running bool
	// member is true while the host is in the swarm node list
	member  bool
	leaving bool
	// lag is the number of polls that still report a leaving node ready
	lag  int
	addr string
}

// simCluster is an in-memory provisioner and swarm. It records every
// mutating step in log, e.g. "stop lab-worker1".
type simCluster struct {
	mu       sync.Mutex
	scheme   naming.Scheme
	hosts    map[string]*simHost
	networks []string
	services []string
	log      []string
	fail     map[string]error
	lag      int
	created  int
}

var (
	_ provision.Provisioner = (*simCluster)(nil)
	_ Membership            = (*simCluster)(nil)
	_ Addresser             = (*simCluster)(nil)
	_ executor.Executor     = (*simCluster)(nil)
)

func newSim(prefix string) *simCluster {
	return &simCluster{
		scheme: naming.NewScheme(prefix),
		hosts:  make(map[string]*simHost),
		fail:   make(map[string]error),
	}
}

// record logs a step and returns the failure injected for it
func (s *simCluster) record(step string) error {
	s.log = append(s.log, step)
	return s.fail[step]
}

// failOn injects an error for one step
func (s *simCluster) failOn(step string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[step] = err
}

// steps returns the logged steps with the given verb
func (s *simCluster) steps(verb string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, step := range s.log {
		if strings.HasPrefix(step, verb+" ") {
			out = append(out, strings.TrimPrefix(step, verb+" "))
		}
	}
	return out
}

func (s *simCluster) resetLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}

func (s *simCluster) host(name string) *simHost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hosts[name]
}

// markDown makes the swarm report name down without stopping it
func (s *simCluster) markDown(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts[name].leaving = true
}

func (s *simCluster) get(name string) (*simHost, error) {
	h, ok := s.hosts[name]
	if !ok {
		return nil, fmt.Errorf("Host does not exist: %q", name)
	}
	return h, nil
}

// Provisioner

func (s *simCluster) CreateHost(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("create " + name); err != nil {
		return err
	}
	if _, ok := s.hosts[name]; ok {
		return fmt.Errorf("host %s already exists", name)
	}
	s.created++
	s.hosts[name] = &simHost{running: true, addr: fmt.Sprintf("10.0.0.%d", s.created)}
	return nil
}

func (s *simCluster) StartHost(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("start " + name); err != nil {
		return err
	}
	h, err := s.get(name)
	if err != nil {
		return err
	}
	h.running = true
	return nil
}

func (s *simCluster) StopHost(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("stop " + name); err != nil {
		return err
	}
	h, err := s.get(name)
	if err != nil {
		return err
	}
	h.running = false
	if h.member {
		h.leaving = true
		h.lag = s.lag
	}
	return nil
}

func (s *simCluster) RemoveHost(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("remove " + name); err != nil {
		return err
	}
	if _, err := s.get(name); err != nil {
		return err
	}
	delete(s.hosts, name)
	return nil
}

func (s *simCluster) ListHosts(_ context.Context, filter types.StateFilter) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name, h := range s.hosts {
		switch {
		case filter == types.FilterRunning && !h.running:
			continue
		case filter == types.FilterStopped && h.running:
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *simCluster) HostAddress(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.get(name)
	if err != nil {
		return "", err
	}
	return h.addr, nil
}

func (s *simCluster) LANAddress(ctx context.Context, name string) (string, error) {
	return s.HostAddress(ctx, name)
}

// Membership

// manager returns a running manager in the swarm
func (s *simCluster) manager() (string, error) {
	var names []string
	for name, h := range s.hosts {
		if role, _ := s.scheme.Classify(name); role == types.RoleManager && h.running && h.member && !h.leaving {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", swarm.ErrNoManager
	}
	sort.Strings(names)
	return names[0], nil
}

func (s *simCluster) NodeStatus(_ context.Context, host string) (types.MembershipState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.manager(); err != nil {
		return "", err
	}
	h, ok := s.hosts[host]
	if !ok || !h.member {
		return "", fmt.Errorf("%s: %w", host, swarm.ErrUnknownNode)
	}
	if !h.leaving {
		return types.MembershipReady, nil
	}
	if h.lag > 0 {
		h.lag--
		return types.MembershipReady, nil
	}
	return types.MembershipDown, nil
}

func (s *simCluster) Init(_ context.Context, manager, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("init " + manager); err != nil {
		return err
	}
	h, err := s.get(manager)
	if err != nil {
		return err
	}
	if addr != h.addr {
		return fmt.Errorf("advertise address %s is not the address of %s", addr, manager)
	}
	h.member = true
	return nil
}

func (s *simCluster) MintJoinToken(_ context.Context, role types.Role) (types.JoinToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	manager, err := s.manager()
	if err != nil {
		return types.JoinToken{}, err
	}
	return types.JoinToken{Role: role, Token: "SWMTKN-" + string(role), ManagerAddr: s.hosts[manager].addr}, nil
}

func (s *simCluster) Join(_ context.Context, host string, token types.JoinToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("join " + host); err != nil {
		return err
	}
	h, err := s.get(host)
	if err != nil {
		return err
	}
	if role, _ := s.scheme.Classify(host); role != token.Role {
		return fmt.Errorf("%s joined with a %s token", host, token.Role)
	}
	if !h.running {
		return fmt.Errorf("%s is not running", host)
	}
	h.member = true
	h.leaving = false
	return nil
}

func (s *simCluster) Leave(_ context.Context, id types.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record("leave " + id.String())
}

func (s *simCluster) Demote(_ context.Context, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record("demote " + host)
}

func (s *simCluster) RemoveNode(_ context.Context, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("rm " + host); err != nil {
		return err
	}
	h, err := s.get(host)
	if err != nil {
		return err
	}
	if !h.leaving {
		return fmt.Errorf("node %s is not down", host)
	}
	h.member = false
	h.leaving = false
	return nil
}

func (s *simCluster) NodeTable(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.manager(); err != nil {
		return "", err
	}
	var names []string
	for name, h := range s.hosts {
		if h.member {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return "HOSTNAME\n" + strings.Join(names, "\n"), nil
}

func (s *simCluster) NetworkTable(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return "NAME\ningress\n" + strings.Join(s.networks, "\n"), nil
}

func (s *simCluster) CreateNetwork(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("network " + name); err != nil {
		return err
	}
	s.networks = append(s.networks, name)
	return nil
}

func (s *simCluster) CreateService(_ context.Context, spec types.ServiceSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("service-create " + spec.Name); err != nil {
		return err
	}
	s.services = append(s.services, spec.Name)
	return nil
}

func (s *simCluster) RemoveService(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("service-rm " + name); err != nil {
		return err
	}
	for i, svc := range s.services {
		if svc == name {
			s.services = append(s.services[:i], s.services[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("service %s not found", name)
}

func (s *simCluster) ServiceTable(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return "NAME\n" + strings.Join(s.services, "\n"), nil
}

func (s *simCluster) ServiceNames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.services...), nil
}

func (s *simCluster) ServiceTasks(_ context.Context, name string) (string, error) {
	return "tasks of " + name, nil
}

// Executor

func (s *simCluster) Run(_ context.Context, target executor.Target, command string) (executor.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(fmt.Sprintf("exec %s %s", target, command)); err != nil {
		return executor.Output{}, err
	}
	h, ok := s.hosts[target.Host]
	if !ok || !h.running {
		return executor.Output{}, errors.New("cannot reach " + target.Host)
	}
	return executor.Output{Stdout: "ok from " + target.Host}, nil
}

// memberStates returns the membership state of every host in the node list
func (s *simCluster) memberStates() map[string]types.MembershipState {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make(map[string]types.MembershipState)
	for name, h := range s.hosts {
		switch {
		case !h.member:
		case h.leaving:
			states[name] = types.MembershipDown
		default:
			states[name] = types.MembershipReady
		}
	}
	return states
}
