package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/containerd/errdefs"
	"github.com/cuemby/herd/pkg/events"
	"github.com/cuemby/herd/pkg/executor"
	"github.com/cuemby/herd/pkg/log"
	"github.com/cuemby/herd/pkg/metrics"
	"github.com/cuemby/herd/pkg/naming"
	"github.com/cuemby/herd/pkg/provision"
	"github.com/cuemby/herd/pkg/storage"
	"github.com/cuemby/herd/pkg/swarm"
	"github.com/cuemby/herd/pkg/types"
	"github.com/rs/zerolog"
)

// Membership is the control-plane client the orchestrator drives.
// *swarm.Client implements it.
type Membership interface {
	NodeStatus(ctx context.Context, host string) (types.MembershipState, error)
	Init(ctx context.Context, manager, addr string) error
	MintJoinToken(ctx context.Context, role types.Role) (types.JoinToken, error)
	Join(ctx context.Context, host string, token types.JoinToken) error
	Leave(ctx context.Context, id types.NodeID) error
	Demote(ctx context.Context, host string) error
	RemoveNode(ctx context.Context, host string) error

	NodeTable(ctx context.Context) (string, error)
	NetworkTable(ctx context.Context) (string, error)
	CreateNetwork(ctx context.Context, name string) error

	CreateService(ctx context.Context, spec types.ServiceSpec) error
	RemoveService(ctx context.Context, name string) error
	ServiceTable(ctx context.Context) (string, error)
	ServiceNames(ctx context.Context) ([]string, error)
	ServiceTasks(ctx context.Context, name string) (string, error)
}

// Addresser resolves the LAN address a new swarm advertises
type Addresser interface {
	LANAddress(ctx context.Context, host string) (string, error)
}

// Firewall opens the swarm ports between nodes after the swarm is created
type Firewall interface {
	Configure(ctx context.Context) error
}

// PollConfig controls the wait for a stopped node to be reported down
type PollConfig struct {
	Interval time.Duration
	// Timeout 0 polls until the node is down or ctx is cancelled
	Timeout time.Duration
}

// DefaultPollInterval is the interval between node status polls
const DefaultPollInterval = 10 * time.Second

// Config holds the collaborators of an Orchestrator
type Config struct {
	Inventory  *provision.Inventory
	Membership Membership
	Executor   executor.Executor
	Addresser  Addresser

	// Optional
	Firewall Firewall
	Broker   *events.Broker
	Journal  storage.Journal
	Poll     PollConfig
}

// Orchestrator runs lifecycle operations over the nodes of one cluster.
// It keeps no state between calls: every operation re-reads the node list
// from the provisioner and node states from the swarm. Operations are not
// safe to run concurrently against the same cluster.
type Orchestrator struct {
	inventory  *provision.Inventory
	membership Membership
	exec       executor.Executor
	addresser  Addresser
	firewall   Firewall
	broker     *events.Broker
	journal    storage.Journal
	poll       PollConfig

	// op is the journaled operation in progress
	op     *storage.Operation
	logger zerolog.Logger
}

// New creates an orchestrator
func New(cfg *Config) *Orchestrator {
	poll := cfg.Poll
	if poll.Interval <= 0 {
		poll.Interval = DefaultPollInterval
	}

	return &Orchestrator{
		inventory:  cfg.Inventory,
		membership: cfg.Membership,
		exec:       cfg.Executor,
		addresser:  cfg.Addresser,
		firewall:   cfg.Firewall,
		broker:     cfg.Broker,
		journal:    cfg.Journal,
		poll:       poll,
		logger:     log.WithComponent("orchestrator"),
	}
}

// LocateManager returns the locator the swarm client uses to pick the
// manager that runs control-plane commands: the last running manager in
// shutdown order, which is the one with the lowest index.
func LocateManager(inv *provision.Inventory) swarm.ManagerLocator {
	return func(ctx context.Context) (string, error) {
		managers, err := inv.Managers(ctx, types.FilterRunning)
		if err != nil {
			return "", err
		}
		if len(managers) == 0 {
			return "", swarm.ErrNoManager
		}
		return managers[len(managers)-1].String(), nil
	}
}

func (o *Orchestrator) scheme() naming.Scheme {
	return o.inventory.Scheme()
}

func (o *Orchestrator) provisioner() provision.Provisioner {
	return o.inventory.Provisioner()
}

// run times, counts and journals one operation
func (o *Orchestrator) run(name string, args []string, fn func() error) (err error) {
	timer := metrics.NewTimer()
	logger := log.WithOperation(name)
	logger.Debug().Strs("args", args).Msg("Operation started")

	if o.journal != nil {
		o.op, err = o.journal.Begin(name, args)
		if err != nil {
			return err
		}
	}

	err = fn()

	if o.journal != nil && o.op != nil {
		if jerr := o.journal.Finish(o.op, err); jerr != nil {
			logger.Warn().Err(jerr).Msg("Failed to journal operation result")
		}
		o.op = nil
	}

	timer.ObserveDurationVec(metrics.OperationDuration, name)
	metrics.OperationsTotal.WithLabelValues(name, metrics.Result(err)).Inc()
	logger.Debug().Dur("duration", timer.Duration()).Err(err).Msg("Operation finished")
	return err
}

// emit publishes a lifecycle event and records it in the journal
func (o *Orchestrator) emit(t events.EventType, id *types.NodeID, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	node := ""
	if id != nil {
		node = id.String()
		metrics.NodeTransitionsTotal.WithLabelValues(string(id.Role), transitionLabel(t)).Inc()
	}

	event := events.New(t, node, message)
	if o.broker != nil {
		o.broker.Publish(event)
	}
	if o.journal != nil && o.op != nil {
		if err := o.journal.RecordEvent(o.op, event); err != nil {
			o.logger.Warn().Err(err).Str("event", string(t)).Msg("Failed to journal event")
		}
	}
}

func transitionLabel(t events.EventType) string {
	switch t {
	case events.EventNodeCreated:
		return "created"
	case events.EventNodeJoined:
		return "joined"
	case events.EventNodeLeft:
		return "left"
	case events.EventNodeStopped:
		return "stopped"
	case events.EventNodeStarted:
		return "started"
	case events.EventNodeDown:
		return "down"
	case events.EventNodeRemoved:
		return "removed"
	}
	return string(t)
}

func (o *Orchestrator) assertNoCluster(ctx context.Context) error {
	exists, err := o.inventory.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return precondition(ClusterAlreadyExists, "", "swarm already exists")
	}
	return nil
}

func (o *Orchestrator) assertClusterExists(ctx context.Context) error {
	exists, err := o.inventory.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return precondition(ClusterDoesNotExist, "", "swarm does not exist")
	}
	return nil
}

// assertClusterRunning requires a running manager to send commands to
func (o *Orchestrator) assertClusterRunning(ctx context.Context) error {
	if err := o.assertClusterExists(ctx); err != nil {
		return err
	}
	managers, err := o.inventory.Managers(ctx, types.FilterRunning)
	if err != nil {
		return err
	}
	if len(managers) == 0 {
		return precondition(ClusterNotRunning, "", "swarm is not running")
	}
	return nil
}

// resolve turns user supplied node names into identities, dropping repeats.
// An empty list selects every cluster node in the given machine state.
func (o *Orchestrator) resolve(ctx context.Context, names []string, all types.StateFilter) ([]types.NodeID, error) {
	if len(names) == 0 {
		return o.inventory.List(ctx, all)
	}

	ids := make([]types.NodeID, 0, len(names))
	seen := make(map[types.NodeID]bool, len(names))
	for _, name := range o.scheme().QualifyAll(names) {
		id, ok := o.scheme().Parse(name)
		if !ok {
			return nil, precondition(InvalidArgument, name, "%s is not a node of this swarm", name)
		}
		// "worker1" and "lab-worker1" name the same node
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// membershipState asks the swarm about host, requiring a running manager
func (o *Orchestrator) membershipState(ctx context.Context, id types.NodeID) (types.MembershipState, error) {
	managers, err := o.inventory.Managers(ctx, types.FilterRunning)
	if err != nil {
		return "", err
	}
	if len(managers) == 0 {
		return "", precondition(ClusterNotRunning, id.String(), "swarm is not running")
	}
	return o.membership.NodeStatus(ctx, id.String())
}

func (o *Orchestrator) assertReady(ctx context.Context, id types.NodeID) error {
	state, err := o.membershipState(ctx, id)
	if errdefs.IsNotFound(err) {
		return precondition(NodeNotReady, id.String(), "node %s is not in the swarm", id)
	}
	if err != nil {
		return err
	}
	if state != types.MembershipReady {
		return precondition(NodeNotReady, id.String(), "node %s is not ready", id)
	}
	return nil
}

// assertStartable requires a stopped host the swarm reports down or has
// already dropped from its node list
func (o *Orchestrator) assertStartable(ctx context.Context, id types.NodeID) error {
	machine, err := o.inventory.MachineState(ctx, id.String())
	if err != nil {
		return err
	}
	if machine != types.MachineStopped {
		return precondition(NodeNotStopped, id.String(), "node %s is not stopped", id)
	}

	state, err := o.membershipState(ctx, id)
	if errdefs.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if state != types.MembershipDown {
		return precondition(NodeNotStopped, id.String(), "node %s is not down", id)
	}
	return nil
}
