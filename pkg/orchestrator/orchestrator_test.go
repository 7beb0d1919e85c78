package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/cuemby/herd/pkg/events"
	"github.com/cuemby/herd/pkg/provision"
	"github.com/cuemby/herd/pkg/storage"
	"github.com/cuemby/herd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestrator(sim *simCluster, mutate ...func(*Config)) *Orchestrator {
	cfg := &Config{
		Inventory:  provision.NewInventory(sim, sim.scheme),
		Membership: sim,
		Executor:   sim,
		Addresser:  sim,
		Poll:       PollConfig{Interval: time.Millisecond},
	}
	for _, m := range mutate {
		m(cfg)
	}
	return New(cfg)
}

// newCluster creates a cluster and clears the step log
func newCluster(t *testing.T, managers, workers int) (*simCluster, *Orchestrator) {
	t.Helper()
	sim := newSim("lab")
	o := newOrchestrator(sim)
	require.NoError(t, o.Create(context.Background(), managers, workers))
	sim.resetLog()
	return sim, o
}

func TestCreateValidatesCounts(t *testing.T) {
	tests := []struct {
		name     string
		managers int
		workers  int
	}{
		{name: "no managers", managers: 0, workers: 1},
		{name: "negative managers", managers: -1, workers: 0},
		{name: "negative workers", managers: 1, workers: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newSim("lab")
			err := newOrchestrator(sim).Create(context.Background(), tt.managers, tt.workers)

			assert.True(t, IsPrecondition(err, InvalidArgument))
			assert.True(t, errdefs.IsInvalidArgument(err))
			assert.Empty(t, sim.steps("create"))
		})
	}
}

func TestCreate(t *testing.T) {
	sim := newSim("lab")
	o := newOrchestrator(sim)

	require.NoError(t, o.Create(context.Background(), 2, 3))

	assert.Equal(t, []string{
		"create lab-manager1",
		"init lab-manager1",
		"create lab-manager2",
		"join lab-manager2",
		"create lab-worker1",
		"join lab-worker1",
		"create lab-worker2",
		"join lab-worker2",
		"create lab-worker3",
		"join lab-worker3",
	}, sim.log)

	assert.Equal(t, map[string]types.MembershipState{
		"lab-manager1": types.MembershipReady,
		"lab-manager2": types.MembershipReady,
		"lab-worker1":  types.MembershipReady,
		"lab-worker2":  types.MembershipReady,
		"lab-worker3":  types.MembershipReady,
	}, sim.memberStates())
}

func TestCreateExisting(t *testing.T) {
	sim, o := newCluster(t, 1, 0)

	err := o.Create(context.Background(), 1, 0)
	assert.True(t, IsPrecondition(err, ClusterAlreadyExists))
	assert.True(t, errdefs.IsAlreadyExists(err))
	assert.Empty(t, sim.log)
}

func TestCreateIgnoresForeignHosts(t *testing.T) {
	sim := newSim("lab")
	require.NoError(t, sim.CreateHost(context.Background(), "prod-manager1"))

	require.NoError(t, newOrchestrator(sim).Create(context.Background(), 1, 0))
	assert.NotNil(t, sim.host("lab-manager1"))
}

func TestCreateConfiguresFirewall(t *testing.T) {
	sim := newSim("lab")
	fw := &recordingFirewall{sim: sim}
	o := newOrchestrator(sim, func(c *Config) { c.Firewall = fw })

	require.NoError(t, o.Create(context.Background(), 1, 1))
	assert.Equal(t, []string{
		"create lab-manager1",
		"init lab-manager1",
		"firewall",
		"create lab-worker1",
		"join lab-worker1",
	}, sim.log)
}

type recordingFirewall struct {
	sim *simCluster
}

func (f *recordingFirewall) Configure(context.Context) error {
	f.sim.mu.Lock()
	defer f.sim.mu.Unlock()
	f.sim.log = append(f.sim.log, "firewall")
	return nil
}

func TestCreateAbortsWithoutRollback(t *testing.T) {
	sim := newSim("lab")
	sim.failOn("join lab-worker1", errors.New("connection refused"))

	err := newOrchestrator(sim).Create(context.Background(), 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	assert.NotNil(t, sim.host("lab-worker1"), "hosts created before the failure stay")
	assert.Nil(t, sim.host("lab-worker2"))
}

func TestAdd(t *testing.T) {
	t.Run("requires a cluster", func(t *testing.T) {
		sim := newSim("lab")
		err := newOrchestrator(sim).Add(context.Background(), types.RoleWorker, 2)
		assert.True(t, IsPrecondition(err, ClusterDoesNotExist))
		assert.True(t, errdefs.IsNotFound(err))
	})

	t.Run("invalid role", func(t *testing.T) {
		_, o := newCluster(t, 1, 0)
		err := o.Add(context.Background(), types.Role("leader"), 1)
		assert.True(t, IsPrecondition(err, InvalidArgument))
	})

	t.Run("joins with the role of the node", func(t *testing.T) {
		sim, o := newCluster(t, 1, 0)
		require.NoError(t, o.Add(context.Background(), types.RoleManager, 1))
		require.NoError(t, o.Add(context.Background(), types.RoleWorker, 2))
		assert.Equal(t, []string{"lab-manager2", "lab-worker1", "lab-worker2"}, sim.steps("join"))
	})
}

func TestStopAllOrder(t *testing.T) {
	sim, o := newCluster(t, 2, 2)

	require.NoError(t, o.Stop(context.Background(), nil))

	assert.Equal(t, []string{"lab-worker1", "lab-worker2", "lab-manager2", "lab-manager1"}, sim.steps("stop"))
	assert.Equal(t, []string{"lab-worker1", "lab-worker2", "lab-manager2", "lab-manager1"}, sim.steps("leave"))
	assert.Equal(t, []string{"lab-manager2"}, sim.steps("demote"))
	// The last manager is not cleaned up: no manager is left to do it
	assert.Equal(t, []string{"lab-worker1", "lab-worker2", "lab-manager2"}, sim.steps("rm"))
}

func TestStopNamedNodesAreOrdered(t *testing.T) {
	sim, o := newCluster(t, 2, 2)

	require.NoError(t, o.Stop(context.Background(), []string{"manager2", "lab-worker2"}))
	assert.Equal(t, []string{"lab-worker2", "lab-manager2"}, sim.steps("stop"))
	assert.True(t, sim.host("lab-worker1").running)
	assert.True(t, sim.host("lab-manager1").running)
}

func TestStopSequence(t *testing.T) {
	sim, o := newCluster(t, 2, 0)

	require.NoError(t, o.Stop(context.Background(), []string{"manager2"}))
	assert.Equal(t, []string{
		"leave lab-manager2",
		"stop lab-manager2",
		"demote lab-manager2",
		"rm lab-manager2",
	}, sim.log)
}

func TestStopSoleManager(t *testing.T) {
	sim, o := newCluster(t, 1, 0)

	require.NoError(t, o.Stop(context.Background(), []string{"manager1"}))
	assert.Equal(t, []string{"leave lab-manager1", "stop lab-manager1"}, sim.log)
}

func TestStopSoleManagerWithWorkersRunning(t *testing.T) {
	sim, o := newCluster(t, 1, 1)

	err := o.Stop(context.Background(), []string{"manager1"})
	assert.True(t, IsPrecondition(err, ManagerStillNeeded))
	assert.True(t, errdefs.IsFailedPrecondition(err))
	assert.Empty(t, sim.log)
	assert.True(t, sim.host("lab-manager1").running)
}

func TestStopRefusesSelectionWithoutManager(t *testing.T) {
	tests := []struct {
		name     string
		managers int
		workers  int
		nodes    []string
	}{
		{name: "worker and last manager", managers: 1, workers: 2, nodes: []string{"worker1", "manager1"}},
		{name: "every manager", managers: 2, workers: 1, nodes: []string{"manager1", "manager2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, o := newCluster(t, tt.managers, tt.workers)

			err := o.Stop(context.Background(), tt.nodes)
			assert.True(t, IsPrecondition(err, ManagerStillNeeded))
			assert.Empty(t, sim.log)
		})
	}
}

func TestStopManagerWhileAnotherRuns(t *testing.T) {
	sim, o := newCluster(t, 2, 1)

	require.NoError(t, o.Stop(context.Background(), []string{"manager2"}))
	assert.Equal(t, []string{"lab-manager2"}, sim.steps("demote"))
	assert.Equal(t, []string{"lab-manager2"}, sim.steps("rm"))
}

func TestStopDuplicateNames(t *testing.T) {
	sim, o := newCluster(t, 1, 2)

	require.NoError(t, o.Stop(context.Background(), []string{"worker1", "lab-worker1", "worker1"}))
	assert.Equal(t, []string{"lab-worker1"}, sim.steps("stop"))
	assert.Equal(t, []string{"lab-worker1"}, sim.steps("rm"))
}

func TestStopNotReady(t *testing.T) {
	sim, o := newCluster(t, 1, 1)
	sim.markDown("lab-worker1")

	err := o.Stop(context.Background(), []string{"worker1"})
	assert.True(t, IsPrecondition(err, NodeNotReady))
	assert.True(t, errdefs.IsFailedPrecondition(err))
	assert.Empty(t, sim.log)
}

func TestStopRequiresCluster(t *testing.T) {
	err := newOrchestrator(newSim("lab")).Stop(context.Background(), nil)
	assert.True(t, IsPrecondition(err, ClusterDoesNotExist))
}

func TestStopUnknownName(t *testing.T) {
	_, o := newCluster(t, 1, 0)

	err := o.Stop(context.Background(), []string{"database"})
	assert.True(t, IsPrecondition(err, InvalidArgument))
}

func TestStopWaitsForDown(t *testing.T) {
	sim, o := newCluster(t, 1, 1)
	sim.lag = 3

	require.NoError(t, o.Stop(context.Background(), []string{"worker1"}))
	assert.Equal(t, 0, sim.host("lab-worker1").lag)
	assert.Equal(t, []string{"lab-worker1"}, sim.steps("rm"))
}

func TestStopPollTimeout(t *testing.T) {
	sim := newSim("lab")
	o := newOrchestrator(sim, func(c *Config) {
		c.Poll = PollConfig{Interval: time.Millisecond, Timeout: 20 * time.Millisecond}
	})
	require.NoError(t, o.Create(context.Background(), 1, 1))
	sim.lag = 1 << 30

	err := o.Stop(context.Background(), []string{"worker1"})
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Empty(t, sim.steps("rm"))
}

func TestStopPollCancelled(t *testing.T) {
	sim, o := newCluster(t, 1, 1)
	sim.lag = 1 << 30

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := o.Stop(ctx, []string{"worker1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrPollTimeout)
}

func TestStart(t *testing.T) {
	sim, o := newCluster(t, 1, 2)
	require.NoError(t, o.Stop(context.Background(), []string{"worker1"}))
	sim.resetLog()

	require.NoError(t, o.Start(context.Background(), nil))
	assert.Equal(t, []string{"start lab-worker1", "join lab-worker1"}, sim.log)
	assert.Equal(t, types.MembershipReady, sim.memberStates()["lab-worker1"])
}

func TestStartRunningNode(t *testing.T) {
	sim, o := newCluster(t, 1, 1)

	err := o.Start(context.Background(), []string{"worker1"})
	assert.True(t, IsPrecondition(err, NodeNotStopped))
	assert.Empty(t, sim.log)
}

func TestStartWithoutManager(t *testing.T) {
	_, o := newCluster(t, 1, 0)
	require.NoError(t, o.Stop(context.Background(), nil))

	err := o.Start(context.Background(), nil)
	assert.True(t, IsPrecondition(err, ClusterNotRunning))
}

func TestRemoveRunningNode(t *testing.T) {
	sim, o := newCluster(t, 1, 2)
	require.NoError(t, o.Stop(context.Background(), []string{"worker1"}))

	err := o.Remove(context.Background(), []string{"worker1", "worker2"})
	assert.True(t, IsPrecondition(err, NodeMustBeStoppedFirst))
	assert.Empty(t, sim.steps("remove"), "no host is deleted")
	assert.NotNil(t, sim.host("lab-worker1"))
}

func TestRemoveAllStopped(t *testing.T) {
	sim, o := newCluster(t, 1, 2)
	require.NoError(t, o.Stop(context.Background(), []string{"worker2", "worker1"}))

	require.NoError(t, o.Remove(context.Background(), nil))
	assert.Equal(t, []string{"lab-worker1", "lab-worker2"}, sim.steps("remove"))
}

func TestEndToEnd(t *testing.T) {
	sim := newSim("lab")
	o := newOrchestrator(sim)
	ctx := context.Background()

	require.NoError(t, o.Create(ctx, 1, 0))
	assert.Equal(t, map[string]types.MembershipState{"lab-manager1": types.MembershipReady}, sim.memberStates())

	require.NoError(t, o.Add(ctx, types.RoleWorker, 2))
	assert.Equal(t, map[string]types.MembershipState{
		"lab-manager1": types.MembershipReady,
		"lab-worker1":  types.MembershipReady,
		"lab-worker2":  types.MembershipReady,
	}, sim.memberStates())

	require.NoError(t, o.Stop(ctx, []string{"lab-worker1"}))
	assert.False(t, sim.host("lab-worker1").running)
	assert.Equal(t, map[string]types.MembershipState{
		"lab-manager1": types.MembershipReady,
		"lab-worker2":  types.MembershipReady,
	}, sim.memberStates())

	require.NoError(t, o.Remove(ctx, []string{"lab-worker1"}))
	hosts, err := sim.ListHosts(ctx, types.FilterAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"lab-manager1", "lab-worker2"}, hosts)

	// Names are not reused below the node count
	require.NoError(t, o.Add(ctx, types.RoleWorker, 1))
	assert.NotNil(t, sim.host("lab-worker3"))
}

func TestExecute(t *testing.T) {
	sim, o := newCluster(t, 1, 2)

	results, err := o.Execute(context.Background(), "uptime", nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "lab-worker1", results[0].Node.String())
	assert.Equal(t, "ok from lab-worker1", results[0].Output.Text())
	assert.Equal(t, []string{
		"lab-worker1 uptime",
		"lab-worker2 uptime",
		"lab-manager1 uptime",
	}, sim.steps("exec"))
}

func TestExecuteZeroReadyNodes(t *testing.T) {
	sim, o := newCluster(t, 1, 0)
	require.NoError(t, o.Stop(context.Background(), nil))
	sim.resetLog()

	results, err := o.Execute(context.Background(), "uptime", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, sim.steps("exec"))
}

func TestExecuteChecksAllNodesFirst(t *testing.T) {
	sim, o := newCluster(t, 1, 2)
	sim.markDown("lab-worker2")

	_, err := o.Execute(context.Background(), "uptime", []string{"worker1", "worker2"})
	assert.True(t, IsPrecondition(err, NodeNotReady))
	assert.Empty(t, sim.steps("exec"))
}

func TestExecuteFirstFailureAborts(t *testing.T) {
	sim, o := newCluster(t, 1, 2)
	sim.failOn("exec lab-worker1 false", errors.New("exit status 1"))

	results, err := o.Execute(context.Background(), "false", []string{"worker1", "worker2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lab-worker1")
	assert.Empty(t, results)
	assert.Equal(t, []string{"lab-worker1 false"}, sim.steps("exec"))
}

func TestExecuteOnNodes(t *testing.T) {
	sim, o := newCluster(t, 1, 1)

	_, err := o.ExecuteOnNodes(context.Background(), []string{"worker1"}, "echo", []string{"hello world", "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lab-worker1 echo 'hello world' x"}, sim.steps("exec"))
}

func TestExecuteEmptyCommand(t *testing.T) {
	_, o := newCluster(t, 1, 0)
	_, err := o.Execute(context.Background(), "", nil)
	assert.True(t, IsPrecondition(err, InvalidArgument))
}

func TestStatus(t *testing.T) {
	_, o := newCluster(t, 1, 1)

	report, err := o.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HOSTNAME\nlab-manager1\nlab-worker1", report.Nodes)
	assert.Contains(t, report.String(), "--- nodes ---\nHOSTNAME")
	assert.Contains(t, report.String(), "--- networks ---\nNAME\ningress")
}

func TestStatusNotRunning(t *testing.T) {
	_, o := newCluster(t, 1, 0)
	require.NoError(t, o.Stop(context.Background(), nil))

	_, err := o.Status(context.Background())
	assert.True(t, IsPrecondition(err, ClusterNotRunning))
}

func TestNodes(t *testing.T) {
	_, o := newCluster(t, 1, 2)
	require.NoError(t, o.Stop(context.Background(), []string{"worker2"}))

	nodes, err := o.Nodes(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	got := map[string]types.NodeInfo{}
	for _, n := range nodes {
		got[n.Hostname()] = n
	}
	assert.Equal(t, types.MachineRunning, got["lab-worker1"].Machine)
	assert.Equal(t, types.MembershipReady, got["lab-worker1"].Membership)
	assert.Equal(t, types.MachineStopped, got["lab-worker2"].Machine)
	assert.Equal(t, types.MembershipUnknown, got["lab-worker2"].Membership)
}

func TestCreateNetwork(t *testing.T) {
	sim, o := newCluster(t, 1, 0)

	require.NoError(t, o.CreateNetwork(context.Background(), "backend"))
	assert.Equal(t, []string{"backend"}, sim.steps("network"))

	err := o.CreateNetwork(context.Background(), "")
	assert.True(t, IsPrecondition(err, InvalidArgument))
}

func TestServices(t *testing.T) {
	sim, o := newCluster(t, 1, 1)
	ctx := context.Background()

	require.NoError(t, o.CreateService(ctx, types.ServiceSpec{Name: "web", Image: "nginx", Replicas: "2"}))
	require.NoError(t, o.CreateService(ctx, types.ServiceSpec{Name: "api", Image: "api:1"}))

	err := o.CreateService(ctx, types.ServiceSpec{Name: "bad"})
	assert.True(t, IsPrecondition(err, InvalidArgument))

	report, err := o.ServiceStatus(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "NAME\nweb\napi", report.Services)
	require.Len(t, report.Tasks, 2)
	assert.Equal(t, "web", report.Tasks[0].Name)
	assert.Contains(t, report.String(), "--- api ---\ntasks of api")

	report, err = o.ServiceStatus(ctx, []string{"api"})
	require.NoError(t, err)
	assert.Empty(t, report.Services)
	assert.Len(t, report.Tasks, 1)

	require.NoError(t, o.RemoveServices(ctx, []string{"web", "api"}))
	assert.Equal(t, []string{"web", "api"}, sim.steps("service-rm"))

	err = o.RemoveServices(ctx, nil)
	assert.True(t, IsPrecondition(err, InvalidArgument))
}

func TestEventsPublished(t *testing.T) {
	sim := newSim("lab")
	broker := events.NewBroker()
	sub := broker.Subscribe()
	broker.Start()
	o := newOrchestrator(sim, func(c *Config) { c.Broker = broker })

	require.NoError(t, o.Create(context.Background(), 1, 1))
	require.NoError(t, o.Stop(context.Background(), []string{"worker1"}))
	broker.Stop()

	var got []events.EventType
	for e := range sub {
		got = append(got, e.Type)
	}
	assert.Equal(t, []events.EventType{
		events.EventNodeCreated,
		events.EventClusterInitialized,
		events.EventNodeCreated,
		events.EventNodeJoined,
		events.EventNodeLeft,
		events.EventNodeStopped,
		events.EventNodeDown,
		events.EventNodeRemoved,
	}, got)
}

func TestJournal(t *testing.T) {
	journal, err := storage.NewBoltJournal(t.TempDir(), storage.Options{})
	require.NoError(t, err)
	defer journal.Close()

	sim := newSim("lab")
	o := newOrchestrator(sim, func(c *Config) { c.Journal = journal })

	require.NoError(t, o.Create(context.Background(), 1, 0))
	err = o.Remove(context.Background(), []string{"manager1"})
	require.Error(t, err)

	ops, err := journal.ListOperations(0)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "remove", ops[0].Name)
	assert.Equal(t, storage.ResultFailure, ops[0].Result)
	assert.Equal(t, "node lab-manager1 must be stopped first", ops[0].Error)
	assert.Equal(t, "create", ops[1].Name)
	assert.Equal(t, []string{"1", "0"}, ops[1].Args)
	assert.Equal(t, storage.ResultSuccess, ops[1].Result)

	recorded, err := journal.ListEvents(ops[1])
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	assert.Equal(t, events.EventNodeCreated, recorded[0].Type)
	assert.Equal(t, "lab-manager1", recorded[0].Node)
}

func TestLocateManager(t *testing.T) {
	sim, _ := newCluster(t, 3, 1)
	inv := provision.NewInventory(sim, sim.scheme)
	locate := LocateManager(inv)

	manager, err := locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lab-manager1", manager)

	require.NoError(t, sim.StopHost(context.Background(), "lab-manager1"))
	manager, err = locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lab-manager2", manager)
}
