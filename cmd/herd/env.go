package main

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cuemby/herd/pkg/config"
	"github.com/cuemby/herd/pkg/events"
	"github.com/cuemby/herd/pkg/executor"
	"github.com/cuemby/herd/pkg/log"
	"github.com/cuemby/herd/pkg/metrics"
	"github.com/cuemby/herd/pkg/naming"
	"github.com/cuemby/herd/pkg/orchestrator"
	"github.com/cuemby/herd/pkg/provision"
	"github.com/cuemby/herd/pkg/storage"
	"github.com/cuemby/herd/pkg/swarm"
	"github.com/spf13/cobra"
)

// Command annotations
const (
	// annotationReadOnly marks commands that change nothing
	annotationReadOnly = "herd/read-only"
	// annotationStandalone marks commands that need no orchestrator
	annotationStandalone = "herd/standalone"
)

var readOnly = map[string]string{annotationReadOnly: "true"}

// environment is what a command runs with
type environment struct {
	cfg     *config.Config
	orch    *orchestrator.Orchestrator
	broker  *events.Broker
	journal *storage.BoltJournal
	printer sync.WaitGroup
}

var env = &environment{}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	env.cfg = cfg

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})

	if standalone(cmd) {
		return nil
	}

	if cmd.Annotations[annotationReadOnly] == "" || !flagNoLock {
		env.journal, err = storage.NewBoltJournal(cfg.StateDir, storage.Options{})
		if err != nil {
			if errors.Is(err, storage.ErrLocked) {
				return fmt.Errorf("another herd command is running (use --no-lock for read-only commands): %w", err)
			}
			return err
		}
	}

	env.broker = events.NewBroker()
	env.startPrinter()
	env.broker.Start()

	env.orch, err = newOrchestrator(cfg, env.broker, env.journal)
	return err
}

// standalone reports whether cmd runs without the journal and orchestrator
func standalone(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationStandalone] != "" {
			return true
		}
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}

// loadConfig reads the config file and applies the flags that were set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Driver = flagDriver
	}
	if flags.Changed("prefix") {
		cfg.Prefix = flagPrefix
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = flagLogJSON
	}
	if flags.Changed("state-dir") {
		cfg.StateDir = flagStateDir
	}
	if flags.Changed("metrics-textfile") {
		cfg.MetricsTextfile = flagMetricsTextfile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newOrchestrator(cfg *config.Config, broker *events.Broker, journal *storage.BoltJournal) (*orchestrator.Orchestrator, error) {
	shell := executor.NewShell().WithRemoteShell(provision.RemoteShell(cfg.Driver)...)
	prov := provision.New(cfg.Driver, shell, cfg.DriverOptions)

	var exec executor.Executor = shell
	if cfg.SSH.Native {
		if cfg.Driver == provision.DriverLima {
			return nil, fmt.Errorf("native ssh is not supported with the %s driver", cfg.Driver)
		}
		user := cfg.SSH.User
		if user == "" {
			user = executor.DefaultSSHUser(cfg.Driver)
		}
		keyDir := cfg.SSH.KeyDir
		if keyDir == "" {
			keyDir = executor.DefaultKeyDir()
		}
		exec = executor.NewSSH(user, keyDir, prov.HostAddress, shell)
	}

	inv := provision.NewInventory(prov, naming.NewScheme(cfg.Prefix))
	addresser := provision.NewAddresser(cfg.Driver, prov, exec)

	oc := &orchestrator.Config{
		Inventory:  inv,
		Membership: swarm.NewClient(exec, orchestrator.LocateManager(inv), addresser),
		Executor:   exec,
		Addresser:  addresser,
		Broker:     broker,
		Poll: orchestrator.PollConfig{
			Interval: cfg.Poll.Interval,
			Timeout:  cfg.Poll.Timeout,
		},
	}
	if journal != nil {
		oc.Journal = journal
	}
	if cfg.Driver == "amazonec2" {
		oc.Firewall = provision.NewSecurityGroup(shell)
	}
	return orchestrator.New(oc), nil
}

// startPrinter prints one line per lifecycle event until the broker stops
func (e *environment) startPrinter() {
	sub := e.broker.Subscribe()
	e.printer.Add(1)
	go func() {
		defer e.printer.Done()
		for event := range sub {
			fmt.Fprintln(os.Stdout, eventLine(event))
		}
	}()
}

// close flushes progress output, releases the journal and writes metrics
func (e *environment) close() {
	if e.broker != nil {
		e.broker.Stop()
		e.printer.Wait()
	}
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			log.Logger.Warn().Err(err).Msg("Failed to close journal")
		}
	}
	if e.cfg != nil && e.cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(e.cfg.MetricsTextfile); err != nil {
			log.Logger.Warn().Err(err).Str("path", e.cfg.MetricsTextfile).Msg("Failed to write metrics")
		}
	}
}
