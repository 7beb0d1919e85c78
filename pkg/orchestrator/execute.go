package orchestrator

import (
	"context"
	"fmt"

	"github.com/cuemby/herd/pkg/executor"
	"github.com/cuemby/herd/pkg/types"
	"github.com/kballard/go-shellquote"
)

// Result is the output of a command on one node
type Result struct {
	Node   types.NodeID
	Output executor.Output
}

// Execute runs command on nodes, or on every running node when names is
// empty. Every node must be ready before the command runs anywhere. The
// first failure stops the remaining nodes; results gathered so far are
// returned with the error.
func (o *Orchestrator) Execute(ctx context.Context, command string, names []string) ([]Result, error) {
	var results []Result
	err := o.run("execute", append([]string{command}, names...), func() error {
		var err error
		results, err = o.execute(ctx, command, names)
		return err
	})
	return results, err
}

// ExecuteOnNodes runs command with args on nodes. The args are shell quoted.
func (o *Orchestrator) ExecuteOnNodes(ctx context.Context, names []string, command string, args []string) ([]Result, error) {
	line := command
	if len(args) > 0 {
		line = command + " " + shellquote.Join(args...)
	}

	var results []Result
	err := o.run("exec", append(append([]string{}, names...), line), func() error {
		var err error
		results, err = o.execute(ctx, line, names)
		return err
	})
	return results, err
}

func (o *Orchestrator) execute(ctx context.Context, command string, names []string) ([]Result, error) {
	if command == "" {
		return nil, precondition(InvalidArgument, "", "command must not be empty")
	}
	if err := o.assertClusterExists(ctx); err != nil {
		return nil, err
	}
	ids, err := o.resolve(ctx, names, types.FilterRunning)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := o.assertReady(ctx, id); err != nil {
			return nil, err
		}
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		out, err := o.exec.Run(ctx, executor.Host(id.String()), command)
		if err != nil {
			return results, fmt.Errorf("command failed on %s: %w", id, err)
		}
		results = append(results, Result{Node: id, Output: out})
	}
	return results, nil
}
