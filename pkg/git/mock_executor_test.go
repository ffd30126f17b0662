package git

import (
	"context"
	"os/exec"
)

// MockCommandExecutor is a simple mock of the CommandExecutor interface
// that doesn't actually execute anything but just records calls.
type MockCommandExecutor struct {
	Output              string
	Commands            []*exec.Cmd
	ExecuteWithOutputFn func(ctx context.Context, cmd *exec.Cmd) (string, error)
}

func (m *MockCommandExecutor) ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error) {
	m.Commands = append(m.Commands, cmd)
	if m.ExecuteWithOutputFn != nil {
		return m.ExecuteWithOutputFn(ctx, cmd)
	}
	return m.Output, nil
}

// LastArgs returns the git arguments of the last command, without "git -C <dir>"
func (m *MockCommandExecutor) LastArgs() []string {
	if len(m.Commands) == 0 {
		return nil
	}
	return m.Commands[len(m.Commands)-1].Args[3:]
}
