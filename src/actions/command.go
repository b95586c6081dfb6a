package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

var shells = map[string][]string{
	"cmd":        {"cmd", "/C"},
	"powershell": {"powershell", "-NoProfile", "-Command"},
	"pwsh":       {"pwsh", "-NoProfile", "-Command"},
	"bash":       {"bash", "-c"},
	"sh":         {"sh", "-c"},
	"zsh":        {"zsh", "-c"},
}

func defaultShell() string {
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return "sh"
}

// CommandExecution runs Command through a shell. Without WaitForExit it
// returns once the process has started and logs the exit in the background.
type CommandExecution struct {
	base
	Command     string
	Shell       string
	WaitForExit bool
}

func (a *CommandExecution) shell() string {
	if a.Shell == "" {
		return defaultShell()
	}
	return strings.ToLower(a.Shell)
}

func (a *CommandExecution) IsValid() bool {
	var errs []string
	if strings.TrimSpace(a.Command) == "" {
		errs = append(errs, "Command is required")
	}
	if _, ok := shells[a.shell()]; !ok {
		errs = append(errs, fmt.Sprintf("unknown Shell %q", a.Shell))
	}
	return a.record(errs)
}

func (a *CommandExecution) Suspends() bool { return a.WaitForExit }

func (a *CommandExecution) Config() Config {
	cfg := a.config()
	cfg.Command = a.Command
	cfg.Shell = a.Shell
	cfg.WaitForExit = a.WaitForExit
	return cfg
}

func (a *CommandExecution) execute(ctx context.Context, trigger *int) error {
	shell := shells[a.shell()]
	if shell == nil {
		return fmt.Errorf("unknown shell %q", a.Shell)
	}
	args := append(append([]string(nil), shell[1:]...), a.Command)
	cmd := exec.Command(shell[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log := a.env.log.With().Str("command", a.Command).Str("shell", shell[0]).Logger()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return &ResourceUnavailableError{Resource: "shell", Name: shell[0], Err: err}
		}
		return fmt.Errorf("could not start command: %w", err)
	}

	wait := func() error {
		err := cmd.Wait()
		log.Debug().
			Str("stdout", strings.TrimSpace(stdout.String())).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Int("exitCode", cmd.ProcessState.ExitCode()).
			Msg("Command finished")
		if err != nil {
			return fmt.Errorf("command exited with error: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil
	}

	if a.WaitForExit {
		return wait()
	}
	a.env.Go(func() {
		if err := wait(); err != nil {
			log.Warn().Err(err).Msg("Background command failed")
		}
	})
	return nil
}
