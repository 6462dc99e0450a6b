package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"context"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// pathListSeparator is the OS-appropriate PATH entry separator: ";" on
// Windows-family targets, ":" elsewhere.
func pathListSeparator() string {
	if runtime.GOOS == "windows" {
		return ";"
	}
	return ":"
}

// RunnableCmd is the ProcessRunner's input: a program, its arguments, the
// working directory to run it in, environment overlays, and the semaphore
// token it must acquire before the process is spawned.
type RunnableCmd struct {
	Prog         string
	Args         []string
	Cwd          string
	ExtraEnvVars map[string]string
	ExtraPATH    []string
	Sem          Semaphore

	// Stdout/Stderr override the inherited terminal streams when set, used
	// by the Async strategy to route a unit's build output to its own
	// per-unit log instead of interleaving with every other unit running
	// concurrently.
	Stdout io.Writer
	Stderr io.Writer
}

// ProcessRunner spawns external commands, one at a time per held semaphore
// token, isolating each in its own process group so a canceled context can
// kill the whole subtree rather than leaking orphans.
type ProcessRunner struct {
	Context context.Context
}

func NewProcessRunner(ctx context.Context) *ProcessRunner {
	return &ProcessRunner{Context: ctx}
}

// Run executes cmd and returns *CommandFailed on nonzero exit. Per the
// ProcessRunner invariant, when both ExtraPATH and ExtraEnvVars are empty
// the child's environment is the parent's, unmodified and uncopied.
func (r *ProcessRunner) Run(cmd RunnableCmd) error {
	sem := cmd.Sem
	if sem == nil {
		sem = NoneSemaphore()
	}
	return sem.WithToken(r.Context, func() error {
		return r.spawn(cmd)
	})
}

func (r *ProcessRunner) spawn(cmd RunnableCmd) error {
	execCmd := exec.CommandContext(r.Context, cmd.Prog, cmd.Args...)
	execCmd.Dir = cmd.Cwd
	execCmd.Stdin = os.Stdin
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	if cmd.Stdout != nil {
		execCmd.Stdout = cmd.Stdout
	}
	if cmd.Stderr != nil {
		execCmd.Stderr = cmd.Stderr
	}

	if len(cmd.ExtraPATH) == 0 && len(cmd.ExtraEnvVars) == 0 {
		execCmd.Env = nil // inherit the parent's environment unmodified
	} else {
		execCmd.Env = buildChildEnv(os.Environ(), cmd.ExtraPATH, cmd.ExtraEnvVars)
	}

	execCmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}

	if err := execCmd.Start(); err != nil {
		return &IOFailure{Op: "spawn " + cmd.Prog, Err: err}
	}

	pgid := execCmd.Process.Pid
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-r.Context.Done():
			unix.Kill(-pgid, unix.SIGKILL)
		case <-done:
		}
	}()

	waitErr := execCmd.Wait()
	if waitErr == nil {
		return nil
	}

	if r.Context.Err() != nil {
		time.Sleep(50 * time.Millisecond)
		return &IOFailure{Op: "run " + cmd.Prog, Err: r.Context.Err()}
	}

	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return &CommandFailed{Prog: cmd.Prog, Args: cmd.Args, ExitCode: exitErr.ExitCode()}
	}
	return &IOFailure{Op: "run " + cmd.Prog, Err: waitErr}
}

// buildChildEnv overlays extraEnvVars onto the parent environment and
// prepends extraPATH entries onto PATH.
func buildChildEnv(parentEnv []string, extraPATH []string, extraEnvVars map[string]string) []string {
	out := make([]string, 0, len(parentEnv)+len(extraEnvVars))
	overridden := make(map[string]bool, len(extraEnvVars))

	for _, kv := range parentEnv {
		key, _, _ := strings.Cut(kv, "=")
		if key == "PATH" && len(extraPATH) > 0 {
			_, val, _ := strings.Cut(kv, "=")
			out = append(out, "PATH="+strings.Join(extraPATH, pathListSeparator())+pathListSeparator()+val)
			overridden["PATH"] = true
			continue
		}
		if _, ok := extraEnvVars[key]; ok {
			continue // superseded below
		}
		out = append(out, kv)
	}

	if len(extraPATH) > 0 && !overridden["PATH"] {
		out = append(out, "PATH="+strings.Join(extraPATH, pathListSeparator()))
	}

	for k, v := range extraEnvVars {
		out = append(out, k+"="+v)
	}
	return out
}
