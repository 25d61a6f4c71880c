// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"
	log "github.com/sirupsen/logrus"

	pkierrors "github.com/srl-labs/pkilab/errors"
	"github.com/srl-labs/pkilab/utils"
)

const redacted = "******"

// ErrSecretInArgs is returned when a secret value would end up in a process argument vector.
var ErrSecretInArgs = errors.New("secret value found in command arguments")

// ExecCmd represents an exec command.
type ExecCmd struct {
	Cmd []string `json:"cmd"` // Cmd is a slice-based representation of a string command.
	// Dir is the working directory of the process.
	Dir string `json:"dir,omitempty"`
	// Foreground attaches the process to the terminal instead of capturing its output.
	Foreground bool `json:"-"`
	// secrets are exported into the child environment only.
	secrets map[string]string
}

// NewExecCmdFromString creates ExecCmd for a string-based command.
func NewExecCmdFromString(cmd string) (*ExecCmd, error) {
	result := &ExecCmd{}
	if err := result.SetCmd(cmd); err != nil {
		return nil, err
	}
	return result, nil
}

// NewExecCmdFromSlice creates ExecCmd for a command represented as a slice of strings.
func NewExecCmdFromSlice(cmd []string) *ExecCmd {
	return &ExecCmd{
		Cmd: cmd,
	}
}

// SetCmd sets the command that is to be executed.
func (e *ExecCmd) SetCmd(cmd string) error {
	c, err := shlex.Split(cmd)
	if err != nil {
		return err
	}
	if len(c) == 0 {
		return fmt.Errorf("%w: empty command", pkierrors.ErrIncorrectInput)
	}
	e.Cmd = c
	return nil
}

// WithDir sets the working directory.
func (e *ExecCmd) WithDir(dir string) *ExecCmd {
	e.Dir = dir
	return e
}

// WithForeground attaches the process to the current terminal.
func (e *ExecCmd) WithForeground() *ExecCmd {
	e.Foreground = true
	return e
}

// WithSecret exports a secret to the child process through the env var name.
func (e *ExecCmd) WithSecret(name, value string) *ExecCmd {
	if e.secrets == nil {
		e.secrets = map[string]string{}
	}
	e.secrets[name] = value
	return e
}

// Secret returns the secret exported under name.
func (e *ExecCmd) Secret(name string) (string, bool) {
	v, ok := e.secrets[name]
	return v, ok
}

// Env returns the child environment entries carrying secrets, sorted by name.
func (e *ExecCmd) Env() []string {
	env := utils.ConvertEnvs(e.secrets)
	sort.Strings(env)
	return env
}

// GetCmd returns the command that is to be executed.
func (e *ExecCmd) GetCmd() []string {
	return e.Cmd
}

// GetCmdString returns the command as a single string for logging.
func (e *ExecCmd) GetCmdString() string {
	return strings.Join(e.Cmd, " ")
}

// Validate makes sure the command is runnable and no secret is passed as an argument.
func (e *ExecCmd) Validate() error {
	if len(e.Cmd) == 0 || e.Cmd[0] == "" {
		return fmt.Errorf("%w: empty command", pkierrors.ErrIncorrectInput)
	}
	for _, arg := range e.Cmd {
		for name, v := range e.secrets {
			if v != "" && strings.Contains(arg, v) {
				return fmt.Errorf("%w: %s", ErrSecretInArgs, name)
			}
		}
	}
	return nil
}

// redact replaces every secret value in s.
func (e *ExecCmd) redact(s string) string {
	for _, v := range e.secrets {
		if v != "" {
			s = strings.ReplaceAll(s, v, redacted)
		}
	}
	return s
}

// ExecResult represents a result of a command execution.
type ExecResult struct {
	Cmd        []string `json:"cmd"`
	ReturnCode int      `json:"return-code"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
}

func NewExecResult(op *ExecCmd) *ExecResult {
	return &ExecResult{Cmd: op.GetCmd()}
}

// GetCmdString returns the initially parsed cmd as a string for e.g. log output purpose.
func (e *ExecResult) GetCmdString() string {
	return strings.Join(e.Cmd, " ")
}

func (e *ExecResult) String() string {
	var s strings.Builder

	s.WriteString(fmt.Sprintf("Cmd: %s\nReturnCode: %d", e.GetCmdString(), e.ReturnCode))

	if e.Stdout != "" {
		s.WriteString(fmt.Sprintf("\nStdout: %q", e.Stdout))
	}
	if e.Stderr != "" {
		s.WriteString(fmt.Sprintf("\nStderr: %q", e.Stderr))
	}

	return s.String()
}

// Err maps a nonzero return code to a ToolError.
func (e *ExecResult) Err() error {
	if e.ReturnCode == 0 {
		return nil
	}
	return &ToolError{Cmd: e.Cmd, ReturnCode: e.ReturnCode, Stderr: e.Stderr}
}

// ToolError is the failure of an external process.
type ToolError struct {
	Cmd        []string
	ReturnCode int
	Stderr     string
	// Err is set when the process could not be started or waited on.
	Err error
}

func (e *ToolError) Error() string {
	name := "<empty>"
	if len(e.Cmd) > 0 {
		name = e.Cmd[0]
	}
	msg := fmt.Sprintf("%s exited with code %d", name, e.ReturnCode)
	if e.Err != nil {
		msg = fmt.Sprintf("%s failed: %v", name, e.Err)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func (*ToolError) Is(target error) bool {
	return target == pkierrors.ErrExternalToolFailure
}

// Runner runs external processes.
type Runner interface {
	Run(ctx context.Context, cmd *ExecCmd) (*ExecResult, error)
}

// LocalRunner runs processes on the local host.
type LocalRunner struct {
	// GracePeriod is how long an interrupted process may take to exit before it is killed.
	GracePeriod time.Duration
}

// NewLocalRunner returns a LocalRunner.
func NewLocalRunner(grace time.Duration) *LocalRunner {
	return &LocalRunner{GracePeriod: grace}
}

// Run executes cmd and blocks until it exits. A nonzero exit code is
// returned as a *ToolError alongside the populated result.
// When ctx is cancelled the process receives SIGINT, and SIGKILL once
// the grace period expires.
func (r *LocalRunner) Run(ctx context.Context, e *ExecCmd) (*ExecResult, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	command := e.GetCmd()
	log.Debugf("running %q in %q", e.GetCmdString(), e.Dir)

	cmd := osexec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = e.Dir
	cmd.Env = append(os.Environ(), e.Env()...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.GracePeriod

	var outBuf, errBuf bytes.Buffer
	if e.Foreground {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
	}

	err := cmd.Run()

	result := NewExecResult(e)
	result.Stdout = e.redact(outBuf.String())
	result.Stderr = e.redact(errBuf.String())

	var exitErr *osexec.ExitError
	switch {
	case err == nil:
		result.ReturnCode = 0
	case errors.As(err, &exitErr):
		result.ReturnCode = exitErr.ExitCode()
		log.Debugf("%q exited with code %d", e.GetCmdString(), result.ReturnCode)
		toolErr := &ToolError{Cmd: result.Cmd, ReturnCode: result.ReturnCode, Stderr: result.Stderr}
		if ctx.Err() != nil {
			return result, errors.Join(ctx.Err(), toolErr)
		}
		return result, toolErr
	default:
		result.ReturnCode = -1
		toolErr := &ToolError{Cmd: result.Cmd, ReturnCode: result.ReturnCode, Stderr: result.Stderr, Err: err}
		if ctx.Err() != nil {
			return result, errors.Join(ctx.Err(), toolErr)
		}
		return result, toolErr
	}

	return result, nil
}
