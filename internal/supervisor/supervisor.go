// Package supervisor spawns the watched command and captures its output.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/amd/internal/cachemanager"
	"github.com/zjrosen/amd/internal/log"
)

// DefaultShell is the launcher used when $SHELL is unset.
const DefaultShell = "/bin/sh"

// DefaultDiagnosticsEnv is set to "1" in every child's environment.
const DefaultDiagnosticsEnv = "RUST_BACKTRACE"

// ChunkSize is the read size of each capture worker.
const ChunkSize = 4096

// CommandFactoryFunc creates an exec.Cmd. Tests substitute it to control
// what actually runs.
type CommandFactoryFunc func(name string, args ...string) *exec.Cmd

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithShell sets the launcher. An empty value keeps the default.
func WithShell(shell string) Option {
	return func(s *Supervisor) {
		if shell != "" {
			s.shell = shell
		}
	}
}

// WithDir sets the working directory of every child.
func WithDir(dir string) Option {
	return func(s *Supervisor) {
		s.dir = dir
	}
}

// WithDiagnosticsEnv names the variable set to "1" in the child
// environment. An empty name disables it.
func WithDiagnosticsEnv(name string) Option {
	return func(s *Supervisor) {
		s.diagnosticsEnv = name
	}
}

// WithEnv appends extra KEY=VALUE pairs to the child environment.
func WithEnv(env []string) Option {
	return func(s *Supervisor) {
		s.env = append(s.env, env...)
	}
}

// WithCommandFactory sets a custom command factory for testing.
func WithCommandFactory(fn CommandFactoryFunc) Option {
	return func(s *Supervisor) {
		s.commandFactory = fn
	}
}

// WithLookupCache sets the cache used to pre-resolve programs on PATH.
func WithLookupCache(c *cachemanager.LookupCache) Option {
	return func(s *Supervisor) {
		s.lookup = c
	}
}

// WithIDGenerator replaces uuid generation of execution ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Supervisor) {
		s.newID = fn
	}
}

// Supervisor starts executions of a command line through a shell launcher.
// It holds no per-execution state and is safe for concurrent use.
type Supervisor struct {
	shell          string
	dir            string
	diagnosticsEnv string
	env            []string
	commandFactory CommandFactoryFunc
	lookup         *cachemanager.LookupCache
	newID          func() string
}

// New creates a Supervisor using $SHELL, or /bin/sh, as the launcher.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		shell:          os.Getenv("SHELL"),
		diagnosticsEnv: DefaultDiagnosticsEnv,
		commandFactory: exec.Command,
		newID:          uuid.NewString,
	}
	if s.shell == "" {
		s.shell = DefaultShell
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lookup == nil {
		s.lookup = cachemanager.NewLookupCache(cachemanager.DefaultExpiration, nil)
	}
	return s
}

// Shell returns the launcher path.
func (s *Supervisor) Shell() string { return s.shell }

// NewID returns a fresh execution id.
func (s *Supervisor) NewID() string { return s.newID() }

// StartNew spawns "shell -c commandline" with both output streams captured
// into the execution's buffer. It returns as soon as the child is running.
func (s *Supervisor) StartNew(commandline string, trigger Trigger) (*Execution, error) {
	if strings.TrimSpace(commandline) == "" {
		return nil, ErrEmptyCommand
	}

	if err := s.resolve(commandline); err != nil {
		log.Warn(log.CatSupervisor, "Program not found", "command", commandline, "error", err)
		return nil, err
	}

	// #nosec G204 -- running the user's command line is the point
	cmd := s.commandFactory(s.shell, "-c", commandline)
	if s.dir != "" {
		cmd.Dir = s.dir
	}
	cmd.Env = append(os.Environ(), s.env...)
	if s.diagnosticsEnv != "" {
		cmd.Env = append(cmd.Env, s.diagnosticsEnv+"=1")
	}
	// Stdin left nil: the child reads from the null device.
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Program: s.shell, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Program: s.shell, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		log.ErrorErr(log.CatSupervisor, "Spawn failed", err, "shell", s.shell, "command", commandline)
		return nil, &SpawnError{Program: s.shell, Err: err}
	}

	ex := newExecution(s.newID(), commandline, trigger, time.Now())
	ex.cmd = cmd

	log.Info(log.CatSupervisor, "Spawned", "id", ex.id, "pid", ex.PID(), "trigger", Describe(trigger), "command", commandline)

	go capture(ex, stdout, StdoutDone)
	go capture(ex, stderr, StderrDone)
	go reap(ex)

	return ex, nil
}

// capture copies r into the execution buffer in ChunkSize reads and emits
// sig once at end of stream.
func capture(ex *Execution, r io.Reader, sig EndSignal) {
	defer ex.signalEnd(sig)

	chunk := make([]byte, ChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			_, _ = ex.buffer.Write(chunk[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				log.Warn(log.CatSupervisor, "Read error", "id", ex.id, "stream", sig, "error", err)
			}
			return
		}
	}
}

// reap waits for both streams, then for the child, and records the exit.
// exec.Cmd requires all pipe reads to finish before Wait.
func reap(ex *Execution) {
	<-ex.drained

	err := ex.cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			log.ErrorErr(log.CatSupervisor, "Wait failed", err, "id", ex.id)
			code = -1
		}
	}
	ex.recordExit(code, time.Now())

	log.Info(log.CatSupervisor, "Reaped", "id", ex.id, "pid", ex.PID(), "status", ex.Status())
}

// Resolve reports whether the program a command line starts with exists.
// It is exposed for the display layer's header colouring.
func (s *Supervisor) Resolve(ctx context.Context, word string) cachemanager.Resolution {
	return s.lookup.Resolve(ctx, word)
}

func (s *Supervisor) resolve(commandline string) error {
	word, ok := programWord(commandline)
	if !ok {
		return nil
	}
	if strings.Contains(word, "/") {
		path := word
		if s.dir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, path)
		}
		if _, err := os.Stat(path); err != nil {
			return &SpawnError{Program: word, Err: err}
		}
		return nil
	}
	if !s.lookup.Resolve(context.Background(), word).Found {
		return &SpawnError{Program: word, Err: exec.ErrNotFound}
	}
	return nil
}

const shellMeta = "$`'\"\\|&;<>()*?[]{}~!#"

var shellWords = map[string]struct{}{
	"if": {}, "then": {}, "else": {}, "elif": {}, "fi": {}, "case": {}, "esac": {},
	"for": {}, "while": {}, "until": {}, "do": {}, "done": {}, "select": {},
	"function": {}, "time": {}, "coproc": {},
	".": {}, ":": {}, "alias": {}, "bg": {}, "bind": {}, "break": {}, "builtin": {},
	"cd": {}, "command": {}, "continue": {}, "declare": {}, "dirs": {}, "echo": {},
	"eval": {}, "exec": {}, "exit": {}, "export": {}, "false": {}, "fg": {},
	"getopts": {}, "hash": {}, "history": {}, "jobs": {}, "kill": {}, "let": {},
	"local": {}, "popd": {}, "printf": {}, "pushd": {}, "pwd": {}, "read": {},
	"readonly": {}, "return": {}, "set": {}, "shift": {}, "source": {}, "test": {},
	"trap": {}, "true": {}, "type": {}, "typeset": {}, "ulimit": {}, "umask": {},
	"unalias": {}, "unset": {}, "wait": {},
}

// programWord returns the first word of commandline when it names a program
// that can be checked before spawning. Builtins, keywords, assignments and
// anything containing shell syntax are left to the shell.
func programWord(commandline string) (string, bool) {
	fields := strings.Fields(commandline)
	if len(fields) == 0 {
		return "", false
	}
	word := fields[0]
	if strings.ContainsAny(word, shellMeta) || strings.Contains(word, "=") {
		return "", false
	}
	if _, ok := shellWords[word]; ok {
		return "", false
	}
	return word, true
}
