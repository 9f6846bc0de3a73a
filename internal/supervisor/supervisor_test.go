package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor(t *testing.T, opts ...Option) *Supervisor {
	t.Helper()
	return New(append([]Option{WithShell("/bin/sh")}, opts...)...)
}

func waitDone(t *testing.T, ex *Execution) Status {
	t.Helper()
	select {
	case <-ex.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("execution %s did not finish", ex.ID())
	}
	return ex.Status()
}

func TestStartNew_GlobInWorkDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Cargo.lock", "Cargo.toml", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	s := newTestSupervisor(t, WithDir(dir))
	ex, err := s.StartNew("ls *Cargo*", Start{})
	require.NoError(t, err)

	require.Equal(t, Succeeded, waitDone(t, ex))
	require.Equal(t, "Cargo.lock\nCargo.toml\n", ex.Buffer().String())
	require.True(t, ex.Ended(StdoutDone))
	require.True(t, ex.Ended(StderrDone))
}

func TestStartNew_MissingProgram(t *testing.T) {
	s := newTestSupervisor(t)

	ex, err := s.StartNew("somebscommand --flag", Manual{})
	require.Nil(t, ex)
	require.Error(t, err)

	var se *SpawnError
	require.ErrorAs(t, err, &se)
	require.True(t, se.IsNotFound())
	require.True(t, IsNotFound(err))
	require.ErrorIs(t, err, exec.ErrNotFound)
	require.Contains(t, err.Error(), "somebscommand")
}

func TestStartNew_MissingRelativePath(t *testing.T) {
	s := newTestSupervisor(t, WithDir(t.TempDir()))

	_, err := s.StartNew("./build.sh", Start{})
	require.True(t, IsNotFound(err))
}

func TestStartNew_MissingLauncher(t *testing.T) {
	s := New(WithShell(filepath.Join(t.TempDir(), "nosh")))

	// "true" is a builtin, so only the launcher is checked.
	_, err := s.StartNew("true", Start{})
	require.True(t, IsNotFound(err), "got %v", err)
}

func TestStartNew_EmptyCommand(t *testing.T) {
	s := newTestSupervisor(t)

	for _, line := range []string{"", "   ", "\t\n"} {
		ex, err := s.StartNew(line, Start{})
		require.Nil(t, ex)
		require.ErrorIs(t, err, ErrEmptyCommand)
	}
}

func TestStartNew_ReturnsRunningWithPID(t *testing.T) {
	s := newTestSupervisor(t)

	ex, err := s.StartNew("exec sleep 10", Start{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ex.Terminate() })

	require.Positive(t, ex.PID())
	require.Equal(t, 0, ex.Buffer().Len())
	require.Equal(t, Running, ex.Status())
	exited, _ := ex.TryWait()
	require.False(t, exited)
	require.NotEmpty(t, ex.ID())
}

func TestExecution_TerminateIsNotCancel(t *testing.T) {
	s := newTestSupervisor(t)
	ex, err := s.StartNew("exec sleep 10", Start{})
	require.NoError(t, err)

	require.NoError(t, ex.Terminate())
	require.NoError(t, ex.Terminate())

	status := waitDone(t, ex)
	require.Equal(t, StatusFailed, status.Kind)
	require.Equal(t, -1, status.ExitCode)
	require.False(t, ex.Cancelled())
}

func TestExecution_Cancel(t *testing.T) {
	s := newTestSupervisor(t)
	ex, err := s.StartNew("exec sleep 10", Manual{})
	require.NoError(t, err)

	require.NoError(t, ex.Cancel())
	require.NoError(t, ex.Cancel())

	require.Equal(t, Cancelled, waitDone(t, ex))
	require.True(t, ex.Cancelled())
}

func TestExecution_TerminateAfterExitIsNoop(t *testing.T) {
	s := newTestSupervisor(t)
	ex, err := s.StartNew("true", Start{})
	require.NoError(t, err)
	require.Equal(t, Succeeded, waitDone(t, ex))

	require.NoError(t, ex.Terminate())
	require.NoError(t, ex.Cancel())
	require.Equal(t, Succeeded, ex.Status(), "terminal status must not change")
	require.False(t, ex.Cancelled())
}

func TestStartNew_ExitCodeAndStderr(t *testing.T) {
	s := newTestSupervisor(t)
	ex, err := s.StartNew("echo out; echo err 1>&2; exit 3", Start{})
	require.NoError(t, err)

	require.Equal(t, Failed(3), waitDone(t, ex))
	out := ex.Buffer().String()
	assert.Contains(t, out, "out\n")
	assert.Contains(t, out, "err\n")
	assert.Len(t, out, len("out\nerr\n"))
}

func TestStartNew_DiagnosticsEnv(t *testing.T) {
	ex, err := newTestSupervisor(t).StartNew(`echo "[$RUST_BACKTRACE]"`, Start{})
	require.NoError(t, err)
	waitDone(t, ex)
	require.Equal(t, "[1]\n", ex.Buffer().String())

	ex, err = newTestSupervisor(t, WithDiagnosticsEnv("AMD_TEST_DIAG"), WithEnv([]string{"EXTRA=x"})).
		StartNew(`echo "[$AMD_TEST_DIAG$EXTRA]"`, Start{})
	require.NoError(t, err)
	waitDone(t, ex)
	require.Equal(t, "[1x]\n", ex.Buffer().String())
}

func TestStartNew_StdinNotConnected(t *testing.T) {
	ex, err := newTestSupervisor(t).StartNew("cat; echo eof", Start{})
	require.NoError(t, err)

	require.Equal(t, Succeeded, waitDone(t, ex))
	require.Equal(t, "eof\n", ex.Buffer().String())
}

func TestStartNew_LargeOutput(t *testing.T) {
	ex, err := newTestSupervisor(t).StartNew("head -c 100000 /dev/zero", Start{})
	require.NoError(t, err)

	require.Equal(t, Succeeded, waitDone(t, ex))
	require.Equal(t, 100000, ex.Buffer().Len())
}

func TestStartNew_UsesCommandFactory(t *testing.T) {
	var gotName string
	var gotArgs []string
	factory := func(name string, args ...string) *exec.Cmd {
		gotName, gotArgs = name, args
		return exec.Command("/bin/sh", "-c", "printf hi")
	}

	s := New(WithShell("/opt/zsh"), WithCommandFactory(factory), WithIDGenerator(func() string { return "id-1" }))
	ex, err := s.StartNew("ls -la", Start{})
	require.NoError(t, err)
	waitDone(t, ex)

	require.Equal(t, "/opt/zsh", gotName)
	require.Equal(t, []string{"-c", "ls -la"}, gotArgs)
	require.Equal(t, "id-1", ex.ID())
	require.Equal(t, "hi", ex.Buffer().String())
}

func TestNewFailedExecution(t *testing.T) {
	cause := &SpawnError{Program: "nope", Err: exec.ErrNotFound}
	ex := NewFailedExecution("id", "nope", Modify{File: "a.go"}, cause)

	require.Equal(t, SpawnFailed, ex.Status())
	require.Equal(t, 0, ex.PID())
	require.Equal(t, 0, ex.Buffer().Len())
	require.True(t, errors.Is(ex.SpawnErr(), exec.ErrNotFound))
	require.NoError(t, ex.Terminate())
	require.NoError(t, ex.Cancel())
	require.Equal(t, SpawnFailed, ex.Status())

	select {
	case <-ex.Drained():
	default:
		t.Fatal("failed execution should be drained")
	}
	select {
	case <-ex.Done():
	default:
		t.Fatal("failed execution should be done")
	}
}

func TestElapsed(t *testing.T) {
	ex, err := newTestSupervisor(t).StartNew("true", Start{})
	require.NoError(t, err)
	waitDone(t, ex)

	total := ex.Elapsed(time.Now())
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, total, ex.Elapsed(time.Now()), "elapsed is frozen once finished")
	require.False(t, ex.FinishedAt().IsZero())
}

func TestProgramWord(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"ls *Cargo*", "ls", true},
		{"  cargo   test", "cargo", true},
		{"./run.sh", "./run.sh", true},
		{"exec sleep 10", "", false},
		{"FOO=1 make", "", false},
		{"if true; then echo; fi", "", false},
		{"$EDITOR file", "", false},
		{"(cd x && make)", "", false},
		{"echo hi", "", false},
	}
	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.line, " ", "_"), func(t *testing.T) {
			got, ok := programWord(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultShell(t *testing.T) {
	t.Setenv("SHELL", "")
	require.Equal(t, DefaultShell, New().Shell())

	t.Setenv("SHELL", "/usr/bin/fish")
	require.Equal(t, "/usr/bin/fish", New().Shell())
}
