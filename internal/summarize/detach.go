package summarize

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
)

// Detach starts the given recall subcommand as a background child with
// stdio redirected to a per-job log file under stateDir. The caller never
// waits; session-end must return to the host immediately. Returns the job
// ID, which names the log file.
func Detach(stateDir string, args ...string) (string, error) {
	jobID := uuid.NewString()

	logDir := filepath.Join(stateDir, "jobs")
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}
	logFile, err := os.OpenFile(
		filepath.Join(logDir, jobID+".log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return "", fmt.Errorf("open job log: %w", err)
	}
	defer logFile.Close()

	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}

	cmd := newDetachedCmd(self, logFile, args)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start background job: %w", err)
	}
	// Reap the child from a goroutine that dies with this process; the
	// child keeps running either way.
	go func() { _ = cmd.Wait() }()

	return jobID, nil
}

// newDetachedCmd builds the re-exec command in its own session, so a signal
// to the parent's process group cannot take the child down with it.
func newDetachedCmd(self string, logFile *os.File, args []string) *exec.Cmd {
	cmd := exec.Command(self, args...)
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd
}
