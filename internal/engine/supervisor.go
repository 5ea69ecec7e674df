// Package engine supervises the external proxy engine process.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RunningMode reports how the engine is currently hosted.
type RunningMode string

const (
	RunningModeSidecar    RunningMode = "Sidecar"
	RunningModeService    RunningMode = "Service"
	RunningModeNotRunning RunningMode = "NotRunning"
)

// Status represents the status of the supervised process
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
	StatusCrashed  Status = "crashed"
)

// ErrNotRunning is returned by Stop when there is no process.
var ErrNotRunning = errors.New("engine is not running")

// ExitInfo contains information about process exit
type ExitInfo struct {
	Code      int
	Signal    string
	Timestamp time.Time
	Error     error
}

// Config describes how to launch the engine.
type Config struct {
	Binary      string
	HomeDir     string
	ConfigPath  string
	Secret      string
	Endpoint    string
	Args        []string // overrides the generated argument list when non-nil
	Env         []string
	StopTimeout time.Duration
}

const maxOutputLines = 200

// Supervisor starts, stops and restarts the engine.
type Supervisor struct {
	config Config
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	cmd       *exec.Cmd
	status    Status
	pid       int
	exitInfo  *ExitInfo
	startTime time.Time
	done      chan struct{}

	outputMu sync.Mutex
	output   []string
}

// NewSupervisor creates a supervisor. Nothing is started until Init or Start.
func NewSupervisor(config Config, logger *zap.SugaredLogger) *Supervisor {
	if config.StopTimeout == 0 {
		config.StopTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Supervisor{
		config: config,
		logger: logger,
		status: StatusStopped,
	}
}

// Init resolves the engine binary and starts it.
func (s *Supervisor) Init(ctx context.Context) error {
	binary, err := resolveBinary(s.config.Binary)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.config.Binary = binary
	s.mu.Unlock()
	return s.Start(ctx)
}

// Start launches the engine process.
func (s *Supervisor) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusRunning || s.status == StatusStarting {
		return fmt.Errorf("engine already running or starting")
	}

	args := s.config.Args
	if args == nil {
		args = s.defaultArgs()
	}

	s.logger.Infow("Starting engine",
		"binary", s.config.Binary,
		"args", maskSensitiveArgs(args))

	// Not tied to a context: the engine must outlive the request that started it.
	cmd := exec.Command(s.config.Binary, args...)
	if s.config.HomeDir != "" {
		cmd.Dir = s.config.HomeDir
	}
	if len(s.config.Env) > 0 {
		cmd.Env = append(os.Environ(), s.config.Env...)
	}
	configureProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	s.status = StatusStarting
	s.startTime = time.Now()
	if err := cmd.Start(); err != nil {
		s.status = StatusFailed
		return fmt.Errorf("failed to start engine: %w", err)
	}

	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.status = StatusRunning
	s.exitInfo = nil
	s.done = make(chan struct{})

	// Pipes must be drained before cmd.Wait closes them.
	var readers sync.WaitGroup
	readers.Add(2)
	go s.captureOutput(stdout, "stdout", &readers)
	go s.captureOutput(stderr, "stderr", &readers)
	go s.wait(cmd, &readers, s.done)

	s.logger.Infow("Engine started", "pid", s.pid)
	return nil
}

// Stop terminates the engine, escalating to a kill after StopTimeout.
func (s *Supervisor) Stop() error {
	s.mu.RLock()
	cmd := s.cmd
	pid := s.pid
	done := s.done
	running := s.status == StatusRunning
	s.mu.RUnlock()

	if cmd == nil || cmd.Process == nil || !running {
		return ErrNotRunning
	}

	s.logger.Infow("Stopping engine", "pid", pid)
	if err := terminate(cmd); err != nil {
		s.logger.Warnw("Failed to signal engine", "pid", pid, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.config.StopTimeout):
		s.logger.Warnw("Engine did not stop gracefully, killing", "pid", pid)
		if err := kill(cmd); err != nil {
			s.logger.Errorw("Failed to kill engine", "pid", pid, "error", err)
		}
		<-done
		return fmt.Errorf("engine force killed")
	}
}

// Restart stops the engine if running and starts it again.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		s.logger.Warnw("Stop before restart failed", "error", err)
	}
	return s.Start(ctx)
}

// RunningMode reports whether the engine runs as our child.
func (s *Supervisor) RunningMode() RunningMode {
	if s.Status() == StatusRunning {
		return RunningModeSidecar
	}
	return RunningModeNotRunning
}

// Status returns the current process status
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// PID returns the process ID
func (s *Supervisor) PID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pid
}

// ExitInfo returns information about the last exit.
func (s *Supervisor) ExitInfo() *ExitInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exitInfo
}

// Output returns the most recent engine output lines.
func (s *Supervisor) Output() []string {
	s.outputMu.Lock()
	defer s.outputMu.Unlock()
	return append([]string(nil), s.output...)
}

// Endpoint returns the controller endpoint the engine was told to serve.
func (s *Supervisor) Endpoint() string {
	return s.config.Endpoint
}

// HealthCheck reports an error unless the engine is running.
func (s *Supervisor) HealthCheck(context.Context) error {
	if st := s.Status(); st != StatusRunning {
		return fmt.Errorf("engine status %s", st)
	}
	return nil
}

// Name identifies the supervisor in health reports.
func (s *Supervisor) Name() string { return "engine" }

func (s *Supervisor) defaultArgs() []string {
	args := []string{}
	if s.config.HomeDir != "" {
		args = append(args, "-d", s.config.HomeDir)
	}
	if s.config.ConfigPath != "" {
		args = append(args, "-f", s.config.ConfigPath)
	}
	args = append(args, controllerArgs(s.config.Endpoint)...)
	if s.config.Secret != "" {
		args = append(args, "-secret", s.config.Secret)
	}
	return args
}

func (s *Supervisor) wait(cmd *exec.Cmd, readers *sync.WaitGroup, done chan struct{}) {
	readers.Wait()
	err := cmd.Wait()

	s.mu.Lock()
	info := &ExitInfo{Timestamp: time.Now(), Error: err}
	status := StatusStopped
	if err != nil {
		status = StatusFailed
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			info.Code = exitErr.ExitCode()
			if sig := signalOf(exitErr); sig != "" {
				info.Signal = sig
				status = StatusCrashed
			}
		}
	}
	// A newer Start may already own the supervisor.
	if s.cmd == cmd {
		s.status = status
		s.exitInfo = info
	}
	uptime := time.Since(s.startTime)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warnw("Engine exited",
			"pid", cmd.Process.Pid,
			"error", err,
			"exit_code", info.Code,
			"signal", info.Signal,
			"runtime", uptime)
	} else {
		s.logger.Infow("Engine exited normally", "pid", cmd.Process.Pid, "runtime", uptime)
	}
	close(done)
}

func (s *Supervisor) captureOutput(pipe io.ReadCloser, stream string, readers *sync.WaitGroup) {
	defer readers.Done()

	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()

		s.outputMu.Lock()
		s.output = append(s.output, line)
		if len(s.output) > maxOutputLines {
			s.output = s.output[len(s.output)-maxOutputLines:]
		}
		s.outputMu.Unlock()

		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "fatal") || strings.Contains(lower, "panic") {
			s.logger.Warnw("Engine error output", "stream", stream, "line", line)
		} else {
			s.logger.Debugw("Engine output", "stream", stream, "line", line)
		}
	}
}

func resolveBinary(binary string) (string, error) {
	if binary == "" {
		binary = DefaultBinaryName
	}
	if filepath.IsAbs(binary) {
		if _, err := os.Stat(binary); err != nil {
			return "", fmt.Errorf("engine binary %s: %w", binary, err)
		}
		return binary, nil
	}
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), binary)
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("engine binary %s not found: %w", binary, err)
	}
	return path, nil
}

func maskSensitiveArgs(args []string) []string {
	masked := make([]string, len(args))
	copy(masked, args)
	for i := 1; i < len(masked); i++ {
		if masked[i-1] == "-secret" {
			masked[i] = "****"
		}
	}
	return masked
}
