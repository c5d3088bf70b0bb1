package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// System implements the gateway interfaces against the real OS: the terminal
// binary for launching, xdotool/xclip for window work, and pgrep plus /proc
// for process-table reads.

// SystemLauncher spawns terminal processes via the configured binary.
type SystemLauncher struct {
	Binary string // terminal emulator binary, e.g. "alacritty"
}

func (l SystemLauncher) Launch(ctx context.Context, spec LaunchSpec) (int, error) {
	args := []string{"--title", spec.Title}
	if spec.WorkDir != "" {
		args = append(args, "--working-directory", spec.WorkDir)
	}
	if spec.Command != "" {
		args = append(args, "--command", spec.Command)
		args = append(args, spec.Args...)
	}
	args = append(args, "--class", spec.Class)

	// #nosec G204 -- binary comes from configuration, arguments are terminal flags
	cmd := exec.CommandContext(ctx, l.Binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// Reap in the background; the terminal outlives this call and nobody
	// waits on it otherwise.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

// XdoWindows resolves windows and injects keys through xdotool.
type XdoWindows struct{}

func (XdoWindows) FindWindow(ctx context.Context, pid int, class string) (uint32, error) {
	out, err := exec.CommandContext(ctx, "xdotool", "search", "--pid", strconv.Itoa(pid), "--class", class).Output()
	if err != nil {
		return 0, fmt.Errorf("xdotool search pid %d: %w", pid, err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, perr := strconv.ParseUint(line, 10, 32)
		if perr == nil {
			return uint32(id), nil
		}
	}
	return 0, fmt.Errorf("no window for pid %d", pid)
}

func (XdoWindows) SendKeys(ctx context.Context, windowID uint32, keys string) error {
	out, err := exec.CommandContext(ctx, "xdotool", "key", "--window", strconv.FormatUint(uint64(windowID), 10), keys).CombinedOutput()
	if err != nil {
		return fmt.Errorf("send keys: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// ProcFS reads the process table via pgrep and /proc.
type ProcFS struct{}

func (ProcFS) ListPids(ctx context.Context, filter string) ([]int, error) {
	out, err := exec.CommandContext(ctx, "pgrep", "-f", filter).Output()
	if err != nil {
		var ee *exec.ExitError
		// pgrep exits 1 when nothing matched; that is an empty set, not a failure.
		if errors.As(err, &ee) && ee.ExitCode() == 1 {
			return nil, nil
		}
		return nil, err
	}
	var pids []int
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, perr := strconv.Atoi(line)
		if perr != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

func (ProcFS) CommandLine(_ context.Context, pid int) ([]string, error) {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/cmdline")
	if err != nil {
		return nil, err
	}
	var argv []string
	for _, tok := range strings.Split(string(b), "\x00") {
		if tok != "" {
			argv = append(argv, tok)
		}
	}
	return argv, nil
}

func (ProcFS) WorkingDirectory(_ context.Context, pid int) (string, error) {
	return os.Readlink("/proc/" + strconv.Itoa(pid) + "/cwd")
}

// NewSystem wires the OS-backed gateway for a given terminal binary.
func NewSystem(terminalBinary string) Gateway {
	xdo := XdoWindows{}
	return Gateway{
		Launcher: SystemLauncher{Binary: terminalBinary},
		Windows:  xdo,
		Proc:     ProcFS{},
		Keys:     xdo,
		Capture:  XCapture{},
	}
}
