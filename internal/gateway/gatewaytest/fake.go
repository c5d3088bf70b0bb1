// Package gatewaytest provides an in-memory gateway fake for tests.
package gatewaytest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/loykin/termctl/internal/gateway"
)

// KeyEvent records one SendKeys call.
type KeyEvent struct {
	Window uint32
	Keys   string
}

// Fake implements every gateway interface against in-memory state. The
// zero value is not usable; construct with New.
type Fake struct {
	pids     map[int]bool
	cmdlines map[int][]string
	windows  map[int]uint32
	workdirs map[int]string

	nextPid int

	Launched []gateway.LaunchSpec
	SentKeys []KeyEvent

	LaunchErr     error
	ListPidsErr   error
	FindWindowErr error
	SendKeysErr   error
	CaptureErr    error

	Text  string
	Image string
}

func New() *Fake {
	return &Fake{
		pids:     make(map[int]bool),
		cmdlines: make(map[int][]string),
		windows:  make(map[int]uint32),
		workdirs: make(map[int]string),
		nextPid:  40000,
		Text:     "fake terminal content",
		Image:    "data:image/png;base64,ZmFrZQ==",
	}
}

// Gateway bundles the fake into the struct the registry consumes.
func (f *Fake) Gateway() gateway.Gateway {
	return gateway.Gateway{Launcher: f, Windows: f, Proc: f, Keys: f, Capture: f}
}

// AddProcess registers a live pid with the given command line, as if the
// process had been started outside the registry.
func (f *Fake) AddProcess(pid int, argv []string) {
	f.pids[pid] = true
	f.cmdlines[pid] = argv
}

// SetWindow makes pid resolvable to the given window id.
func (f *Fake) SetWindow(pid int, win uint32) { f.windows[pid] = win }

// SetWorkDir sets the working directory reported for pid.
func (f *Fake) SetWorkDir(pid int, wd string) { f.workdirs[pid] = wd }

// Kill removes pid from the live set.
func (f *Fake) Kill(pid int) { delete(f.pids, pid) }

func (f *Fake) Launch(_ context.Context, spec gateway.LaunchSpec) (int, error) {
	if f.LaunchErr != nil {
		return 0, f.LaunchErr
	}
	f.nextPid++
	pid := f.nextPid
	f.pids[pid] = true
	argv := []string{"alacritty", "--title", spec.Title}
	if spec.Command != "" {
		argv = append(argv, "--command", spec.Command)
		argv = append(argv, spec.Args...)
	}
	argv = append(argv, "--class", spec.Class)
	f.cmdlines[pid] = argv
	f.Launched = append(f.Launched, spec)
	return pid, nil
}

func (f *Fake) FindWindow(_ context.Context, pid int, _ string) (uint32, error) {
	if f.FindWindowErr != nil {
		return 0, f.FindWindowErr
	}
	win, ok := f.windows[pid]
	if !ok {
		return 0, fmt.Errorf("no window for pid %d", pid)
	}
	return win, nil
}

func (f *Fake) ListPids(_ context.Context, _ string) ([]int, error) {
	if f.ListPidsErr != nil {
		return nil, f.ListPidsErr
	}
	pids := make([]int, 0, len(f.pids))
	for pid := range f.pids {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids, nil
}

func (f *Fake) CommandLine(_ context.Context, pid int) ([]string, error) {
	argv, ok := f.cmdlines[pid]
	if !ok {
		return nil, errors.New("no such process")
	}
	return argv, nil
}

func (f *Fake) WorkingDirectory(_ context.Context, pid int) (string, error) {
	if wd, ok := f.workdirs[pid]; ok {
		return wd, nil
	}
	return "/", nil
}

func (f *Fake) SendKeys(_ context.Context, windowID uint32, keys string) error {
	if f.SendKeysErr != nil {
		return f.SendKeysErr
	}
	f.SentKeys = append(f.SentKeys, KeyEvent{Window: windowID, Keys: keys})
	return nil
}

func (f *Fake) CaptureText(_ context.Context, _ uint32) (string, error) {
	if f.CaptureErr != nil {
		return "", f.CaptureErr
	}
	return f.Text, nil
}

func (f *Fake) CaptureImage(_ context.Context, _ uint32) (string, error) {
	if f.CaptureErr != nil {
		return "", f.CaptureErr
	}
	return f.Image, nil
}
