package gateway

import "context"

// The gateway packages everything the registry needs from the operating
// system behind small interfaces: launching terminal processes, correlating
// pids to X11 windows, reading the process table, and the input/capture
// collaborators used by the tool layer. Implementations must treat every
// call as a single blocking round trip; retries are the caller's decision.

// LaunchSpec describes a terminal process to start.
type LaunchSpec struct {
	Command string   // program to run inside the terminal; empty means the default shell
	Args    []string // arguments for Command
	WorkDir string   // optional working directory
	Title   string   // window title
	Class   string   // window class tag used for later window correlation
}

// Launcher starts a terminal-emulator process and reports its pid.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (int, error)
}

// WindowResolver maps an OS pid to its window identifier.
type WindowResolver interface {
	FindWindow(ctx context.Context, pid int, class string) (uint32, error)
}

// ProcTable reads OS-level process facts.
type ProcTable interface {
	// ListPids returns the pids whose command line matches filter.
	ListPids(ctx context.Context, filter string) ([]int, error)
	// CommandLine returns the argv of a live process.
	CommandLine(ctx context.Context, pid int) ([]string, error)
	// WorkingDirectory returns the current working directory of a process.
	WorkingDirectory(ctx context.Context, pid int) (string, error)
}

// KeyInjector delivers synthetic keystrokes to a window.
type KeyInjector interface {
	SendKeys(ctx context.Context, windowID uint32, keys string) error
}

// Capturer extracts window content as text or as an encoded image.
type Capturer interface {
	CaptureText(ctx context.Context, windowID uint32) (string, error)
	CaptureImage(ctx context.Context, windowID uint32) (string, error)
}

// Gateway bundles the collaborator set handed to the registry and tools.
type Gateway struct {
	Launcher Launcher
	Windows  WindowResolver
	Proc     ProcTable
	Keys     KeyInjector
	Capture  Capturer
}
