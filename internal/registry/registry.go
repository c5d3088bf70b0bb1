package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/termctl/internal/gateway"
	"github.com/loykin/termctl/internal/history"
	"github.com/loykin/termctl/internal/metrics"
)

// Sentinel errors surfaced by registry operations.
var (
	ErrInstanceNotFound = errors.New("instance not found")
	ErrWindowNotFound   = errors.New("window not found")
	ErrLaunchFailed     = errors.New("launch failed")
)

// Instance is one tracked terminal-emulator process. The id is minted by the
// registry and is never derived from the OS pid; pids recycle, ids do not.
type Instance struct {
	ID        string  `json:"id"`
	PID       int     `json:"pid"`
	WindowID  *uint32 `json:"window_id"`
	Title     string  `json:"title"`
	Command   string  `json:"command"`
	CreatedAt int64   `json:"created_at"` // unix seconds; 0 when adopted via reconciliation
}

// SpawnSpec carries the optional launch parameters of a spawn request.
type SpawnSpec struct {
	Command string
	Args    []string
	WorkDir string
	Title   string
}

// Options configures how the registry talks to the terminal emulator.
type Options struct {
	Terminal      string        // terminal binary, default "alacritty"
	WindowClass   string        // X window class used for lookups, default "Alacritty"
	ProcessFilter string        // process-table match for reconciliation, default Terminal
	TagPrefix     string        // prefix for synthesized titles and class tags
	SpawnDelay    time.Duration // fixed wait before the post-spawn window lookup
}

// DefaultOptions returns the alacritty defaults.
func DefaultOptions() Options {
	return Options{
		Terminal:      "alacritty",
		WindowClass:   "Alacritty",
		ProcessFilter: "alacritty",
		TagPrefix:     "termctl",
		SpawnDelay:    500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Terminal == "" {
		o.Terminal = d.Terminal
	}
	if o.WindowClass == "" {
		o.WindowClass = d.WindowClass
	}
	if o.ProcessFilter == "" {
		o.ProcessFilter = o.Terminal
	}
	if o.TagPrefix == "" {
		o.TagPrefix = d.TagPrefix
	}
	if o.SpawnDelay <= 0 {
		o.SpawnDelay = d.SpawnDelay
	}
	return o
}

// Registry owns the id->instance map and keeps it reconciled against the
// live process table. It is exclusively owned by the single session loop and
// therefore carries no internal locking; a second concurrent caller would
// need to add external synchronization.
type Registry struct {
	gw        gateway.Gateway
	opts      Options
	instances map[string]*Instance
	sinks     []history.Sink
	log       *slog.Logger

	// overridable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

func New(gw gateway.Gateway, opts Options) *Registry {
	return &Registry{
		gw:        gw,
		opts:      opts.withDefaults(),
		instances: make(map[string]*Instance),
		log:       slog.Default(),
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// SetLogger replaces the registry logger.
func (r *Registry) SetLogger(l *slog.Logger) { r.log = l }

// SetHistorySinks configures external history sinks. Passing no sinks clears
// the list. Sink failures are logged, never propagated.
func (r *Registry) SetHistorySinks(sinks ...history.Sink) {
	r.sinks = append([]history.Sink(nil), sinks...)
}

// List reconciles against the process table and returns a snapshot of all
// tracked instances, ordered by id for a stable view.
func (r *Registry) List(ctx context.Context) ([]Instance, error) {
	if err := r.reconcile(ctx); err != nil {
		return nil, err
	}
	out := make([]Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns the tracked instance for id.
func (r *Registry) Get(id string) (Instance, error) {
	inst, ok := r.instances[id]
	if !ok {
		return Instance{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return *inst, nil
}

// Spawn launches a new terminal instance. The window handle is discovered on
// a best-effort basis: one fixed delay, one lookup, absence tolerated.
func (r *Registry) Spawn(ctx context.Context, spec SpawnSpec) (Instance, error) {
	started := r.now()
	id := uuid.NewString()

	title := spec.Title
	if title == "" {
		title = fmt.Sprintf("%s-%s", r.opts.TagPrefix, id[:8])
	}
	// The class tag embeds the full id so the window can be correlated later.
	class := fmt.Sprintf("%s-%s", r.opts.TagPrefix, id)

	pid, err := r.gw.Launcher.Launch(ctx, gateway.LaunchSpec{
		Command: spec.Command,
		Args:    spec.Args,
		WorkDir: spec.WorkDir,
		Title:   title,
		Class:   class,
	})
	if err != nil {
		return Instance{}, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}

	command := spec.Command
	if command == "" {
		command = "shell"
	}
	inst := &Instance{
		ID:        id,
		PID:       pid,
		Title:     title,
		Command:   command,
		CreatedAt: r.now().Unix(),
	}
	r.instances[id] = inst

	// Give the window time to appear, then try exactly once. A missing
	// window is not an error; ResolveWindow retries on demand later.
	r.sleep(r.opts.SpawnDelay)
	if win, werr := r.gw.Windows.FindWindow(ctx, pid, r.opts.WindowClass); werr == nil {
		inst.WindowID = &win
	} else {
		r.log.Debug("window not discoverable after spawn", "instance", id, "pid", pid, "error", werr)
	}

	metrics.ObserveSpawnSeconds(r.now().Sub(started).Seconds())
	metrics.SetTracked(len(r.instances))
	r.emit(ctx, history.EventSpawned, inst)
	return *inst, nil
}

// ResolveWindow returns the cached window handle for id, performing one
// fresh gateway lookup when none is cached yet. A successful lookup is
// cached; the handle is never cleared afterwards.
func (r *Registry) ResolveWindow(ctx context.Context, id string) (uint32, error) {
	inst, ok := r.instances[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	if inst.WindowID != nil {
		return *inst.WindowID, nil
	}
	win, err := r.gw.Windows.FindWindow(ctx, inst.PID, r.opts.WindowClass)
	if err != nil {
		return 0, fmt.Errorf("%w for pid %d (instance %s)", ErrWindowNotFound, inst.PID, id)
	}
	inst.WindowID = &win
	return win, nil
}

// reconcile syncs the map against the live process table: tracked entries
// whose pid vanished are dropped, unknown live pids are adopted. Tracked
// entries that are still alive are left untouched, which makes reconcile
// idempotent when the OS state has not changed.
func (r *Registry) reconcile(ctx context.Context) error {
	pids, err := r.gw.Proc.ListPids(ctx, r.opts.ProcessFilter)
	if err != nil {
		return fmt.Errorf("list pids: %w", err)
	}
	live := make(map[int]bool, len(pids))
	for _, pid := range pids {
		live[pid] = true
	}

	removed := 0
	tracked := make(map[int]bool, len(r.instances))
	for id, inst := range r.instances {
		if !live[inst.PID] {
			delete(r.instances, id)
			removed++
			r.emit(ctx, history.EventRemoved, inst)
			continue
		}
		tracked[inst.PID] = true
	}

	adopted := 0
	for _, pid := range pids {
		if tracked[pid] {
			continue
		}
		inst, aerr := r.adopt(ctx, pid)
		if aerr != nil {
			// Process may have exited between the scan and the read.
			r.log.Debug("could not adopt process", "pid", pid, "error", aerr)
			continue
		}
		adopted++
		r.emit(ctx, history.EventAdopted, inst)
	}

	if removed > 0 {
		metrics.AddRemoved(removed)
	}
	if adopted > 0 {
		metrics.AddAdopted(adopted)
	}
	metrics.SetTracked(len(r.instances))
	return nil
}

// adopt synthesizes an entry for a live process this registry did not spawn.
// created_at stays 0: the true start time of a foreign process is unknown.
func (r *Registry) adopt(ctx context.Context, pid int) (*Instance, error) {
	argv, err := r.gw.Proc.CommandLine(ctx, pid)
	if err != nil {
		return nil, err
	}
	title, command := parseLaunchArgs(argv)
	if title == "" {
		title = fmt.Sprintf("%s-%d", r.opts.Terminal, pid)
	}
	if command == "" {
		command = "shell"
	}

	inst := &Instance{
		ID:        uuid.NewString(),
		PID:       pid,
		Title:     title,
		Command:   command,
		CreatedAt: 0,
	}
	if win, werr := r.gw.Windows.FindWindow(ctx, pid, r.opts.WindowClass); werr == nil {
		inst.WindowID = &win
	}
	r.instances[inst.ID] = inst
	return inst, nil
}

func (r *Registry) emit(ctx context.Context, typ history.EventType, inst *Instance) {
	if len(r.sinks) == 0 {
		return
	}
	e := history.Event{
		Type:       typ,
		OccurredAt: r.now(),
		Record: history.Record{
			InstanceID: inst.ID,
			PID:        inst.PID,
			Title:      inst.Title,
			Command:    inst.Command,
		},
	}
	for _, s := range r.sinks {
		if err := s.Send(ctx, e); err != nil {
			r.log.Warn("history sink send failed", "event", string(typ), "error", err)
		}
	}
}
