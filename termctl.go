package termctl

import (
	"context"
	"io"
	"log/slog"

	cfg "github.com/loykin/termctl/internal/config"
	"github.com/loykin/termctl/internal/gateway"
	"github.com/loykin/termctl/internal/history"
	"github.com/loykin/termctl/internal/nvim"
	"github.com/loykin/termctl/internal/registry"
	"github.com/loykin/termctl/internal/server"
	"github.com/loykin/termctl/internal/session"
	"github.com/loykin/termctl/internal/tools"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Instance = registry.Instance

type SpawnSpec = registry.SpawnSpec

type Options = registry.Options

type Config = cfg.Config

type Gateway = gateway.Gateway

type HistorySink = history.Sink

// Re-exported registry errors for errors.Is checks.
var (
	ErrInstanceNotFound = registry.ErrInstanceNotFound
	ErrWindowNotFound   = registry.ErrWindowNotFound
	ErrLaunchFailed     = registry.ErrLaunchFailed
)

// Server is a thin facade bundling the registry, dispatcher, and protocol
// session for embedding. One Server hosts exactly one protocol session.
type Server struct {
	reg  *registry.Registry
	sess *session.Session
}

// New builds a server against the real OS gateway.
func New(opts Options) *Server {
	return NewWithGateway(gateway.NewSystem(registryTerminal(opts)), opts)
}

// NewWithGateway builds a server with a custom gateway, mainly for tests
// and embedders that stub out the OS.
func NewWithGateway(gw Gateway, opts Options) *Server {
	reg := registry.New(gw, opts)
	disp := tools.NewDispatcher(reg, gw, nvim.NewExtractor(gw.Proc))
	return &Server{reg: reg, sess: session.New(disp)}
}

func registryTerminal(opts Options) string {
	if opts.Terminal != "" {
		return opts.Terminal
	}
	return registry.DefaultOptions().Terminal
}

// SetLogger routes server logs through l.
func (s *Server) SetLogger(l *slog.Logger) {
	s.reg.SetLogger(l)
	s.sess.SetLogger(l)
}

// SetHistorySinks configures lifecycle-event sinks on the registry.
func (s *Server) SetHistorySinks(sinks ...HistorySink) {
	s.reg.SetHistorySinks(sinks...)
}

// List reconciles and snapshots the tracked instances.
func (s *Server) List(ctx context.Context) ([]Instance, error) { return s.reg.List(ctx) }

// Spawn launches a new terminal instance.
func (s *Server) Spawn(ctx context.Context, spec SpawnSpec) (Instance, error) {
	return s.reg.Spawn(ctx, spec)
}

// Serve runs the protocol loop over the given streams until EOF.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdio(s.sess, in, out).Serve(ctx)
}
