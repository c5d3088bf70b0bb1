package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loykin/termctl/internal/gateway"
	"github.com/loykin/termctl/internal/metrics"
	"github.com/loykin/termctl/internal/nvim"
	"github.com/loykin/termctl/internal/registry"
)

// Sentinel errors of the dispatch layer. Registry errors pass through
// untouched so their identity survives to the session boundary.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrToolFailed       = errors.New("tool execution failed")
)

// Dispatcher validates and routes tool invocations to the registry and the
// window-level collaborators. It owns no state beyond the catalogue.
type Dispatcher struct {
	reg       *registry.Registry
	keys      gateway.KeyInjector
	capture   gateway.Capturer
	extractor *nvim.Extractor
	catalogue []Tool
}

func NewDispatcher(reg *registry.Registry, gw gateway.Gateway, extractor *nvim.Extractor) *Dispatcher {
	return &Dispatcher{
		reg:       reg,
		keys:      gw.Keys,
		capture:   gw.Capture,
		extractor: extractor,
		catalogue: Catalogue(),
	}
}

// Tools returns the catalogue.
func (d *Dispatcher) Tools() []Tool { return d.catalogue }

// Call validates args against the named tool's schema, executes it, and
// returns a single textual result payload.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := d.lookup(name)
	if tool == nil {
		metrics.ObserveToolCall(name, "unknown")
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := validateArgs(tool.InputSchema, args); err != nil {
		metrics.ObserveToolCall(name, "invalid")
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	result, err := d.execute(ctx, name, args)
	if err != nil {
		metrics.ObserveToolCall(name, "error")
		return "", err
	}
	metrics.ObserveToolCall(name, "ok")
	return result, nil
}

func (d *Dispatcher) lookup(name string) *Tool {
	for i := range d.catalogue {
		if d.catalogue[i].Name == name {
			return &d.catalogue[i]
		}
	}
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "list_instances":
		return d.listInstances(ctx)
	case "spawn_instance":
		return d.spawnInstance(ctx, args)
	case "send_keys":
		return d.sendKeys(ctx, args)
	case "screenshot_instance":
		return d.screenshot(ctx, args)
	case "get_neovim_context":
		return d.neovimContext(ctx, args)
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

func (d *Dispatcher) listInstances(ctx context.Context) (string, error) {
	instances, err := d.reg.List(ctx)
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(instances, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Found %d terminal instances:\n%s", len(instances), body), nil
}

func (d *Dispatcher) spawnInstance(ctx context.Context, args map[string]any) (string, error) {
	inst, err := d.reg.Spawn(ctx, registry.SpawnSpec{
		Command: argString(args, "command"),
		Args:    argStrings(args, "args"),
		WorkDir: argString(args, "working_directory"),
		Title:   argString(args, "title"),
	})
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(inst, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Spawned new terminal instance:\n%s", body), nil
}

func (d *Dispatcher) sendKeys(ctx context.Context, args map[string]any) (string, error) {
	id := argString(args, "instance_id")
	keys := argString(args, "keys")

	win, err := d.reg.ResolveWindow(ctx, id)
	if err != nil {
		return "", err
	}
	if err := d.keys.SendKeys(ctx, win, keys); err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolFailed, err)
	}
	return fmt.Sprintf("Sent keys '%s' to instance %s", keys, id), nil
}

func (d *Dispatcher) screenshot(ctx context.Context, args map[string]any) (string, error) {
	id := argString(args, "instance_id")
	format := argString(args, "format")
	if format == "" {
		format = "text"
	}

	win, err := d.reg.ResolveWindow(ctx, id)
	if err != nil {
		return "", err
	}
	switch format {
	case "text":
		text, cerr := d.capture.CaptureText(ctx, win)
		if cerr != nil {
			return "", fmt.Errorf("%w: %v", ErrToolFailed, cerr)
		}
		return fmt.Sprintf("Screenshot text from instance %s:\n%s", id, text), nil
	case "image":
		img, cerr := d.capture.CaptureImage(ctx, win)
		if cerr != nil {
			return "", fmt.Errorf("%w: %v", ErrToolFailed, cerr)
		}
		return fmt.Sprintf("Screenshot image from instance %s (base64): %s", id, img), nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidArguments, format)
}

func (d *Dispatcher) neovimContext(ctx context.Context, args map[string]any) (string, error) {
	id := argString(args, "instance_id")

	inst, err := d.reg.Get(id)
	if err != nil {
		return "", err
	}
	opts := nvim.DefaultOptions()
	opts.IncludeDiagnostics = argBool(args, "include_diagnostics", opts.IncludeDiagnostics)
	opts.IncludeBuffers = argBool(args, "include_buffers", opts.IncludeBuffers)
	opts.ContextLines = argInt(args, "context_lines", opts.ContextLines)

	nvctx, err := d.extractor.Extract(ctx, inst.PID, opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolFailed, err)
	}
	body, err := json.MarshalIndent(nvctx, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Neovim context for instance %s:\n%s", id, body), nil
}
