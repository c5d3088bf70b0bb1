package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/termctl/internal/gateway/gatewaytest"
	"github.com/loykin/termctl/internal/nvim"
	"github.com/loykin/termctl/internal/registry"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *gatewaytest.Fake, *registry.Registry) {
	t.Helper()
	f := gatewaytest.New()
	r := registry.New(f.Gateway(), registry.Options{SpawnDelay: 1})
	return NewDispatcher(r, f.Gateway(), nvim.NewExtractor(f)), f, r
}

func TestCatalogueListsFiveTools(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	names := make([]string, 0, len(d.Tools()))
	for _, tool := range d.Tools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, "tool %s needs a description", tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type)
	}
	assert.Equal(t, []string{
		"list_instances",
		"spawn_instance",
		"send_keys",
		"screenshot_instance",
		"get_neovim_context",
	}, names)
}

func TestCallUnknownTool(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	_, err := d.Call(context.Background(), "reboot_host", nil)
	require.ErrorIs(t, err, ErrUnknownTool)
	assert.Contains(t, err.Error(), "reboot_host")
}

func TestListInstancesEmpty(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	out, err := d.Call(context.Background(), "list_instances", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 0 terminal instances:")
}

func TestListInstancesReflectsProcessTable(t *testing.T) {
	d, f, _ := newTestDispatcher(t)
	f.AddProcess(321, []string{"alacritty", "--title", "scratch"})

	out, err := d.Call(context.Background(), "list_instances", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 terminal instances:")
	assert.Contains(t, out, `"title": "scratch"`)
	assert.Contains(t, out, `"created_at": 0`)
}

func TestSpawnInstance(t *testing.T) {
	d, f, _ := newTestDispatcher(t)

	out, err := d.Call(context.Background(), "spawn_instance", map[string]any{
		"command":           "vim",
		"args":              []any{"/etc/hosts"},
		"working_directory": "/etc",
		"title":             "editor",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Spawned new terminal instance:")
	assert.Contains(t, out, `"title": "editor"`)

	require.Len(t, f.Launched, 1)
	assert.Equal(t, "vim", f.Launched[0].Command)
	assert.Equal(t, []string{"/etc/hosts"}, f.Launched[0].Args)
	assert.Equal(t, "/etc", f.Launched[0].WorkDir)
}

func TestSpawnInstanceRejectsUnknownProperty(t *testing.T) {
	d, f, _ := newTestDispatcher(t)

	_, err := d.Call(context.Background(), "spawn_instance", map[string]any{"cmd": "vim"})
	require.ErrorIs(t, err, ErrInvalidArguments)
	assert.Empty(t, f.Launched, "validation failure must not reach the registry")
}

func TestSendKeysRequiresArguments(t *testing.T) {
	d, f, _ := newTestDispatcher(t)

	for _, args := range []map[string]any{
		nil,
		{"instance_id": "x"},
		{"keys": "ls"},
		{"instance_id": 5, "keys": "ls"},
	} {
		_, err := d.Call(context.Background(), "send_keys", args)
		require.ErrorIs(t, err, ErrInvalidArguments, "args=%v", args)
	}
	assert.Empty(t, f.SentKeys)
}

func TestSendKeysUnknownInstance(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	_, err := d.Call(context.Background(), "send_keys", map[string]any{
		"instance_id": "does-not-exist",
		"keys":        "ls Return",
	})
	require.ErrorIs(t, err, registry.ErrInstanceNotFound)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestSendKeysDeliversToWindow(t *testing.T) {
	d, f, r := newTestDispatcher(t)
	f.AddProcess(777, []string{"alacritty"})
	f.SetWindow(777, 31)

	instances, err := r.List(context.Background())
	require.NoError(t, err)
	id := instances[0].ID

	out, err := d.Call(context.Background(), "send_keys", map[string]any{
		"instance_id": id,
		"keys":        "echo hi Return",
	})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Sent keys 'echo hi Return' to instance %s", id), out)

	require.Len(t, f.SentKeys, 1)
	assert.Equal(t, uint32(31), f.SentKeys[0].Window)
	assert.Equal(t, "echo hi Return", f.SentKeys[0].Keys)
}

func TestSendKeysInjectionFailure(t *testing.T) {
	d, f, r := newTestDispatcher(t)
	f.AddProcess(778, []string{"alacritty"})
	f.SetWindow(778, 32)
	f.SendKeysErr = errors.New("xdotool missing")

	instances, err := r.List(context.Background())
	require.NoError(t, err)

	_, err = d.Call(context.Background(), "send_keys", map[string]any{
		"instance_id": instances[0].ID,
		"keys":        "ls",
	})
	require.ErrorIs(t, err, ErrToolFailed)
}

func TestScreenshotDefaultsToText(t *testing.T) {
	d, f, r := newTestDispatcher(t)
	f.AddProcess(800, []string{"alacritty"})
	f.SetWindow(800, 50)
	f.Text = "$ ls\nmain.go"

	instances, err := r.List(context.Background())
	require.NoError(t, err)
	id := instances[0].ID

	out, err := d.Call(context.Background(), "screenshot_instance", map[string]any{"instance_id": id})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Screenshot text from instance %s:\n$ ls\nmain.go", id), out)
}

func TestScreenshotImageFormat(t *testing.T) {
	d, f, r := newTestDispatcher(t)
	f.AddProcess(801, []string{"alacritty"})
	f.SetWindow(801, 51)

	instances, err := r.List(context.Background())
	require.NoError(t, err)
	id := instances[0].ID

	out, err := d.Call(context.Background(), "screenshot_instance", map[string]any{
		"instance_id": id,
		"format":      "image",
	})
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Screenshot image from instance %s (base64): ", id))
	assert.Contains(t, out, f.Image)
}

func TestScreenshotRejectsBadFormat(t *testing.T) {
	d, f, r := newTestDispatcher(t)
	f.AddProcess(802, []string{"alacritty"})
	f.SetWindow(802, 52)

	instances, err := r.List(context.Background())
	require.NoError(t, err)

	_, err = d.Call(context.Background(), "screenshot_instance", map[string]any{
		"instance_id": instances[0].ID,
		"format":      "pdf",
	})
	require.ErrorIs(t, err, ErrInvalidArguments)
}

func TestScreenshotWindowNotFound(t *testing.T) {
	d, f, r := newTestDispatcher(t)
	f.AddProcess(803, []string{"alacritty"})

	instances, err := r.List(context.Background())
	require.NoError(t, err)

	_, err = d.Call(context.Background(), "screenshot_instance", map[string]any{
		"instance_id": instances[0].ID,
	})
	require.ErrorIs(t, err, registry.ErrWindowNotFound)
}

func TestNeovimContextValidation(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	for name, args := range map[string]map[string]any{
		"missing id":       {},
		"lines too high":   {"instance_id": "x", "context_lines": float64(51)},
		"lines negative":   {"instance_id": "x", "context_lines": float64(-1)},
		"lines fractional": {"instance_id": "x", "context_lines": 2.5},
		"bad bool":         {"instance_id": "x", "include_buffers": "yes"},
	} {
		_, err := d.Call(context.Background(), "get_neovim_context", args)
		require.ErrorIs(t, err, ErrInvalidArguments, name)
	}
}

func TestNeovimContextUnknownInstance(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	_, err := d.Call(context.Background(), "get_neovim_context", map[string]any{"instance_id": "ghost"})
	require.ErrorIs(t, err, registry.ErrInstanceNotFound)
}

func TestNeovimContextFallsBackToProcessFacts(t *testing.T) {
	d, f, r := newTestDispatcher(t)
	f.AddProcess(900, []string{"alacritty", "-e", "nvim"})
	f.SetWorkDir(900, "/home/dev/project")

	instances, err := r.List(context.Background())
	require.NoError(t, err)
	id := instances[0].ID

	out, err := d.Call(context.Background(), "get_neovim_context", map[string]any{"instance_id": id})
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Neovim context for instance %s:", id))
	assert.Contains(t, out, `"pid": 900`)
	assert.Contains(t, out, `"working_directory": "/home/dev/project"`)
}
