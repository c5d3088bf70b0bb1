package nvim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/loykin/termctl/internal/gateway"
)

// Extractor pulls structured editor state out of a running Neovim instance
// by talking to its RPC socket with `nvim --server ... --remote-expr`.
// Every call is one blocking round trip; when the socket cannot be found the
// extractor degrades to basic process facts read through the process table.
type Extractor struct {
	nvimCmd string
	proc    gateway.ProcTable

	// run executes a command and returns stdout; overridable for tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewExtractor(proc gateway.ProcTable) *Extractor {
	return &Extractor{
		nvimCmd: "nvim",
		proc:    proc,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Options selects which parts of the context to extract.
type Options struct {
	IncludeDiagnostics bool
	IncludeBuffers     bool
	ContextLines       int // lines around the cursor, 0..50
}

// DefaultOptions mirrors the tool schema defaults.
func DefaultOptions() Options {
	return Options{IncludeDiagnostics: true, IncludeBuffers: true, ContextLines: 5}
}

// Context is the extracted editor state.
type Context struct {
	InstanceInfo     InstanceInfo  `json:"instance_info"`
	CurrentBuffer    *Buffer       `json:"current_buffer"`
	Diagnostics      []Diagnostic  `json:"diagnostics"`
	OpenBuffers      []BufferEntry `json:"open_buffers"`
	CursorPosition   *Cursor       `json:"cursor_position"`
	VimMode          string        `json:"vim_mode,omitempty"`
	WorkingDirectory string        `json:"working_directory,omitempty"`
	LspStatus        *LspStatus    `json:"lsp_status,omitempty"`
}

type InstanceInfo struct {
	PID        int    `json:"pid"`
	SocketPath string `json:"socket_path,omitempty"`
	Version    string `json:"version,omitempty"`
}

type Buffer struct {
	FilePath    string   `json:"file_path"`
	FileType    string   `json:"file_type,omitempty"`
	IsModified  bool     `json:"is_modified"`
	LineCount   int      `json:"line_count"`
	LinesBefore []string `json:"lines_before"`
	CurrentLine string   `json:"current_line"`
	LinesAfter  []string `json:"lines_after"`
}

type BufferEntry struct {
	FilePath   string `json:"file_path"`
	IsModified bool   `json:"is_modified"`
	IsCurrent  bool   `json:"is_current"`
	FileType   string `json:"file_type,omitempty"`
}

type Diagnostic struct {
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Source   string `json:"source,omitempty"`
}

type Cursor struct {
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	LineContent string `json:"line_content"`
}

type LspStatus struct {
	ActiveClients    []LspClient `json:"active_clients"`
	DiagnosticCounts Counts      `json:"diagnostics_count"`
}

type LspClient struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type Counts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
	Hints    int `json:"hints"`
}

// Extract builds the context for the Neovim process with the given pid.
func (e *Extractor) Extract(ctx context.Context, pid int, opts Options) (*Context, error) {
	sock, err := e.findSocket(ctx, pid)
	if err != nil {
		// No socket reachable: fall back to what the OS alone can tell us.
		return e.basicContext(ctx, pid), nil
	}

	out := &Context{
		InstanceInfo: InstanceInfo{PID: pid, SocketPath: sock, Version: e.version(ctx)},
	}
	out.CurrentBuffer = e.currentBuffer(ctx, sock, opts.ContextLines)
	out.CursorPosition = e.cursor(ctx, sock)
	out.VimMode = e.expr(ctx, sock, "mode()")
	out.WorkingDirectory = e.expr(ctx, sock, "getcwd()")
	if opts.IncludeDiagnostics {
		out.Diagnostics = e.diagnostics(ctx, sock)
		out.LspStatus = e.lspStatus(ctx, sock)
	}
	if opts.IncludeBuffers {
		out.OpenBuffers = e.buffers(ctx, sock)
	}
	return out, nil
}

func (e *Extractor) basicContext(ctx context.Context, pid int) *Context {
	c := &Context{InstanceInfo: InstanceInfo{PID: pid, Version: e.version(ctx)}}
	if wd, err := e.proc.WorkingDirectory(ctx, pid); err == nil {
		c.WorkingDirectory = wd
	}
	return c
}

// findSocket probes the usual socket locations, then falls back to lsof.
func (e *Extractor) findSocket(ctx context.Context, pid int) (string, error) {
	candidates := []string{
		fmt.Sprintf("/tmp/nvim.%d.0", pid),
		fmt.Sprintf("/tmp/nvim%d/0", pid),
		fmt.Sprintf("/run/user/%d/nvim.%d.0", os.Getuid(), pid),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	out, err := e.run(ctx, "lsof", "-p", strconv.Itoa(pid), "-a", "-U")
	if err == nil {
		for _, line := range strings.Split(string(out), "\n") {
			if strings.Contains(line, "nvim") && strings.Contains(line, "socket") {
				fields := strings.Fields(line)
				if len(fields) > 0 {
					return fields[len(fields)-1], nil
				}
			}
		}
	}
	return "", fmt.Errorf("no nvim socket for pid %d", pid)
}

// expr evaluates a vimscript expression and returns its trimmed output, or
// an empty string on any failure.
func (e *Extractor) expr(ctx context.Context, sock, expression string) string {
	out, err := e.run(ctx, e.nvimCmd, "--server", sock, "--remote-expr", expression)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// lua evaluates a lua chunk that returns a json-encoded value and decodes it
// into v. Failures leave v untouched and are reported.
func (e *Extractor) lua(ctx context.Context, sock, chunk string, v any) error {
	expression := fmt.Sprintf("luaeval('%s')", strings.ReplaceAll(chunk, "\n", " "))
	out, err := e.run(ctx, e.nvimCmd, "--server", sock, "--remote-expr", expression)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(strings.TrimSpace(string(out))), v)
}

func (e *Extractor) version(ctx context.Context) string {
	out, err := e.run(ctx, e.nvimCmd, "--version")
	if err != nil {
		return ""
	}
	if idx := strings.IndexByte(string(out), '\n'); idx >= 0 {
		return string(out)[:idx]
	}
	return strings.TrimSpace(string(out))
}

func (e *Extractor) currentBuffer(ctx context.Context, sock string, contextLines int) *Buffer {
	chunk := fmt.Sprintf(`(function()
		local buf = vim.api.nvim_get_current_buf()
		local cursor = vim.api.nvim_win_get_cursor(0)
		local cur = cursor[1]
		local count = vim.api.nvim_buf_line_count(buf)
		local span = %d
		local first = math.max(1, cur - span)
		local last = math.min(count, cur + span)
		local lines = vim.api.nvim_buf_get_lines(buf, first - 1, last, false)
		local res = {
			file_path = vim.api.nvim_buf_get_name(buf),
			file_type = vim.bo.filetype,
			is_modified = vim.bo.modified,
			line_count = count,
			lines_before = {},
			current_line = "",
			lines_after = {},
		}
		for i, line in ipairs(lines) do
			local nr = first + i - 1
			if nr < cur then table.insert(res.lines_before, line)
			elseif nr == cur then res.current_line = line
			else table.insert(res.lines_after, line) end
		end
		return vim.json.encode(res)
	end)()`, contextLines)

	var b Buffer
	if err := e.lua(ctx, sock, chunk, &b); err != nil {
		return nil
	}
	return &b
}

func (e *Extractor) cursor(ctx context.Context, sock string) *Cursor {
	chunk := `(function()
		local cursor = vim.api.nvim_win_get_cursor(0)
		return vim.json.encode({
			line = cursor[1],
			column = cursor[2] + 1,
			line_content = vim.api.nvim_get_current_line(),
		})
	end)()`
	var c Cursor
	if err := e.lua(ctx, sock, chunk, &c); err != nil {
		return nil
	}
	return &c
}

func (e *Extractor) diagnostics(ctx context.Context, sock string) []Diagnostic {
	chunk := `(function()
		local out = {}
		for _, d in ipairs(vim.diagnostic.get()) do
			local sev = "hint"
			if d.severity == 1 then sev = "error"
			elseif d.severity == 2 then sev = "warning"
			elseif d.severity == 3 then sev = "info" end
			table.insert(out, {
				file_path = vim.api.nvim_buf_get_name(d.bufnr),
				line = d.lnum + 1,
				column = d.col + 1,
				severity = sev,
				message = d.message,
				source = d.source,
			})
		end
		return vim.json.encode(out)
	end)()`
	var ds []Diagnostic
	if err := e.lua(ctx, sock, chunk, &ds); err != nil {
		return nil
	}
	return ds
}

func (e *Extractor) buffers(ctx context.Context, sock string) []BufferEntry {
	chunk := `(function()
		local out = {}
		local current = vim.api.nvim_get_current_buf()
		for _, buf in ipairs(vim.api.nvim_list_bufs()) do
			if vim.api.nvim_buf_is_loaded(buf) then
				local name = vim.api.nvim_buf_get_name(buf)
				if name ~= "" then
					table.insert(out, {
						file_path = name,
						is_modified = vim.bo[buf].modified,
						is_current = buf == current,
						file_type = vim.bo[buf].filetype,
					})
				end
			end
		end
		return vim.json.encode(out)
	end)()`
	var bs []BufferEntry
	if err := e.lua(ctx, sock, chunk, &bs); err != nil {
		return nil
	}
	return bs
}

func (e *Extractor) lspStatus(ctx context.Context, sock string) *LspStatus {
	chunk := `(function()
		local res = {
			active_clients = {},
			diagnostics_count = { errors = 0, warnings = 0, info = 0, hints = 0 },
		}
		for _, client in ipairs(vim.lsp.get_clients()) do
			table.insert(res.active_clients, { name = client.name, status = "active" })
		end
		for _, d in ipairs(vim.diagnostic.get()) do
			if d.severity == 1 then res.diagnostics_count.errors = res.diagnostics_count.errors + 1
			elseif d.severity == 2 then res.diagnostics_count.warnings = res.diagnostics_count.warnings + 1
			elseif d.severity == 3 then res.diagnostics_count.info = res.diagnostics_count.info + 1
			else res.diagnostics_count.hints = res.diagnostics_count.hints + 1 end
		end
		return vim.json.encode(res)
	end)()`
	var st LspStatus
	if err := e.lua(ctx, sock, chunk, &st); err != nil {
		return nil
	}
	return &st
}

// DetectInTerminal reports whether captured terminal content looks like a
// running Neovim session.
func DetectInTerminal(content string) bool {
	indicators := []string{
		"-- INSERT --",
		"-- VISUAL --",
		"-- NORMAL --",
		"-- COMMAND --",
		"[No Name]",
	}
	for _, ind := range indicators {
		if strings.Contains(content, ind) {
			return true
		}
	}
	return false
}
