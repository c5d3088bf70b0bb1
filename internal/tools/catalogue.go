package tools

// Tool describes one named operation exposed to the client, together with
// the JSON schema its arguments are validated against.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
}

// Schema is the subset of JSON Schema the catalogue needs: flat object
// schemas with typed properties, required lists, enums and numeric bounds.
type Schema struct {
	Type                 string           `json:"type"`
	Properties           map[string]*Prop `json:"properties"`
	Required             []string         `json:"required,omitempty"`
	AdditionalProperties bool             `json:"additionalProperties"`
}

type Prop struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Items       *Prop    `json:"items,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
}

func f64(v float64) *float64 { return &v }

// Catalogue returns the fixed tool set. The slice is freshly allocated so
// callers may not mutate the shared definitions.
func Catalogue() []Tool {
	return []Tool{
		{
			Name:        "list_instances",
			Description: "List all running terminal instances",
			InputSchema: Schema{
				Type:       "object",
				Properties: map[string]*Prop{},
			},
		},
		{
			Name:        "spawn_instance",
			Description: "Spawn a new terminal instance",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]*Prop{
					"command": {
						Type:        "string",
						Description: "Command to run in the terminal",
					},
					"args": {
						Type:        "array",
						Items:       &Prop{Type: "string"},
						Description: "Arguments for the command",
					},
					"working_directory": {
						Type:        "string",
						Description: "Working directory for the terminal",
					},
					"title": {
						Type:        "string",
						Description: "Title for the terminal window",
					},
				},
			},
		},
		{
			Name:        "send_keys",
			Description: "Send key commands to a terminal instance",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]*Prop{
					"instance_id": {
						Type:        "string",
						Description: "ID of the terminal instance",
					},
					"keys": {
						Type:        "string",
						Description: "Keys to send (xdotool format, e.g. 'ctrl+c', 'Return', 'Hello')",
					},
				},
				Required: []string{"instance_id", "keys"},
			},
		},
		{
			Name:        "screenshot_instance",
			Description: "Take a screenshot of a terminal instance",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]*Prop{
					"instance_id": {
						Type:        "string",
						Description: "ID of the terminal instance",
					},
					"format": {
						Type:        "string",
						Enum:        []string{"text", "image"},
						Default:     "text",
						Description: "Screenshot format: 'text' for terminal content, 'image' for a visual capture",
					},
				},
				Required: []string{"instance_id"},
			},
		},
		{
			Name:        "get_neovim_context",
			Description: "Extract Neovim context including cursor position, diagnostics, open buffers, and LSP status",
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]*Prop{
					"instance_id": {
						Type:        "string",
						Description: "ID of the terminal instance running Neovim",
					},
					"include_diagnostics": {
						Type:        "boolean",
						Default:     true,
						Description: "Include LSP diagnostics in the context",
					},
					"include_buffers": {
						Type:        "boolean",
						Default:     true,
						Description: "Include the list of open buffers",
					},
					"context_lines": {
						Type:        "integer",
						Default:     5,
						Minimum:     f64(0),
						Maximum:     f64(50),
						Description: "Number of lines around the cursor to include",
					},
				},
				Required: []string{"instance_id"},
			},
		},
	}
}
