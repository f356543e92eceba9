package tools

import "github.com/sashabaranov/go-openai/jsonschema"

// Terminal tool names.
const (
	ToolTerminalCreate  = "terminal_create"
	ToolTerminalExecute = "terminal_execute"
	ToolTerminalWorkdir = "terminal_workdir"
	ToolTerminalDelete  = "terminal_delete"
)

// Browser console tool names.
const (
	ToolConsoleExecute = "console_execute"
	ToolConsoleLogs    = "console_logs"
)

// TerminalNames lists the tool names served by the terminal collaborator.
func TerminalNames() []string {
	return []string{ToolTerminalCreate, ToolTerminalExecute, ToolTerminalWorkdir, ToolTerminalDelete}
}

// ConsoleNames lists the tool names served by the browser console bridge.
func ConsoleNames() []string {
	return []string{ToolConsoleExecute, ToolConsoleLogs}
}

// Builtin returns the static descriptors for the terminal and browser console
// tools. The returned slice is the full default registry content.
func Builtin() []Descriptor {
	return []Descriptor{
		{
			Name:        ToolTerminalCreate,
			Description: "Create a new terminal session. Returns the terminal session id.",
		},
		{
			Name:        ToolTerminalExecute,
			Description: "Execute a shell command in a terminal session and return stdout, stderr and the exit code.",
			Parameters: []Parameter{
				{Name: "session_id", Type: jsonschema.String, Description: "Terminal session id from terminal_create.", Required: true},
				{Name: "command", Type: jsonschema.String, Description: "Shell command to execute.", Required: true},
				{Name: "timeout", Type: jsonschema.Integer, Description: "Command timeout in seconds.", Default: float64(30)},
				{Name: "working_dir", Type: jsonschema.String, Description: "Directory to run the command in. Defaults to the session working directory."},
			},
		},
		{
			Name:        ToolTerminalWorkdir,
			Description: "Change the working directory of a terminal session.",
			Parameters: []Parameter{
				{Name: "session_id", Type: jsonschema.String, Description: "Terminal session id.", Required: true},
				{Name: "directory", Type: jsonschema.String, Description: "New working directory.", Required: true},
			},
		},
		{
			Name:        ToolTerminalDelete,
			Description: "Delete a terminal session and release its resources.",
			Parameters: []Parameter{
				{Name: "session_id", Type: jsonschema.String, Description: "Terminal session id.", Required: true},
			},
		},
		{
			Name:        ToolConsoleExecute,
			Description: "Execute JavaScript in a connected browser console session and return the result.",
			Parameters: []Parameter{
				{Name: "session_id", Type: jsonschema.String, Description: "Browser console session id.", Required: true},
				{Name: "code", Type: jsonschema.String, Description: "JavaScript code to evaluate.", Required: true},
				{Name: "timeout", Type: jsonschema.Integer, Description: "Evaluation timeout in seconds.", Default: float64(10)},
			},
		},
		{
			Name:        ToolConsoleLogs,
			Description: "Retrieve recent browser console log entries, optionally filtered by level and source.",
			Parameters: []Parameter{
				{Name: "count", Type: jsonschema.Integer, Description: "Maximum number of entries to return.", Default: float64(50)},
				{Name: "level", Type: jsonschema.String, Description: "Filter by log level.", Enum: []string{"info", "warn", "error", "debug"}},
				{Name: "source", Type: jsonschema.String, Description: "Filter by log source.", Enum: []string{"console", "network", "javascript"}},
			},
		},
	}
}
