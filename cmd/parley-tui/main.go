// Command parley-tui is a terminal chat client for a running parley server.
//
// Usage:
//
//	parley-tui -addr http://localhost:8000
//
// Commands:
//
//	Enter - send the typed message
//	Esc / Ctrl+C - exit
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/calebhart/parley/pkg/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("4"))

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1)
)

// apiClient talks to the parley REST API.
type apiClient struct {
	base string
	http *http.Client
}

type sessionView struct {
	ID       string           `json:"id"`
	State    string           `json:"state"`
	Messages []domain.Message `json:"messages"`
}

func (c *apiClient) createSession() (string, error) {
	resp, err := c.http.Post(c.base+"/api/sessions", "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", apiError(resp)
	}
	var v sessionView
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", err
	}
	return v.ID, nil
}

func (c *apiClient) run(id, prompt string) error {
	body, _ := json.Marshal(map[string]string{"prompt": prompt})
	resp, err := c.http.Post(c.base+"/api/sessions/"+id+"/run", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *apiClient) session(id string) (*sessionView, error) {
	resp, err := c.http.Get(c.base + "/api/sessions/" + id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var v sessionView
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *apiClient) deleteSession(id string) error {
	req, err := http.NewRequest(http.MethodDelete, c.base+"/api/sessions/"+id, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func apiError(resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return fmt.Errorf("server: %s", e.Error)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}

type turnDoneMsg struct{ sess *sessionView }
type errMsg struct{ err error }

type model struct {
	client    *apiClient
	sessionID string

	viewport viewport.Model
	textarea textarea.Model
	renderer *glamour.TermRenderer

	messages []domain.Message
	busy     bool
	width    int
	err      error
}

func initialModel(client *apiClient, sessionID string) model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 4000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent("Connected. Type a message to begin.")

	// Standard style avoids terminal queries leaking into input.
	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	return model{
		client:    client,
		sessionID: sessionID,
		viewport:  vp,
		textarea:  ta,
		renderer:  r,
		width:     80,
	}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var tiCmd, vpCmd tea.Cmd

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, tiCmd, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = msg.Height - m.textarea.Height() - 2
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(m.width-4),
		)
		m.viewport.SetContent(m.renderTranscript())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.client.deleteSession(m.sessionID)
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, tea.Batch(cmds...)
			}
			prompt := strings.TrimSpace(m.textarea.Value())
			if prompt == "" {
				return m, tea.Batch(cmds...)
			}
			m.textarea.Reset()
			m.err = nil
			m.busy = true
			m.messages = append(m.messages, domain.Message{Role: domain.RoleUser, Content: prompt})
			m.viewport.SetContent(m.renderTranscript() + "\n" + assistantStyle.Render("Thinking..."))
			m.viewport.GotoBottom()
			return m, tea.Batch(append(cmds, m.runTurn(prompt))...)
		}

	case turnDoneMsg:
		m.busy = false
		m.messages = msg.sess.Messages
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()

	case errMsg:
		m.busy = false
		m.err = msg.err
	}

	return m, tea.Batch(cmds...)
}

// runTurn posts the prompt and then refetches the transcript.
func (m model) runTurn(prompt string) tea.Cmd {
	client, id := m.client, m.sessionID
	return func() tea.Msg {
		if err := client.run(id, prompt); err != nil {
			return errMsg{err}
		}
		sess, err := client.session(id)
		if err != nil {
			return errMsg{err}
		}
		return turnDoneMsg{sess}
	}
}

func (m model) renderTranscript() string {
	var b strings.Builder
	for _, msg := range m.messages {
		switch msg.Role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("You") + "\n")
			b.WriteString(msg.Content + "\n\n")
		case domain.RoleAssistant:
			b.WriteString(assistantStyle.Render("Assistant") + "\n")
			if msg.Content != "" {
				out, err := m.renderer.Render(msg.Content)
				if err != nil {
					out = msg.Content
				}
				b.WriteString(strings.TrimRight(out, "\n") + "\n\n")
			}
			for _, tc := range msg.ToolCalls {
				b.WriteString(toolStyle.Render("→ "+tc.Name) + "\n\n")
			}
		case domain.RoleTool:
			b.WriteString(toolStyle.Render("← "+msg.Name) + "\n")
			content := msg.Content
			if len(content) > 500 {
				content = content[:500] + "\n... (truncated)"
			}
			b.WriteString(content + "\n\n")
		}
	}
	return b.String()
}

func (m model) View() string {
	header := titleStyle.Render("parley — session " + shortID(m.sessionID))
	var errorView string
	if m.err != nil {
		errorView = errorStyle.Width(m.width).Render(fmt.Sprintf("Error: %v", m.err))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), m.textarea.View(), errorView)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func main() {
	addr := flag.String("addr", "http://localhost:8000", "parley server address")
	flag.Parse()

	client := &apiClient{
		base: strings.TrimRight(*addr, "/"),
		http: &http.Client{Timeout: 5 * time.Minute},
	}

	sessionID, err := client.createSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create session at %s: %v\n", *addr, err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(client, sessionID), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
