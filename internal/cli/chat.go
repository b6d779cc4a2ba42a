package cli

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nvoronin/periscope/internal/client"
	"github.com/nvoronin/periscope/internal/models"
	"github.com/nvoronin/periscope/internal/session"
)

var (
	chatMode   string
	chatResume string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session in the terminal.

Type a message and press Enter to send it; the answer streams in as it
is generated. Press Esc or Ctrl+C to leave. Use --resume to pick up an
existing chat where you left off.

Examples:
  periscope chat
  periscope chat --mode academic
  periscope chat --resume chat_0c5d2f1a...`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMode, "mode", "m", "web", "search mode")
	chatCmd.Flags().StringVarP(&chatResume, "resume", "r", "", "resume an existing chat")
}

// chatTheme holds the color scheme for the chat display.
type chatTheme struct {
	User       lipgloss.Color
	Assistant  lipgloss.Color
	Hint       lipgloss.Color
	Error      lipgloss.Color
	Suggestion lipgloss.Color
}

var defaultChatTheme = chatTheme{
	User:       lipgloss.Color("#5FAFD7"), // light blue
	Assistant:  lipgloss.Color("#00D787"), // green
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	Error:      lipgloss.Color("#FF005F"), // red
	Suggestion: lipgloss.Color("#6C6C6C"),
}

func (t chatTheme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t chatTheme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant).Bold(true)
}

func (t chatTheme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t chatTheme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

// chatLine is one settled transcript entry.
type chatLine struct {
	role    string
	content string
}

// Stream events delivered from the turn goroutine.
type (
	streamTokenMsg string
	streamDoneMsg  struct{ result *client.StreamResult }
	streamErrMsg   struct{ err error }
)

// chatModel is the bubbletea model for the interactive session.
type chatModel struct {
	ctrl  *session.Controller
	api   *client.Client
	token string
	mode  string
	theme chatTheme

	transcript  []chatLine
	suggestions []string
	input       []rune
	reply       string
	events      chan tea.Msg
	spinner     spinner.Model
	streaming   bool
	err         error
	width       int
	quitting    bool
}

func newChatModel(ctrl *session.Controller, api *client.Client, token, mode string, history []models.Message) chatModel {
	theme := defaultChatTheme
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot))

	transcript := make([]chatLine, 0, len(history))
	for _, msg := range history {
		transcript = append(transcript, chatLine{role: msg.Role, content: msg.Content})
	}

	return chatModel{
		ctrl:       ctrl,
		api:        api,
		token:      token,
		mode:       mode,
		theme:      theme,
		transcript: transcript,
		spinner:    sp,
		width:      80,
	}
}

func (m chatModel) Init() tea.Cmd {
	return nil
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case streamTokenMsg:
		m.reply += string(msg)
		return m, m.waitEvent()

	case streamDoneMsg:
		m.streaming = false
		m.transcript = append(m.transcript, chatLine{
			role:    models.RoleAssistant,
			content: msg.result.Content,
		})
		m.suggestions = msg.result.Suggestions
		m.reply = ""
		return m, nil

	case streamErrMsg:
		m.streaming = false
		m.err = msg.err
		m.reply = ""
		return m, nil

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m chatModel) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		if m.streaming {
			return m, nil
		}
		text := strings.TrimSpace(string(m.input))
		if text == "" {
			return m, nil
		}
		if rest, ok := strings.CutPrefix(text, "/mode "); ok {
			m.mode = strings.TrimSpace(rest)
			m.input = nil
			return m, nil
		}
		m.input = nil
		m.err = nil
		m.suggestions = nil
		m.streaming = true
		m.transcript = append(m.transcript, chatLine{role: models.RoleUser, content: text})
		m.events = make(chan tea.Msg, 16)
		return m, tea.Batch(m.startTurn(text, m.events), m.waitEvent(), m.spinner.Tick)

	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil

	case "space":
		m.input = append(m.input, ' ')
		return m, nil

	default:
		runes := []rune(key)
		if len(runes) == 1 {
			m.input = append(m.input, runes[0])
		}
		return m, nil
	}
}

// startTurn persists the user message and streams the reply, pushing
// events into the channel. Runs off the update loop.
func (m chatModel) startTurn(text string, events chan tea.Msg) tea.Cmd {
	ctrl, api, token, mode := m.ctrl, m.api, m.token, m.mode
	return func() tea.Msg {
		go func() {
			ctx := context.Background()

			chatID, err := ctrl.Submit(ctx, text, nil)
			if err != nil {
				events <- streamErrMsg{err: err}
				return
			}

			result, err := api.Stream(ctx, client.StreamRequest{
				ChatID: chatID,
				Mode:   mode,
			}, token, func(tok string) error {
				events <- streamTokenMsg(tok)
				return nil
			})
			if err != nil {
				events <- streamErrMsg{err: err}
				return
			}
			events <- streamDoneMsg{result: result}
		}()
		return nil
	}
}

// waitEvent delivers the next stream event to the update loop.
func (m chatModel) waitEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return <-events
	}
}

func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m chatModel) renderContent() string {
	var b strings.Builder
	wrap := lipgloss.NewStyle().Width(m.width)

	for _, line := range m.transcript {
		label := m.theme.userStyle().Render("you")
		if line.role == models.RoleAssistant {
			label = m.theme.assistantStyle().Render("periscope")
		}
		b.WriteString(label + " " + wrap.Render(line.content) + "\n\n")
	}

	if m.streaming {
		b.WriteString(m.theme.assistantStyle().Render("periscope") + " ")
		if m.reply == "" {
			b.WriteString(m.spinner.View() + " thinking")
		} else {
			b.WriteString(wrap.Render(m.reply))
		}
		b.WriteString("\n\n")
	}

	if m.err != nil {
		b.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("✗ %v", m.err)) + "\n\n")
	}

	for _, s := range m.suggestions {
		b.WriteString(m.theme.hintStyle().Render("→ "+s) + "\n")
	}
	if len(m.suggestions) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("> " + string(m.input) + "▌\n")
	b.WriteString(m.theme.hintStyle().Render(
		fmt.Sprintf("mode: %s · Enter to send, /mode <id> to switch, Esc to quit", m.mode)) + "\n")
	return b.String()
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := requireLogin(); err != nil {
		return err
	}
	ctx := context.Background()

	ctrl := newController()
	var history []models.Message
	if chatResume != "" {
		chat, err := ctrl.LoadChat(ctx, chatResume)
		if err != nil {
			return err
		}
		if chat == nil {
			return fmt.Errorf("chat not found: %s", chatResume)
		}
		history = chat.Messages
	}

	model := newChatModel(ctrl, apiClient, creds.Token, chatMode, history)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
