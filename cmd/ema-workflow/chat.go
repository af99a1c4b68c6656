package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/koscakluka/ema-workflow/core/channels"
	"github.com/koscakluka/ema-workflow/core/dialog"
	"github.com/koscakluka/ema-workflow/internal/config"
	"github.com/spf13/cobra"
)

// identity fills in the conversation and user from the config and generates
// a conversation id when none is given anywhere.
func identity(chat config.Chat, conversationID, userID, userName string) (string, string, string) {
	if conversationID == "" {
		conversationID = chat.ConversationID
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	if userID == "" {
		userID = chat.UserID
	}
	if userID == "" {
		userID = conversationID
	}
	if userName == "" {
		userName = chat.UserName
	}
	return conversationID, userID, userName
}

func newChatCommand(opts *rootOptions) *cobra.Command {
	var conversationID, userID, userName string
	var plain bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the workflow service in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go a.runSweeper(ctx)

			conversationID, userID, userName := identity(opts.cfg.Chat, conversationID, userID, userName)
			utterance := dialog.Utterance{ConversationID: conversationID, UserID: userID, UserName: userName}
			if plain {
				return runPlainChat(ctx, cmd, a, utterance)
			}
			return runChatTUI(ctx, a, utterance)
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation id (generated when empty)")
	cmd.Flags().StringVar(&userID, "user", "", "User id (defaults to the conversation id)")
	cmd.Flags().StringVar(&userName, "name", "", "User display name")
	cmd.Flags().BoolVar(&plain, "plain", false, "Read lines from stdin instead of running the interactive UI")
	return cmd
}

func runPlainChat(ctx context.Context, cmd *cobra.Command, a *app, utterance dialog.Utterance) error {
	sink := channels.NewWriter(cmd.OutOrStdout(),
		channels.WithWrapWidth(a.cfg.Chat.WrapWidth),
		channels.WithPrefix("ema> "))
	controller := a.controller(sink)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		utterance.Text = scanner.Text()
		if err := controller.HandleUtterance(ctx, utterance); err != nil {
			return err
		}
	}
	return scanner.Err()
}

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// programSink delivers replies into the running program.
type programSink struct {
	program *tea.Program
}

func (s *programSink) Deliver(_ context.Context, _ string, text string) error {
	s.program.Send(replyMsg{text: text})
	return nil
}

type replyMsg struct{ text string }

type turnDoneMsg struct{ err error }

type chatLine struct {
	speaker string
	style   lipgloss.Style
	text    string
}

type chatModel struct {
	ctx        context.Context
	controller *dialog.Controller
	utterance  dialog.Utterance
	wrapWidth  int

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	lines    []chatLine
	busy     bool
	ready    bool
}

func runChatTUI(ctx context.Context, a *app, utterance dialog.Utterance) error {
	sink := &programSink{}
	model := newChatModel(ctx, a.controller(sink), utterance, a.cfg.Chat.WrapWidth)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	sink.program = program
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running chat UI: %w", err)
	}
	return nil
}

func newChatModel(ctx context.Context, controller *dialog.Controller, utterance dialog.Utterance, wrapWidth int) chatModel {
	input := textinput.New()
	input.Placeholder = "Ask about a procurement policy..."
	input.Prompt = "> "
	input.Focus()

	return chatModel{
		ctx:        ctx,
		controller: controller,
		utterance:  utterance,
		wrapWidth:  wrapWidth,
		input:      input,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-3, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		m.render()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.lines = append(m.lines, chatLine{speaker: "you", style: userStyle, text: text})
			m.busy = true
			m.render()
			return m, tea.Batch(m.spinner.Tick, m.send(text))
		}

	case replyMsg:
		m.lines = append(m.lines, chatLine{speaker: "ema", style: botStyle, text: msg.text})
		m.render()
		return m, nil

	case turnDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.lines = append(m.lines, chatLine{speaker: "error", style: errorStyle, text: msg.err.Error()})
		}
		m.render()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m chatModel) send(text string) tea.Cmd {
	utterance := m.utterance
	utterance.Text = text
	return func() tea.Msg {
		return turnDoneMsg{err: m.controller.HandleUtterance(m.ctx, utterance)}
	}
}

func (m *chatModel) render() {
	if !m.ready {
		return
	}
	width := m.viewport.Width - 2
	if m.wrapWidth > 0 && m.wrapWidth < width {
		width = m.wrapWidth
	}

	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(line.style.Render(line.speaker))
		b.WriteString("\n")
		b.WriteString(channels.Wrap(line.text, width))
		b.WriteString("\n\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	if !m.ready {
		return "Starting..."
	}
	status := statusStyle.Render(fmt.Sprintf("conversation %s", m.utterance.ConversationID))
	if m.busy {
		status = m.spinner.View() + " " + statusStyle.Render("working...")
	}
	return m.viewport.View() + "\n" + status + "\n" + m.input.View()
}
