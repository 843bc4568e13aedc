package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
	"github.com/tutorlink/chatkit/internal/chat"
	"github.com/tutorlink/chatkit/internal/models"
	"github.com/tutorlink/chatkit/internal/transport"
	"golang.org/x/term"
)

const chatTickInterval = 500 * time.Millisecond

var chatCmd = &cobra.Command{
	Use:   "chat <recipient-id>",
	Short: "Open a live conversation with a contact",
	Long: `Open an interactive chat with a contact. Messages appear optimistically
and are delivered over the realtime connection, falling back to HTTP when it
is down. Failed sends stay visible with a marker.

Keys: enter sends, pgup loads older history, esc or ctrl+c quits.

Examples:
  chatkit chat u-42
  chatkit contacts -v   # to find recipient IDs`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("chat requires an interactive terminal")
	}

	log, closeLog := tuiLogger()
	defer closeLog()

	sock := transport.NewSocket(cfg.WSURL, log)
	sock.Connect(cfg.Token)
	defer sock.Disconnect()

	store := chat.New(apiClient, sock, cfg.UserID, log)
	defer store.Close()

	ctx := context.Background()
	if err := store.LoadConversations(ctx); err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}

	conv, err := store.OpenConversation(ctx, args[0])
	if err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}

	// History and read receipts are best-effort; the chat works without them.
	if err := store.LoadMessages(ctx, conv.ID, 1); err != nil {
		log.Warn("initial history fetch failed", "error", err)
	}
	store.MarkRead(ctx, conv.ID)

	p := tea.NewProgram(newChatModel(store, conv.ID, cfg.UserID))
	_, err = p.Run()
	return err
}

// chatTickMsg triggers a state refresh from the store.
type chatTickMsg time.Time

// chatSentMsg reports that a send call finished (delivery state lives in
// the store, not here).
type chatSentMsg struct{}

// historyLoadedMsg reports an older-page fetch.
type historyLoadedMsg struct{ err error }

// chatModel is the bubbletea model for a conversation view.
type chatModel struct {
	store          *chat.Store
	conversationID string
	selfID         string
	input          textinput.Model
	theme          Theme
	width          int
	height         int
	page           int
	quitting       bool
}

func newChatModel(store *chat.Store, conversationID, selfID string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message…"
	ti.Focus()

	return chatModel{
		store:          store,
		conversationID: conversationID,
		selfID:         selfID,
		input:          ti,
		theme:          defaultTheme,
		width:          80,
		height:         24,
		page:           1,
	}
}

// Init returns the initial command (start ticking).
func (m chatModel) Init() tea.Cmd {
	return chatTick()
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			return m, m.send(text)
		case "pgup":
			if conv, ok := m.store.Conversation(m.conversationID); ok && conv.HasMore {
				m.page++
				return m, m.loadOlder(m.page)
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case chatTickMsg:
		// New inbound messages count as read while the conversation is on
		// screen.
		if conv, ok := m.store.Conversation(m.conversationID); ok && conv.Unread > 0 {
			m.store.MarkRead(context.Background(), m.conversationID)
		}
		return m, chatTick()

	case chatSentMsg, historyLoadedMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the conversation.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m chatModel) renderContent() string {
	if m.quitting {
		return ""
	}

	conv, ok := m.store.Conversation(m.conversationID)
	if !ok {
		return m.theme.hintStyle().Render("Conversation gone.")
	}

	var b strings.Builder
	b.WriteString(m.renderHeader(conv))
	b.WriteString("\n\n")

	// Leave room for header, blank lines, hint and the input field.
	visible := m.height - 6
	if visible < 1 {
		visible = 1
	}
	msgs := conv.Messages
	if len(msgs) > visible {
		msgs = msgs[len(msgs)-visible:]
	}
	if conv.HasMore {
		b.WriteString(m.theme.hintStyle().Render("pgup for older messages"))
		b.WriteString("\n")
	}
	for _, msg := range msgs {
		b.WriteString(m.renderMessage(conv, msg))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

func (m chatModel) renderHeader(conv models.Conversation) string {
	name := "(unknown)"
	counterpartID := ""
	if other, ok := conv.Counterpart(m.selfID); ok {
		name = other.Name
		counterpartID = other.ID
	}

	presence := m.theme.hintStyle().Render("○ offline")
	if m.store.IsOnline(counterpartID) {
		presence = m.theme.onlineStyle().Render("● online")
	}
	return fmt.Sprintf("%s  %s", m.theme.peerStyle().Render(name), presence)
}

func (m chatModel) renderMessage(conv models.Conversation, msg models.Message) string {
	stamp := m.theme.hintStyle().Render(msg.CreatedAt.Format("15:04"))

	sender := m.theme.peerStyle().Render(senderName(conv, msg.SenderID))
	if msg.SenderID == m.selfID {
		sender = m.theme.selfStyle().Render("you")
	}

	line := fmt.Sprintf("%s %s: %s", stamp, sender, msg.Text)
	switch msg.Delivery {
	case models.DeliveryPending:
		line += m.theme.pendingStyle().Render(" ⋯")
	case models.DeliveryFailed:
		line += m.theme.failedStyle().Render(" ✗ not delivered")
	}
	return line
}

func (m chatModel) send(text string) tea.Cmd {
	return func() tea.Msg {
		m.store.SendMessage(context.Background(), m.conversationID, text)
		return chatSentMsg{}
	}
}

func (m chatModel) loadOlder(page int) tea.Cmd {
	return func() tea.Msg {
		err := m.store.LoadMessages(context.Background(), m.conversationID, page)
		return historyLoadedMsg{err: err}
	}
}

func chatTick() tea.Cmd {
	return tea.Tick(chatTickInterval, func(t time.Time) tea.Msg {
		return chatTickMsg(t)
	})
}

func senderName(conv models.Conversation, senderID string) string {
	for _, p := range conv.Participants {
		if p.ID == senderID {
			return p.Name
		}
	}
	return senderID
}
