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
	"github.com/tutorlink/chatkit/internal/models"
	"github.com/tutorlink/chatkit/internal/session"
	"golang.org/x/term"
)

const (
	sessionTickInterval = time.Second

	// Session metadata changes rarely; refetch it well below the tick rate.
	sessionRefreshEvery = 30
)

var sessionCmd = &cobra.Command{
	Use:   "session <session-id>",
	Short: "Open the live chat room of a scheduled session",
	Long: `Open the chat room scoped to one scheduled session. The room is only
active while the session is live for you: outside its time window, or once it
is completed or cancelled, the room shows why instead of a chat.

Messages are carried over the dedicated session endpoint when one is
configured (CHATKIT_SESSION_WS_URL), otherwise by polling every few seconds.

Keys: enter sends, esc dismisses a notice (or quits), ctrl+c quits.

Examples:
  chatkit session s-2041`,
	Args: cobra.ExactArgs(1),
	RunE: runSession,
}

func runSession(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("session requires an interactive terminal")
	}

	log, closeLog := tuiLogger()
	defer closeLog()

	ctx := context.Background()
	sess, err := apiClient.Session(ctx, args[0])
	if err != nil {
		return fmt.Errorf("fetch session: %w", err)
	}

	room := session.NewRoom(apiClient, sess, cfg.UserID, session.Config{
		SocketURL:    cfg.SessionWSURL,
		Token:        cfg.Token,
		PollInterval: cfg.PollInterval,
	}, log)
	room.Evaluate()
	defer room.Close()

	p := tea.NewProgram(newSessionModel(room, args[0], cfg.UserID))
	_, err = p.Run()
	return err
}

// sessionTickMsg re-evaluates the room state against the clock.
type sessionTickMsg time.Time

// sessionRefreshMsg carries refetched session metadata.
type sessionRefreshMsg struct {
	sess models.Session
	err  error
}

// sessionSentMsg reports that a send call finished.
type sessionSentMsg struct{}

// sessionModel is the bubbletea model for a session room.
type sessionModel struct {
	room      *session.Room
	sessionID string
	selfID    string
	input     textinput.Model
	theme     Theme
	width     int
	height    int
	ticks     int
	quitting  bool
}

func newSessionModel(room *session.Room, sessionID, selfID string) sessionModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message…"
	ti.Focus()

	return sessionModel{
		room:      room,
		sessionID: sessionID,
		selfID:    selfID,
		input:     ti,
		theme:     defaultTheme,
		width:     80,
		height:    24,
	}
}

// Init returns the initial command (start ticking).
func (m sessionModel) Init() tea.Cmd {
	return sessionTick()
}

// Update handles messages and returns the updated model.
func (m sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			if m.room.Notice() != "" {
				m.room.DismissNotice()
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || !m.room.Active() {
				return m, nil
			}
			m.input.SetValue("")
			m.room.SetInput("")
			return m, m.send(text)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case sessionTickMsg:
		m.ticks++
		m.room.Evaluate()
		if m.ticks%sessionRefreshEvery == 0 {
			return m, tea.Batch(sessionTick(), m.refresh())
		}
		return m, sessionTick()

	case sessionRefreshMsg:
		if msg.err == nil {
			m.room.UpdateSession(msg.sess)
		}
		return m, nil

	case sessionSentMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.room.SetInput(m.input.Value())
	return m, cmd
}

// View renders the room, including its explanatory inactive states.
func (m sessionModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m sessionModel) renderContent() string {
	if m.quitting {
		return ""
	}

	sess := m.room.Session()

	if !m.room.Active() {
		return m.renderInactive(sess)
	}

	var b strings.Builder
	header := fmt.Sprintf("Session %s — live until %s", sess.ID, sess.EndsAt.Format("15:04"))
	b.WriteString(m.theme.peerStyle().Render(header))
	b.WriteString("\n")
	if notice := m.room.Notice(); notice != "" {
		b.WriteString(m.theme.noticeStyle().Render(notice + " (esc to dismiss)"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	visible := m.height - 6
	if visible < 1 {
		visible = 1
	}
	msgs := m.room.Messages()
	if len(msgs) > visible {
		msgs = msgs[len(msgs)-visible:]
	}
	for _, msg := range msgs {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

// renderInactive explains why the room is closed. This is a first-class
// state, not an error.
func (m sessionModel) renderInactive(sess models.Session) string {
	now := time.Now()
	var reason string
	switch {
	case !sess.HasParticipant(m.selfID):
		reason = "You are not a participant of this session."
	case sess.Status == models.SessionCancelled:
		reason = "This session was cancelled."
	case sess.Status == models.SessionCompleted:
		reason = "This session is completed."
	case now.Before(sess.StartsAt):
		reason = fmt.Sprintf("Chat opens when the session starts at %s.", sess.StartsAt.Format("Jan 2 15:04"))
	default:
		reason = fmt.Sprintf("This session ended at %s.", sess.EndsAt.Format("Jan 2 15:04"))
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s",
		m.theme.peerStyle().Render("Session "+sess.ID),
		m.theme.hintStyle().Render(reason),
		m.theme.hintStyle().Render("esc to leave"))
}

func (m sessionModel) renderMessage(msg models.Message) string {
	stamp := m.theme.hintStyle().Render(msg.CreatedAt.Format("15:04"))

	sender := m.theme.peerStyle().Render(msg.SenderID)
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

func (m sessionModel) send(text string) tea.Cmd {
	return func() tea.Msg {
		m.room.Send(context.Background(), text)
		return sessionSentMsg{}
	}
}

func (m sessionModel) refresh() tea.Cmd {
	return func() tea.Msg {
		sess, err := apiClient.Session(context.Background(), m.sessionID)
		return sessionRefreshMsg{sess: sess, err: err}
	}
}

func sessionTick() tea.Cmd {
	return tea.Tick(sessionTickInterval, func(t time.Time) tea.Msg {
		return sessionTickMsg(t)
	})
}
