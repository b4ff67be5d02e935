package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pion/webrtc/v4"

	"github.com/chapelware/gather/internal/room"
)

// reactionKeys maps number keys to the quick reactions.
var reactionKeys = map[string]string{
	"1": "👍",
	"2": "❤️",
	"3": "😂",
	"4": "🙏",
	"5": "👏",
}

const apiTimeout = 5 * time.Second

type sessionEventMsg room.Event

type sessionClosedMsg struct{}

// MeetingModel is the live meeting screen: the participant grid, the chat
// panel, raised hands, reactions, and the host's admission prompt.
type MeetingModel struct {
	session *room.Session

	spinner   spinner.Model
	chatInput textinput.Model

	chatOpen bool
	admitted bool
	rejected bool
	ended    bool
	mediaErr error
	notice   string

	startedAt time.Time
	width     int
	quitting  bool
}

// NewMeetingModel builds the meeting screen for a started session.
func NewMeetingModel(session *room.Session) *MeetingModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = SpinnerStyle

	input := textinput.New()
	input.Placeholder = "Type a message"
	input.CharLimit = 500
	input.Width = 48

	return &MeetingModel{
		session:   session,
		spinner:   s,
		chatInput: input,
		admitted:  session.IsHost(),
		startedAt: time.Now(),
		width:     80,
	}
}

// RunMeeting drives the meeting screen until the user leaves or the
// meeting ends, and prints the recap afterwards.
func RunMeeting(session *room.Session) error {
	model := NewMeetingModel(session)
	program := tea.NewProgram(model, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return err
	}

	if m, ok := final.(*MeetingModel); ok {
		m.printRecap()
	}
	return nil
}

func (m *MeetingModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvents())
}

func (m *MeetingModel) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.session.Events()
		if !ok {
			return sessionClosedMsg{}
		}
		return sessionEventMsg(ev)
	}
}

func (m *MeetingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case sessionClosedMsg:
		return m, nil

	case sessionEventMsg:
		cmds = append(cmds, m.listenForEvents())
		switch room.Event(msg).Kind {
		case room.EventApproved:
			m.admitted = true
			m.startedAt = time.Now()
		case room.EventRejected:
			m.rejected = true
			m.quitting = true
			return m, tea.Quit
		case room.EventEnded:
			m.ended = true
			m.quitting = true
			return m, tea.Quit
		case room.EventMediaError:
			m.mediaErr = room.Event(msg).Err
			m.quitting = true
			return m, tea.Quit
		case room.EventScreenShare:
			if user := room.Event(msg).Username; user != "" {
				m.notice = fmt.Sprintf("%s is sharing their screen", user)
			} else {
				m.notice = ""
			}
		}
		// Remaining kinds only invalidate the view, which re-renders anyway.

	case tea.KeyMsg:
		if m.chatOpen && m.chatInput.Focused() {
			switch msg.String() {
			case "enter":
				m.submitChat()
			case "esc":
				m.closeChat()
			default:
				var cmd tea.Cmd
				m.chatInput, cmd = m.chatInput.Update(msg)
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.leave()
			m.quitting = true
			return m, tea.Quit
		case "e":
			if m.session.IsHost() {
				m.endMeeting()
				m.quitting = true
				return m, tea.Quit
			}
		case "m":
			m.session.ToggleMic()
		case "v":
			m.session.ToggleVideo()
		case "s":
			m.toggleScreenShare()
		case "c":
			m.openChat()
			cmds = append(cmds, textinput.Blink)
		case "h":
			m.toggleHand()
		case "y":
			m.decideFirstPending(true)
		case "n":
			m.decideFirstPending(false)
		default:
			if emoji, ok := reactionKeys[msg.String()]; ok {
				m.sendReaction(emoji)
			}
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *MeetingModel) openChat() {
	m.chatOpen = true
	m.session.Chat().SetOpen(true)
	m.chatInput.Focus()
}

func (m *MeetingModel) closeChat() {
	m.chatOpen = false
	m.session.Chat().SetOpen(false)
	m.chatInput.Blur()
}

func (m *MeetingModel) submitChat() {
	content := strings.TrimSpace(m.chatInput.Value())
	if content == "" {
		return
	}
	m.chatInput.Reset()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		m.session.Chat().Send(ctx, content)
	}()
}

func (m *MeetingModel) toggleHand() {
	hands := m.session.Hands()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		if hands.MineRaised() {
			hands.Lower(ctx)
		} else {
			hands.Raise(ctx)
		}
	}()
}

func (m *MeetingModel) sendReaction(emoji string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		m.session.Reactions().Send(ctx, emoji)
	}()
}

func (m *MeetingModel) toggleScreenShare() {
	source := m.session.Source()
	if source == nil {
		return
	}
	if source.Sharing() {
		m.session.StopScreenShare()
		return
	}
	if err := m.session.StartScreenShare(); err != nil {
		m.notice = "screen share unavailable"
	}
}

func (m *MeetingModel) decideFirstPending(approve bool) {
	if !m.session.IsHost() {
		return
	}
	items := m.session.Pending().Items()
	if len(items) == 0 {
		return
	}
	first := items[0]

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
		defer cancel()
		if approve {
			m.session.Approve(ctx, first.ID)
		} else {
			m.session.Reject(ctx, first.ID)
		}
	}()
}

func (m *MeetingModel) leave() {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	m.session.Leave(ctx)
}

func (m *MeetingModel) endMeeting() {
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	m.session.End(ctx)
}

func (m *MeetingModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.admitted {
		return m.waitingView()
	}
	return m.meetingView()
}

func (m *MeetingModel) waitingView() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(TitleStyle.Render(IconRoom + " " + m.roomTitle()))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s Waiting for the host to let you in\n", m.spinner.View(), IconWaiting))
	b.WriteString("\n" + MutedStyle.Render("Press q to cancel"))
	return BoxStyle.Render(b.String())
}

func (m *MeetingModel) meetingView() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(IconRoom + " " + m.roomTitle()))
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(StatusStyle.Render(IconScreen+" "+m.notice) + "\n\n")
	}

	b.WriteString(m.tilesView())
	b.WriteString("\n")

	if prompt := m.pendingPrompt(); prompt != "" {
		b.WriteString(prompt + "\n")
	}

	if hands := m.handsView(); hands != "" {
		b.WriteString(hands + "\n")
	}

	if reactions := m.reactionsView(); reactions != "" {
		b.WriteString(reactions + "\n")
	}

	if m.chatOpen {
		b.WriteString(m.chatView())
	}

	b.WriteString("\n" + m.footerView())
	return b.String()
}

func (m *MeetingModel) roomTitle() string {
	if r := m.session.Room(); r != nil {
		return r.Title
	}
	return "Meeting"
}

// tilesView renders the local tile plus one tile per remote stream.
func (m *MeetingModel) tilesView() string {
	tiles := []string{m.localTile()}

	for _, stream := range m.session.Streams() {
		var lines []string
		name := stream.Username
		if name == m.session.HostUsername() {
			name = IconHost + " " + name
		}
		lines = append(lines, BoldStyle.Render(name))
		lines = append(lines, m.mediaLine(stream.Status.Muted, stream.Status.VideoOff, stream.Status.Sharing))

		style := TileStyle
		switch stream.State {
		case webrtc.PeerConnectionStateConnected:
			style = TileActiveStyle
		case webrtc.PeerConnectionStateConnecting, webrtc.PeerConnectionStateNew:
			lines = append(lines, MutedStyle.Render("connecting..."))
		default:
			lines = append(lines, ErrorStyle.Render(stream.State.String()))
		}

		tiles = append(tiles, style.Render(strings.Join(lines, "\n")))
	}

	perRow := max(1, m.width/26)
	var rows []string
	for start := 0; start < len(tiles); start += perRow {
		end := min(start+perRow, len(tiles))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, tiles[start:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *MeetingModel) localTile() string {
	lines := []string{BoldStyle.Render(IconPeer + " " + m.session.Username() + " (you)")}

	source := m.session.Source()
	if source != nil {
		lines = append(lines, m.mediaLine(source.Muted(), source.VideoOff(), source.Sharing()))
	}
	return TileActiveStyle.Render(strings.Join(lines, "\n"))
}

func (m *MeetingModel) mediaLine(muted, videoOff, sharing bool) string {
	mic := IconMic
	if muted {
		mic = MutedStyle.Render(IconMicOff)
	}
	cam := IconCamera
	if videoOff {
		cam = MutedStyle.Render("🚫")
	}
	line := mic + " " + cam
	if sharing {
		line += " " + IconScreen
	}
	return line
}

func (m *MeetingModel) pendingPrompt() string {
	if !m.session.IsHost() {
		return ""
	}
	items := m.session.Pending().Items()
	if len(items) == 0 {
		return ""
	}

	first := items[0]
	prompt := fmt.Sprintf("%s %s wants to join. Admit? (y/n)", IconKnock, BoldStyle.Render(first.Username))
	if len(items) > 1 {
		prompt += MutedStyle.Render(fmt.Sprintf("  +%d more waiting", len(items)-1))
	}
	return PromptStyle.Render(prompt)
}

func (m *MeetingModel) handsView() string {
	raised := m.session.Hands().Raised()
	if len(raised) == 0 {
		return ""
	}
	names := make([]string, len(raised))
	for i, hand := range raised {
		names[i] = hand.Username
	}
	return WarningStyle.Render(IconHand + " " + strings.Join(names, ", "))
}

func (m *MeetingModel) reactionsView() string {
	active := m.session.Reactions().Active()
	if len(active) == 0 {
		return ""
	}
	parts := make([]string, len(active))
	for i, reaction := range active {
		parts[i] = fmt.Sprintf("%s %s", reaction.Emoji, MutedStyle.Render(reaction.Username))
	}
	return strings.Join(parts, "   ")
}

func (m *MeetingModel) chatView() string {
	messages := m.session.Chat().Messages()

	var b strings.Builder
	b.WriteString(SubtitleStyle.Render(IconChat+" Chat") + "\n")

	start := max(0, len(messages)-8)
	for _, msg := range messages[start:] {
		sender := msg.Sender
		if sender == m.session.Username() {
			sender = SuccessStyle.Render(sender)
		} else {
			sender = BoldStyle.Render(sender)
		}
		b.WriteString(fmt.Sprintf("%s %s: %s\n", MutedStyle.Render(msg.CreatedAt.Local().Format("15:04")), sender, msg.Content))
	}

	b.WriteString(m.chatInput.View())
	return PanelStyle.Render(b.String())
}

func (m *MeetingModel) footerView() string {
	keys := []string{"m mic", "v video", "s share", "h hand", "1-5 react"}

	chat := "c chat"
	if unread := m.session.Chat().Unread(); unread > 0 {
		chat = fmt.Sprintf("c chat (%d)", unread)
	}
	keys = append(keys, chat)

	if m.session.IsHost() {
		keys = append(keys, "y/n admit", "e end", "q leave")
	} else {
		keys = append(keys, "q leave")
	}
	return MutedStyle.Render(strings.Join(keys, "  ·  "))
}

// printRecap writes the post-meeting summary after the screen closes.
func (m *MeetingModel) printRecap() {
	switch {
	case m.rejected:
		PrintError("The host declined your request to join")
		return
	case m.mediaErr != nil:
		PrintError("Could not access your microphone or camera")
		return
	case m.ended:
		PrintInfo("The meeting has ended")
	}

	role := "participant"
	if m.session.IsHost() {
		role = "host"
	}
	RenderMeetingSummary(MeetingSummary{
		Title:        m.roomTitle(),
		Role:         role,
		Participants: len(m.session.Streams()) + 1,
		Duration:     time.Since(m.startedAt),
		ChatMessages: len(m.session.Chat().Messages()),
	})
}
