package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/chapelware/gather/internal/api"
)

// RoomTableView renders the room list as a table.
func RoomTableView(rooms []api.Room) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No rooms found")
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgHiMagenta, text.Bold}
	t.AppendHeader(table.Row{"ID", "Title", "Host", "Status", "Participants", "Created"})

	for _, room := range rooms {
		status := string(room.Status)
		switch room.Status {
		case api.RoomActive:
			status = SuccessStyle.Render(status)
		case api.RoomEnded:
			status = MutedStyle.Render(status)
		}
		t.AppendRow(table.Row{
			room.ID,
			truncate(room.Title, 32),
			room.HostUsername,
			status,
			fmt.Sprintf("%d/%d", len(room.Participants), room.MaxParticipants),
			room.CreatedAt.Local().Format("Jan 2 15:04"),
		})
	}

	return t.Render()
}

// RenderRoomTable outputs the room list directly to stdout.
func RenderRoomTable(rooms []api.Room) {
	fmt.Println(RoomTableView(rooms))
}

// MeetingSummary describes a finished meeting for the post-call recap.
type MeetingSummary struct {
	Title        string
	Role         string
	Participants int
	Duration     time.Duration
	ChatMessages int
}

// MeetingSummaryView renders the recap shown after leaving a meeting.
func MeetingSummaryView(summary MeetingSummary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Room", truncate(summary.Title, 40)},
		{"Role", summary.Role},
		{"Participants", summary.Participants},
		{"Duration", summary.Duration.Round(time.Second).String()},
		{"Chat messages", summary.ChatMessages},
	})
	return t.Render()
}

// RenderMeetingSummary outputs the recap directly to stdout.
func RenderMeetingSummary(summary MeetingSummary) {
	fmt.Println(MeetingSummaryView(summary))
}

// RoomCreatedView renders the confirmation box for a freshly created room.
func RoomCreatedView(roomID, link string) string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:  %s\n%s Link:     %s",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(roomID),
		IconLink, MutedStyle.Render(link),
	)
	return BoxStyle.BorderForeground(Success).Render(content)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
