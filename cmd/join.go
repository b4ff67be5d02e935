package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/chapelware/gather/internal/api"
	"github.com/chapelware/gather/internal/meeting"
	"github.com/chapelware/gather/internal/room"
	"github.com/chapelware/gather/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id>",
	Aliases: []string{"j"},
	Short:   "Join a meeting room",
	Long: `Join a meeting room by ID. If you are the host the meeting starts
immediately; otherwise you wait until the host lets you in.

Examples:
  gather join 3f8a2c1e
  gather join 3f8a2c1e --relay`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
}

func joinRoom(roomID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := api.NewClient(cfg.APIBaseURL, cfg.AuthToken)
	session := room.NewSession(cfg, client, roomID, cfg.Username)

	stopSpinner := ui.RunSpinner("Joining room...")
	defer stopSpinner()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := session.Start(ctx); err != nil {
		stopSpinner()
		switch {
		case errors.Is(err, api.ErrNotFound):
			return errors.New("room not found")
		case errors.Is(err, meeting.ErrRoomEnded):
			return errors.New("this meeting has already ended")
		}
		return err
	}
	stopSpinner()

	return ui.RunMeeting(session)
}
