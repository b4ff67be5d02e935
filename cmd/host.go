package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chapelware/gather/internal/api"
	"github.com/chapelware/gather/internal/meeting"
	"github.com/chapelware/gather/internal/room"
	"github.com/chapelware/gather/internal/ui"
)

var hostCmd = &cobra.Command{
	Use:   "host <title>",
	Short: "Create a room and start the meeting right away",
	Long: `Create a new meeting room and enter it as the host in one step.
Share the printed room ID or link so others can knock.

Examples:
  gather host "Sunday Prayer"
  gather host "Choir Practice" --max 8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostRoom(args[0])
	},
}

func init() {
	hostCmd.Flags().StringVar(&flagDescription, "description", "", "room description")
	hostCmd.Flags().IntVar(&flagMaxPeople, "max", 0, "maximum participants (server default if unset)")
	hostCmd.Flags().StringVar(&flagPassword, "password", "", "optional room password")

	rootCmd.AddCommand(hostCmd)
}

func hostRoom(title string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := api.NewClient(cfg.APIBaseURL, cfg.AuthToken)

	stopSpinner := ui.RunSpinner("Creating room...")
	defer stopSpinner()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	created, err := client.CreateRoom(ctx, api.CreateRoomParams{
		Title:           title,
		Description:     flagDescription,
		MaxParticipants: flagMaxPeople,
		Password:        flagPassword,
	})
	if err != nil {
		return meeting.NewError("create room", err)
	}
	stopSpinner()

	fmt.Println()
	fmt.Println(ui.RoomCreatedView(created.ID, cfg.RoomLink(created.ID)))
	fmt.Println()

	session := room.NewSession(cfg, client, created.ID, cfg.Username)
	if err := session.Start(ctx); err != nil {
		return err
	}
	return ui.RunMeeting(session)
}
