package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chapelware/gather/internal/api"
	"github.com/chapelware/gather/internal/meeting"
	"github.com/chapelware/gather/internal/ui"
)

var (
	flagDescription string
	flagMaxPeople   int
	flagPassword    string
)

var roomsCmd = &cobra.Command{
	Use:     "rooms",
	Aliases: []string{"ls"},
	Short:   "List the community's meeting rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRooms()
	},
}

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new meeting room",
	Long: `Create a new meeting room and print its ID and link.

Examples:
  gather create "Wednesday Bible Study"
  gather create "Youth Group" --max 12 --description "Fridays at 7pm"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createRoom(args[0])
	},
}

func init() {
	createCmd.Flags().StringVar(&flagDescription, "description", "", "room description")
	createCmd.Flags().IntVar(&flagMaxPeople, "max", 0, "maximum participants (server default if unset)")
	createCmd.Flags().StringVar(&flagPassword, "password", "", "optional room password")

	rootCmd.AddCommand(roomsCmd)
	rootCmd.AddCommand(createCmd)
}

func listRooms() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := api.NewClient(cfg.APIBaseURL, cfg.AuthToken)

	stopSpinner := ui.RunSpinner("Fetching rooms...")
	defer stopSpinner()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	rooms, err := client.ListRooms(ctx)
	if err != nil {
		return meeting.NewError("list rooms", err)
	}
	stopSpinner()

	fmt.Println()
	ui.RenderRoomTable(rooms)
	return nil
}

func createRoom(title string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := api.NewClient(cfg.APIBaseURL, cfg.AuthToken)

	stopSpinner := ui.RunSpinner("Creating room...")
	defer stopSpinner()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	room, err := client.CreateRoom(ctx, api.CreateRoomParams{
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
	fmt.Println(ui.RoomCreatedView(room.ID, cfg.RoomLink(room.ID)))
	fmt.Println()
	ui.PrintInfof("Start it with: gather join %s", room.ID)
	return nil
}
