package cmd

import (
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/chapelware/gather/internal/config"
	"github.com/chapelware/gather/internal/ui"
	"github.com/chapelware/gather/internal/version"
)

var (
	errMissingToken    = errors.New("no auth token: set GATHER_TOKEN or pass --token")
	errMissingUsername = errors.New("no username: set GATHER_USERNAME or pass --user")
)

var (
	flagDomain   string
	flagToken    string
	flagUsername string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "gather",
	Short:   "Video meetings for your church community, from the terminal",
	Long:    `Gather is the command-line client for Chapelware community video meetings. Host a room, admit participants from the waiting list, and join meetings with chat, reactions, raised hands, and screen sharing over direct peer-to-peer connections.`,
	Version: version.Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDomain, "domain", "", "platform server domain")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "authentication token")
	rootCmd.PersistentFlags().StringVar(&flagUsername, "user", "", "your platform username")
	rootCmd.PersistentFlags().StringVar(&flagSTUN, "stun", "", "STUN server URL")
	rootCmd.PersistentFlags().StringVar(&flagTURN, "turn", "", "TURN server host")
	rootCmd.PersistentFlags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	rootCmd.PersistentFlags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	rootCmd.PersistentFlags().BoolVar(&flagRelay, "relay", false, "force media through the TURN relay")
}

// loadConfig builds the effective config from flags, environment, and
// defaults, and validates the pieces every command needs.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Domain:     flagDomain,
		Token:      flagToken,
		Username:   flagUsername,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
	if err != nil {
		return nil, err
	}
	if cfg.AuthToken == "" {
		return nil, errMissingToken
	}
	if cfg.Username == "" {
		return nil, errMissingUsername
	}
	return cfg, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
