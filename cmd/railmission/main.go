package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.2.0"

var rootCmd = &cobra.Command{
	Use:   "railmission",
	Short: "Rail Mission - kiosk game server",
	Long: `Rail Mission runs the authoritative server for the rail incident
recovery kiosk game: per-kiosk session state machines, the step
simulation, and the websocket fan-out that kiosk, display and admin
front-ends connect to.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the server version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
