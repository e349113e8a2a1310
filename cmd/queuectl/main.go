package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	host    string
	session string
)

var rootCmd = &cobra.Command{
	Use:   "queuectl",
	Short: "A CLI to inspect and administer the inhouse queue server",
	Long: `A command-line interface for the inhouse queue server: read the queue
and lobbies, run admin actions, check configuration and generate VAPID keys.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "The host address of the server")
	rootCmd.PersistentFlags().StringVar(&session, "session", os.Getenv("INHOUSE_SESSION"), "Session cookie for authenticated commands")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
