package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"

	"github.com/edvart/inhouse-queue/internal/auth"
	"github.com/edvart/inhouse-queue/internal/config"
)

var client = &http.Client{Timeout: 10 * time.Second}

func init() {
	rootCmd.AddCommand(healthCmd, stateCmd, lobbyCmd, matchesCmd, metricsCmd)
	rootCmd.AddCommand(adminCmd, configCmd, vapidCmd)

	matchesCmd.Flags().Int("limit", 20, "Number of matches to list")
	matchesCmd.Flags().Bool("bots", false, "Include matches filled with bots")

	adminCmd.AddCommand(adminStateCmd, readyAllCmd, cancelCmd, fillBotsCmd, kickCmd, ratingCmd)
	cancelCmd.Flags().String("reason", "", "Cancellation reason shown to players")
	fillBotsCmd.Flags().Int("count", 0, "Number of bots to add (0 fills the next lobby)")

	configCmd.AddCommand(configCheckCmd)
	vapidCmd.Flags().String("out", "", "Also write the keys to this file in .env format")
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return doRequest(cmd, http.MethodGet, "/healthz", nil)
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the queue and, with --session, your lobby",
	RunE: func(cmd *cobra.Command, args []string) error {
		return doRequest(cmd, http.MethodGet, "/api/state", nil)
	},
}

var lobbyCmd = &cobra.Command{
	Use:   "lobby <lobby-id>",
	Short: "Show a lobby snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return doRequest(cmd, http.MethodGet, "/api/lobby/"+url.PathEscape(args[0]), nil)
	},
}

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List recorded matches",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		bots, _ := cmd.Flags().GetBool("bots")
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("bots", strconv.FormatBool(bots))
		return doRequest(cmd, http.MethodGet, "/api/matches?"+q.Encode(), nil)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return doRequest(cmd, http.MethodGet, "/metrics", nil)
	},
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Admin actions (requires --session of an admin)",
}

var adminStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the queue, every lobby and connection counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return doRequest(cmd, http.MethodGet, "/admin/state", nil)
	},
}

var readyAllCmd = &cobra.Command{
	Use:   "ready-all <lobby-id>",
	Short: "Mark every player in a ready check as ready",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return doRequest(cmd, http.MethodPost, "/admin/lobby/"+url.PathEscape(args[0])+"/ready-all", nil)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <lobby-id>",
	Short: "Cancel an open lobby",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		form := url.Values{}
		if reason != "" {
			form.Set("reason", reason)
		}
		return doRequest(cmd, http.MethodPost, "/admin/lobby/"+url.PathEscape(args[0])+"/cancel", form)
	},
}

var fillBotsCmd = &cobra.Command{
	Use:   "fill-bots",
	Short: "Add placeholder players to the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		return doRequest(cmd, http.MethodPost, "/admin/queue/bots?count="+strconv.Itoa(count), nil)
	},
}

var kickCmd = &cobra.Command{
	Use:   "kick <player-id>",
	Short: "Remove a player from the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return doRequest(cmd, http.MethodPost, "/admin/queue/kick/"+url.PathEscape(args[0]), nil)
	},
}

var ratingCmd = &cobra.Command{
	Use:   "rating <player-id> <rating>",
	Short: "Set the rating used for team balancing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("rating must be an integer: %w", err)
		}
		return doRequest(cmd, http.MethodPost, "/admin/players/"+url.PathEscape(args[0])+"/rating/"+args[1], nil)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect server configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load configuration from .env and the environment and validate it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Queue:       %s (lobby size %d)\n", cfg.Queue.ID, cfg.Queue.LobbySize)
		fmt.Fprintf(out, "Map pool:    %v\n", cfg.Queue.Lobby.MapPool)
		fmt.Fprintf(out, "Ready check: %s\n", cfg.Queue.Lobby.ReadyTimeout)
		fmt.Fprintf(out, "Ban turn:    %s\n", cfg.Queue.Lobby.BanTurnTimeout)
		fmt.Fprintf(out, "Policies:    leader=%s first-ban=%s\n", cfg.Queue.Lobby.LeaderPolicy, cfg.Queue.Lobby.FirstBanPolicy)
		fmt.Fprintf(out, "Grace:       %s\n", cfg.SessionGrace)
		fmt.Fprintf(out, "Admins:      %d\n", len(cfg.AdminIDs))
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration is invalid:\n%w", err)
		}
		fmt.Fprintln(out, "Configuration OK")
		return nil
	},
}

var vapidCmd = &cobra.Command{
	Use:   "vapid",
	Short: "Generate a VAPID key pair for Web Push",
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			return fmt.Errorf("generate VAPID keys: %w", err)
		}

		envContent := fmt.Sprintf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\nVAPID_SUBJECT=mailto:your-email@example.com\n",
			publicKey, privateKey)

		if out, _ := cmd.Flags().GetString("out"); out != "" {
			if err := os.WriteFile(out, []byte(envContent), 0600); err != nil {
				return fmt.Errorf("write keys: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Keys saved to:", out)
		}
		fmt.Fprint(cmd.OutOrStdout(), envContent)
		return nil
	},
}

func doRequest(cmd *cobra.Command, method, endpoint string, form url.Values) error {
	var body io.Reader
	if form != nil {
		body = bytes.NewBufferString(form.Encode())
	}
	req, err := http.NewRequestWithContext(cmd.Context(), method, host+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: session})
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	out := cmd.OutOrStdout()
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		data = pretty.Bytes()
	}
	if len(data) > 0 {
		fmt.Fprintln(out, string(bytes.TrimRight(data, "\n")))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
