package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newConnectCmd() *cobra.Command {
	var (
		lobbyCode string
		count     int
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect and stream table updates",
		Long: `Open a connection to the server. While connected you are shown as online
in the user table; disconnecting marks you offline.

The stream starts with the current rows and then delivers:
  - lobby-update: a lobby row changed (only the --lobby one, if given)
  - user-update: a user row changed

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return streamEvents(ctx, cmd.OutOrStdout(), lobbyCode, count)
		},
	}

	cmd.Flags().StringVar(&lobbyCode, "lobby", "", "Only receive updates for this lobby")
	cmd.Flags().IntVar(&count, "count", 0, "Disconnect after this many update events (0 = until interrupted)")

	return cmd
}

// StreamEvent is one parsed frame of the connection stream
type StreamEvent struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func streamEvents(ctx context.Context, w io.Writer, lobbyCode string, count int) error {
	u := strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/connect"
	if lobbyCode != "" {
		u += "?lobby=" + url.QueryEscape(lobbyCode)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	// no client timeout: the stream is open-ended
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Code != "" {
			return &errResp.Error
		}
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	out := NewOutput(cfg.Output, w)
	seen := 0

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if currentEvent != "" {
				printEvent(out, currentEvent, strings.Join(dataLines, "\n"))
				if currentEvent != "connected" {
					seen++
				}
				if count > 0 && seen >= count {
					return nil
				}
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("stream error: %w", err)
	}
	return nil
}

func printEvent(out *Output, event, data string) {
	now := time.Now()

	if out.format == "json" {
		raw := json.RawMessage(data)
		if !json.Valid(raw) {
			raw, _ = json.Marshal(data)
		}
		line, _ := json.Marshal(StreamEvent{Time: now, Event: event, Data: raw})
		fmt.Fprintln(out.w, string(line))
		return
	}

	fmt.Fprintf(out.w, "[%s] %s: %s\n", now.Format("2006-01-02 15:04:05"), event, data)
}
