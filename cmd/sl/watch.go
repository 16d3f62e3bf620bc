package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schoolline/internal/client"
	"github.com/alfredjeanlab/schoolline/internal/events"
	"github.com/alfredjeanlab/schoolline/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream engine events as they happen",
	GroupID: "ops",
	Long: `Stream engine events as they happen.

Events come from NATS when a NATS URL is known (--nats, SL_NATS_URL or
the active remote), otherwise from the server's /v1/events/stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		natsURL, _ := cmd.Flags().GetString("nats")
		topics, _ := cmd.Flags().GetStringSlice("topic")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		if natsURL != "" {
			return watchNATS(ctx, out, natsURL, topics)
		}
		return watchSSE(ctx, out, topics)
	},
}

func defaultWatchNATSURL() string {
	if s := os.Getenv("SL_NATS_URL"); s != "" {
		return s
	}
	return activeRemoteNATSURL()
}

func init() {
	watchCmd.Flags().String("nats", defaultWatchNATSURL(), "NATS URL to subscribe to")
	watchCmd.Flags().StringSlice("topic", []string{events.TopicAll}, "topic patterns to follow")
}

// watchNATS prints every message on topics until ctx is done.
func watchNATS(ctx context.Context, w io.Writer, natsURL string, topics []string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	merged := make(chan events.Message, 64)
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to events: %w", err)
		}
		defer cancel()
		go func() {
			for msg := range ch {
				select {
				case merged <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-merged:
			fmt.Fprintln(w, formatEvent(time.Now(), msg))
		}
	}
}

// watchSSE prints events from the server's event stream until ctx is done.
func watchSSE(ctx context.Context, w io.Writer, topics []string) error {
	return slClient.StreamEvents(ctx, &client.StreamRequest{Topics: topics}, func(e *client.StreamEvent) error {
		fmt.Fprintln(w, formatEvent(time.Now(), events.Message{Topic: e.Topic, Data: e.Data}))
		return nil
	})
}

// formatEvent renders one event as a single log-style line. Unknown topics
// fall back to the raw payload.
func formatEvent(at time.Time, msg events.Message) string {
	if jsonOutput {
		return string(msg.Data)
	}
	prefix := ui.RenderMuted(at.Format("15:04:05")) + " " + ui.RenderAccent(msg.Topic)

	evt, err := events.Decode(msg)
	if err != nil {
		return prefix + " " + strings.TrimSpace(string(msg.Data))
	}
	var detail string
	switch e := evt.(type) {
	case *events.SessionStarted:
		detail = fmt.Sprintf("session=%s phone=%s account=%q org=%q", e.SessionID, e.PhoneNumber, e.AccountName, e.Organization)
	case *events.TurnCompleted:
		if t := e.Turn; t != nil {
			detail = fmt.Sprintf("session=%s input=%q %s outcome=%s %dms", t.SessionID, t.Input, levelChange(t.LevelBefore, t.LevelAfter), t.Outcome, t.DurationMS)
		}
	case *events.CallerUnregistered:
		detail = fmt.Sprintf("session=%s phone=%s", e.SessionID, e.PhoneNumber)
	case *events.CollaboratorFailed:
		detail = fmt.Sprintf("session=%s feature=%s level=%s error=%q", e.SessionID, e.Feature, e.Level, e.Error)
	}
	return prefix + " " + detail
}
