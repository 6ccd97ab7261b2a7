// Command chat is a terminal rendition of the browser widget. It reads one
// message per line and prints the relay's reply.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"gemini-relay/internal/client"
	"gemini-relay/internal/logger"
)

var (
	userPrompt  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("tu> ")
	replyPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("gemini> ")
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

type chatCommander struct {
	relayURL  string
	sessionID string
	debug     bool
	endOnExit bool
}

const chatLongDesc = `Interactive chat with the Gemini relay.

Each line is sent to POST /api/chat as one message. When the relay runs in
session mode the conversation id it assigns is reused for the following
messages. Type /exit or press Ctrl+D to quit.

Examples:
  chat
  chat --relay http://localhost:3000
  chat --session 5f0c... --end-session`

func newChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:          "chat",
		Short:        "Interactive chat with the Gemini relay",
		Long:         chatLongDesc,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.relayURL, "relay", "r", envOrDefault("RELAY_URL", "http://localhost:3000"), "Relay base URL")
	cmd.Flags().StringVarP(&cmder.sessionID, "session", "s", "", "Resume an existing conversation id")
	cmd.Flags().BoolVar(&cmder.endOnExit, "end-session", false, "Drop the conversation history on exit")
	cmd.Flags().BoolVarP(&cmder.debug, "debug", "d", false, "Log diagnostic detail to stderr")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	level := slog.LevelInfo
	if c.debug {
		level = slog.LevelDebug
	}
	log := logger.New(logger.WithOutput(os.Stderr), logger.WithFormat(logger.FormatPretty), logger.WithLevel(level))

	relay := client.New(c.relayURL, client.WithLogger(log), client.WithSessionID(c.sessionID))

	fmt.Fprintf(out, "\n  %s %s\n", dimStyle.Render("Relay:"), c.relayURL)
	fmt.Fprintf(out, "  %s\n\n", dimStyle.Render("Scrivi un messaggio e premi Invio. /exit o Ctrl+D per uscire."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		fmt.Fprintln(out, dimStyle.Render(client.PendingText))
		text, err := relay.Send(ctx, input)
		display, ok := relay.Render(text, err)
		if !ok {
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if err != nil {
			fmt.Fprintf(out, "%s%s\n\n", replyPrompt, errStyle.Render(display))
			continue
		}
		fmt.Fprintf(out, "%s%s\n\n", replyPrompt, display)
	}

	if c.endOnExit {
		if id := relay.SessionID(); id != "" {
			if err := relay.EndSession(context.Background(), id); err != nil {
				return fmt.Errorf("ending session: %w", err)
			}
			fmt.Fprintln(out, dimStyle.Render("Conversazione chiusa."))
		}
	}
	return scanner.Err()
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newChatCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
