package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tutorlink/chatkit/internal/chat"
	"github.com/tutorlink/chatkit/internal/transport"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"convos"},
	Short:   "List conversations with unread counts",
	Long: `List your conversations, newest activity first, with unread counts and
last-message previews.

Examples:
  chatkit conversations
  chatkit convos -v`,
	RunE: runConversations,
}

func runConversations(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// No realtime needed for a one-shot listing; a disconnected socket
	// keeps the store's event subscriptions inert.
	sock := transport.NewSocket(cfg.WSURL, logger)
	store := chat.New(apiClient, sock, cfg.UserID, logger)
	defer store.Close()

	if err := store.LoadConversations(ctx); err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}

	convs := store.Conversations()
	if len(convs) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}

	fmt.Printf("Conversations (%d, %d unread):\n\n", len(convs), store.TotalUnread())
	for _, c := range convs {
		name := "(unknown)"
		if other, ok := c.Counterpart(cfg.UserID); ok {
			name = other.Name
		}
		unreadMark := ""
		if c.Unread > 0 {
			unreadMark = fmt.Sprintf(" (%d unread)", c.Unread)
		}
		fmt.Printf("- %s%s\n", name, unreadMark)
		if c.LastMessage != "" {
			fmt.Printf("  %s  (%s)\n", truncate(c.LastMessage, 60), c.LastMessageAt.Format("Jan 2 15:04"))
		}
		if verbose {
			fmt.Printf("  ID: %s\n", c.ID)
		}
	}

	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
