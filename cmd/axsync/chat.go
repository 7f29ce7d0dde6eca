package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentx/assistant-core/internal/model"
	"github.com/agentx/assistant-core/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Manage chat sessions and history",
}

var chatNewAgent string

var chatNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Start a new chat session",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		s, outcome, err := a.chats.CreateSession(ctx, strings.Join(args, " "), chatNewAgent)
		if err != nil {
			fatalf("failed to create session: %v", err)
		}
		printWriteResult(outcome, fmt.Sprintf("session %d %q", s.ID, s.Title))
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send <session-id> <message>",
	Short: "Append a message to a session",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		sessionID := parseID(args[0])
		msg, outcome, err := a.chats.AppendMessage(ctx, sessionID, model.RoleUser, strings.Join(args[1:], " "))
		if err != nil {
			fatalf("%v", err)
		}
		printWriteResult(outcome, fmt.Sprintf("message %d in session %d", msg.ID, msg.SessionID))
	},
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		sessions, err := a.chats.ListSessions(ctx)
		if err != nil {
			fatalf("failed to list sessions: %v", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions.")
			return
		}
		for _, s := range sessions {
			line := fmt.Sprintf("%d %s", s.ID, s.Title)
			if s.AgentName != "" {
				line += " " + ui.RenderDim("("+s.AgentName+")")
			}
			if !s.Synced {
				line += " " + ui.RenderWarn("*")
			}
			fmt.Println(line)
		}
	},
}

var chatLogCmd = &cobra.Command{
	Use:   "log <session-id>",
	Short: "Show a session's messages",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		sessionID := parseID(args[0])
		msgs, err := a.chats.Messages(ctx, sessionID)
		if err != nil {
			fatalf("%v", err)
		}
		for _, m := range msgs {
			role := m.Role
			if role == model.RoleUser {
				role = ui.RenderAccent(role)
			}
			fmt.Printf("%s %s: %s\n", ui.RenderDim(m.CreatedAt.Format("15:04")), role, m.Content)
		}
	},
}

var chatRmCmd = &cobra.Command{
	Use:   "rm <session-id>",
	Short: "Delete a chat session and its messages",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		id := parseID(args[0])
		outcome, err := a.chats.DeleteSession(ctx, id)
		if err != nil {
			fatalf("%v", err)
		}
		printWriteResult(outcome, fmt.Sprintf("session %d deleted", id))
	},
}

func init() {
	chatNewCmd.Flags().StringVar(&chatNewAgent, "agent", "", "agent name for the session")

	chatCmd.AddCommand(chatNewCmd)
	chatCmd.AddCommand(chatSendCmd)
	chatCmd.AddCommand(chatListCmd)
	chatCmd.AddCommand(chatLogCmd)
	chatCmd.AddCommand(chatRmCmd)
	rootCmd.AddCommand(chatCmd)
}
