package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show a session's messages (default: the active session)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			if len(args) == 0 {
				state, err := c.ChatState(ctx)
				if err != nil {
					return a.apiError(err)
				}
				if state.ActiveSessionID == nil {
					fmt.Fprintln(a.out, "No active session. Pass a session id or send a message first.")
					return nil
				}
				fmt.Fprint(a.out, RenderHistory(state.Messages))
				return nil
			}

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}
			msgs, err := c.ListMessages(ctx, id)
			if err != nil {
				return a.apiError(err)
			}
			fmt.Fprint(a.out, RenderHistory(msgs))
			return nil
		},
	}
}

func (a *app) sendCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send a message to your webhook and show the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.TrimSpace(strings.Join(args, " "))
			if content == "" {
				return fmt.Errorf("message cannot be empty")
			}
			var sessionID *uuid.UUID
			if session != "" {
				id, err := uuid.Parse(session)
				if err != nil {
					return fmt.Errorf("invalid session id %q", session)
				}
				sessionID = &id
			}

			c, err := a.authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			resp, err := c.SendMessage(ctx, sessionID, content)
			if err != nil {
				return a.apiError(err)
			}
			fmt.Fprint(a.out, RenderMessage(resp.UserMessage))
			switch {
			case resp.RelayError != nil:
				fmt.Fprint(a.out, RenderRelayError(resp.RelayError))
			case resp.Reply != nil:
				fmt.Fprint(a.out, RenderMessage(*resp.Reply))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&session, "session", "s", "", "Session id (default: the active session, or a new one)")
	return cmd
}
