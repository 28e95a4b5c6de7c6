package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"relaychat-backend/internal/models"
)

func (a *app) sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"s"},
		Short:   "Manage chat sessions",
	}
	cmd.AddCommand(
		a.sessionsListCmd(),
		a.sessionsNewCmd(),
		a.sessionsRenameCmd(),
		a.sessionsDeleteCmd(),
		a.sessionsExportCmd(),
	)
	return cmd
}

func (a *app) sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently active first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			state, err := c.ChatState(ctx)
			if err != nil {
				return a.apiError(err)
			}
			active := ""
			if state.ActiveSessionID != nil {
				active = state.ActiveSessionID.String()
			}
			fmt.Fprint(a.out, RenderSessions(state.Sessions, active))
			return nil
		},
	}
}

func (a *app) sessionsNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new [title]",
		Short: "Start a new chat session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			var title *string
			if len(args) == 1 {
				title = &args[0]
			}
			sess, err := c.CreateSession(ctx, title)
			if err != nil {
				return a.apiError(err)
			}
			fmt.Fprintf(a.out, "Created %s %s\n", titleStyle.Render(sess.Title), idStyle.Render(sess.ID.String()))
			return nil
		},
	}
}

func (a *app) sessionsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <session-id> <title>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			sess, err := c.RenameSession(ctx, id, args[1])
			if err != nil {
				return a.apiError(err)
			}
			fmt.Fprintf(a.out, "Renamed to %s\n", titleStyle.Render(sess.Title))
			return nil
		},
	}
}

func (a *app) sessionsDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete [session-id...]",
		Short: "Delete one or more sessions and their messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(a.out, "No sessions selected.")
				return nil
			}
			c, err := a.authedClient()
			if err != nil {
				return err
			}

			noun := "this session"
			if len(ids) > 1 {
				noun = fmt.Sprintf("these %d sessions", len(ids))
			}
			if !yes && !a.confirm("Delete "+noun+"? This cannot be undone.") {
				fmt.Fprintln(a.out, "Cancelled.")
				return nil
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()
			if len(ids) == 1 {
				if err := c.DeleteSession(ctx, ids[0]); err != nil {
					return a.apiError(err)
				}
				fmt.Fprintln(a.out, "Deleted 1 session.")
				return nil
			}
			n, err := c.DeleteSessions(ctx, ids)
			if err != nil {
				return a.apiError(err)
			}
			fmt.Fprintf(a.out, "Deleted %d sessions.\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// exportedSession is the export file layout.
type exportedSession struct {
	ID        string            `json:"id" yaml:"id"`
	Title     string            `json:"title" yaml:"title"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"updated_at"`
	Messages  []exportedMessage `json:"messages" yaml:"messages"`
}

type exportedMessage struct {
	Sender    string    `json:"sender" yaml:"sender"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

func (a *app) sessionsExportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export [session-id...]",
		Short: "Export sessions with their messages (yaml or json)",
		Long:  `Export the given sessions, or all of them when no id is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != "yaml" && format != "json" {
				return fmt.Errorf("unsupported format %q (use yaml or json)", format)
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			sessions, err := c.ListSessions(ctx)
			if err != nil {
				return a.apiError(err)
			}
			sessions = selectSessions(sessions, ids)

			doc := make([]exportedSession, 0, len(sessions))
			for _, s := range sessions {
				msgs, err := c.ListMessages(ctx, s.ID)
				if err != nil {
					return a.apiError(err)
				}
				doc = append(doc, toExport(s, msgs))
			}

			var w io.Writer = a.out
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if err := writeExport(w, format, doc); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(a.out, "Exported %d sessions to %s\n", len(doc), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func writeExport(w io.Writer, format string, doc []exportedSession) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

func toExport(s models.SessionResponse, msgs []models.MessageResponse) exportedSession {
	out := exportedSession{
		ID:        s.ID.String(),
		Title:     s.Title,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
		Messages:  make([]exportedMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		out.Messages = append(out.Messages, exportedMessage{
			Sender:    m.Sender,
			Content:   m.Content,
			Timestamp: time.UnixMilli(m.Timestamp).UTC(),
		})
	}
	return out
}

func selectSessions(all []models.SessionResponse, ids []uuid.UUID) []models.SessionResponse {
	if len(ids) == 0 {
		return all
	}
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]models.SessionResponse, 0, len(ids))
	for _, s := range all {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid session id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
