// Package cli implements the chatctl terminal client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"relaychat-backend/internal/client"
)

const (
	keyServer = "server"
	keyToken  = "token"

	defaultServer = "http://localhost:8080"
)

var (
	version = "dev"
	commit  = "unknown"
)

// app carries what every command needs: config, I/O and a client factory.
type app struct {
	v          *viper.Viper
	configPath string
	in         *bufio.Reader
	out        io.Writer
	errOut     io.Writer
	timeout    time.Duration
	pollEvery  time.Duration
}

// NewRootCmd builds the chatctl command tree writing to out and reading
// confirmations from in.
func NewRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newApp(in, out, errOut).rootCmd(in)
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		v:         viper.New(),
		in:        bufio.NewReader(in),
		out:       out,
		errOut:    errOut,
		timeout:   30 * time.Second,
		pollEvery: 500 * time.Millisecond,
	}
}

func (a *app) rootCmd(in io.Reader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatctl",
		Short: "Chat with your webhook from the terminal",
		Long: `chatctl is a terminal client for a relaychat server.

Messages you send are stored in chat sessions and relayed to the webhook
configured in your settings; its replies appear as chat bubbles.

Quick Start:
  chatctl signup --email you@example.com
  chatctl login --email you@example.com
  chatctl webhook set --url https://example.com/hook --var apiKey=secret
  chatctl send "hello"`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default $HOME/.chatctl.yaml)")
	rootCmd.PersistentFlags().String(keyServer, "", "Server base URL (default "+defaultServer+")")
	_ = a.v.BindPFlag(keyServer, rootCmd.PersistentFlags().Lookup(keyServer))
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		a.signupCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.sessionsCmd(),
		a.historyCmd(),
		a.sendCmd(),
		a.webhookCmd(),
	)
	return rootCmd
}

// Execute runs chatctl against the process's standard streams.
func Execute() {
	if err := NewRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) loadConfig() error {
	a.v.SetDefault(keyServer, defaultServer)
	a.v.SetEnvPrefix("CHATCTL")
	a.v.AutomaticEnv()

	if a.configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		a.configPath = filepath.Join(home, ".chatctl.yaml")
	}
	a.v.SetConfigFile(a.configPath)
	a.v.SetConfigType("yaml")
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", a.configPath, err)
		}
	}
	return nil
}

func (a *app) saveToken(token string) error {
	a.v.Set(keyToken, token)
	if err := a.v.WriteConfigAs(a.configPath); err != nil {
		return fmt.Errorf("writing %s: %w", a.configPath, err)
	}
	return nil
}

func (a *app) client() *client.Client {
	return client.New(a.v.GetString(keyServer), a.v.GetString(keyToken), nil)
}

// authedClient fails early when there is no stored token.
func (a *app) authedClient() (*client.Client, error) {
	if a.v.GetString(keyToken) == "" {
		return nil, errors.New("not logged in; run `chatctl login` first")
	}
	return a.client(), nil
}

func (a *app) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

// confirm asks a yes/no question and defaults to no.
func (a *app) confirm(question string) bool {
	fmt.Fprintf(a.out, "%s [y/N]: ", question)
	line, _ := a.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// apiError renders field errors inline and returns the error for cobra.
func (a *app) apiError(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		fmt.Fprint(a.errOut, RenderFieldErrors(apiErr.Fields))
	}
	return err
}
