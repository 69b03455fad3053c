// Package main provides the entry point for the tweet-bot-ai CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// Build info set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func buildVersion() string {
	if commit == "none" {
		return version
	}
	short := commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", version, short)
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := fang.Execute(ctx, newRootCmd(), fang.WithVersion(buildVersion()))
	return exitCode(err)
}

// exitCode maps a command error to the process status. Workflows only
// return errors for fatal conditions, so any error fails the invocation.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

type rootOptions struct {
	configPath string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "tweet-bot-ai",
		Short: "An AI-driven X (Twitter) bot with an idempotent action ledger",
		Long: `tweet-bot-ai posts generated tweets, replies to mentions, quotes and likes
search results. Every reply and post is recorded in a durable ledger so
repeated or scheduled runs never act on the same item twice.`,
		Version:       buildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML settings file (default $BOT_CONFIG)")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "env files to load before reading the environment")

	cmd.AddGroup(
		&cobra.Group{ID: "workflows", Title: "Workflows:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
	)
	for _, c := range []*cobra.Command{
		newPostCmd(opts),
		newReplyCmd(opts),
		newQuoteCmd(opts),
		newLikeCmd(opts),
	} {
		c.GroupID = "workflows"
		cmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{
		newScheduleCmd(opts),
		newChanceCmd(opts),
		newReconcileCmd(opts),
		newHistoryCmd(opts),
	} {
		c.GroupID = "ops"
		cmd.AddCommand(c)
	}
	return cmd
}
