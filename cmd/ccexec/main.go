// Package main is the entry point for ccexec, the cloud-side task
// executor. A GitHub Actions workflow invokes it on repository_dispatch:
// it asks the Anthropic Messages API for a plan, runs the vetted
// commands against the checkout, writes the outcome to GITHUB_OUTPUT,
// and notifies the originating Telegram chat.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/Everest18/claude-code-telegram-control/internal/anthropic"
	"github.com/Everest18/claude-code-telegram-control/internal/cloudexec"
	"github.com/Everest18/claude-code-telegram-control/internal/telegram"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ccexec",
		Short:         "Execute a dispatched task in a CI runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print ccexec version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("ccexec %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func runCmd() *cobra.Command {
	var (
		taskID    string
		taskDesc  string
		chatID    int64
		model     string
		maxTokens int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one task and report the result",
		Long: `Run one task end to end: request a plan from the model, execute the
vetted commands, and publish the outcome.

Flags fall back to the TASK_ID, TASK, and CHAT_ID environment variables,
which is how the repository_dispatch workflow passes the client payload.
The Anthropic API key comes from ANTHROPIC_API_KEY. When TELEGRAM_BOT_TOKEN
is set and a chat ID is present, the originating chat is notified on
completion. When GITHUB_OUTPUT is set, "result" and "has_changes" are
appended to it for later workflow steps.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if taskID == "" {
				taskID = os.Getenv("TASK_ID")
			}
			if taskDesc == "" {
				taskDesc = os.Getenv("TASK")
			}
			if chatID == 0 {
				if raw := os.Getenv("CHAT_ID"); raw != "" {
					parsed, err := strconv.ParseInt(raw, 10, 64)
					if err != nil {
						return fmt.Errorf("parsing CHAT_ID %q: %w", raw, err)
					}
					chatID = parsed
				}
			}
			if strings.TrimSpace(taskDesc) == "" {
				return fmt.Errorf("no task: pass --task or set TASK")
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			client, err := anthropic.NewClient(anthropic.Config{
				Model:     model,
				MaxTokens: maxTokens,
			})
			if err != nil {
				return fmt.Errorf("creating completion client: %w", err)
			}

			var notifier cloudexec.Notifier
			if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" && chatID != 0 {
				notifier = &telegramNotifier{
					client: telegram.NewClient(token, telegram.DefaultBaseURL),
				}
			}

			engine, err := cloudexec.NewEngine(cloudexec.Config{
				Client:   client,
				Notifier: notifier,
				Logger:   logger,
			})
			if err != nil {
				return fmt.Errorf("creating engine: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			logger.Info("running task", "task_id", taskID, "model", client.Model())
			result, err := engine.Run(ctx, cloudexec.Request{
				TaskID:      taskID,
				Description: taskDesc,
				ChatID:      chatID,
			})
			if err != nil {
				return fmt.Errorf("running task: %w", err)
			}

			if path := os.Getenv("GITHUB_OUTPUT"); path != "" {
				outputs := map[string]string{
					"result":      result.Summary(),
					"has_changes": strconv.FormatBool(result.HasChanges),
				}
				if err := cloudexec.WriteGitHubOutput(path, outputs); err != nil {
					return fmt.Errorf("writing workflow output: %w", err)
				}
			}

			fmt.Println(result.Summary())

			// A failed command means a failed job. The workflow's
			// notification step runs under if: always(), so the chat
			// still hears about it.
			if result.Failed {
				return fmt.Errorf("task %s: command execution failed, see transcript", taskID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "task identifier (falls back to $TASK_ID)")
	cmd.Flags().StringVar(&taskDesc, "task", "", "task description (falls back to $TASK)")
	cmd.Flags().Int64Var(&chatID, "chat-id", 0, "chat to notify on completion (falls back to $CHAT_ID)")
	cmd.Flags().StringVar(&model, "model", "", "model to use (defaults to the client's)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "completion token cap (defaults to the client's)")
	return cmd
}

// telegramNotifier sends the completion message through the Bot API.
type telegramNotifier struct {
	client *telegram.Client
}

func (n *telegramNotifier) NotifyCompletion(ctx context.Context, chatID int64, text string) error {
	_, err := n.client.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: chatID,
		Text:   text,
	})
	return err
}
