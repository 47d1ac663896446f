package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/Everest18/claude-code-telegram-control/internal/config"
	"github.com/Everest18/claude-code-telegram-control/pkg/app"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// initParams collects the wizard answers that feed the config template.
type initParams struct {
	Token         string
	ChatID        string
	BridgeDir     string
	Mode          string
	EnableCloud   bool
	Repo          string
	EnableGateway bool
	Bind          string
	Bearer        string

	// Derived from BridgeDir after the form runs. The agent's hooks
	// must point at the same files, so they are written out literally.
	StatusFile   string
	ApprovalFile string
	ResponseFile string
	TasksDir     string
}

var tokenShape = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

var configTmpl = template.Must(template.New("config").Parse(`version: "1"

modules:
  store.sqlite: {}

  channel.telegram:
{{- if .Token}}
    token: "{{.Token}}"
{{- else}}
    # token falls back to $TELEGRAM_BOT_TOKEN
{{- end}}
    allow_users:
      - "{{.ChatID}}"

  executor.local:
    status_file: "{{.StatusFile}}"
    approval_file: "{{.ApprovalFile}}"
    response_file: "{{.ResponseFile}}"
    tasks_dir: "{{.TasksDir}}"
    owner_chat: "{{.ChatID}}"

  heartbeat.monitor: {}

  cron.scheduler: {}
{{- if .EnableCloud}}

  executor.cloud:
    repo: "{{.Repo}}"
    # token falls back to $GITHUB_TOKEN
{{- end}}
{{- if .EnableGateway}}

  gateway.http:
    bind: "{{.Bind}}"
    auth:
      bearer_token: "{{.Bearer}}"
{{- end}}

approval:
  policy:
    default: ask

dispatch:
  default_mode: {{.Mode}}
`))

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup: generate a ccontrol.yaml",
		RunE: func(_ *cobra.Command, _ []string) error {
			if output == "" {
				output = defaultInitPath()
			}
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", output)
				}
			}

			params, err := runInitForm()
			if err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return errors.New("setup aborted")
				}
				return err
			}

			if err := writeInitConfig(output, params); err != nil {
				return err
			}

			// Round-trip through the loader so the operator never ends up
			// with a file the daemon rejects.
			cfg, err := config.Load(output)
			if err != nil {
				return fmt.Errorf("generated config does not load: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("generated config does not validate: %w", err)
			}

			fmt.Printf("Wrote %s\n\n", output)
			fmt.Printf("Point the agent's status and approval hooks at:\n  %s\n\n", params.BridgeDir)
			if params.EnableGateway {
				fmt.Printf("Gateway bearer token (keep it secret):\n  %s\n\n", params.Bearer)
			}
			if params.EnableCloud {
				fmt.Println("Cloud execution needs GITHUB_TOKEN in the daemon's environment.")
			}
			fmt.Println("Next: ccontrol start, or ccontrol service install")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the config (default: XDG config dir)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func runInitForm() (initParams, error) {
	params := initParams{
		BridgeDir: filepath.Join(app.DefaultDataDir(), "bridge"),
		Mode:      "auto",
		Bind:      "127.0.0.1:8080",
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("From @BotFather. Leave empty to read $TELEGRAM_BOT_TOKEN at runtime.").
				EchoMode(huh.EchoModePassword).
				Value(&params.Token).
				Validate(func(s string) error {
					if s != "" && !tokenShape.MatchString(s) {
						return errors.New("expected <bot_id>:<secret>")
					}
					return nil
				}),
			huh.NewInput().
				Title("Your Telegram chat ID").
				Description("The only chat the bot will answer. @userinfobot tells you yours.").
				Value(&params.ChatID).
				Validate(func(s string) error {
					if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err != nil {
						return errors.New("must be a numeric chat ID")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Bridge directory").
				Description("Where the agent handshake files live. The agent's hooks must use the same paths.").
				Value(&params.BridgeDir).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("directory is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Default execution mode").
				Options(
					huh.NewOption("Auto — local when the agent is running, cloud otherwise", "auto"),
					huh.NewOption("Local — always hand tasks to the local agent", "local"),
					huh.NewOption("Cloud — always dispatch to GitHub Actions", "cloud"),
				).
				Value(&params.Mode),
			huh.NewConfirm().
				Title("Enable cloud execution via GitHub Actions?").
				Value(&params.EnableCloud),
			huh.NewConfirm().
				Title("Enable the HTTP gateway (status API, webhooks)?").
				Value(&params.EnableGateway),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub repository").
				Description("owner/name of the repo whose workflow runs ccexec.").
				Value(&params.Repo).
				Validate(func(s string) error {
					parts := strings.Split(strings.TrimSpace(s), "/")
					if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
						return errors.New("expected owner/name")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return !params.EnableCloud }),
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway listen address").
				Value(&params.Bind).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("address is required")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return !params.EnableGateway }),
	)

	if err := form.Run(); err != nil {
		return initParams{}, err
	}

	// An empty token stays empty: the channel module reads
	// TELEGRAM_BOT_TOKEN at startup, and writing an ${...} reference
	// here would make the load check below fail on hosts that have
	// not exported it yet.
	params.Token = strings.TrimSpace(params.Token)
	params.ChatID = strings.TrimSpace(params.ChatID)
	params.Repo = strings.TrimSpace(params.Repo)
	params.Bind = strings.TrimSpace(params.Bind)

	params.BridgeDir = strings.TrimSpace(params.BridgeDir)
	params.StatusFile = filepath.Join(params.BridgeDir, "claude_status.txt")
	params.ApprovalFile = filepath.Join(params.BridgeDir, "claude_approval.txt")
	params.ResponseFile = filepath.Join(params.BridgeDir, "claude_response.txt")
	params.TasksDir = filepath.Join(params.BridgeDir, "tasks")

	if params.EnableGateway {
		bearer, err := randomToken()
		if err != nil {
			return initParams{}, err
		}
		params.Bearer = bearer
	}
	return params, nil
}

func writeInitConfig(path string, params initParams) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	if err := configTmpl.Execute(f, params); err != nil {
		f.Close()
		return fmt.Errorf("rendering config: %w", err)
	}
	return f.Close()
}

func defaultInitPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdg, "ccontrol", "ccontrol.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ccontrol", "ccontrol.yaml")
}

func randomToken() (string, error) {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating gateway token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
