package main

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// noopProgram satisfies service.Interface for control actions. The
// installed unit invokes "ccontrol start" directly, so the daemon's own
// signal handling covers start and stop.
type noopProgram struct{}

func (noopProgram) Start(service.Service) error { return nil }
func (noopProgram) Stop(service.Service) error  { return nil }

func serviceCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:       "service [install|uninstall|start|stop|restart|status]",
		Short:     "Manage ccontrol as a system service",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "restart", "status"},
		RunE: func(_ *cobra.Command, args []string) error {
			svcConfig := &service.Config{
				Name:        "ccontrol",
				DisplayName: "ccontrol",
				Description: "Telegram remote control for a local Claude Code agent",
				Arguments:   []string{"start"},
			}
			if cfgPath != "" {
				svcConfig.Arguments = append(svcConfig.Arguments, "--config", cfgPath)
			}

			svc, err := service.New(noopProgram{}, svcConfig)
			if err != nil {
				return fmt.Errorf("creating service handle: %w", err)
			}

			action := args[0]
			if action == "status" {
				status, err := svc.Status()
				if err != nil {
					return fmt.Errorf("querying service status: %w", err)
				}
				fmt.Println(statusString(status))
				return nil
			}

			if err := service.Control(svc, action); err != nil {
				return fmt.Errorf("%s: %w", action, err)
			}
			fmt.Printf("Service %s: done\n", action)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Config path baked into the installed unit")
	return cmd
}

func statusString(s service.Status) string {
	switch s {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
