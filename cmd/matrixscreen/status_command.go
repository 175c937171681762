package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"matrixscreen/internal/config"
	"matrixscreen/internal/deps"
	"matrixscreen/internal/preflight"
	"matrixscreen/internal/services"
)

type statusView struct {
	ConfigPath   string             `json:"config_path"`
	ConfigExists bool               `json:"config_exists"`
	Dependencies []dependencyView   `json:"dependencies"`
	StitchReady  bool               `json:"stitch_ready"`
	Checks       []preflight.Result `json:"checks"`
}

type dependencyView struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [experiment]",
		Short: "Check configuration, Fiji and directory access",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			root := ""
			if len(args) == 1 {
				expanded, err := config.ExpandPath(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				root = expanded
			}

			statuses := preflight.CheckSystemDeps(cfg)
			checks := preflight.RunAll(cfg, root)
			view := statusView{
				ConfigPath:   ctx.configPath,
				ConfigExists: ctx.configExists,
				Checks:       checks,
				StitchReady:  len(deps.Blocking(statuses)) == 0,
			}
			for _, s := range statuses {
				view.Dependencies = append(view.Dependencies, dependencyView{Name: s.Name, Command: s.Command, Available: s.Available, Detail: s.Detail})
			}

			colorize := shouldColorize(cmd.OutOrStdout())
			if err := emit(cmd, ctx, view, func() string {
				var b strings.Builder
				for _, line := range renderSectionHeader("Configuration", colorize) {
					b.WriteString(line + "\n")
				}
				source := view.ConfigPath
				if !view.ConfigExists {
					source += " (not found, defaults in use)"
				}
				b.WriteString(infoLine("Config", source) + "\n")
				b.WriteString(infoLine("Tile", fmt.Sprintf("%dx%d, overlap %g", cfg.Stitch.TileWidth, cfg.Stitch.TileHeight, cfg.Stitch.Overlap)) + "\n\n")

				for _, line := range renderSectionHeader("Dependencies", colorize) {
					b.WriteString(line + "\n")
				}
				for _, line := range dependencyLines(statuses, colorize) {
					b.WriteString(line + "\n")
				}
				if !view.StitchReady {
					b.WriteString(infoLine("Stitching", "unavailable until Fiji resolves") + "\n")
				}
				if len(checks) > 0 {
					b.WriteString("\n")
					for _, line := range renderSectionHeader("Directories", colorize) {
						b.WriteString(line + "\n")
					}
					for _, line := range preflightLines(checks, colorize) {
						b.WriteString(line + "\n")
					}
				}
				return b.String()
			}); err != nil {
				return err
			}

			if failed := preflight.Failed(checks); len(failed) > 0 {
				return services.Wrap(services.ErrValidation, "status", "preflight", fmt.Sprintf("%d directory check(s) failed", len(failed)), nil)
			}
			return nil
		},
	}
}
