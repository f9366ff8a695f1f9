package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/checklist/client"
	"github.com/c360studio/checklist/storage"
	"github.com/c360studio/checklist/tui"
)

// clientCmds returns the commands that talk to a running checklist API.
func clientCmds() []*cobra.Command {
	var server string
	addServerFlag := func(cmd *cobra.Command) *cobra.Command {
		cmd.Flags().StringVar(&server, "server", client.DefaultBaseURL, "Checklist API base URL")
		return cmd
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the checklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := client.New(server).Get(commandContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.Render(items))
			return nil
		},
	}

	check := &cobra.Command{
		Use:   "check <name>",
		Short: "Check an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setChecked(cmd, server, args[0], true)
		},
	}

	uncheck := &cobra.Command{
		Use:   "uncheck <name>",
		Short: "Uncheck an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setChecked(cmd, server, args[0], false)
		},
	}

	interactive := &cobra.Command{
		Use:   "tui",
		Short: "Interactive checklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(commandContext(cmd), client.New(server))
		},
	}

	return []*cobra.Command{
		addServerFlag(list),
		addServerFlag(check),
		addServerFlag(uncheck),
		addServerFlag(interactive),
	}
}

func setChecked(cmd *cobra.Command, server, name string, checked bool) error {
	_, err := client.New(server).SetChecked(commandContext(cmd), name, checked)
	if errors.Is(err, storage.ErrItemNotFound) {
		return fmt.Errorf("no item named %q", name)
	}
	if err != nil {
		return err
	}

	verb := "Unchecked"
	if checked {
		verb = "Checked"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s\n", verb, name)
	return nil
}

func validateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a checklist file against the checklist schema",
		Long: `Validate checks that a checklist file is an array of items with a
non-empty string name and a boolean checked flag. Without an argument the
configured checklist file is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := g.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.ChecklistPath()
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read checklist: %w", err)
			}

			if err := storage.ValidateDocument(data); err != nil {
				var se *storage.SchemaError
				if errors.As(err, &se) {
					for _, v := range se.Violations {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", v)
					}
				}
				return fmt.Errorf("%s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", path)
			return nil
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
