package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/watchtower/internal/catalog"
)

func newSOPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sop",
		Aliases: []string{"procedure"},
		Short:   "Inspect the procedure catalog",
	}

	cmd.AddCommand(newSOPListCmd())
	cmd.AddCommand(newSOPShowCmd())
	cmd.AddCommand(newSOPValidateCmd())
	cmd.AddCommand(newSOPMatchCmd())
	return cmd
}

// catalogFlags resolves the catalog from --file, then the config file,
// then the built-in catalog.
type catalogFlags struct {
	configPath string
	file       string
	explicit   func() bool
}

func (f *catalogFlags) register(cmd *cobra.Command) {
	f.explicit = addConfigFlag(cmd, &f.configPath)
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "catalog YAML file (overrides config)")
}

func (f *catalogFlags) load() (*catalog.Catalog, string, error) {
	path := f.file
	if path == "" {
		cfg, err := loadConfig(f.configPath, f.explicit())
		if err != nil {
			return nil, "", err
		}
		path = cfg.Catalog.Path
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, path, err
	}
	if path == "" {
		path = "built-in catalog"
	}
	return cat, path, nil
}

func newSOPListCmd() *cobra.Command {
	var flags catalogFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List procedures",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := flags.load()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTEPS\tTRIGGERS")
			for _, p := range cat.Procedures {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", p.ID, p.Title, len(p.Steps), len(p.Triggers))
			}
			return w.Flush()
		},
	}
	flags.register(cmd)
	return cmd
}

func newSOPShowCmd() *cobra.Command {
	var flags catalogFlags
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a procedure's steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := flags.load()
			if err != nil {
				return err
			}
			p := cat.Lookup(args[0])
			if p == nil {
				return fmt.Errorf("no procedure with id %q", args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", p.Title, p.ID)
			fmt.Fprintf(out, "Triggers: %s\n\n", strings.Join(p.Triggers, ", "))
			for i, s := range p.Steps {
				var marks []string
				if !s.RequiresConfirmation {
					marks = append(marks, "informational")
				}
				if s.Escalates {
					marks = append(marks, "hands off to supervisor")
				}
				if s.Image != "" {
					marks = append(marks, "image: "+s.Image)
				}
				fmt.Fprintf(out, "%d. %s", i+1, s.Instruction)
				if len(marks) > 0 {
					fmt.Fprintf(out, " [%s]", strings.Join(marks, "; "))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newSOPValidateCmd() *cobra.Command {
	var flags catalogFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the catalog for errors",
		Long:  "Loads and validates the catalog. Exits non-zero when a procedure is malformed, the same check serve runs at startup.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, path, err := flags.load()
			if err != nil {
				return err
			}
			steps := 0
			for _, p := range cat.Procedures {
				steps += len(p.Steps)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d procedures, %d steps OK\n", path, len(cat.Procedures), steps)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newSOPMatchCmd() *cobra.Command {
	var flags catalogFlags
	cmd := &cobra.Command{
		Use:   "match <message>",
		Short: "Show which procedure a guard message would start",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := flags.load()
			if err != nil {
				return err
			}
			msg := strings.Join(args, " ")
			p := cat.Match(msg)
			if p == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No procedure matches %q.\n", msg)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q starts %s (%s)\n", msg, p.Title, p.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
