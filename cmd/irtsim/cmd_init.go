package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/irt-tools/irtsim/internal/wizard"
)

func newInitCommand() *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Interactively scaffold a study file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initialName := ""
			if len(args) == 1 {
				initialName = args[0]
			}

			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", output)
				}
			}

			spec, err := wizard.RunStudyWizard(os.Stdin, os.Stdout, initialName)
			if err != nil {
				return err
			}

			content, err := wizard.GenerateStudyYAML(spec)
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}

			fmt.Printf("Study file written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "study.yaml", "Where to write the study file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
