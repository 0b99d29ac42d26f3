package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/irt-tools/irtsim/internal/validation"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <study.yaml>",
		Short: "Validate a study file against its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			errs, err := validation.ValidateStudyFile(path)
			if err != nil {
				return err
			}
			if len(errs) > 0 {
				fmt.Printf("%s has %d problem(s):\n", path, len(errs))
				for _, e := range errs {
					fmt.Printf("  - %s\n", e)
				}
				return fmt.Errorf("validation failed")
			}

			fmt.Printf("%s is valid\n", path)
			return nil
		},
	}
	return cmd
}
