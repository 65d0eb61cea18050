package main

import (
	"fmt"
	"os"

	"github.com/lattice-dev/lattice/internal/config"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new project's .lattice directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := rootFlag
		if root == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			root = cwd
		}
		layout := fsops.NewLayout(root)
		if fsops.Exists(layout.Config()) {
			return errs.New(errs.Conflict, "%s is already initialized", root)
		}
		if err := layout.EnsureDirs(); err != nil {
			return errs.Wrap(errs.WriteError, err, "init: create project directories")
		}

		s := store.New(root)
		if err := s.SaveConfig(cmd.Context(), config.Default()); err != nil {
			return err
		}

		printData(root, func() {
			if !quietFlag {
				fmt.Println("initialized lattice project at " + root)
			}
		})
		return nil
	},
}
