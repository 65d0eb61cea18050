package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or update project configuration",
}

var configReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Print the project's effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := st.ReadConfig()
		if err != nil {
			return err
		}
		printData(cfg, func() {
			fmt.Printf("project_code=%s subproject_code=%s default_status=%s default_priority=%s\n",
				cfg.ProjectCode, cfg.SubprojectCode, cfg.DefaultStatus, cfg.DefaultPriority)
		})
		return nil
	},
}

var configSetProjectCodeCmd = &cobra.Command{
	Use:   "set-project-code <code>",
	Short: "Set the project's short-ID prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := st.SetProjectCode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printData(cfg, func() { ok() })
		return nil
	},
}

var configSetSubprojectCodeCmd = &cobra.Command{
	Use:   "set-subproject-code <code>",
	Short: "Set the project's subproject code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := st.SetSubprojectCode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printData(cfg, func() { ok() })
		return nil
	},
}

func init() {
	configCmd.AddCommand(configReadCmd, configSetProjectCodeCmd, configSetSubprojectCodeCmd)
}
