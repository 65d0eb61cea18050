// Command lattice is the CLI front end for the file-based task store
// implemented by internal/store (spec.md §6).
package main

import (
	"context"
	"os"

	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/lattice-dev/lattice/internal/event"
	"github.com/lattice-dev/lattice/internal/fsops"
	"github.com/lattice-dev/lattice/internal/store"
	"github.com/lattice-dev/lattice/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	rootFlag    string
	actorFlag   string
	modelFlag   string
	sessionFlag string
	jsonOutput  bool
	quietFlag   bool
	verboseFlag bool

	st            *store.Store
	telemetryStop telemetry.Shutdown
)

var rootCmd = &cobra.Command{
	Use:           "lattice",
	Short:         "File-based, agent-native task coordination store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		shutdown, err := telemetry.InitFromEnv(ctx)
		if err != nil {
			return err
		}
		telemetryStop = shutdown

		if cmd.Name() == "init" {
			return nil
		}
		root, err := resolveRoot()
		if err != nil {
			return err
		}
		st = store.New(root)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if telemetryStop != nil {
			return telemetryStop(context.Background())
		}
		return nil
	},
}

func resolveRoot() (string, error) {
	if rootFlag != "" {
		return rootFlag, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := fsops.FindRoot(cwd)
	if err != nil {
		return "", err
	}
	if root == "" {
		return "", errs.New(errs.NotFound, "no .lattice directory found (run `lattice init` first)")
	}
	return root, nil
}

// currentActor resolves --actor, then LATTICE_ACTOR, then config's
// default_actor (spec.md §6.4).
func currentActor() (event.Actor, error) {
	raw := actorFlag
	if raw == "" {
		raw = os.Getenv("LATTICE_ACTOR")
	}
	if raw == "" && st != nil {
		if cfg, err := st.LoadConfig(); err == nil {
			raw = cfg.DefaultActor
		}
	}
	if raw == "" {
		return event.Actor{}, errs.New(errs.InvalidActor, "no actor specified; use --actor or set LATTICE_ACTOR")
	}
	return event.NewRawActor(raw)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "project root (default: auto-discover .lattice/, or $LATTICE_ROOT)")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "actor for event attribution (default: $LATTICE_ACTOR)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "model identifier (accepted but not recorded on events)")
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "session identifier (accepted but not recorded on events)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output a JSON envelope instead of human-readable text")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose diagnostic output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(createCmd, updateCmd, statusCmd, assignCmd)
	rootCmd.AddCommand(commentCmd, commentEditCmd, commentDeleteCmd, reactCmd, unreactCmd)
	rootCmd.AddCommand(linkCmd, unlinkCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(archiveCmd, unarchiveCmd)
	rootCmd.AddCommand(branchLinkCmd, branchUnlinkCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(listCmd, showCmd, eventsCmd, nextCmd, planCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(resourceCmd)
	rootCmd.AddCommand(doctorCmd, rebuildCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(errs.ExitCode(err))
	}
}
