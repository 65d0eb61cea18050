package main

import (
	"fmt"
	"time"

	"github.com/lattice-dev/lattice/internal/resource"
	"github.com/lattice-dev/lattice/internal/snapshot"
	"github.com/spf13/cobra"
)

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage leased resources (spec.md §4.6)",
}

var (
	resourceMaxHolders int
	resourceTTL        int
	resourceDesc       string
)

var resourceCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a new resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		snap, err := st.Resources.Create(cmd.Context(), args[0], resourceMaxHolders, resourceTTL, resourceDesc, actor)
		if err != nil {
			return err
		}
		printData(snap, func() { printResourceSummary(snap) })
		return nil
	},
}

var (
	acquireTaskID  string
	acquireForce   bool
	acquireWait    bool
	acquireTimeout time.Duration
)

var resourceAcquireCmd = &cobra.Command{
	Use:   "acquire <name>",
	Short: "Acquire (or heartbeat, if already held) a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		cfg, err := st.LoadConfig()
		if err != nil {
			return err
		}
		snap, err := st.Resources.Acquire(cmd.Context(), cfg, args[0], actor, resource.AcquireOptions{
			TaskID: acquireTaskID, Force: acquireForce, Wait: acquireWait, Timeout: acquireTimeout,
		})
		if err != nil {
			return err
		}
		printData(snap, func() { printResourceSummary(snap) })
		return nil
	},
}

var resourceReleaseCmd = &cobra.Command{
	Use:   "release <name>",
	Short: "Release a held resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		snap, err := st.Resources.Release(cmd.Context(), args[0], actor)
		if err != nil {
			return err
		}
		printData(snap, func() { ok() })
		return nil
	},
}

var resourceHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat <name>",
	Short: "Extend the current actor's lease on a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := currentActor()
		if err != nil {
			return err
		}
		snap, err := st.Resources.Heartbeat(cmd.Context(), args[0], actor)
		if err != nil {
			return err
		}
		printData(snap, func() { ok() })
		return nil
	},
}

var resourceStatusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show a resource's current holders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := st.Resources.Status(args[0])
		if err != nil {
			return err
		}
		printData(snap, func() { printResourceSummary(snap) })
		return nil
	},
}

var resourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every declared resource",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resources, err := st.Resources.List()
		if err != nil {
			return err
		}
		printData(resources, func() {
			for _, r := range resources {
				printResourceSummary(r)
			}
		})
		return nil
	},
}

func init() {
	resourceCreateCmd.Flags().IntVar(&resourceMaxHolders, "max-holders", 1, "maximum concurrent holders")
	resourceCreateCmd.Flags().IntVar(&resourceTTL, "ttl-seconds", 300, "lease TTL in seconds")
	resourceCreateCmd.Flags().StringVar(&resourceDesc, "description", "", "resource description")

	resourceAcquireCmd.Flags().StringVar(&acquireTaskID, "task", "", "task this acquisition is on behalf of")
	resourceAcquireCmd.Flags().BoolVar(&acquireForce, "force", false, "force-reclaim from existing holders if the resource is at capacity")
	resourceAcquireCmd.Flags().BoolVar(&acquireWait, "wait", false, "poll with backoff until capacity is available or --timeout elapses")
	resourceAcquireCmd.Flags().DurationVar(&acquireTimeout, "timeout", 0, "max time to wait with --wait")

	resourceCmd.AddCommand(resourceCreateCmd, resourceAcquireCmd, resourceReleaseCmd, resourceHeartbeatCmd, resourceStatusCmd, resourceListCmd)
}

func printResourceSummary(r *snapshot.Resource) {
	if r == nil {
		fmt.Println("(not found)")
		return
	}
	fmt.Printf("%s  holders=%d/%d ttl=%ds\n", r.Name, len(r.Holders), r.MaxHolders, r.TTLSeconds)
	for _, h := range r.Holders {
		fmt.Printf("  held by %s until %s\n", h.Actor.String(), h.ExpiresAt.Format(time.RFC3339))
	}
}
