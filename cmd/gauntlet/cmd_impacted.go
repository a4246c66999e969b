package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var impactedBaseRef string

// impactedCmd reports which specs the diff affects, as JSON.
var impactedCmd = &cobra.Command{
	Use:   "impacted",
	Short: "List specs impacted by the git diff, without running them",
	Long: `Queries which specs would be selected for the given base ref.

Example:
  gauntlet impacted --base origin/main`,
	RunE: showImpacted,
}

func init() {
	impactedCmd.Flags().StringVar(&impactedBaseRef, "base", "", "Git base ref (default: config)")
}

func showImpacted(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := newPipeline(workspace)
	if err != nil {
		return err
	}
	defer p.close()

	specs, err := p.discoverSpecs()
	if err != nil {
		return err
	}

	impacted, err := p.impactedSpecs(ctx, specs, impactedBaseRef)
	if err != nil {
		return err
	}

	response := struct {
		BaseRef       string `json:"base_ref"`
		ImpactedSpecs []struct {
			Path     string   `json:"path"`
			Kind     string   `json:"kind"`
			Priority string   `json:"priority"`
			Reason   string   `json:"reason"`
			Triggers []string `json:"triggers"`
		} `json:"impacted_specs"`
	}{
		BaseRef: impactedBaseRef,
	}
	if response.BaseRef == "" {
		response.BaseRef = p.cfg.Impact.BaseRef
	}

	for _, is := range impacted {
		response.ImpactedSpecs = append(response.ImpactedSpecs, struct {
			Path     string   `json:"path"`
			Kind     string   `json:"kind"`
			Priority string   `json:"priority"`
			Reason   string   `json:"reason"`
			Triggers []string `json:"triggers"`
		}{
			Path:     is.Spec.Path,
			Kind:     string(is.Spec.Kind),
			Priority: string(is.Priority),
			Reason:   is.Reason,
			Triggers: is.Triggers,
		})
	}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	fmt.Println(string(jsonBytes))
	return nil
}
