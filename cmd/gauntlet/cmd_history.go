package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// historyCmd inspects the timing store.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded timing stats and flaky specs",
	RunE:  showHistory,
}

var historyFlakyOnly bool

func init() {
	historyCmd.Flags().BoolVar(&historyFlakyOnly, "flaky", false, "Show only flaky specs")
}

func showHistory(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(workspace)
	if err != nil {
		return err
	}
	defer p.close()

	if p.hist == nil {
		return fmt.Errorf("history store unavailable at %s", p.cfg.History.DatabasePath)
	}

	flaky, err := p.hist.FlakySpecs(p.cfg.History.FlakyMinRuns)
	if err != nil {
		return err
	}

	if len(flaky) == 0 {
		fmt.Println("No flaky specs on record.")
	} else {
		fmt.Printf("Flaky specs (min %d runs):\n", p.cfg.History.FlakyMinRuns)
		for _, fs := range flaky {
			fmt.Printf("  %5.1f%%  %d/%d runs failed  %s\n",
				fs.FailureRate*100, fs.Failures, fs.Runs, fs.Path)
		}
	}

	if historyFlakyOnly {
		return nil
	}

	specs, err := p.discoverSpecs()
	if err != nil {
		return err
	}

	fmt.Println("\nRecorded timings:")
	recorded := 0
	for _, s := range specs {
		if st, ok := p.hist.SpecStats(s.Path); ok {
			fmt.Printf("  %8.0fms mean over %d runs  %s\n", st.MeanMs, st.Runs, s.Path)
			recorded++
		}
	}
	if recorded == 0 {
		fmt.Println("  (none - run 'gauntlet run' to collect timings)")
	}
	return nil
}
