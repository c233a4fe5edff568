package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/versus/internal/simulate"
)

func newSimulateCmd() *cobra.Command {
	cfg := simulate.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive simulated voters and check the leaderboard",
		Long: `Create simulated profiles with hidden strengths, let voters pick the
stronger profile with Bradley-Terry odds and check that the final ratings
rank-correlate with the hidden order.`,
		Example: "  versusctl simulate --profiles 30 --voters 10 --votes 100",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := simulate.Run(cmd.Context(), cfg)
			if report.Applied > 0 || len(report.Top) > 0 {
				printReport(cmd, report)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the server")
	f.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "id prefix of simulated profiles")
	f.IntVar(&cfg.Profiles, "profiles", cfg.Profiles, "number of simulated profiles")
	f.IntVar(&cfg.Voters, "voters", cfg.Voters, "number of simulated voters")
	f.IntVar(&cfg.VotesPerVoter, "votes", cfg.VotesPerVoter, "votes cast by each voter")
	f.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "voters running at once")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for voter choices")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.Float64Var(&cfg.MinCorrelation, "min-correlation", cfg.MinCorrelation, "fail below this Spearman correlation")
	return cmd
}

func printReport(cmd *cobra.Command, r simulate.Report) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "profiles: created %d, reused %d\n", r.Created, r.Skipped)
	_, _ = fmt.Fprintf(out, "votes: applied %d, duplicate %d, rejected %d\n", r.Applied, r.Duplicates, r.Rejected)
	_, _ = fmt.Fprintf(out, "spearman: %.3f (%s)\n", r.Correlation, r.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RANK\tID\tNAME\tRATING")
	for _, e := range r.Top {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%.0f\n", e.Rank, e.ProfileID, e.Name, e.Rating)
	}
	_ = tw.Flush()
}
