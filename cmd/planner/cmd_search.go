package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"situatedbeam/internal/beam"
	"situatedbeam/internal/logging"
	"situatedbeam/internal/store"
	"situatedbeam/internal/validator"
)

var (
	searchContext  []int
	searchScript   []int
	searchStore    bool
	searchAction   string
	searchInitial  float64
	searchOccupied []float64
)

func registerSearchFlags(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&searchContext, "context", nil, "Context tokens passed to the oracle")
	cmd.Flags().IntSliceVar(&searchScript, "script", nil, "Token script for an offline scripted oracle")
	cmd.Flags().BoolVar(&searchStore, "store", false, "Persist the run and its valid plans")
	cmd.Flags().StringVar(&searchAction, "action", "PICK", "Action the plans are for (PICK, PLACE, MOVE)")
	cmd.Flags().Float64Var(&searchInitial, "initial", 1, "Initial node of the robot")
	cmd.Flags().Float64SliceVar(&searchOccupied, "occupied", nil, "Occupied nodes")
}

// runSearch searches, validates and prints plans.
func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	req, err := situation(cmd, cfg, searchAction, searchInitial, searchOccupied)
	if err != nil {
		return err
	}
	c := *cfg
	if len(searchScript) > 0 {
		c.Oracle.Kind = "scripted"
		c.Oracle.Script = searchScript
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	codec, err := buildCodec(&c)
	if err != nil {
		return err
	}
	o, err := buildOracle(&c, codec)
	if err != nil {
		return err
	}
	searcher, err := buildSearcher(&c, codec, o)
	if err != nil {
		return err
	}
	v, err := buildValidator(&c, codec)
	if err != nil {
		return err
	}

	res, err := searcher.Search(ctx, searchContext)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if res.Failures != nil {
		logging.SearchWarn("run %s had expansion failures: %v", res.RunID, res.Failures)
	}

	items := res.Plans()
	candidates := make([]validator.Candidate, len(items))
	for i, it := range items {
		candidates[i] = validator.Candidate{Tokens: it.Tokens, Score: it.Score}
	}
	verdicts, err := v.Evaluate(ctx, req, candidates)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	printSearchSummary(out, res)
	plans := printVerdicts(out, verdicts)

	if searchStore || c.Store.Enabled {
		s, err := store.Open(c.Store.Path)
		if err != nil {
			return err
		}
		defer s.Close()
		run := store.Run{
			ID:          res.RunID,
			Action:      string(req.Action),
			InitialNode: req.InitialNode,
			Occupied:    req.Occupied,
			Context:     searchContext,
			Rounds:      res.Rounds,
			FellBack:    res.FellBack,
			Candidates:  len(candidates),
			Duration:    res.Duration,
		}
		if res.Failures != nil {
			run.Failures = res.Failures.Error()
		}
		if err := s.SaveRun(ctx, run, plans); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved run %s to %s\n", res.RunID, c.Store.Path)
	}
	return nil
}

func printSearchSummary(w io.Writer, res *beam.Result) {
	fmt.Fprintf(w, "Run %s: %d rounds in %v\n", res.RunID, res.Rounds, res.Duration)
	if res.FellBack {
		fmt.Fprintf(w, "No beam finished; validating the last %d beams\n", len(res.Beam))
	} else {
		fmt.Fprintf(w, "%d finished beams\n", len(res.Finished))
	}
}

// printVerdicts prints one line per verdict and returns the valid plans.
func printVerdicts(w io.Writer, verdicts []validator.Verdict) []validator.Plan {
	var plans []validator.Plan
	for _, vd := range verdicts {
		if vd.Status == validator.StatusValid {
			plans = append(plans, vd.Plan)
			fmt.Fprintf(w, "  [%d] valid score=%.4f length=%d steps=%d\n", vd.Index, vd.Plan.Score, vd.Plan.Length, len(vd.Plan.Steps))
			for _, step := range vd.Plan.Steps {
				fmt.Fprintf(w, "      %s %s\n", step.Name, step.Value)
			}
			continue
		}
		fmt.Fprintf(w, "  [%d] %s: %v\n", vd.Index, vd.Status, vd.Reason)
	}
	fmt.Fprintf(w, "%d of %d plans valid\n", len(plans), len(verdicts))
	return plans
}
