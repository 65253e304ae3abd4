package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"situatedbeam/internal/validator"
)

var (
	beamsPath        string
	validateAction   string
	validateInitial  float64
	validateOccupied []float64
)

func registerValidateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&beamsPath, "beams", "", "YAML file of beams to validate (required)")
	cmd.Flags().StringVar(&validateAction, "action", "PICK", "Action the plans are for (PICK, PLACE, MOVE)")
	cmd.Flags().Float64Var(&validateInitial, "initial", 1, "Initial node of the robot")
	cmd.Flags().Float64SliceVar(&validateOccupied, "occupied", nil, "Occupied nodes")
	cmd.MarkFlagRequired("beams")
}

type beamEntry struct {
	Tokens []int   `yaml:"tokens"`
	Score  float64 `yaml:"score"`
	Length int     `yaml:"length"`
}

type beamsFile struct {
	Action      string      `yaml:"action"`
	InitialNode *float64    `yaml:"initial_node"`
	Occupied    []float64   `yaml:"occupied"`
	Beams       []beamEntry `yaml:"beams"`
}

func loadBeams(path string) (*beamsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read beams: %w", err)
	}
	var f beamsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse beams: %w", err)
	}
	return &f, nil
}

// runValidate checks stored beams and prints a verdict for each.
func runValidate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	f, err := loadBeams(beamsPath)
	if err != nil {
		return err
	}

	// Flags win over the file, the file wins over config.
	action, initial, occupied := cfg.Validation.Action, cfg.Validation.InitialNode, cfg.Validation.Occupied
	if f.Action != "" {
		action = f.Action
	}
	if f.InitialNode != nil {
		initial = *f.InitialNode
	}
	if f.Occupied != nil {
		occupied = f.Occupied
	}
	flags := cmd.Flags()
	if flags.Changed("action") {
		action = validateAction
	}
	if flags.Changed("initial") {
		initial = validateInitial
	}
	if flags.Changed("occupied") {
		occupied = validateOccupied
	}
	a, err := validator.ParseAction(action)
	if err != nil {
		return err
	}
	req := validator.Request{Occupied: occupied, InitialNode: initial, Action: a}

	codec, err := buildCodec(cfg)
	if err != nil {
		return err
	}
	v, err := buildValidator(cfg, codec)
	if err != nil {
		return err
	}

	candidates := make([]validator.Candidate, len(f.Beams))
	for i, b := range f.Beams {
		candidates[i] = validator.Candidate{Tokens: b.Tokens, Score: b.Score, Length: b.Length}
	}
	verdicts, err := v.Evaluate(ctx, req, candidates)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %d beams for %s from node %g\n", len(candidates), req.Action, req.InitialNode)
	printVerdicts(out, verdicts)

	reasons := validator.Reasons(verdicts)
	statuses := make([]validator.Status, 0, len(reasons))
	for s := range reasons {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	for _, s := range statuses {
		fmt.Fprintf(out, "Rejected (%s): %d\n", s, len(reasons[s]))
	}
	return nil
}
