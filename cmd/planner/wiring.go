package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"situatedbeam/internal/beam"
	"situatedbeam/internal/config"
	"situatedbeam/internal/grammar"
	"situatedbeam/internal/idea"
	"situatedbeam/internal/oracle"
	"situatedbeam/internal/topology"
	"situatedbeam/internal/validator"
)

// commandContext bounds a command by the global timeout and cancels it on
// SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithTimeout(base, timeout)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancel()
	}
}

func buildCodec(c *config.Config) (*idea.Codec, error) {
	if c.Vocabulary.Path == "" {
		return idea.NewCodec(nil), nil
	}
	vocab, err := idea.LoadVocabulary(c.Vocabulary.Path)
	if err != nil {
		return nil, err
	}
	return idea.NewCodec(vocab), nil
}

func buildGraph(c *config.Config) (*topology.Graph, error) {
	if c.Topology.Path == "" {
		return topology.Warehouse(), nil
	}
	return topology.LoadGraph(c.Topology.Path)
}

// vocabSize is the configured oracle vocabulary size, or one past the highest
// word token when unset.
func vocabSize(c *config.Config, codec *idea.Codec) int {
	if c.Oracle.VocabSize > 0 {
		return c.Oracle.VocabSize
	}
	size := idea.TokenNine + 1
	for tok := range codec.Vocabulary().Words {
		if tok+1 > size {
			size = tok + 1
		}
	}
	return size
}

func buildOracle(c *config.Config, codec *idea.Codec) (beam.Oracle, error) {
	switch c.Oracle.Kind {
	case "scripted":
		if len(c.Oracle.Script) == 0 {
			return nil, fmt.Errorf("scripted oracle needs oracle.script or --script")
		}
		return oracle.NewScripted(c.Oracle.Script, vocabSize(c, codec), c.Search.EndToken), nil
	case "http":
		return oracle.NewHTTPOracle(oracle.HTTPConfig{
			URL:               c.Oracle.URL,
			Timeout:           c.GetOracleTimeout(),
			RequestsPerSecond: c.Oracle.RequestsPerSecond,
			Burst:             c.Oracle.Burst,
			FailureThreshold:  c.Oracle.FailureThreshold,
			CooldownPeriod:    c.GetOracleCooldown(),
			VocabSize:         c.Oracle.VocabSize,
		})
	default:
		return nil, fmt.Errorf("unknown oracle kind %q", c.Oracle.Kind)
	}
}

func buildSearcher(c *config.Config, codec *idea.Codec, o beam.Oracle) (*beam.Searcher, error) {
	machine := grammar.NewMachine(nil, codec, grammar.WithStrictMetadata(c.Search.RejectUnknownMetadata))
	return beam.NewSearcher(o, machine, beam.Config{
		StartToken:      c.Search.StartToken,
		EndToken:        c.Search.EndToken,
		Width:           c.Search.BeamWidth,
		Temperature:     c.Search.Temperature,
		MinFinishLength: c.Search.MinFinishLength,
		MaxSteps:        c.Search.MaxSteps,
	})
}

func buildValidator(c *config.Config, codec *idea.Codec) (*validator.Validator, error) {
	graph, err := buildGraph(c)
	if err != nil {
		return nil, err
	}
	return validator.New(codec, graph, validator.WithKernel(c.Validation.UseKernel)), nil
}

// situation resolves the validation request from flags over config.
func situation(cmd *cobra.Command, c *config.Config, action string, initial float64, occupied []float64) (validator.Request, error) {
	if !cmd.Flags().Changed("action") {
		action = c.Validation.Action
	}
	if !cmd.Flags().Changed("initial") {
		initial = c.Validation.InitialNode
	}
	if !cmd.Flags().Changed("occupied") {
		occupied = c.Validation.Occupied
	}
	a, err := validator.ParseAction(action)
	if err != nil {
		return validator.Request{}, err
	}
	return validator.Request{Occupied: occupied, InitialNode: initial, Action: a}, nil
}
