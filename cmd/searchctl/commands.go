package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shubhsaxena/furniture-search/internal/catalog"
	"github.com/shubhsaxena/furniture-search/internal/config"
	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/observability"
	"github.com/shubhsaxena/furniture-search/internal/orchestrator"
	"github.com/shubhsaxena/furniture-search/internal/vocabulary"
)

type options struct {
	vocabularyPath string
	verbose        bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "searchctl",
		Short:         "Inspect query understanding and ranking offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.vocabularyPath, "vocabulary", "", "vocabulary YAML overriding the built-in tables")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newAnalyzeCmd(opts), newQueryCmd(opts))
	return root
}

type analysisOutput struct {
	Query      string                  `json:"query"`
	Normalized []string                `json:"normalized"`
	Classified models.ClassifiedTokens `json:"classified"`
	Numerics   models.Numerics         `json:"numerics"`
	Intent     models.Intent           `json:"intent"`
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <query>",
		Short: "Print normalized tokens, numerics, classification and intent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := opts.orchestrator(catalog.NewMemoryStore(nil, nil))
			if err != nil {
				return err
			}
			a := orch.Analyze(strings.Join(args, " "))
			return writeJSON(cmd.OutOrStdout(), analysisOutput{
				Query:      a.Query,
				Normalized: a.Tokens,
				Classified: a.Classified,
				Numerics:   a.Numerics,
				Intent:     a.Intent,
			})
		},
	}
}

func newQueryCmd(opts *options) *cobra.Command {
	var (
		catalogPath string
		page        int
		pageSize    int
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Run the full search ladder against a JSON catalog file",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := catalog.LoadFile(catalogPath)
			if err != nil {
				return err
			}
			orch, err := opts.orchestrator(store)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp := orch.Search(ctx, models.SearchRequest{
				Query:    strings.Join(args, " "),
				Page:     page,
				PageSize: pageSize,
			})
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "JSON catalog file (required)")
	cmd.Flags().IntVar(&page, "page", 1, "result page")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "results per page (0 uses the default)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall search timeout")
	cmd.MarkFlagRequired("catalog")
	return cmd
}

func (o *options) orchestrator(store *catalog.MemoryStore) (*orchestrator.Orchestrator, error) {
	logger := zap.NewNop()
	if o.verbose {
		l, err := observability.NewLogger("debug")
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		logger = l
	}

	vocab, err := vocabulary.Load(o.vocabularyPath)
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig().Search
	executor := catalog.NewExecutor(store, store, cfg.MaxCandidates, logger)
	return orchestrator.New(executor, nil, nil, nil, vocab, cfg, logger), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
