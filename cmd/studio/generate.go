package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jonathan/campaign-studio/internal/generation"
	"github.com/jonathan/campaign-studio/internal/jobs"
	"github.com/jonathan/campaign-studio/internal/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	genWait     bool
	genParallel int
	genWidth    int
	genHeight   int
	genSteps    int
	genGuidance float64
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt> [prompt...]",
	Short: "Submit one image generation request per prompt",
	Long: `Submit each prompt to the image provider. Without --wait the request IDs are
printed immediately; with --wait every request is polled until it completes,
fails, or exceeds the configured poll budget.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVarP(&genWait, "wait", "w", false, "Wait for each request to finish and print its result URL")
	generateCmd.Flags().IntVarP(&genParallel, "parallel", "p", 4, "Maximum requests in flight")
	generateCmd.Flags().IntVar(&genWidth, "width", 0, "Image width (provider default when 0)")
	generateCmd.Flags().IntVar(&genHeight, "height", 0, "Image height (provider default when 0)")
	generateCmd.Flags().IntVar(&genSteps, "steps", 0, "Inference steps (provider default when 0)")
	generateCmd.Flags().Float64Var(&genGuidance, "guidance", 0, "Guidance scale (provider default when 0)")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath, verbose)
	if err != nil {
		return err
	}
	if err := cfg.RequireFal(); err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Verbose)

	orchestrator := newOrchestrator(cfg, logger)
	opts := generateOptions{
		Wait:     genWait,
		Parallel: genParallel,
		Policy:   pollPolicy(cfg),
		Template: jobs.Params{
			GuidanceScale:  genGuidance,
			InferenceSteps: genSteps,
			Width:          genWidth,
			Height:         genHeight,
		},
	}
	if cfg.Verbose {
		opts.Details = cmd.ErrOrStderr()
	}
	return generateAll(cmd.Context(), orchestrator, args, opts, cmd.OutOrStdout())
}

// generateOptions controls generateAll.
type generateOptions struct {
	Wait     bool
	Parallel int
	Policy   generation.PollPolicy
	Template jobs.Params
	// Details, when set, receives a formatted box per prompt.
	Details io.Writer
}

type generateResult struct {
	prompt    string
	requestID string
	status    string
	resultURL string
	err       error
}

// generateAll submits every prompt with at most opts.Parallel in flight and
// prints one row per prompt, in argument order. A failed prompt does not
// cancel the others; the first failure is returned after all rows are
// printed.
func generateAll(ctx context.Context, orch *generation.Orchestrator, prompts []string, opts generateOptions, out io.Writer) error {
	results := make([]generateResult, len(prompts))

	g, gCtx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}
	for i, prompt := range prompts {
		results[i].prompt = prompt
		g.Go(func() error {
			results[i] = generateOne(gCtx, orch, prompt, opts)
			return nil
		})
	}
	_ = g.Wait()

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if opts.Wait {
		fmt.Fprintln(tw, "PROMPT\tREQUEST\tSTATUS\tRESULT")
	} else {
		fmt.Fprintln(tw, "PROMPT\tREQUEST")
	}

	var firstErr error
	for _, r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("prompt %q: %w", r.prompt, r.err)
		}
		status := r.status
		if r.err != nil {
			status = "error: " + r.err.Error()
		}
		if opts.Wait {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", shorten(r.prompt), r.requestID, status, r.resultURL)
		} else if r.err != nil {
			fmt.Fprintf(tw, "%s\t%s\n", shorten(r.prompt), status)
		} else {
			fmt.Fprintf(tw, "%s\t%s\n", shorten(r.prompt), r.requestID)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if opts.Details != nil {
		printer := observability.NewPrinter(opts.Details)
		for _, r := range results {
			printer.PrintGeneration(observability.GenerationOutcome{
				Prompt:    r.prompt,
				RequestID: r.requestID,
				Status:    r.status,
				ResultURL: r.resultURL,
				Err:       r.err,
			})
		}
	}
	return firstErr
}

func generateOne(ctx context.Context, orch *generation.Orchestrator, prompt string, opts generateOptions) generateResult {
	res := generateResult{prompt: prompt}

	params := opts.Template
	params.Prompt = prompt
	handle, err := orch.Submit(ctx, params)
	if err != nil {
		res.err = err
		return res
	}
	res.requestID = handle.RequestID
	if !opts.Wait {
		return res
	}

	status, err := orch.Await(ctx, handle.RequestID, opts.Policy)
	if err != nil {
		res.err = err
		return res
	}
	res.status = string(status.Status)
	if status.ResultURL != nil {
		res.resultURL = *status.ResultURL
	}
	return res
}

// shorten keeps table rows readable for long prompts.
func shorten(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const maxLen = 48
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
