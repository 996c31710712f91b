package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/jonathan/campaign-studio/internal/config"
	"github.com/jonathan/campaign-studio/internal/examples"
	"github.com/jonathan/campaign-studio/internal/observability"
	"github.com/spf13/cobra"
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Inspect and edit the examples catalog",
}

var examplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every example",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withExamples(cmd.Context(), func(ctx context.Context, svc *examples.Service, cfg *config.Config) error {
			return listExamples(ctx, svc, cmd.OutOrStdout(), cfg.Verbose)
		})
	},
}

var examplesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an example and its image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withExamples(cmd.Context(), func(ctx context.Context, svc *examples.Service, _ *config.Config) error {
			if err := svc.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		})
	},
}

func init() {
	examplesCmd.AddCommand(examplesListCmd, examplesRemoveCmd)
	rootCmd.AddCommand(examplesCmd)
}

// withExamples opens the configured storage for the duration of fn.
func withExamples(ctx context.Context, fn func(context.Context, *examples.Service, *config.Config) error) error {
	cfg, err := loadConfig(configPath, verbose)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Verbose)

	blobs, closeBlobs, err := openBlobStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBlobs()

	return fn(ctx, newExamplesService(blobs, cfg, logger), cfg)
}

// listExamples prints a table, or the grouped catalog summary when detailed.
func listExamples(ctx context.Context, svc *examples.Service, out io.Writer, detailed bool) error {
	list, err := svc.List(ctx)
	if err != nil {
		return err
	}
	if detailed {
		observability.NewPrinter(out).PrintExamples(list)
		return nil
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "no examples")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE\tIMAGE")
	for _, ex := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ex.ID, ex.Category, shorten(ex.Title), ex.ImageURL)
	}
	return tw.Flush()
}
