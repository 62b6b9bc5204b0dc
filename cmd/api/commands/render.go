package commands

import (
	"context"
	"fmt"
	"os"

	"dental-inspections/internal/router"

	"github.com/spf13/cobra"
)

var renderOut string

var renderCmd = &cobra.Command{
	Use:   "render <submission-id|reference>",
	Short: "Render a submitted inspection to an HTML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		app, err := router.New(router.Options{Config: cfg, Logger: log})
		if err != nil {
			return err
		}
		defer func() { _ = app.Close(context.Background()) }()

		sub, err := app.Printing.Submission(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		out := renderOut
		if out == "" {
			out = sub.ReferenceNumber + ".html"
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := app.Printing.RenderSubmission(cmd.Context(), f, sub); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output file (default <reference>.html)")
}
