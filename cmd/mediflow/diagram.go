// ABOUTME: The diagram command: lists, renders, and exports flowcharts without a session
// ABOUTME: Export writes the raw payload exactly as the viewer's download would

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/mediflow/internal/diagram"
)

func newDiagramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Work with flowcharts",
	}
	cmd.AddCommand(newDiagramListCmd(), newDiagramShowCmd(), newDiagramExportCmd())
	return cmd
}

func newDiagramListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in flowcharts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, ref := range diagram.NewCatalog().Refs() {
				fmt.Fprintln(cmd.OutOrStdout(), ref)
			}
			return nil
		},
	}
}

func newDiagramShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show REF",
		Short: "Render a flowchart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := diagram.NewRenderer(diagram.NewCatalog(), diagram.Options{})
			viewer := r.Open(args[0])
			defer viewer.Close()

			view := viewer.Render()
			if view.Status == diagram.ViewError {
				return fmt.Errorf("rendering %s: %w", args[0], view.Cause)
			}
			out := cmd.OutOrStdout()
			color.New(color.FgCyan, color.Bold).Fprintln(out, view.Title)
			for i, step := range view.Steps {
				fmt.Fprintf(out, "  %d. %s\n", i+1, step.Title)
			}
			return nil
		},
	}
}

func newDiagramExportCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export REF",
		Short: "Save a flowchart's data to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			art := diagram.NewRenderer(diagram.NewCatalog(), diagram.Options{}).Export(args[0])
			path := filepath.Join(outDir, art.Name)
			if err := os.WriteFile(path, art.Content, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "directory to write the file to")
	return cmd
}
