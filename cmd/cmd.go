// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pykeio/hf2pyke/convert"
	"github.com/pykeio/hf2pyke/diffusers"
	"github.com/pykeio/hf2pyke/format"
	"github.com/pykeio/hf2pyke/graph"
	"github.com/pykeio/hf2pyke/graph/torch"
	"github.com/pykeio/hf2pyke/progress"
)

// NewCLI - Erstellt das Haupt-CLI
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	var flags convert.Config
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "hf2pyke <hf_path> <out_path>",
		Short:         "Convert diffusers checkpoints to portable graph format",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ConvertHandler(cmd, args, flags)
		},
	}

	rootCmd.Flags().BoolVarP(&flags.FP16, "fp16", "H", false, "Compute all modules in float16 (implied by an fp16 revision)")
	rootCmd.Flags().BoolVar(&flags.FP16UNet, "fp16-unet", false, "Compute only the UNet in float16")
	rootCmd.Flags().BoolVar(&flags.NoCollate, "no-collate", false, "Never split UNet weights into a companion file")
	rootCmd.Flags().BoolVar(&flags.SkipSafetyChecker, "skip-safety-checker", false, "Do not convert the safety checker")
	rootCmd.Flags().BoolVarP(&flags.SimplifySmallModels, "simplify-small-models", "S", false, "Simplify text encoder and VAE graphs")
	rootCmd.Flags().BoolVar(&flags.SimplifyUNet, "simplify-unet", false, "Simplify the UNet graph (needs a lot of memory)")
	rootCmd.Flags().IntVar(&flags.OverrideUNetSampleSize, "override-unet-sample-size", 0, "Override the UNet sample size from the config")
	rootCmd.Flags().IntVarP(&flags.Opset, "opset", "O", convert.DefaultOpset, "Graph format version")
	rootCmd.Flags().StringVarP(&flags.Quantize, "quantize", "q", "", "Quantize artifacts to 8 bit: letters of \"utv\", uppercase for signed")
	rootCmd.Flags().BoolVar(&flags.NoAccelerate, "no-accelerate", false, "Disable memory-efficient module loading")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose log output")

	return rootCmd
}

// ConvertHandler - Fuehrt die Konvertierung aus und rendert die Abschluss-Tabelle
func ConvertHandler(cmd *cobra.Command, args []string, cfg convert.Config) error {
	snap, err := diffusers.Resolve(args[0])
	if err != nil {
		return err
	}

	// Eine fp16-Revision traegt nur halbe Praezision, volle Praezision
	// gibt es dort nicht zu holen
	if snap.WantsFP16() && !cfg.FP16 && !cfg.FP16UNet {
		slog.Info("fp16 revision requested, computing in float16")
		cfg.FP16 = true
	}

	eng, err := torch.New()
	if err != nil {
		return err
	}

	p := progress.NewProgress(os.Stderr)
	defer p.Stop()

	var spinner *progress.Spinner
	status := func(msg string) {
		if spinner != nil {
			spinner.Stop()
		}
		spinner = progress.NewSpinner(msg)
		p.Add(msg, spinner)
	}
	eng.Progress = func(line string) {
		slog.Debug("engine", "line", line)
	}

	res, err := convert.Convert(cmd.Context(), snap, args[1], cfg, eng, status)
	p.StopAndClear()
	if err != nil {
		switch {
		case errors.Is(err, graph.ErrSimplifyCheck):
			return fmt.Errorf("%w; re-run without the simplify flags", err)
		case errors.Is(err, convert.ErrInvalidQuantizeCode):
			return fmt.Errorf("%w; valid letters are u (unet), t (text encoder), v (vae decoder), uppercase for signed int8", err)
		}
		return err
	}

	fmt.Fprintf(os.Stderr, "Converted to %s\n\n", res.OutDir)
	renderArtifacts(res.Artifacts)
	return nil
}

func renderArtifacts(artifacts []convert.Artifact) {
	var data [][]string
	for _, a := range artifacts {
		hash := a.Hash
		if hash == "" {
			hash = "-"
		}
		data = append(data, []string{a.Name, a.Path, format.HumanBytes(a.Size), hash})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ARTIFACT", "PATH", "SIZE", "HASH"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
