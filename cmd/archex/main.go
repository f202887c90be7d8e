package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/flaneur2020/archex/archex"
	"github.com/flaneur2020/archex/archex/shell"
)

var cfg = archex.DefaultConfig()

func main() {
	rootCmd := &cobra.Command{
		Use:   "archex",
		Short: "Extract files from hex-encoded archives",
		Long: "archex decodes an archive stored as raw hex (.hex) or an xxd dump (.txt),\n" +
			"extracts every record into the output directory and writes metadata.txt.",
		Args: cobra.NoArgs,
		Run:  runExtract,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfg.Input, "input", "i", cfg.Input, "Archive text to read (path or http(s) URL)")
	flags.StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir, "Output directory")
	flags.IntVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbosity: 0 errors, 1 info, 2 debug")
	flags.StringVar(&cfg.Format, "format", cfg.Format, "Input text format: auto, raw or dump")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of records transformed in parallel")
	flags.IntVar(&cfg.MaxNameLength, "max-name", cfg.MaxNameLength, "Maximum record name length")
	flags.StringVar(&cfg.TransformCommand, "transform-cmd", "", "External transform command, e.g. \"python3 process_data.py\"")
	flags.StringVar(&cfg.Digest, "digest", "", "Expected digest of the input text (sha256:...)")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file to append to (empty disables)")
	flags.BoolVar(&cfg.NoProgress, "no-progress", false, "Disable progress bar (progress is enabled by default)")

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract every record of the archive",
		Args:  cobra.NoArgs,
		Run:   runExtract,
	}

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List the records of an archive without extracting them",
		Args:  cobra.NoArgs,
		Run:   runLs,
	}

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shell",
		Args:  cobra.NoArgs,
		Run:   runShell,
	}

	rootCmd.AddCommand(extractCmd, lsCmd, shellCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func requireInput() {
	if cfg.Input == "" {
		fmt.Fprintln(os.Stderr, "Error: an input archive is required (-i <file>)")
		os.Exit(1)
	}
}

func runExtract(cmd *cobra.Command, args []string) {
	requireInput()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	showProgress := !cfg.NoProgress

	var bar *progressbar.ProgressBar
	if showProgress {
		cfg.Progress = func(current, total int64) {
			if bar == nil && total > 0 {
				bar = progressbar.DefaultBytes(total, fmt.Sprintf("Extracting %s", cfg.Input))
			}
			if bar != nil {
				bar.Set64(current)
			}
		}
	}

	stats, err := archex.Run(ctx, cfg)
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	if stats != nil {
		fmt.Printf("Extracted %d/%d records (%d bytes total) to %s",
			stats.ExtractedRecords, stats.TotalRecords, stats.ExtractedBytes, cfg.OutputDir)
		if stats.FailedRecords > 0 {
			fmt.Printf(" (%d failed)", stats.FailedRecords)
		}
		if stats.SkippedRecords > 0 {
			fmt.Printf(" (%d skipped)", stats.SkippedRecords)
		}
		fmt.Println()
	}

	if err != nil {
		if archex.IsTruncated(err) {
			fmt.Fprintf(os.Stderr, "Error: archive is truncated: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func runLs(cmd *cobra.Command, args []string) {
	requireInput()

	stream, err := archex.OpenStream(context.Background(), cfg, archex.NewLogger(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading archive: %v\n", err)
		os.Exit(1)
	}

	listing, err := archex.ListRecords(stream, cfg.MaxNameLength)
	if listing == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Records in %s (version 0x%02x, %s):\n", cfg.Input, listing.Header.Version, listing.Header.Order)
	for _, rec := range listing.Records {
		fmt.Printf("%s (original: %d bytes, processed: %d bytes, method: %s)\n",
			rec.Name, rec.OriginalSize, rec.ProcessedSize, rec.Method)
	}
	if listing.Skipped > 0 {
		fmt.Printf("%d undecodable records skipped\n", listing.Skipped)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runShell(cmd *cobra.Command, args []string) {
	sh := shell.New(cfg, os.Stdin, os.Stdout)
	if err := sh.Loop(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
