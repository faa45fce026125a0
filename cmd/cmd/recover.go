// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ostafen/diglet/internal/carve"
	"github.com/ostafen/diglet/internal/disk"
	"github.com/ostafen/diglet/pkg/dfxml"
	"github.com/ostafen/diglet/pkg/manifest"
	"github.com/ostafen/diglet/pkg/pbar"
	utilformat "github.com/ostafen/diglet/pkg/util/format"
	osutils "github.com/ostafen/diglet/pkg/util/os"
	"github.com/spf13/cobra"
)

func DefineRecoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover <device_or_image>",
		Short: "Carve JPEG/PNG files from a disk image or raw device",
		Long: `The 'recover' command runs the full carving pipeline against a disk image
or raw device: it scans for JPEG/PNG signatures, pairs headers with footers,
validates the result structurally, recovers orphan headers via bifragment
gap carving, and extracts every recovered file into the output directory
alongside a manifest.jsonl index.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunRecover,
	}

	cmd.Flags().StringP("output-dir", "o", "", "directory recovered files and manifest.jsonl are written to (required)")
	cmd.Flags().StringSlice("formats", []string{"jpeg", "png"}, "file formats to carve (jpeg, png)")
	cmd.Flags().String("mode", "multipass", "carving mode: multipass (full recovery, incl. BGC) or fast (single streaming pass)")
	cmd.Flags().Bool("unsafe-mode", false, "skip structural validation, extracting every paired candidate")
	cmd.Flags().Bool("debug", false, "enable debug logging")
	cmd.Flags().String("max-file-size-jpeg", "", "override the default maximum JPEG file size (e.g. 256MB)")
	cmd.Flags().String("max-file-size-png", "", "override the default maximum PNG file size (e.g. 512MB)")
	cmd.Flags().Int("bgc-budget-ms", 0, "per-orphan wall-clock budget for bifragment gap carving, in milliseconds")
	cmd.Flags().Int("workers", 0, "number of scanner worker goroutines (0 = runtime.NumCPU, capped at 8)")
	cmd.Flags().Bool("no-hints", false, "disable partition/boot-sector scan-order hint discovery")
	cmd.Flags().String("dfxml", "", "also write a DFXML companion report to this path")
	_ = cmd.MarkFlagRequired("output-dir")

	return cmd
}

func RunRecover(cmd *cobra.Command, args []string) error {
	path := disk.NormalizeVolumePath(args[0])

	outputDir, _ := cmd.Flags().GetString("output-dir")
	if _, err := osutils.EnsureDir(outputDir, false); err != nil {
		return err
	}

	formats, err := parseFormats(cmd)
	if err != nil {
		return err
	}

	mode, err := parseMode(cmd)
	if err != nil {
		return err
	}

	unsafeMode, _ := cmd.Flags().GetBool("unsafe-mode")
	debug, _ := cmd.Flags().GetBool("debug")
	bgcBudgetMs, _ := cmd.Flags().GetInt("bgc-budget-ms")
	workers, _ := cmd.Flags().GetInt("workers")
	noHints, _ := cmd.Flags().GetBool("no-hints")
	dfxmlPath, _ := cmd.Flags().GetString("dfxml")

	maxFileSize, err := parseMaxFileSizes(cmd)
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var hints *disk.Hints
	if !noHints {
		h, err := discoverHintsFor(path)
		if err != nil {
			logger.Warn("carve: partition hint discovery failed, continuing without hints", "err", err)
		} else {
			hints = h
		}
	}

	manifestPath := filepath.Join(outputDir, "manifest.jsonl")
	mf, err := manifest.Create(manifestPath)
	if err != nil {
		return err
	}
	defer mf.Close()

	var dfxmlWriter *dfxml.DFXMLWriter
	if dfxmlPath != "" {
		dfxmlFile, err := os.Create(dfxmlPath)
		if err != nil {
			return err
		}
		defer dfxmlFile.Close()

		dfxmlWriter = dfxml.NewDFXMLWriter(dfxmlFile)
		if err := dfxmlWriter.WriteHeader(newDFXMLHeader(path)); err != nil {
			return err
		}
		defer dfxmlWriter.Close()
	}

	bar := pbar.NewProgressBarState(0)
	onProgress := func(p carve.Progress) {
		bar.Pass = p.Pass
		bar.TotalBytes = int64(p.BytesTotal)
		bar.ProcessedBytes = int64(p.BytesProcessed)
		bar.FilesFound = int(p.FilesExtracted)
		bar.OrphansRecovered = p.OrphansRecovered
		bar.OrphansFailed = p.OrphansFailed
		bar.Render(false)
	}

	onFile := func(rf carve.RecoveredFile, path string) {
		entry := manifest.Entry{
			Sequence:     rf.Sequence,
			Format:       rf.Format.String(),
			SourceOffset: rf.SourceOffset(),
			Length:       rf.Length(),
			Fragments:    1,
			Validation:   rf.Validation.String(),
			Unsafe:       rf.Unsafe,
			Path:         path,
		}
		if rf.Second != nil {
			entry.Fragments = 2
			entry.SecondOffset = rf.Second.Offset
			entry.SecondLength = rf.Second.Length
		}
		if err := mf.Write(entry); err != nil {
			logger.Warn("carve: failed to append manifest entry", "err", err)
		}
		if dfxmlWriter != nil {
			if err := dfxmlWriter.WriteFileObject(recoveredFileToDFXML(rf, path)); err != nil {
				logger.Warn("carve: failed to append dfxml entry", "err", err)
			}
		}
	}

	opts := carve.Options{
		SourcePath:    path,
		OutputDir:     outputDir,
		Formats:       formats,
		Mode:          mode,
		UnsafeMode:    unsafeMode,
		Debug:         debug,
		MaxFileSize:   maxFileSize,
		BGCBudgetMs:   bgcBudgetMs,
		WorkerThreads: workers,
		OnProgress:    onProgress,
		OnFile:        onFile,
		Logger:        logger,
		Hints:         hints,
	}

	engine, err := carve.NewEngine(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Warn("carve: interrupt received, cancelling run")
		cancel()
	}()

	stats, runErr := engine.Run(ctx)
	bar.Finish()

	fmt.Fprintf(os.Stdout, "carve: extracted=%d orphans_recovered=%d orphans_failed=%d elapsed_ms=%d\n",
		stats.FilesExtracted, stats.OrphansRecovered, stats.OrphansFailed, stats.ElapsedMs)

	return runErr
}

func parseFormats(cmd *cobra.Command) ([]carve.Format, error) {
	names, _ := cmd.Flags().GetStringSlice("formats")
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one format must be selected")
	}
	formats := make([]carve.Format, 0, len(names))
	for _, name := range names {
		f, err := carve.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

func parseMode(cmd *cobra.Command) (carve.Mode, error) {
	s, _ := cmd.Flags().GetString("mode")
	switch s {
	case "multipass", "":
		return carve.ModeMultiPass, nil
	case "fast":
		return carve.ModeFast, nil
	default:
		return 0, fmt.Errorf("invalid mode %q: must be multipass or fast", s)
	}
}

func parseMaxFileSizes(cmd *cobra.Command) (map[carve.Format]uint64, error) {
	out := make(map[carve.Format]uint64, 2)
	jpegSize, _ := cmd.Flags().GetString("max-file-size-jpeg")
	pngSize, _ := cmd.Flags().GetString("max-file-size-png")

	if jpegSize != "" {
		v, err := utilformat.ParseBytes(jpegSize)
		if err != nil {
			return nil, fmt.Errorf("max-file-size-jpeg: %w", err)
		}
		out[carve.JPEG] = v
	}
	if pngSize != "" {
		v, err := utilformat.ParseBytes(pngSize)
		if err != nil {
			return nil, fmt.Errorf("max-file-size-png: %w", err)
		}
		out[carve.PNG] = v
	}
	return out, nil
}

func discoverHintsFor(path string) (*disk.Hints, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	finfo, err := f.Stat()
	if err != nil {
		return nil, err
	}

	h, err := disk.DiscoverHints(f, uint64(finfo.Size()))
	if err != nil {
		return nil, err
	}
	return &h, nil
}
