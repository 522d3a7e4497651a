package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"command-center/internal/app"
	"command-center/internal/bootstrap"
	"command-center/internal/pkg/textextract"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <glob>...",
	Short: "Extract and ingest local files",
	Long: `Ingest expands each glob (** is supported), extracts text from every
supported file and stores its chunks in the configured backend.

Examples:
  command-center ingest "runbooks/**/*.md"
  command-center ingest reports/q1.pdf reports/q2.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported files matched %v", args)
	}
	if cfg.Store.Backend == "memory" {
		log.Warn("store backend is memory; ingested documents are lost when this command exits")
	}

	ctx := cmd.Context()
	a, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	var chunks int
	var failures []string
	for _, path := range files {
		n, err := ingestFile(cmd, a, path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))
		}
		chunks += n
		_ = bar.Add(1)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nIngestion complete:\n")
	fmt.Fprintf(out, "  Files ingested: %d\n", len(files)-len(failures))
	fmt.Fprintf(out, "  Chunks created: %d\n", chunks)
	if len(failures) > 0 {
		fmt.Fprintf(out, "\nFailures:\n")
		for _, f := range failures {
			fmt.Fprintf(out, "  - %s\n", f)
		}
		return fmt.Errorf("%d of %d files failed", len(failures), len(files))
	}
	return nil
}

func ingestFile(cmd *cobra.Command, a *bootstrap.App, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	text, err := textextract.Extract(path, f)
	if err != nil {
		return 0, err
	}
	result, err := a.RAG.Ingest(cmd.Context(), app.IngestInput{
		Name:    filepath.Base(path),
		Content: text,
	})
	if err != nil {
		return 0, err
	}
	return result.Chunks, nil
}

// collectFiles expands globs into a sorted, de-duplicated list of supported
// regular files.
func collectFiles(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q failed: %w", pattern, err)
		}
		for _, m := range matches {
			if !textextract.Supported(m) {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}
