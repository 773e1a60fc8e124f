package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/northcutted/bundle-treemap/pkg/config"
)

// defaultReportName is used when the output path names a directory.
const defaultReportName = "treemap"

func outputExtension(format string) string {
	if format == config.FormatMarkdown {
		return ".md"
	}
	return ".json"
}

// resolveOutputPath determines where a report goes. An empty path or "-"
// means stdout. A directory, existing or written with a trailing separator,
// receives a file named after the format (e.g. treemap.json, treemap.md).
func resolveOutputPath(output string, format string) string {
	if output == "" || output == "-" {
		return ""
	}
	if strings.HasSuffix(output, "/") || strings.HasSuffix(output, string(filepath.Separator)) {
		return filepath.Join(output, defaultReportName+outputExtension(format))
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, defaultReportName+outputExtension(format))
	}
	return output
}

func writeOutput(logger *slog.Logger, content []byte, output string, format string) error {
	outPath := resolveOutputPath(output, format)
	if outPath == "" {
		_, err := stdout.Write(content)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	logger.Info("wrote output file", "path", outPath)
	return nil
}
