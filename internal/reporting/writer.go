package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"portfolio-lab/internal/domain"
)

// Output file names written by WriteAll.
const (
	FileMarkdown = "REPORT.md"
	FileMetrics  = "metrics.csv"
	FileEquity   = "equity.csv"
	FileChart    = "equity.png"
)

// WriteAll writes the markdown report, the metrics and equity CSVs and the
// equity chart into dir, creating it if needed. It returns the written paths.
// A chart that cannot be drawn is skipped without failing the other files.
func WriteAll(dir string, r *Report, resp *domain.CompareResponse) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	type outFile struct {
		name string
		body []byte
	}
	files := []outFile{
		{FileMarkdown, []byte(RenderMarkdown(r))},
		{FileMetrics, []byte(RenderCSV(r.Metrics))},
		{FileEquity, []byte(RenderEquityCSV(resp))},
	}
	if png, err := RenderEquityChart(resp); err == nil {
		files = append(files, outFile{FileChart, png})
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.body, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", f.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
