package validate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/theimaginaryfoundation/persona-o-bot/corpus"
)

// Summary counts the documents checked by ValidatePath.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Failures []string
}

// ValidatePath validates a single file, or every .json/.txt file under a
// directory (hidden directories such as .cache are skipped). It only reports;
// nothing on disk is changed.
func ValidatePath(path string, v Validator, logger *log.Logger) (Summary, error) {
	if v == nil {
		return Summary{}, errors.New("ValidatePath: validator is nil")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	files, err := corpus.CollectDocumentFiles(path)
	if err != nil {
		return Summary{}, fmt.Errorf("ValidatePath: %w", err)
	}
	if len(files) == 0 {
		logger.Warn("no JSON or TXT files found", "path", path)
		return Summary{}, nil
	}
	logger.Info("validating", "path", path, "files", len(files))

	var sum Summary
	for _, f := range files {
		sum.Total++
		rel := relName(path, f)
		b, err := os.ReadFile(f)
		if err != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, rel)
			logger.Error("read failed", "file", rel, "error", err)
			continue
		}
		rep := v.Validate(b)
		if rep.Valid {
			sum.Passed++
			logger.Info("PASS", "file", rel)
			continue
		}
		sum.Failed++
		sum.Failures = append(sum.Failures, rel)
		logger.Error("FAIL", "file", rel, "problems", len(rep.Diagnostics))
		for _, d := range rep.Diagnostics {
			logger.Error("  " + d.String())
		}
	}
	logger.Info("validation finished", "total", sum.Total, "passed", sum.Passed, "failed", sum.Failed)
	return sum, nil
}

func relName(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && rel != "." {
		return rel
	}
	return filepath.Base(path)
}
