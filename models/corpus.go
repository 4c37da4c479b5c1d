package models

import (
	"bufio"
	"fmt"
	"os"
)

// ReadCorpusLines reads a plain-text corpus, one sample per
// newline-terminated line (spec.md §6 "Persisted formats"), used by
// both the PPM from-corpus builder and the cross-entropy evaluator.
func ReadCorpusLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mozolm: opening corpus: %w", err)
	}
	defer f.Close()
	var lines []string
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 1<<20)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	return lines, s.Err()
}
