package tagger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// WriteOutcomes writes one CSV row per outcome (key,success,reason,detail),
// sorted by key.
func WriteOutcomes(path string, outcomes []TagOutcome) error {
	sorted := append([]TagOutcome(nil), outcomes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	records := make([][]string, 0, len(sorted)+1)
	records = append(records, []string{"key", "success", "reason", "detail"})
	for _, o := range sorted {
		records = append(records, []string{o.Key, strconv.FormatBool(o.Success), string(o.Reason), o.Detail})
	}
	return writeCSV(path, records)
}

// WriteKeys writes the match set as a single-column CSV.
func WriteKeys(path string, keys []string) error {
	records := make([][]string, 0, len(keys)+1)
	records = append(records, []string{"key"})
	for _, k := range keys {
		records = append(records, []string{k})
	}
	return writeCSV(path, records)
}

func writeCSV(path string, records [][]string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
