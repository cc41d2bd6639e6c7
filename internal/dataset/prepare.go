// internal/dataset/prepare.go
package dataset

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// Record is one labeled document.
type Record struct {
	Label string
	Text  string
}

// LoadOptions selects which source columns feed a Record. TextColumns are
// concatenated in order with a single space between them.
type LoadOptions struct {
	LabelColumn int
	TextColumns []int
	SkipHeader  bool
}

// Load reads a source CSV and reshapes it into labeled documents. Rows
// missing the label or every text column are dropped; embedded newlines are
// flattened so each document fits on one line.
func Load(path string, opts LoadOptions) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read source csv: %w", err)
	}
	if opts.SkipHeader && len(rows) > 0 {
		rows = rows[1:]
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, ok := reshapeRow(row, opts)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func reshapeRow(row []string, opts LoadOptions) (Record, bool) {
	if opts.LabelColumn >= len(row) {
		return Record{}, false
	}
	label := strings.TrimSpace(row[opts.LabelColumn])
	if label == "" {
		return Record{}, false
	}

	parts := make([]string, 0, len(opts.TextColumns))
	for _, col := range opts.TextColumns {
		if col >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[col]); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return Record{}, false
	}

	text := flatten(strings.Join(parts, " "))
	return Record{Label: label, Text: text}, true
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Split shuffles records deterministically by seed and carves off a held-out
// test set. trainRatio must lie strictly between 0 and 1 so both sides end
// up non-empty for any reasonably sized input.
func Split(records []Record, trainRatio float64, seed int64) (train, test []Record, err error) {
	if trainRatio <= 0 || trainRatio >= 1 {
		return nil, nil, fmt.Errorf("train ratio %v outside (0, 1)", trainRatio)
	}

	shuffled := make([]Record, len(records))
	copy(shuffled, records)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cut := int(float64(len(shuffled)) * trainRatio)
	return shuffled[:cut], shuffled[cut:], nil
}

// WriteTraining writes records as headerless label,text CSV lines, the
// format the classifier trainer consumes.
func WriteTraining(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create training file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, rec := range records {
		if err := w.Write([]string{rec.Label, rec.Text}); err != nil {
			return fmt.Errorf("write training row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush training file: %w", err)
	}
	return nil
}

// WriteDocuments writes one unlabeled document per line for the
// classification job input (one-doc-per-line format).
func WriteDocuments(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create documents file: %w", err)
	}
	defer f.Close()

	for _, rec := range records {
		if _, err := fmt.Fprintln(f, rec.Text); err != nil {
			return fmt.Errorf("write document line: %w", err)
		}
	}
	return nil
}

// Labels returns the true labels of records in order, for scoring against
// line-indexed predictions.
func Labels(records []Record) []string {
	labels := make([]string, len(records))
	for i, rec := range records {
		labels[i] = rec.Label
	}
	return labels
}
