// cmd/score re-scores a predictions file against a truth CSV without
// re-running the pipeline.
//
// Usage:
//
//	./score -predictions predictions.jsonl -truth truth.csv
//	./score -predictions predictions.jsonl -truth truth.csv -label-column 0
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/tendant/simple-classify/internal/dataset"
)

func main() {
	predictions := flag.String("predictions", "", "Predictions file, newline-delimited JSON (required)")
	truth := flag.String("truth", "", "Truth CSV with true labels, line-aligned with the classified documents (required)")
	labelColumn := flag.Int("label-column", 0, "Column of the true label in the truth CSV")
	skipHeader := flag.Bool("skip-header", false, "Skip the first row of the truth CSV")

	flag.Parse()

	if *predictions == "" || *truth == "" {
		fmt.Println("Error: -predictions and -truth flags are required")
		flag.Usage()
		os.Exit(1)
	}

	preds, err := dataset.ReadPredictionsFile(*predictions)
	if err != nil {
		log.Fatalf("read predictions: %v", err)
	}

	records, err := dataset.Load(*truth, dataset.LoadOptions{
		LabelColumn: *labelColumn,
		TextColumns: []int{*labelColumn + 1},
		SkipHeader:  *skipHeader,
	})
	if err != nil {
		log.Fatalf("read truth: %v", err)
	}

	score, err := dataset.ScorePredictions(preds, dataset.Labels(records))
	if err != nil {
		log.Fatalf("score: %v", err)
	}

	fmt.Printf("Scored %d documents\n", score.Total)
	fmt.Printf("Accuracy: %.4f (%d/%d)\n", score.Accuracy(), score.Correct, score.Total)

	labels := make([]string, 0, len(score.PerLabel))
	for label := range score.PerLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	fmt.Println("\nPer-label:")
	for _, label := range labels {
		ls := score.PerLabel[label]
		fmt.Printf("  %-24s %d/%d\n", label, ls.Correct, ls.Total)
	}
}
