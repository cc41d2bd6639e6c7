// internal/dataset/score.go
package dataset

import "fmt"

// LabelScore counts scoring outcomes for a single true label.
type LabelScore struct {
	Total   int
	Correct int
}

// Score aggregates prediction accuracy against held-out true labels.
type Score struct {
	Total    int
	Correct  int
	PerLabel map[string]LabelScore
}

// Accuracy is the fraction of scored lines whose top class matched the true
// label. Zero when nothing was scored.
func (s Score) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// ScorePredictions compares each prediction's top class against the true
// label for its line. Predictions pointing outside the truth set are an
// error; lines with no candidate classes count as misses.
func ScorePredictions(preds []Prediction, truth []string) (Score, error) {
	score := Score{PerLabel: make(map[string]LabelScore)}

	for _, p := range preds {
		if p.Line < 0 || p.Line >= len(truth) {
			return Score{}, fmt.Errorf("prediction line %d outside truth set of %d labels", p.Line, len(truth))
		}
		want := truth[p.Line]

		ls := score.PerLabel[want]
		ls.Total++
		score.Total++

		if top, ok := p.Top(); ok && top.Name == want {
			ls.Correct++
			score.Correct++
		}
		score.PerLabel[want] = ls
	}
	return score, nil
}
