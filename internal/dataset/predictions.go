// internal/dataset/predictions.go
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// ClassScore is one candidate class with its confidence score.
type ClassScore struct {
	Name  string  `json:"Name"`
	Score float64 `json:"Score"`
}

// Prediction is one line of the classification job output: the source file
// and line it refers to, plus candidate classes ranked by score.
type Prediction struct {
	File    string       `json:"File"`
	Line    int          `json:"Line"`
	Classes []ClassScore `json:"Classes"`
}

// Top returns the highest-scoring class, or false when the provider emitted
// no candidates for the line.
func (p Prediction) Top() (ClassScore, bool) {
	if len(p.Classes) == 0 {
		return ClassScore{}, false
	}
	top := p.Classes[0]
	for _, c := range p.Classes[1:] {
		if c.Score > top.Score {
			top = c
		}
	}
	return top, true
}

// ReadPredictions parses newline-delimited JSON prediction records and
// returns them sorted by line number.
func ReadPredictions(r io.Reader) ([]Prediction, error) {
	var preds []Prediction
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var p Prediction
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("parse prediction line %d: %w", line, err)
		}
		preds = append(preds, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan predictions: %w", err)
	}

	sort.Slice(preds, func(i, j int) bool { return preds[i].Line < preds[j].Line })
	return preds, nil
}

// ReadPredictionsFile opens and parses a predictions file.
func ReadPredictionsFile(path string) ([]Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open predictions: %w", err)
	}
	defer f.Close()
	return ReadPredictions(f)
}
