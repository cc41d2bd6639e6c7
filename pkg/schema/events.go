// pkg/schema/events.go
package schema

// PipelineStage names one phase of the classification pipeline run.
type PipelineStage string

const (
	StagePrepare        PipelineStage = "prepare"
	StageUpload         PipelineStage = "upload"
	StageProvision      PipelineStage = "provision"
	StageTraining       PipelineStage = "training"
	StageClassification PipelineStage = "classification"
	StageResults        PipelineStage = "results"
	StageScore          PipelineStage = "score"
	StageTeardown       PipelineStage = "teardown"
)

// StageEvent is published when a stage starts, finishes, or fails.
type StageEvent struct {
	RunID      string        `json:"run_id"`
	Stage      PipelineStage `json:"stage"`
	JobID      string        `json:"job_id,omitempty"`
	Status     string        `json:"status,omitempty"`
	Error      string        `json:"error,omitempty"`
	HappenedAt int64         `json:"happened_at"`
}

// RunSummary is published once at the end of a run.
type RunSummary struct {
	RunID            string  `json:"run_id"`
	ClassifierARN    string  `json:"classifier_arn,omitempty"`
	JobID            string  `json:"job_id,omitempty"`
	TrainDocuments   int     `json:"train_documents"`
	TestDocuments    int     `json:"test_documents"`
	Accuracy         float64 `json:"accuracy"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	Error            string  `json:"error,omitempty"`
	HappenedAt       int64   `json:"happened_at"`
}
