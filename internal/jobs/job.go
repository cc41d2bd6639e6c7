// internal/jobs/job.go
package jobs

// Kind distinguishes the two remote job families the pipeline submits.
type Kind string

const (
	KindTraining       Kind = "training"
	KindClassification Kind = "classification"
)

// Job captures the minimal metadata tracked for a remote asynchronous job.
// All real state lives in the provider; a Job is only mutated by re-querying
// the provider under its identifier.
type Job struct {
	ID      string
	Kind    Kind
	Status  string
	Message string
	Done    bool
}

func NewJob(kind Kind, id string) *Job {
	return &Job{
		ID:   id,
		Kind: kind,
	}
}

// Apply records the latest observed provider state on the job.
func (j *Job) Apply(s State) {
	j.Status = s.Status
	j.Message = s.Message
	j.Done = s.Terminal
}
