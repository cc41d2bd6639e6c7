// internal/classify/status.go
package classify

import (
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"

	"github.com/tendant/simple-classify/internal/jobs"
)

// classifierState maps provider model statuses onto the generic job state.
// SUBMITTED and TRAINING are pending; TRAINED (with or without warning) is
// terminal success; everything else that stops progress is terminal failure.
func classifierState(status types.ModelStatus, message string) jobs.State {
	st := jobs.State{Status: string(status), Message: message}
	switch status {
	case types.ModelStatusSubmitted, types.ModelStatusTraining, types.ModelStatusStopRequested:
	case types.ModelStatusTrained, types.ModelStatusTrainedWithWarning:
		st.Terminal = true
		st.Succeeded = true
	default:
		st.Terminal = true
	}
	return st
}

// jobState maps provider job statuses onto the generic job state.
func jobState(status types.JobStatus, message string) jobs.State {
	st := jobs.State{Status: string(status), Message: message}
	switch status {
	case types.JobStatusSubmitted, types.JobStatusInProgress, types.JobStatusStopRequested:
	case types.JobStatusCompleted:
		st.Terminal = true
		st.Succeeded = true
	default:
		st.Terminal = true
	}
	return st
}
