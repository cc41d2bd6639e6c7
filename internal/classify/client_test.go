package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"
)

type fakeComprehend struct {
	createIn  *comprehend.CreateDocumentClassifierInput
	createErr error

	describeStatus  types.ModelStatus
	describeMessage string

	startIn  *comprehend.StartDocumentClassificationJobInput
	startErr error

	jobStatus  types.JobStatus
	jobMessage string
	jobOutput  string

	deletedArn string
}

func (f *fakeComprehend) CreateDocumentClassifier(ctx context.Context, in *comprehend.CreateDocumentClassifierInput, opts ...func(*comprehend.Options)) (*comprehend.CreateDocumentClassifierOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createIn = in
	return &comprehend.CreateDocumentClassifierOutput{
		DocumentClassifierArn: aws.String("arn:aws:comprehend:us-east-1:123456789012:document-classifier/" + aws.ToString(in.DocumentClassifierName)),
	}, nil
}

func (f *fakeComprehend) DescribeDocumentClassifier(ctx context.Context, in *comprehend.DescribeDocumentClassifierInput, opts ...func(*comprehend.Options)) (*comprehend.DescribeDocumentClassifierOutput, error) {
	return &comprehend.DescribeDocumentClassifierOutput{
		DocumentClassifierProperties: &types.DocumentClassifierProperties{
			DocumentClassifierArn: in.DocumentClassifierArn,
			Status:                f.describeStatus,
			Message:               aws.String(f.describeMessage),
		},
	}, nil
}

func (f *fakeComprehend) DeleteDocumentClassifier(ctx context.Context, in *comprehend.DeleteDocumentClassifierInput, opts ...func(*comprehend.Options)) (*comprehend.DeleteDocumentClassifierOutput, error) {
	f.deletedArn = aws.ToString(in.DocumentClassifierArn)
	return &comprehend.DeleteDocumentClassifierOutput{}, nil
}

func (f *fakeComprehend) StartDocumentClassificationJob(ctx context.Context, in *comprehend.StartDocumentClassificationJobInput, opts ...func(*comprehend.Options)) (*comprehend.StartDocumentClassificationJobOutput, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.startIn = in
	return &comprehend.StartDocumentClassificationJobOutput{
		JobId:     aws.String("job-123"),
		JobStatus: types.JobStatusSubmitted,
	}, nil
}

func (f *fakeComprehend) DescribeDocumentClassificationJob(ctx context.Context, in *comprehend.DescribeDocumentClassificationJobInput, opts ...func(*comprehend.Options)) (*comprehend.DescribeDocumentClassificationJobOutput, error) {
	props := &types.DocumentClassificationJobProperties{
		JobId:     in.JobId,
		JobStatus: f.jobStatus,
		Message:   aws.String(f.jobMessage),
	}
	if f.jobOutput != "" {
		props.OutputDataConfig = &types.OutputDataConfig{S3Uri: aws.String(f.jobOutput)}
	}
	return &comprehend.DescribeDocumentClassificationJobOutput{DocumentClassificationJobProperties: props}, nil
}

func TestCreateClassifierBuildsRequest(t *testing.T) {
	fake := &fakeComprehend{}
	c := newWithAPI(fake)

	arn, err := c.CreateClassifier(context.Background(), TrainingInput{
		Name:        "tickets-v1",
		RoleARN:     "arn:aws:iam::123456789012:role/clf",
		TrainingURI: "s3://bkt/input/train.csv",
	})
	if err != nil {
		t.Fatalf("CreateClassifier returned error: %v", err)
	}
	if arn == "" {
		t.Fatal("empty classifier arn")
	}
	if fake.createIn.LanguageCode != types.LanguageCodeEn {
		t.Fatalf("language not defaulted: %v", fake.createIn.LanguageCode)
	}
	if aws.ToString(fake.createIn.InputDataConfig.S3Uri) != "s3://bkt/input/train.csv" {
		t.Fatalf("training uri not passed: %v", fake.createIn.InputDataConfig)
	}
}

func TestCreateClassifierPropagatesErrors(t *testing.T) {
	expected := errors.New("quota exceeded")
	c := newWithAPI(&fakeComprehend{createErr: expected})

	if _, err := c.CreateClassifier(context.Background(), TrainingInput{Name: "x"}); !errors.Is(err, expected) {
		t.Fatalf("expected create error, got %v", err)
	}
}

func TestClassifierStateMapping(t *testing.T) {
	cases := []struct {
		status    types.ModelStatus
		terminal  bool
		succeeded bool
	}{
		{types.ModelStatusSubmitted, false, false},
		{types.ModelStatusTraining, false, false},
		{types.ModelStatusTrained, true, true},
		{types.ModelStatusTrainedWithWarning, true, true},
		{types.ModelStatusInError, true, false},
		{types.ModelStatusStopped, true, false},
	}

	for _, tc := range cases {
		fake := &fakeComprehend{describeStatus: tc.status, describeMessage: "msg"}
		c := newWithAPI(fake)

		st, err := c.ClassifierState(context.Background(), "arn")
		if err != nil {
			t.Fatalf("ClassifierState(%s) returned error: %v", tc.status, err)
		}
		if st.Terminal != tc.terminal || st.Succeeded != tc.succeeded {
			t.Fatalf("status %s mapped to terminal=%v succeeded=%v", tc.status, st.Terminal, st.Succeeded)
		}
		if st.Status != string(tc.status) {
			t.Fatalf("raw status lost: %q", st.Status)
		}
		if st.Message != "msg" {
			t.Fatalf("provider message lost: %q", st.Message)
		}
	}
}

func TestStartJobBuildsRequest(t *testing.T) {
	fake := &fakeComprehend{}
	c := newWithAPI(fake)

	id, err := c.StartJob(context.Background(), JobInput{
		Name:          "tickets-infer",
		ClassifierARN: "arn:clf",
		RoleARN:       "arn:role",
		InputURI:      "s3://bkt/input/docs.txt",
		OutputURI:     "s3://bkt/results/",
	})
	if err != nil {
		t.Fatalf("StartJob returned error: %v", err)
	}
	if id != "job-123" {
		t.Fatalf("unexpected job id: %q", id)
	}
	if fake.startIn.InputDataConfig.InputFormat != types.InputFormatOneDocPerLine {
		t.Fatalf("input format not one-doc-per-line: %v", fake.startIn.InputDataConfig.InputFormat)
	}
}

func TestJobStateMapping(t *testing.T) {
	cases := []struct {
		status    types.JobStatus
		terminal  bool
		succeeded bool
	}{
		{types.JobStatusSubmitted, false, false},
		{types.JobStatusInProgress, false, false},
		{types.JobStatusStopRequested, false, false},
		{types.JobStatusCompleted, true, true},
		{types.JobStatusFailed, true, false},
		{types.JobStatusStopped, true, false},
	}

	for _, tc := range cases {
		fake := &fakeComprehend{jobStatus: tc.status, jobMessage: "provider says"}
		c := newWithAPI(fake)

		st, err := c.JobState(context.Background(), "job-123")
		if err != nil {
			t.Fatalf("JobState(%s) returned error: %v", tc.status, err)
		}
		if st.Terminal != tc.terminal || st.Succeeded != tc.succeeded {
			t.Fatalf("status %s mapped to terminal=%v succeeded=%v", tc.status, st.Terminal, st.Succeeded)
		}
		if st.Message != "provider says" {
			t.Fatalf("provider message lost: %q", st.Message)
		}
	}
}

func TestJobOutputURI(t *testing.T) {
	fake := &fakeComprehend{jobStatus: types.JobStatusCompleted, jobOutput: "s3://bkt/results/output.tar.gz"}
	c := newWithAPI(fake)

	uri, err := c.JobOutputURI(context.Background(), "job-123")
	if err != nil {
		t.Fatalf("JobOutputURI returned error: %v", err)
	}
	if uri != "s3://bkt/results/output.tar.gz" {
		t.Fatalf("unexpected uri: %s", uri)
	}
}

func TestJobOutputURIMissingConfig(t *testing.T) {
	c := newWithAPI(&fakeComprehend{jobStatus: types.JobStatusCompleted})
	if _, err := c.JobOutputURI(context.Background(), "job-123"); err == nil {
		t.Fatal("expected error for missing output config")
	}
}

func TestDeleteClassifier(t *testing.T) {
	fake := &fakeComprehend{}
	c := newWithAPI(fake)

	if err := c.DeleteClassifier(context.Background(), "arn:clf"); err != nil {
		t.Fatalf("DeleteClassifier returned error: %v", err)
	}
	if fake.deletedArn != "arn:clf" {
		t.Fatalf("wrong classifier deleted: %q", fake.deletedArn)
	}
}
