// internal/classify/client.go
package classify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"

	"github.com/tendant/simple-classify/internal/jobs"
)

// api is the slice of the Comprehend client the pipeline calls.
type api interface {
	CreateDocumentClassifier(ctx context.Context, in *comprehend.CreateDocumentClassifierInput, opts ...func(*comprehend.Options)) (*comprehend.CreateDocumentClassifierOutput, error)
	DescribeDocumentClassifier(ctx context.Context, in *comprehend.DescribeDocumentClassifierInput, opts ...func(*comprehend.Options)) (*comprehend.DescribeDocumentClassifierOutput, error)
	DeleteDocumentClassifier(ctx context.Context, in *comprehend.DeleteDocumentClassifierInput, opts ...func(*comprehend.Options)) (*comprehend.DeleteDocumentClassifierOutput, error)
	StartDocumentClassificationJob(ctx context.Context, in *comprehend.StartDocumentClassificationJobInput, opts ...func(*comprehend.Options)) (*comprehend.StartDocumentClassificationJobOutput, error)
	DescribeDocumentClassificationJob(ctx context.Context, in *comprehend.DescribeDocumentClassificationJobInput, opts ...func(*comprehend.Options)) (*comprehend.DescribeDocumentClassificationJobOutput, error)
}

// Client wraps the managed classification provider with the thin calls the
// pipeline needs: create/describe/delete a classifier and start/describe an
// asynchronous classification job.
type Client struct {
	api api
}

func NewClient(svc *comprehend.Client) *Client {
	return &Client{api: svc}
}

func newWithAPI(a api) *Client {
	return &Client{api: a}
}

// TrainingInput describes a classifier-training submission.
type TrainingInput struct {
	Name        string
	RoleARN     string
	TrainingURI string
	Language    string
}

// CreateClassifier submits classifier training and returns the classifier
// ARN, which doubles as the identifier polled for training progress.
func (c *Client) CreateClassifier(ctx context.Context, in TrainingInput) (string, error) {
	lang := types.LanguageCode(in.Language)
	if lang == "" {
		lang = types.LanguageCodeEn
	}
	out, err := c.api.CreateDocumentClassifier(ctx, &comprehend.CreateDocumentClassifierInput{
		DocumentClassifierName: aws.String(in.Name),
		DataAccessRoleArn:      aws.String(in.RoleARN),
		LanguageCode:           lang,
		InputDataConfig: &types.DocumentClassifierInputDataConfig{
			S3Uri: aws.String(in.TrainingURI),
		},
	})
	if err != nil {
		return "", fmt.Errorf("create document classifier: %w", err)
	}
	return aws.ToString(out.DocumentClassifierArn), nil
}

// ClassifierState reports the current training state for a classifier ARN.
func (c *Client) ClassifierState(ctx context.Context, arn string) (jobs.State, error) {
	out, err := c.api.DescribeDocumentClassifier(ctx, &comprehend.DescribeDocumentClassifierInput{
		DocumentClassifierArn: aws.String(arn),
	})
	if err != nil {
		return jobs.State{}, fmt.Errorf("describe document classifier: %w", err)
	}
	props := out.DocumentClassifierProperties
	if props == nil {
		return jobs.State{}, fmt.Errorf("describe document classifier %s: empty properties", arn)
	}
	return classifierState(props.Status, aws.ToString(props.Message)), nil
}

// DeleteClassifier removes a trained classifier.
func (c *Client) DeleteClassifier(ctx context.Context, arn string) error {
	_, err := c.api.DeleteDocumentClassifier(ctx, &comprehend.DeleteDocumentClassifierInput{
		DocumentClassifierArn: aws.String(arn),
	})
	if err != nil {
		return fmt.Errorf("delete document classifier: %w", err)
	}
	return nil
}

// JobInput describes an asynchronous classification job submission.
type JobInput struct {
	Name          string
	ClassifierARN string
	RoleARN       string
	InputURI      string
	OutputURI     string
}

// StartJob submits a classification job over one-document-per-line input
// and returns the provider job identifier.
func (c *Client) StartJob(ctx context.Context, in JobInput) (string, error) {
	out, err := c.api.StartDocumentClassificationJob(ctx, &comprehend.StartDocumentClassificationJobInput{
		JobName:               aws.String(in.Name),
		DocumentClassifierArn: aws.String(in.ClassifierARN),
		DataAccessRoleArn:     aws.String(in.RoleARN),
		InputDataConfig: &types.InputDataConfig{
			S3Uri:       aws.String(in.InputURI),
			InputFormat: types.InputFormatOneDocPerLine,
		},
		OutputDataConfig: &types.OutputDataConfig{
			S3Uri: aws.String(in.OutputURI),
		},
	})
	if err != nil {
		return "", fmt.Errorf("start classification job: %w", err)
	}
	return aws.ToString(out.JobId), nil
}

// JobState reports the current state of a classification job.
func (c *Client) JobState(ctx context.Context, jobID string) (jobs.State, error) {
	props, err := c.describeJob(ctx, jobID)
	if err != nil {
		return jobs.State{}, err
	}
	return jobState(props.JobStatus, aws.ToString(props.Message)), nil
}

// JobOutputURI returns the S3 URI of the job's output archive.
func (c *Client) JobOutputURI(ctx context.Context, jobID string) (string, error) {
	props, err := c.describeJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if props.OutputDataConfig == nil {
		return "", fmt.Errorf("job %s has no output config", jobID)
	}
	return aws.ToString(props.OutputDataConfig.S3Uri), nil
}

func (c *Client) describeJob(ctx context.Context, jobID string) (*types.DocumentClassificationJobProperties, error) {
	out, err := c.api.DescribeDocumentClassificationJob(ctx, &comprehend.DescribeDocumentClassificationJobInput{
		JobId: aws.String(jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("describe classification job: %w", err)
	}
	if out.DocumentClassificationJobProperties == nil {
		return nil, fmt.Errorf("describe classification job %s: empty properties", jobID)
	}
	return out.DocumentClassificationJobProperties, nil
}
