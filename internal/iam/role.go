// internal/iam/role.go
package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// api is the slice of the IAM client used for role lifecycle.
type api interface {
	CreateRole(ctx context.Context, in *awsiam.CreateRoleInput, opts ...func(*awsiam.Options)) (*awsiam.CreateRoleOutput, error)
	GetRole(ctx context.Context, in *awsiam.GetRoleInput, opts ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error)
	PutRolePolicy(ctx context.Context, in *awsiam.PutRolePolicyInput, opts ...func(*awsiam.Options)) (*awsiam.PutRolePolicyOutput, error)
	DeleteRolePolicy(ctx context.Context, in *awsiam.DeleteRolePolicyInput, opts ...func(*awsiam.Options)) (*awsiam.DeleteRolePolicyOutput, error)
	DeleteRole(ctx context.Context, in *awsiam.DeleteRoleInput, opts ...func(*awsiam.Options)) (*awsiam.DeleteRoleOutput, error)
}

// Provisioner creates and tears down the data-access role the
// classification provider assumes to read and write the bucket.
type Provisioner struct {
	api api
}

func NewProvisioner(svc *awsiam.Client) *Provisioner {
	return &Provisioner{api: svc}
}

func newWithAPI(a api) *Provisioner {
	return &Provisioner{api: a}
}

const policyName = "bucket-access"

const trustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"Service": "comprehend.amazonaws.com"},
    "Action": "sts:AssumeRole"
  }]
}`

func bucketPolicy(bucket string) string {
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Action": ["s3:GetObject", "s3:PutObject"],
      "Resource": "arn:aws:s3:::%s/*"
    },
    {
      "Effect": "Allow",
      "Action": "s3:ListBucket",
      "Resource": "arn:aws:s3:::%s"
    }
  ]
}`, bucket, bucket)
}

// EnsureRole creates the role with the provider trust policy and attaches
// an inline policy granting access to the bucket. An existing role with the
// same name is reused.
func (p *Provisioner) EnsureRole(ctx context.Context, roleName, bucket string) (string, error) {
	var arn string
	out, err := p.api.CreateRole(ctx, &awsiam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
		Description:              aws.String("data access role for document classification"),
	})
	switch {
	case err == nil:
		arn = aws.ToString(out.Role.Arn)
	default:
		var exists *types.EntityAlreadyExistsException
		if !errors.As(err, &exists) {
			return "", fmt.Errorf("create role %s: %w", roleName, err)
		}
		got, err := p.api.GetRole(ctx, &awsiam.GetRoleInput{RoleName: aws.String(roleName)})
		if err != nil {
			return "", fmt.Errorf("get existing role %s: %w", roleName, err)
		}
		arn = aws.ToString(got.Role.Arn)
	}

	_, err = p.api.PutRolePolicy(ctx, &awsiam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(bucketPolicy(bucket)),
	})
	if err != nil {
		return "", fmt.Errorf("put role policy on %s: %w", roleName, err)
	}
	return arn, nil
}

// DeleteRole removes the inline policy and then the role itself. Both steps
// are attempted; failures are joined.
func (p *Provisioner) DeleteRole(ctx context.Context, roleName string) error {
	var errs []error
	_, err := p.api.DeleteRolePolicy(ctx, &awsiam.DeleteRolePolicyInput{
		RoleName:   aws.String(roleName),
		PolicyName: aws.String(policyName),
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("delete role policy: %w", err))
	}
	if _, err := p.api.DeleteRole(ctx, &awsiam.DeleteRoleInput{RoleName: aws.String(roleName)}); err != nil {
		errs = append(errs, fmt.Errorf("delete role: %w", err))
	}
	return errors.Join(errs...)
}
