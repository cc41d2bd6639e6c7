package iam

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
)

type fakeIAM struct {
	createErr     error
	putErr        error
	deletePolicy  bool
	deleteRole    bool
	gotPolicyDoc  string
	gotTrustDoc   string
	deletePolErr  error
	deleteRoleErr error
}

func (f *fakeIAM) CreateRole(ctx context.Context, in *awsiam.CreateRoleInput, opts ...func(*awsiam.Options)) (*awsiam.CreateRoleOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.gotTrustDoc = aws.ToString(in.AssumeRolePolicyDocument)
	arn := "arn:aws:iam::123456789012:role/" + aws.ToString(in.RoleName)
	return &awsiam.CreateRoleOutput{Role: &types.Role{Arn: aws.String(arn)}}, nil
}

func (f *fakeIAM) GetRole(ctx context.Context, in *awsiam.GetRoleInput, opts ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error) {
	arn := "arn:aws:iam::123456789012:role/" + aws.ToString(in.RoleName)
	return &awsiam.GetRoleOutput{Role: &types.Role{Arn: aws.String(arn)}}, nil
}

func (f *fakeIAM) PutRolePolicy(ctx context.Context, in *awsiam.PutRolePolicyInput, opts ...func(*awsiam.Options)) (*awsiam.PutRolePolicyOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.gotPolicyDoc = aws.ToString(in.PolicyDocument)
	return &awsiam.PutRolePolicyOutput{}, nil
}

func (f *fakeIAM) DeleteRolePolicy(ctx context.Context, in *awsiam.DeleteRolePolicyInput, opts ...func(*awsiam.Options)) (*awsiam.DeleteRolePolicyOutput, error) {
	if f.deletePolErr != nil {
		return nil, f.deletePolErr
	}
	f.deletePolicy = true
	return &awsiam.DeleteRolePolicyOutput{}, nil
}

func (f *fakeIAM) DeleteRole(ctx context.Context, in *awsiam.DeleteRoleInput, opts ...func(*awsiam.Options)) (*awsiam.DeleteRoleOutput, error) {
	if f.deleteRoleErr != nil {
		return nil, f.deleteRoleErr
	}
	f.deleteRole = true
	return &awsiam.DeleteRoleOutput{}, nil
}

func TestEnsureRoleCreatesAndAttachesPolicy(t *testing.T) {
	fake := &fakeIAM{}
	p := newWithAPI(fake)

	arn, err := p.EnsureRole(context.Background(), "clf-role", "my-bucket")
	if err != nil {
		t.Fatalf("EnsureRole returned error: %v", err)
	}
	if !strings.HasSuffix(arn, "role/clf-role") {
		t.Fatalf("unexpected arn: %s", arn)
	}
	if !strings.Contains(fake.gotTrustDoc, "comprehend.amazonaws.com") {
		t.Fatalf("trust policy missing provider principal: %s", fake.gotTrustDoc)
	}
	if !strings.Contains(fake.gotPolicyDoc, "arn:aws:s3:::my-bucket/*") {
		t.Fatalf("bucket policy missing object resource: %s", fake.gotPolicyDoc)
	}
}

func TestEnsureRoleReusesExistingRole(t *testing.T) {
	fake := &fakeIAM{createErr: &types.EntityAlreadyExistsException{}}
	p := newWithAPI(fake)

	arn, err := p.EnsureRole(context.Background(), "clf-role", "my-bucket")
	if err != nil {
		t.Fatalf("EnsureRole returned error: %v", err)
	}
	if !strings.HasSuffix(arn, "role/clf-role") {
		t.Fatalf("unexpected arn: %s", arn)
	}
}

func TestEnsureRolePropagatesOtherCreateErrors(t *testing.T) {
	expected := errors.New("access denied")
	p := newWithAPI(&fakeIAM{createErr: expected})

	if _, err := p.EnsureRole(context.Background(), "r", "b"); !errors.Is(err, expected) {
		t.Fatalf("expected create error, got %v", err)
	}
}

func TestDeleteRoleRemovesPolicyThenRole(t *testing.T) {
	fake := &fakeIAM{}
	p := newWithAPI(fake)

	if err := p.DeleteRole(context.Background(), "clf-role"); err != nil {
		t.Fatalf("DeleteRole returned error: %v", err)
	}
	if !fake.deletePolicy || !fake.deleteRole {
		t.Fatalf("teardown incomplete: policy=%v role=%v", fake.deletePolicy, fake.deleteRole)
	}
}

func TestDeleteRoleAttemptsRoleEvenWhenPolicyFails(t *testing.T) {
	fake := &fakeIAM{deletePolErr: errors.New("no such policy")}
	p := newWithAPI(fake)

	err := p.DeleteRole(context.Background(), "clf-role")
	if err == nil {
		t.Fatal("expected joined error")
	}
	if !fake.deleteRole {
		t.Fatal("role deletion skipped after policy failure")
	}
}
