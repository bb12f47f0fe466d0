package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	awss3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	awselb "tasnim.dev/lbgraph/internal/aws/elb"
	awss3 "tasnim.dev/lbgraph/internal/aws/s3"
	awsvpc "tasnim.dev/lbgraph/internal/aws/vpc"
)

type ServiceClient struct {
	ELB *awselb.Client
	VPC *awsvpc.Client
	S3  *awss3.Client

	cfg aws.Config
}

func NewServiceClient(ctx context.Context, profile, region string, log *zap.Logger) (*ServiceClient, error) {
	cfg, err := LoadConfig(ctx, profile, region)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &ServiceClient{
		ELB: awselb.NewClient(elbv2.NewFromConfig(cfg), log),
		VPC: awsvpc.NewClient(ec2.NewFromConfig(cfg)),
		S3:  awss3.NewClient(awss3sdk.NewFromConfig(cfg), log),
		cfg: cfg,
	}, nil
}

// Region is the region the config resolved to.
func (s *ServiceClient) Region() string {
	return s.cfg.Region
}

// AccountID looks up the caller's account.
func (s *ServiceClient) AccountID(ctx context.Context) (string, error) {
	return GetAccountID(ctx, s.cfg)
}
