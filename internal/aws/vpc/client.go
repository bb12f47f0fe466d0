package vpc

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type VPCAPI interface {
	DescribeSubnets(ctx context.Context, params *awsec2.DescribeSubnetsInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeSubnetsOutput, error)
}

type Client struct {
	api VPCAPI
}

func NewClient(api VPCAPI) *Client {
	return &Client{api: api}
}

func nameFromTags(tags []types.Tag) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == "Name" {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}

// ListSubnets describes the subnets with the given ids.
func (c *Client) ListSubnets(ctx context.Context, subnetIDs []string) ([]SubnetInfo, error) {
	var subnets []SubnetInfo
	var nextToken *string

	for {
		out, err := c.api.DescribeSubnets(ctx, &awsec2.DescribeSubnetsInput{
			SubnetIds: subnetIDs,
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeSubnets: %w", err)
		}

		for _, s := range out.Subnets {
			subnets = append(subnets, SubnetInfo{
				SubnetID: aws.ToString(s.SubnetId),
				Name:     nameFromTags(s.Tags),
				VPCID:    aws.ToString(s.VpcId),
				CIDR:     aws.ToString(s.CidrBlock),
				AZ:       aws.ToString(s.AvailabilityZone),
			})
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return subnets, nil
}

// SubnetZones maps each subnet id to its availability zone. Every id must
// exist.
func (c *Client) SubnetZones(ctx context.Context, subnetIDs []string) (map[string]string, error) {
	subnets, err := c.ListSubnets(ctx, subnetIDs)
	if err != nil {
		return nil, err
	}
	zones := make(map[string]string, len(subnets))
	for _, s := range subnets {
		zones[s.SubnetID] = s.AZ
	}
	var missing []string
	for _, id := range subnetIDs {
		if _, ok := zones[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("subnets not found: %s", strings.Join(missing, ", "))
	}
	return zones, nil
}
