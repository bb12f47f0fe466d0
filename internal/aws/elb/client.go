package elb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/smithy-go"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ErrLoadBalancerNotFound is returned when a named load balancer does not
// exist in the account and region.
var ErrLoadBalancerNotFound = errors.New("load balancer not found")

type ELBAPI interface {
	DescribeLoadBalancers(ctx context.Context, params *elbv2.DescribeLoadBalancersInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error)
	DescribeListeners(ctx context.Context, params *elbv2.DescribeListenersInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeListenersOutput, error)
	DescribeTargetGroups(ctx context.Context, params *elbv2.DescribeTargetGroupsInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTargetGroupsOutput, error)
	DescribeTargetHealth(ctx context.Context, params *elbv2.DescribeTargetHealthInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTargetHealthOutput, error)
	DescribeRules(ctx context.Context, params *elbv2.DescribeRulesInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeRulesOutput, error)
	DescribeLoadBalancerAttributes(ctx context.Context, params *elbv2.DescribeLoadBalancerAttributesInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancerAttributesOutput, error)
	DescribeTags(ctx context.Context, params *elbv2.DescribeTagsInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeTagsOutput, error)
}

type Client struct {
	api ELBAPI
	log *zap.Logger
}

func NewClient(api ELBAPI, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{api: api, log: log}
}

// notFound maps the service's not-found error codes to
// ErrLoadBalancerNotFound.
func notFound(err error, names []string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "LoadBalancerNotFound" {
		return fmt.Errorf("%w: %s", ErrLoadBalancerNotFound, strings.Join(names, ", "))
	}
	return err
}

// ListLoadBalancers lists the load balancers named by names, or every load
// balancer when names is empty.
func (c *Client) ListLoadBalancers(ctx context.Context, names ...string) ([]LoadBalancer, error) {
	var lbs []LoadBalancer
	var marker *string

	for {
		out, err := c.api.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{
			Names:  names,
			Marker: marker,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeLoadBalancers: %w", notFound(err, names))
		}

		for _, lb := range out.LoadBalancers {
			var state string
			if lb.State != nil {
				state = string(lb.State.Code)
			}
			var createdAt time.Time
			if lb.CreatedTime != nil {
				createdAt = *lb.CreatedTime
			}
			lbs = append(lbs, LoadBalancer{
				Name:          aws.ToString(lb.LoadBalancerName),
				ARN:           aws.ToString(lb.LoadBalancerArn),
				Type:          string(lb.Type),
				State:         state,
				Scheme:        string(lb.Scheme),
				IPAddressType: string(lb.IpAddressType),
				DNSName:       aws.ToString(lb.DNSName),
				VPCID:         aws.ToString(lb.VpcId),
				Subnets: lo.Map(lb.AvailabilityZones, func(az elbtypes.AvailabilityZone, _ int) Subnet {
					return Subnet{ID: aws.ToString(az.SubnetId), Zone: aws.ToString(az.ZoneName)}
				}),
				SecurityGroups: lb.SecurityGroups,
				CreatedAt:      createdAt,
			})
		}

		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}
	return lbs, nil
}

func (c *Client) ListListeners(ctx context.Context, lbARN string) ([]Listener, error) {
	var listeners []Listener
	var marker *string

	for {
		out, err := c.api.DescribeListeners(ctx, &elbv2.DescribeListenersInput{
			LoadBalancerArn: aws.String(lbARN),
			Marker:          marker,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeListeners: %w", err)
		}

		for _, l := range out.Listeners {
			var certs []string
			for _, c := range l.Certificates {
				if arn := aws.ToString(c.CertificateArn); arn != "" {
					certs = append(certs, arn)
				}
			}
			listeners = append(listeners, Listener{
				ARN:            aws.ToString(l.ListenerArn),
				Port:           aws.ToInt32(l.Port),
				Protocol:       string(l.Protocol),
				SSLPolicy:      aws.ToString(l.SslPolicy),
				Certificates:   certs,
				DefaultActions: l.DefaultActions,
			})
		}

		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}
	return listeners, nil
}

// ListRules lists the rules of a listener, the default rule included.
func (c *Client) ListRules(ctx context.Context, listenerARN string) ([]Rule, error) {
	var rules []Rule
	var marker *string

	for {
		out, err := c.api.DescribeRules(ctx, &elbv2.DescribeRulesInput{
			ListenerArn: aws.String(listenerARN),
			Marker:      marker,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeRules: %w", err)
		}

		for _, r := range out.Rules {
			rules = append(rules, Rule{
				ARN:        aws.ToString(r.RuleArn),
				Priority:   aws.ToString(r.Priority),
				IsDefault:  aws.ToBool(r.IsDefault),
				Conditions: r.Conditions,
				Actions:    r.Actions,
			})
		}

		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}
	return rules, nil
}

func (c *Client) ListTargetGroups(ctx context.Context, lbARN string) ([]TargetGroup, error) {
	var tgs []TargetGroup
	var marker *string

	for {
		out, err := c.api.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{
			LoadBalancerArn: aws.String(lbARN),
			Marker:          marker,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeTargetGroups: %w", err)
		}

		for _, tg := range out.TargetGroups {
			item, err := c.buildTargetGroup(ctx, tg)
			if err != nil {
				return nil, err
			}
			tgs = append(tgs, item)
		}

		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}
	return tgs, nil
}

func (c *Client) buildTargetGroup(ctx context.Context, tg elbtypes.TargetGroup) (TargetGroup, error) {
	item := TargetGroup{
		Name:             aws.ToString(tg.TargetGroupName),
		ARN:              aws.ToString(tg.TargetGroupArn),
		Protocol:         string(tg.Protocol),
		Port:             aws.ToInt32(tg.Port),
		TargetType:       string(tg.TargetType),
		VPCID:            aws.ToString(tg.VpcId),
		LoadBalancerARNs: tg.LoadBalancerArns,
		HealthCheck: HealthCheck{
			Enabled:            aws.ToBool(tg.HealthCheckEnabled),
			Protocol:           string(tg.HealthCheckProtocol),
			Port:               aws.ToString(tg.HealthCheckPort),
			Path:               aws.ToString(tg.HealthCheckPath),
			IntervalSeconds:    aws.ToInt32(tg.HealthCheckIntervalSeconds),
			TimeoutSeconds:     aws.ToInt32(tg.HealthCheckTimeoutSeconds),
			HealthyThreshold:   aws.ToInt32(tg.HealthyThresholdCount),
			UnhealthyThreshold: aws.ToInt32(tg.UnhealthyThresholdCount),
		},
	}
	if tg.Matcher != nil {
		item.HealthCheck.Matcher = aws.ToString(tg.Matcher.HttpCode)
	}

	targets, err := c.ListTargets(ctx, item.ARN)
	if err != nil {
		return TargetGroup{}, fmt.Errorf("targets of %s: %w", item.ARN, err)
	}
	item.Targets = targets
	for _, t := range targets {
		switch elbtypes.TargetHealthStateEnum(t.HealthState) {
		case elbtypes.TargetHealthStateEnumHealthy:
			item.HealthyCount++
		case elbtypes.TargetHealthStateEnumUnhealthy:
			item.UnhealthyCount++
		}
	}
	return item, nil
}

func (c *Client) ListTargets(ctx context.Context, targetGroupARN string) ([]Target, error) {
	out, err := c.api.DescribeTargetHealth(ctx, &elbv2.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(targetGroupARN),
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeTargetHealth: %w", err)
	}

	targets := make([]Target, 0, len(out.TargetHealthDescriptions))
	for _, th := range out.TargetHealthDescriptions {
		t := Target{}
		if th.Target != nil {
			t.ID = aws.ToString(th.Target.Id)
			t.Port = aws.ToInt32(th.Target.Port)
			t.AZ = aws.ToString(th.Target.AvailabilityZone)
		}
		if th.TargetHealth != nil {
			t.HealthState = string(th.TargetHealth.State)
			t.HealthReason = string(th.TargetHealth.Reason)
			t.HealthDesc = aws.ToString(th.TargetHealth.Description)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (c *Client) GetLoadBalancerAttributes(ctx context.Context, lbARN string) (map[string]string, error) {
	out, err := c.api.DescribeLoadBalancerAttributes(ctx, &elbv2.DescribeLoadBalancerAttributesInput{
		LoadBalancerArn: aws.String(lbARN),
	})
	if err != nil {
		return nil, fmt.Errorf("DescribeLoadBalancerAttributes: %w", err)
	}

	attrs := make(map[string]string, len(out.Attributes))
	for _, a := range out.Attributes {
		attrs[aws.ToString(a.Key)] = aws.ToString(a.Value)
	}
	return attrs, nil
}

func (c *Client) GetResourceTags(ctx context.Context, arns []string) (map[string]map[string]string, error) {
	result := make(map[string]map[string]string, len(arns))
	// DescribeTags accepts at most 20 ARNs per call.
	for _, batch := range lo.Chunk(arns, 20) {
		out, err := c.api.DescribeTags(ctx, &elbv2.DescribeTagsInput{
			ResourceArns: batch,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeTags: %w", err)
		}
		for _, td := range out.TagDescriptions {
			tags := make(map[string]string, len(td.Tags))
			for _, t := range td.Tags {
				tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
			}
			result[aws.ToString(td.ResourceArn)] = tags
		}
	}
	return result, nil
}

// Snapshot describes the named load balancers (all of them when names is
// empty) with their listeners, rules, attributes and tags, and every target
// group they route to. Target groups shared between load balancers appear
// once.
func (c *Client) Snapshot(ctx context.Context, names ...string) (*Snapshot, error) {
	lbs, err := c.ListLoadBalancers(ctx, names...)
	if err != nil {
		return nil, err
	}
	c.log.Debug("describing load balancers", zap.Int("count", len(lbs)))

	snap := &Snapshot{}
	seen := map[string]bool{}
	for i := range lbs {
		lb := &lbs[i]
		if lb.Attributes, err = c.GetLoadBalancerAttributes(ctx, lb.ARN); err != nil {
			return nil, err
		}
		if lb.Listeners, err = c.ListListeners(ctx, lb.ARN); err != nil {
			return nil, err
		}
		for j := range lb.Listeners {
			l := &lb.Listeners[j]
			if l.Rules, err = c.ListRules(ctx, l.ARN); err != nil {
				return nil, err
			}
		}
		tgs, err := c.ListTargetGroups(ctx, lb.ARN)
		if err != nil {
			return nil, err
		}
		for _, tg := range tgs {
			if !seen[tg.ARN] {
				seen[tg.ARN] = true
				snap.TargetGroups = append(snap.TargetGroups, tg)
			}
		}
		c.log.Debug("described load balancer",
			zap.String("name", lb.Name),
			zap.Int("listeners", len(lb.Listeners)),
			zap.Int("targetGroups", len(tgs)),
		)
	}

	if len(lbs) > 0 {
		arns := lo.Map(lbs, func(lb LoadBalancer, _ int) string { return lb.ARN })
		tags, err := c.GetResourceTags(ctx, arns)
		if err != nil {
			return nil, err
		}
		for i := range lbs {
			lbs[i].Tags = tags[lbs[i].ARN]
		}
	}
	snap.LoadBalancers = lbs
	return snap, nil
}
