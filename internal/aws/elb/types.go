package elb

import (
	"time"

	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
)

// Snapshot is the deployed state of a set of load balancers and the target
// groups they route to.
type Snapshot struct {
	LoadBalancers []LoadBalancer
	TargetGroups  []TargetGroup
}

type LoadBalancer struct {
	Name           string
	ARN            string
	Type           string // "application" / "network" / "gateway"
	State          string
	Scheme         string // "internet-facing" / "internal"
	IPAddressType  string
	DNSName        string
	VPCID          string
	Subnets        []Subnet
	SecurityGroups []string
	CreatedAt      time.Time
	Attributes     map[string]string
	Tags           map[string]string
	Listeners      []Listener
}

type Subnet struct {
	ID   string
	Zone string
}

// Listener keeps the SDK action and condition shapes so they can be
// converted without loss.
type Listener struct {
	ARN            string
	Port           int32
	Protocol       string
	SSLPolicy      string
	Certificates   []string
	DefaultActions []elbtypes.Action
	Rules          []Rule
}

type Rule struct {
	ARN        string
	Priority   string
	IsDefault  bool
	Conditions []elbtypes.RuleCondition
	Actions    []elbtypes.Action
}

type TargetGroup struct {
	Name             string
	ARN              string
	Protocol         string
	Port             int32
	TargetType       string // "instance" / "ip" / "lambda"
	VPCID            string
	HealthCheck      HealthCheck
	LoadBalancerARNs []string
	Targets          []Target
	HealthyCount     int
	UnhealthyCount   int
}

type HealthCheck struct {
	Enabled            bool
	Protocol           string
	Port               string
	Path               string
	IntervalSeconds    int32
	TimeoutSeconds     int32
	HealthyThreshold   int32
	UnhealthyThreshold int32
	Matcher            string
}

type Target struct {
	ID           string
	Port         int32
	AZ           string
	HealthState  string
	HealthReason string
	HealthDesc   string
}
