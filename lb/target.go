package lb

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Target is one member of a target group. Port 0 means the target group port.
type Target struct {
	Type             TargetType
	ID               string
	Port             int32
	AvailabilityZone string
}

// InstanceTarget addresses an EC2 instance.
func InstanceTarget(instanceID string, port int32) Target {
	return Target{Type: TargetTypeInstance, ID: instanceID, Port: port}
}

// IPTarget addresses an IP. AvailabilityZone "all" is required by the API
// for addresses outside the VPC.
func IPTarget(address string, port int32) Target {
	return Target{Type: TargetTypeIP, ID: address, Port: port}
}

// LambdaTarget addresses a Lambda function by ARN.
func LambdaTarget(functionARN string) Target {
	return Target{Type: TargetTypeLambda, ID: functionARN}
}

// InZone returns a copy of t pinned to an availability zone.
func (t Target) InZone(az string) Target {
	t.AvailabilityZone = az
	return t
}

func (t Target) String() string {
	if t.Port == 0 {
		return fmt.Sprintf("%s %s", t.Type, t.ID)
	}
	return fmt.Sprintf("%s %s:%d", t.Type, t.ID, t.Port)
}

// HealthCheck configures target health checking. Zero values are left to the
// service defaults.
type HealthCheck struct {
	Enabled            *bool
	Protocol           Protocol
	Port               string
	Path               string
	Interval           time.Duration
	Timeout            time.Duration
	HealthyThreshold   int32
	UnhealthyThreshold int32
	Matcher            string
}

func (hc *HealthCheck) validate(kind LoadBalancerType) []string {
	var problems []string
	if hc.Protocol != "" {
		allowed := []Protocol{ProtocolHTTP, ProtocolHTTPS}
		if kind == Network {
			allowed = append(allowed, ProtocolTCP)
		}
		if !lo.Contains(allowed, hc.Protocol) {
			problems = append(problems, fmt.Sprintf("protocol %s not allowed for %s target group", hc.Protocol, kind))
		}
	}
	if hc.Interval > 0 && hc.Timeout > 0 && hc.Interval < hc.Timeout {
		problems = append(problems, fmt.Sprintf("interval %s shorter than timeout %s", hc.Interval, hc.Timeout))
	}
	if hc.HealthyThreshold != 0 && (hc.HealthyThreshold < 2 || hc.HealthyThreshold > 10) {
		problems = append(problems, fmt.Sprintf("healthy threshold %d outside [2, 10]", hc.HealthyThreshold))
	}
	if hc.UnhealthyThreshold != 0 && (hc.UnhealthyThreshold < 2 || hc.UnhealthyThreshold > 10) {
		problems = append(problems, fmt.Sprintf("unhealthy threshold %d outside [2, 10]", hc.UnhealthyThreshold))
	}
	if hc.Path != "" && hc.Protocol == ProtocolTCP {
		problems = append(problems, "path is only valid for HTTP and HTTPS health checks")
	}
	return problems
}
