package lb

import (
	"fmt"
	"regexp"

	"github.com/samber/lo"

	"tasnim.dev/lbgraph/template"
)

var loadBalancerName = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,30}[A-Za-z0-9])?$`)

// LoadBalancerProps configures a load balancer. Scheme defaults to
// internal, IPAddressType to ipv4. An application load balancer without
// SecurityGroups gets one created for it.
type LoadBalancerProps struct {
	Name           string
	VPC            string
	Subnets        []Subnet
	SecurityGroups []*SecurityGroup
	Scheme         Scheme
	IPAddressType  IPAddressType
	Attributes     map[string]string
}

// LoadBalancer is an application or network load balancer. It owns its
// listeners exclusively.
type LoadBalancer struct {
	handle        *Handle
	kind          LoadBalancerType
	name          string
	vpc           string
	subnets       []Subnet
	scheme        Scheme
	ipAddressType IPAddressType
	attributes    map[string]string

	securityGroups []*SecurityGroup
	connections    *Connections
	listeners      []*Listener
}

// NewApplicationLoadBalancer creates an application load balancer in scope.
func NewApplicationLoadBalancer(scope *Scope, id string, props LoadBalancerProps) *LoadBalancer {
	return newLoadBalancer(scope, id, Application, props)
}

// NewNetworkLoadBalancer creates a network load balancer in scope.
func NewNetworkLoadBalancer(scope *Scope, id string, props LoadBalancerProps) *LoadBalancer {
	return newLoadBalancer(scope, id, Network, props)
}

func newLoadBalancer(scope *Scope, id string, kind LoadBalancerType, props LoadBalancerProps) *LoadBalancer {
	lb := &LoadBalancer{
		handle:         newHandle(scope, id, template.KindLoadBalancer),
		kind:           kind,
		name:           props.Name,
		vpc:            props.VPC,
		subnets:        append([]Subnet(nil), props.Subnets...),
		scheme:         props.Scheme,
		ipAddressType:  props.IPAddressType,
		attributes:     props.Attributes,
		securityGroups: append([]*SecurityGroup(nil), props.SecurityGroups...),
	}
	if lb.name == "" {
		lb.name = physicalName(scope.name, id, 32)
	}
	if lb.scheme == "" {
		lb.scheme = SchemeInternal
	}
	if lb.ipAddressType == "" {
		lb.ipAddressType = IPv4
	}
	lb.handle.arn = scope.elbARN("loadbalancer/%s", lb.arnSuffix())

	var groups []*SecurityGroup
	if kind == Application {
		groups = lb.securityGroups
		if len(groups) == 0 {
			sg := &SecurityGroup{handle: newHandle(scope, id+"/SecurityGroup", template.KindSecurityGroup)}
			sg.handle.arn = scope.arn("ec2", "security-group/sg-"+digest(sg.handle.Path(), 17))
			groups = []*SecurityGroup{sg}
		}
	}
	lb.connections = NewConnections(scope, id, groups...)
	scope.loadBalancers = append(scope.loadBalancers, lb)
	return lb
}

func (lb *LoadBalancer) arnSuffix() string {
	return fmt.Sprintf("%s/%s/%s", kindPrefix(lb.kind), lb.name, digest(lb.handle.Path(), 16))
}

func (lb *LoadBalancer) Handle() *Handle              { return lb.handle }
func (lb *LoadBalancer) Kind() LoadBalancerType       { return lb.kind }
func (lb *LoadBalancer) Name() string                 { return lb.name }
func (lb *LoadBalancer) Listeners() []*Listener       { return append([]*Listener(nil), lb.listeners...) }
func (lb *LoadBalancer) dependencyHandles() []*Handle { return []*Handle{lb.handle} }

// Connections is the security-group façade of the load balancer. For an
// application load balancer it holds the grant log that commit turns into
// ingress records; a network load balancer has no security groups.
func (lb *LoadBalancer) Connections() *Connections { return lb.connections }

// AddListener creates a listener bound to the load balancer.
func (lb *LoadBalancer) AddListener(id string, props ListenerProps) (*Listener, error) {
	return newListener(lb, id, props)
}

func (lb *LoadBalancer) validate() []*Issue {
	path := lb.handle.Path()
	var issues []*Issue
	add := func(err error, format string, args ...any) {
		issues = append(issues, newIssue(path, err, format, args...))
	}
	if !loadBalancerName.MatchString(lb.name) {
		add(ErrInvalidLoadBalancerProp, "name %q must be 1 to 32 alphanumerics or hyphens, not starting or ending with a hyphen", lb.name)
	}
	if !lo.Contains([]Scheme{SchemeInternetFacing, SchemeInternal}, lb.scheme) {
		add(ErrInvalidLoadBalancerProp, "scheme %q", lb.scheme)
	}
	if !lo.Contains([]IPAddressType{IPv4, DualStack}, lb.ipAddressType) {
		add(ErrInvalidLoadBalancerProp, "ip address type %q", lb.ipAddressType)
	}
	if msg := checkSubnets(lb.subnets); msg != "" {
		add(ErrInvalidSubnetSet, "%s", msg)
	}
	if lb.kind == Network && len(lb.securityGroups) > 0 {
		add(ErrNLBHasSecurityGroup, "%d security group(s) supplied", len(lb.securityGroups))
	}
	ports := map[int32]string{}
	for _, l := range lb.listeners {
		if other, ok := ports[l.port]; ok {
			issues = append(issues, newIssue(l.handle.Path(), ErrDuplicateListenerPort, "port %d is used by %s", l.port, other))
		} else {
			ports[l.port] = l.handle.Path()
		}
		issues = append(issues, l.validate()...)
	}
	return issues
}

// checkSubnets requires two distinct subnets, at most one per availability
// zone. Subnets whose zone is unknown count as distinct zones.
func checkSubnets(subnets []Subnet) string {
	ids := lo.Uniq(lo.FilterMap(subnets, func(s Subnet, _ int) (string, bool) { return s.ID, s.ID != "" }))
	if len(ids) < 2 {
		return fmt.Sprintf("%d distinct subnet(s)", len(ids))
	}
	seen := map[string]string{}
	for _, s := range lo.UniqBy(subnets, func(s Subnet) string { return s.ID }) {
		if s.AvailabilityZone == "" {
			continue
		}
		if other, ok := seen[s.AvailabilityZone]; ok {
			return fmt.Sprintf("subnets %s and %s are both in %s", other, s.ID, s.AvailabilityZone)
		}
		seen[s.AvailabilityZone] = s.ID
	}
	return ""
}
