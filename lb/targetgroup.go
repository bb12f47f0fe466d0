package lb

import (
	"github.com/samber/lo"

	"tasnim.dev/lbgraph/template"
)

// TargetGroupProps configures a target group. An empty TargetType is
// inferred from the first registered target.
type TargetGroupProps struct {
	Name        string
	Port        int32
	Protocol    Protocol
	TargetType  TargetType
	VPC         string
	HealthCheck *HealthCheck
	Attributes  map[string]string
}

// TargetGroup is a set of targets shared by any number of listeners. It
// exposes an attachment gate that opens once a listener routing to it has
// been wired to a load balancer; targets and health check are frozen from
// then on.
type TargetGroup struct {
	handle      *Handle
	kind        LoadBalancerType
	name        string
	port        int32
	protocol    Protocol
	targetType  TargetType
	vpc         string
	healthCheck *HealthCheck
	attributes  map[string]string

	targets      []Target
	listeners    []*Listener
	connectables []connectableRegistration
	gate         *Gate
}

type connectableRegistration struct {
	conns *Connections
	ports PortRange
}

// NewApplicationTargetGroup creates a target group for application load
// balancers.
func NewApplicationTargetGroup(scope *Scope, id string, props TargetGroupProps) *TargetGroup {
	return newTargetGroup(scope, id, Application, props)
}

// NewNetworkTargetGroup creates a target group for network load balancers.
func NewNetworkTargetGroup(scope *Scope, id string, props TargetGroupProps) *TargetGroup {
	return newTargetGroup(scope, id, Network, props)
}

func newTargetGroup(scope *Scope, id string, kind LoadBalancerType, props TargetGroupProps) *TargetGroup {
	tg := buildTargetGroup(scope, id, kind, props)
	scope.addTargetGroup(tg)
	return tg
}

// buildTargetGroup creates a target group that is not yet part of scope.
func buildTargetGroup(scope *Scope, id string, kind LoadBalancerType, props TargetGroupProps) *TargetGroup {
	tg := &TargetGroup{
		handle:      makeHandle(scope, id, template.KindTargetGroup),
		kind:        kind,
		name:        props.Name,
		port:        props.Port,
		protocol:    props.Protocol,
		targetType:  props.TargetType,
		vpc:         props.VPC,
		healthCheck: props.HealthCheck,
		attributes:  props.Attributes,
	}
	tg.gate = &Gate{tg: tg}
	if tg.name == "" {
		tg.name = physicalName(scope.name, id, 32)
	}
	tg.handle.arn = scope.elbARN("targetgroup/%s/%s", tg.name, digest(tg.handle.Path(), 16))
	return tg
}

func (tg *TargetGroup) Handle() *Handle              { return tg.handle }
func (tg *TargetGroup) Kind() LoadBalancerType       { return tg.kind }
func (tg *TargetGroup) Name() string                 { return tg.name }
func (tg *TargetGroup) Port() int32                  { return tg.port }
func (tg *TargetGroup) TargetType() TargetType       { return tg.targetType }
func (tg *TargetGroup) Targets() []Target            { return append([]Target(nil), tg.targets...) }
func (tg *TargetGroup) Listeners() []*Listener       { return append([]*Listener(nil), tg.listeners...) }
func (tg *TargetGroup) HealthCheck() *HealthCheck    { return tg.healthCheck }
func (tg *TargetGroup) dependencyHandles() []*Handle { return []*Handle{tg.handle} }

// Protocol returns the configured protocol, or the one implied by kind and
// port. Lambda target groups have none.
func (tg *TargetGroup) Protocol() Protocol {
	switch {
	case tg.protocol != "":
		return tg.protocol
	case tg.targetType == TargetTypeLambda:
		return ""
	case tg.kind == Network:
		return ProtocolTCP
	case tg.port == 443:
		return ProtocolHTTPS
	default:
		return ProtocolHTTP
	}
}

// LoadBalancerAttached returns the attachment gate.
func (tg *TargetGroup) LoadBalancerAttached() *Gate { return tg.gate }

// AddTarget registers targets. Every target must share the group's target
// type, which is inferred from the first target when unset. A lambda group
// holds at most one target. Re-adding an identical target is a no-op. On
// error no target of the call is registered.
func (tg *TargetGroup) AddTarget(targets ...Target) error {
	path := tg.handle.Path()
	if tg.gate.opened {
		return newIssue(path, ErrFrozenAfterAttach, "cannot add targets")
	}
	targetType := tg.targetType
	pending := append([]Target(nil), tg.targets...)
	for _, t := range targets {
		if t.Type == "" {
			return newIssue(path, ErrTargetTypeMismatch, "target %s declares no type", t.ID)
		}
		if targetType == "" {
			targetType = t.Type
		}
		if t.Type != targetType {
			return newIssue(path, ErrTargetTypeMismatch, "target %s is %s, group is %s", t.ID, t.Type, targetType)
		}
		if lo.Contains(pending, t) {
			continue
		}
		if targetType == TargetTypeLambda && len(pending) > 0 {
			return newIssue(path, ErrLambdaMultiTarget, "cannot add %s", t.ID)
		}
		pending = append(pending, t)
	}
	tg.targetType = targetType
	tg.targets = pending
	return nil
}

// ConfigureHealthCheck replaces the health check. The values are validated
// at commit.
func (tg *TargetGroup) ConfigureHealthCheck(hc HealthCheck) error {
	if tg.gate.opened {
		return newIssue(tg.handle.Path(), ErrFrozenAfterAttach, "cannot change health check")
	}
	tg.healthCheck = &hc
	return nil
}

// RegisterConnectable records that c must admit every load balancer routing
// to this group on ports. A zero range means the group port. Grants for
// listeners already routing here are requested immediately; later listeners
// request theirs from RegisterListener.
func (tg *TargetGroup) RegisterConnectable(c Connectable, ports PortRange) error {
	if tg.kind != Application {
		return newIssue(tg.handle.Path(), ErrNotApplicationTargetGroup, "cannot register connectable")
	}
	if ports == (PortRange{}) {
		ports = Port(tg.port)
	}
	reg := connectableRegistration{conns: c.Connections(), ports: ports}
	if !lo.Contains(tg.connectables, reg) {
		tg.connectables = append(tg.connectables, reg)
	}
	for _, l := range tg.listeners {
		l.lb.connections.grant(reg.conns, reg.ports)
	}
	return nil
}

// RegisterListener records that l routes to this group. It is idempotent.
func (tg *TargetGroup) RegisterListener(l *Listener) {
	if lo.Contains(tg.listeners, l) {
		return
	}
	tg.listeners = append(tg.listeners, l)
	if l.lb.kind != Application {
		return
	}
	for _, reg := range tg.connectables {
		l.lb.connections.grant(reg.conns, reg.ports)
	}
}

func (tg *TargetGroup) validate() []*Issue {
	path := tg.handle.Path()
	var issues []*Issue
	if tg.targetType != TargetTypeLambda {
		if !validPort(tg.port) {
			issues = append(issues, newIssue(path, ErrInvalidPortRange, "target group port %d", tg.port))
		}
		if p := tg.Protocol(); !lo.Contains(protocolsFor(tg.kind), p) {
			issues = append(issues, newIssue(path, ErrProtocolMismatch, "%s target group cannot use %s", tg.kind, p))
		}
	}
	if tg.healthCheck != nil {
		for _, p := range tg.healthCheck.validate(tg.kind) {
			issues = append(issues, newIssue(path, ErrInvalidHealthCheck, "%s", p))
		}
	}
	for _, t := range tg.targets {
		if t.Port != 0 && !validPort(t.Port) {
			issues = append(issues, newIssue(path, ErrInvalidPortRange, "target %s port %d", t.ID, t.Port))
		}
	}
	for _, reg := range tg.connectables {
		if !reg.ports.valid() {
			issues = append(issues, newIssue(path, ErrInvalidPortRange, "connectable %s ports %s", reg.conns.Path(), reg.ports))
		}
	}
	for _, l := range tg.listeners {
		if l.lb.kind != tg.kind {
			issues = append(issues, newIssue(path, ErrProtocolMismatch, "%s target group routed from %s listener %s", tg.kind, l.lb.kind, l.handle.Path()))
		}
	}
	if len(tg.targets) > 0 && len(tg.listeners) == 0 {
		i := newIssue(path, ErrOrphanedTargetGroup, "")
		i.Warning = true
		issues = append(issues, i)
	}
	return issues
}
