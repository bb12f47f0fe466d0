package lb

import (
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"

	"tasnim.dev/lbgraph/template"
)

const (
	anyIPv4 = "0.0.0.0/0"
	anyIPv6 = "::/0"
)

// renderer renders the records of one scope. References to resources of
// the same scope use logical IDs; anything else is referenced by ARN token.
type renderer struct {
	scope *Scope
	out   []template.Resource
}

func renderScope(s *Scope, grants []placedGrant) []template.Resource {
	r := &renderer{scope: s}
	for _, lb := range s.loadBalancers {
		r.loadBalancer(lb)
	}
	for _, tg := range s.targetGroups {
		r.targetGroup(tg)
	}
	for _, pg := range grants {
		r.ingress(pg)
	}
	for _, e := range s.externals {
		r.emit(e.handle, template.ExternalProperties{Type: e.resourceType, Properties: e.properties})
	}
	return r.out
}

func (r *renderer) ref(h *Handle) template.Ref {
	if h.scope == r.scope {
		return template.Ref{Ref: h.logicalID}
	}
	return template.Ref{Token: h.arn}
}

func (r *renderer) groupRef(sg *SecurityGroup) template.Ref {
	if sg.handle == nil {
		return template.Ref{Value: sg.id}
	}
	return r.ref(sg.handle)
}

func (r *renderer) targetGroupRef(tg *TargetGroup) template.Ref { return r.ref(tg.handle) }

// dependsOn lists the same-scope logical IDs h waits for. Cross-scope
// dependencies are scope edges only.
func (r *renderer) dependsOn(h *Handle) []string {
	var ids []string
	for _, d := range h.deps {
		for _, dh := range d.dependencyHandles() {
			if dh.scope == r.scope && dh != h && !lo.Contains(ids, dh.logicalID) {
				ids = append(ids, dh.logicalID)
			}
		}
	}
	return ids
}

func (r *renderer) emit(h *Handle, props template.Properties) {
	r.out = append(r.out, template.Resource{
		LogicalID:  h.logicalID,
		Kind:       h.kind,
		Scope:      r.scope.name,
		Path:       h.Path(),
		DependsOn:  r.dependsOn(h),
		Properties: props,
	})
}

// emitDerived emits a record that has no handle of its own, such as a
// target or an ingress rule.
func (r *renderer) emitDerived(path string, props template.Properties) {
	r.out = append(r.out, template.Resource{
		LogicalID:  logicalID(path),
		Kind:       props.Kind(),
		Scope:      r.scope.name,
		Path:       r.scope.name + "/" + path,
		Properties: props,
	})
}

func (r *renderer) loadBalancer(lb *LoadBalancer) {
	groups := lb.connections.securityGroups
	for _, sg := range groups {
		if sg.handle != nil {
			r.emit(sg.handle, template.SecurityGroupProperties{
				Description: "Automatically created Security Group for ELB " + lb.handle.Path(),
				VPC:         lb.vpc,
			})
		}
	}
	props := template.LoadBalancerProperties{
		Name:          lb.name,
		Type:          string(lb.kind),
		Scheme:        string(lb.scheme),
		Subnets:       lo.Map(lb.subnets, func(s Subnet, _ int) string { return s.ID }),
		IPAddressType: string(lb.ipAddressType),
		Attributes:    lb.attributes,
	}
	for _, sg := range groups {
		props.SecurityGroups = append(props.SecurityGroups, r.groupRef(sg))
	}
	r.emit(lb.handle, props)
	for _, l := range lb.listeners {
		r.listener(l)
	}
}

func (r *renderer) listener(l *Listener) {
	props := template.ListenerProperties{
		LoadBalancer:   r.ref(l.lb.handle),
		Port:           l.port,
		Protocol:       string(l.protocol),
		SSLPolicy:      l.sslPolicy,
		DefaultActions: renderChain(l.defaultAction, r.targetGroupRef),
	}
	if len(l.certificates) > 0 {
		props.Certificates = []template.Certificate{{CertificateARN: l.certificates[0].cert.ARN}}
	}
	r.emit(l.handle, props)

	for _, lc := range l.certificates[min(1, len(l.certificates)):] {
		r.emit(lc.handle, template.ListenerCertificateProperties{
			Listener:     r.ref(l.handle),
			Certificates: []template.Certificate{{CertificateARN: lc.cert.ARN}},
		})
	}
	for _, rule := range l.rules {
		r.emit(rule.handle, template.ListenerRuleProperties{
			Listener:   r.ref(l.handle),
			Priority:   rule.priority,
			Conditions: lo.Map(rule.conditions, func(c Condition, _ int) template.Condition { return c.render() }),
			Actions:    renderChain(rule.action, r.targetGroupRef),
		})
	}
	if l.open && l.lb.kind == Application {
		r.openIngress(l)
	}
}

// openIngress admits any address on the listener port, over IPv6 as well
// for dual-stack load balancers.
func (r *renderer) openIngress(l *Listener) {
	desc := fmt.Sprintf("Allow from anyone on port %d", l.port)
	for i, sg := range l.lb.connections.securityGroups {
		suffix := ""
		if i > 0 {
			suffix = strconv.Itoa(i + 1)
		}
		base := template.SecurityGroupIngressProperties{
			Group:       r.groupRef(sg),
			IPProtocol:  "tcp",
			FromPort:    l.port,
			ToPort:      l.port,
			Description: desc,
		}
		v4 := base
		v4.CidrIP = anyIPv4
		r.emitDerived(l.handle.path+"/AnyIPv4"+suffix, v4)
		if l.lb.ipAddressType == DualStack {
			v6 := base
			v6.CidrIPv6 = anyIPv6
			r.emitDerived(l.handle.path+"/AnyIPv6"+suffix, v6)
		}
	}
}

func (r *renderer) targetGroup(tg *TargetGroup) {
	props := template.TargetGroupProperties{
		Name:        tg.name,
		Port:        tg.port,
		Protocol:    string(tg.Protocol()),
		VPC:         tg.vpc,
		TargetType:  string(tg.targetType),
		HealthCheck: renderHealthCheck(tg.healthCheck),
		Attributes:  tg.attributes,
	}
	if tg.targetType == TargetTypeLambda {
		props.Port = 0
		props.VPC = ""
	}
	if props.TargetType == "" {
		props.TargetType = string(TargetTypeInstance)
	}
	r.emit(tg.handle, props)

	for _, t := range tg.targets {
		id := t.ID
		if t.Port != 0 {
			id = fmt.Sprintf("%s:%d", t.ID, t.Port)
		}
		r.emitDerived(tg.handle.path+"/Target/"+id, template.TargetProperties{
			TargetGroup:      r.ref(tg.handle),
			ID:               t.ID,
			Port:             t.Port,
			AvailabilityZone: t.AvailabilityZone,
		})
	}
}

func renderHealthCheck(hc *HealthCheck) *template.HealthCheck {
	if hc == nil {
		return nil
	}
	return &template.HealthCheck{
		Enabled:                 hc.Enabled,
		Protocol:                string(hc.Protocol),
		Port:                    hc.Port,
		Path:                    hc.Path,
		IntervalSeconds:         int32(hc.Interval / time.Second),
		TimeoutSeconds:          int32(hc.Timeout / time.Second),
		HealthyThresholdCount:   hc.HealthyThreshold,
		UnhealthyThresholdCount: hc.UnhealthyThreshold,
		Matcher:                 hc.Matcher,
	}
}

// ingress lets every group of the peer accept traffic from every group of
// the load balancer on the granted ports.
func (r *renderer) ingress(pg placedGrant) {
	peer := pg.grant.Peer
	sources := pg.lb.connections.securityGroups
	for i, dst := range peer.securityGroups {
		for j, src := range sources {
			path := fmt.Sprintf("%s/From/%s:%s", peer.path, pg.lb.handle.Path(), pg.grant.Ports)
			if len(peer.securityGroups) > 1 || len(sources) > 1 {
				path += fmt.Sprintf("/%d-%d", i+1, j+1)
			}
			source := r.groupRef(src)
			r.emitDerived(path, template.SecurityGroupIngressProperties{
				Group:       r.groupRef(dst),
				SourceGroup: &source,
				IPProtocol:  "tcp",
				FromPort:    pg.grant.Ports.From,
				ToPort:      pg.grant.Ports.To,
				Description: "Load balancer to target",
			})
		}
	}
}
