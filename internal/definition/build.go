package definition

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"tasnim.dev/lbgraph/internal/utils"
	"tasnim.dev/lbgraph/lb"
)

// Graph is a definition built into an orchestrator.
type Graph struct {
	Orchestrator *lb.Orchestrator
	listeners    map[string]*lb.Listener
}

// Listener returns the listener at path ("scope/loadBalancer/listener").
func (g *Graph) Listener(path string) (*lb.Listener, error) {
	l, ok := g.listeners[path]
	if !ok {
		return nil, fmt.Errorf("%w: listener %q", ErrUnknownReference, path)
	}
	return l, nil
}

// ListenerPaths returns every listener path, sorted.
func (g *Graph) ListenerPaths() []string {
	paths := lo.Keys(g.listeners)
	sort.Strings(paths)
	return paths
}

type builder struct {
	o         *lb.Orchestrator
	scopes    map[string]*lb.Scope
	tgs       map[string]*lb.TargetGroup
	listeners map[string]*lb.Listener
	errs      error
}

// Build declares every resource of def in o. Construction errors and
// unknown references are collected and returned together; graph rules are
// left to o.Commit.
func Build(o *lb.Orchestrator, def *Definition) (*Graph, error) {
	b := &builder{
		o:         o,
		scopes:    map[string]*lb.Scope{},
		tgs:       map[string]*lb.TargetGroup{},
		listeners: map[string]*lb.Listener{},
	}
	for _, s := range def.Scopes {
		b.scopes[s.Name] = o.NewScope(s.Name)
	}
	kinds := targetGroupKinds(def)
	for _, s := range def.Scopes {
		for _, tg := range s.TargetGroups {
			b.targetGroup(s.Name, tg, kinds[s.Name+"/"+tg.ID])
		}
	}
	for _, s := range def.Scopes {
		for _, c := range s.Connectables {
			b.connectable(s.Name, c)
		}
	}
	for _, s := range def.Scopes {
		for _, l := range s.LoadBalancers {
			b.loadBalancer(s.Name, l)
		}
	}
	for _, s := range def.Scopes {
		for _, e := range s.Externals {
			b.external(s.Name, e)
		}
	}
	if b.errs != nil {
		return nil, b.errs
	}
	return &Graph{Orchestrator: o, listeners: b.listeners}, nil
}

func (b *builder) fail(err error) {
	b.errs = multierr.Append(b.errs, err)
}

// splitRef splits "scope/id" references; bare ids belong to scope.
func splitRef(scope, ref string) (string, string) {
	if i := strings.Index(ref, "/"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return scope, ref
}

// targetGroupKinds decides the kind of every target group that does not
// declare one: network when a network load balancer routes to it.
func targetGroupKinds(def *Definition) map[string]lb.LoadBalancerType {
	kinds := map[string]lb.LoadBalancerType{}
	for _, s := range def.Scopes {
		for _, tg := range s.TargetGroups {
			if tg.Type != "" {
				kinds[s.Name+"/"+tg.ID] = lb.LoadBalancerType(tg.Type)
			}
		}
	}
	for _, s := range def.Scopes {
		for _, l := range s.LoadBalancers {
			if l.Type != string(lb.Network) {
				continue
			}
			for _, ld := range l.Listeners {
				refs := append([]string(nil), ld.DefaultTargetGroups...)
				refs = append(refs, actionRefs(ld.DefaultAction)...)
				for _, r := range ld.Rules {
					refs = append(refs, r.TargetGroups...)
					refs = append(refs, actionRefs(r.Action)...)
				}
				for _, ref := range refs {
					scope, id := splitRef(s.Name, ref)
					if _, ok := kinds[scope+"/"+id]; !ok {
						kinds[scope+"/"+id] = lb.Network
					}
				}
			}
		}
	}
	return kinds
}

func actionRefs(a *ActionDef) []string {
	var refs []string
	for ; a != nil; a = a.next() {
		refs = append(refs, a.Forward...)
		if a.WeightedForward != nil {
			for _, w := range a.WeightedForward.TargetGroups {
				refs = append(refs, w.TargetGroup)
			}
		}
	}
	return refs
}

func (b *builder) targetGroupRef(scope, ref string) (*lb.TargetGroup, bool) {
	s, id := splitRef(scope, ref)
	tg, ok := b.tgs[s+"/"+id]
	if !ok {
		b.fail(fmt.Errorf("%w: target group %q referenced from scope %s", ErrUnknownReference, ref, scope))
	}
	return tg, ok
}

func (b *builder) targetGroupRefs(scope string, refs []string) ([]*lb.TargetGroup, bool) {
	tgs := make([]*lb.TargetGroup, 0, len(refs))
	ok := true
	for _, ref := range refs {
		tg, found := b.targetGroupRef(scope, ref)
		ok = ok && found
		tgs = append(tgs, tg)
	}
	return tgs, ok
}

func (b *builder) targetGroup(scope string, def TargetGroupDef, kind lb.LoadBalancerType) {
	attrs, err := normalizeAttributes(def.Attributes)
	if err != nil {
		b.fail(fmt.Errorf("%s/%s attributes: %w", scope, def.ID, err))
	}
	props := lb.TargetGroupProps{
		Name:        def.Name,
		Port:        def.Port,
		Protocol:    lb.Protocol(strings.ToUpper(def.Protocol)),
		TargetType:  lb.TargetType(def.TargetType),
		VPC:         def.VPC,
		HealthCheck: healthCheck(def.HealthCheck),
		Attributes:  attrs,
	}
	var tg *lb.TargetGroup
	if kind == lb.Network {
		tg = lb.NewNetworkTargetGroup(b.scopes[scope], def.ID, props)
	} else {
		tg = lb.NewApplicationTargetGroup(b.scopes[scope], def.ID, props)
	}
	b.tgs[scope+"/"+def.ID] = tg

	targets := lo.Map(def.Targets, func(t TargetDef, _ int) lb.Target {
		typ := lb.TargetType(t.Type)
		if typ == "" {
			typ = inferTargetType(t.ID)
		}
		return lb.Target{Type: typ, ID: t.ID, Port: t.Port, AvailabilityZone: t.Zone}
	})
	if err := tg.AddTarget(targets...); err != nil {
		b.fail(err)
	}
}

func inferTargetType(id string) lb.TargetType {
	switch {
	case strings.HasPrefix(id, "i-"):
		return lb.TargetTypeInstance
	case utils.ARNService(id) == "lambda":
		return lb.TargetTypeLambda
	default:
		return lb.TargetTypeIP
	}
}

func healthCheck(def *HealthCheckDef) *lb.HealthCheck {
	if def == nil {
		return nil
	}
	return &lb.HealthCheck{
		Enabled:            def.Enabled,
		Protocol:           lb.Protocol(strings.ToUpper(def.Protocol)),
		Port:               def.Port,
		Path:               def.Path,
		Interval:           time.Duration(def.IntervalSeconds) * time.Second,
		Timeout:            time.Duration(def.TimeoutSeconds) * time.Second,
		HealthyThreshold:   def.HealthyThreshold,
		UnhealthyThreshold: def.UnhealthyThreshold,
		Matcher:            def.Matcher,
	}
}

func (b *builder) connectable(scope string, def ConnectableDef) {
	groups := lo.Map(def.SecurityGroups, func(id string, _ int) *lb.SecurityGroup { return lb.SecurityGroupID(id) })
	conns := lb.NewConnections(b.scopes[scope], def.ID, groups...)
	ports, err := parsePorts(def.Port, def.Ports)
	if err != nil {
		b.fail(fmt.Errorf("%s/%s: %w", scope, def.ID, err))
		return
	}
	for _, ref := range def.TargetGroups {
		tg, ok := b.targetGroupRef(scope, ref)
		if !ok {
			continue
		}
		if err := tg.RegisterConnectable(conns, ports); err != nil {
			b.fail(err)
		}
	}
}

// parsePorts reads a single port or a "from-to" range. Neither means the
// target group port.
func parsePorts(port int32, ports string) (lb.PortRange, error) {
	if ports == "" {
		if port == 0 {
			return lb.PortRange{}, nil
		}
		return lb.Port(port), nil
	}
	from, to, found := strings.Cut(ports, "-")
	if !found {
		to = from
	}
	f, err := strconv.ParseInt(strings.TrimSpace(from), 10, 32)
	if err != nil {
		return lb.PortRange{}, fmt.Errorf("ports %q: %w", ports, err)
	}
	t, err := strconv.ParseInt(strings.TrimSpace(to), 10, 32)
	if err != nil {
		return lb.PortRange{}, fmt.Errorf("ports %q: %w", ports, err)
	}
	return lb.Ports(int32(f), int32(t)), nil
}

func (b *builder) loadBalancer(scope string, def LoadBalancerDef) {
	attrs, err := normalizeAttributes(def.Attributes)
	if err != nil {
		b.fail(fmt.Errorf("%s/%s attributes: %w", scope, def.ID, err))
	}
	props := lb.LoadBalancerProps{
		Name:    def.Name,
		VPC:     def.VPC,
		Subnets: lo.Map(def.Subnets, func(s SubnetDef, _ int) lb.Subnet {
			return lb.Subnet{ID: s.ID, AvailabilityZone: s.Zone}
		}),
		SecurityGroups: lo.Map(def.SecurityGroups, func(id string, _ int) *lb.SecurityGroup { return lb.SecurityGroupID(id) }),
		Scheme:         lb.Scheme(def.Scheme),
		IPAddressType:  lb.IPAddressType(def.IPAddressType),
		Attributes:     attrs,
	}
	var balancer *lb.LoadBalancer
	if def.Type == string(lb.Network) {
		balancer = lb.NewNetworkLoadBalancer(b.scopes[scope], def.ID, props)
	} else {
		balancer = lb.NewApplicationLoadBalancer(b.scopes[scope], def.ID, props)
	}
	for _, ld := range def.Listeners {
		b.listener(scope, balancer, ld)
	}
}

func (b *builder) listener(scope string, balancer *lb.LoadBalancer, def ListenerDef) {
	props := lb.ListenerProps{
		Port:            def.Port,
		Protocol:        lb.Protocol(strings.ToUpper(def.Protocol)),
		SSLPolicy:       def.SSLPolicy,
		CertificateARNs: def.CertificateARNs,
		Certificates:    lo.Map(def.Certificates, func(c CertDef, _ int) lb.Certificate { return lb.CertificateFromARN(c.ARN) }),
		Open:            def.Open,
	}
	if def.DefaultAction != nil {
		a, ok := b.action(scope, def.DefaultAction)
		if !ok {
			return
		}
		props.DefaultAction = a
	}
	if len(def.DefaultTargetGroups) > 0 {
		tgs, ok := b.targetGroupRefs(scope, def.DefaultTargetGroups)
		if !ok {
			return
		}
		props.DefaultTargetGroups = tgs
	}
	l, err := balancer.AddListener(def.ID, props)
	if err != nil {
		b.fail(err)
		return
	}
	b.listeners[l.Handle().Path()] = l

	for _, r := range def.Rules {
		var (
			a  *lb.Action
			ok bool
		)
		if r.Action != nil {
			a, ok = b.action(scope, r.Action)
		} else {
			var tgs []*lb.TargetGroup
			tgs, ok = b.targetGroupRefs(scope, r.TargetGroups)
			a = lb.Forward(tgs...)
		}
		if !ok {
			continue
		}
		_, err := l.AddAction(r.ID, lb.AddActionProps{
			Action:     a,
			Conditions: lo.Map(r.Conditions, func(c ConditionDef, _ int) lb.Condition { return condition(c) }),
			Priority:   r.Priority,
		})
		if err != nil {
			b.fail(err)
		}
	}
}

func (b *builder) action(scope string, def *ActionDef) (*lb.Action, bool) {
	switch {
	case len(def.Forward) > 0:
		tgs, ok := b.targetGroupRefs(scope, def.Forward)
		return lb.Forward(tgs...), ok
	case def.WeightedForward != nil:
		w := def.WeightedForward
		weighted := make([]lb.WeightedTargetGroup, 0, len(w.TargetGroups))
		ok := true
		for _, wt := range w.TargetGroups {
			tg, found := b.targetGroupRef(scope, wt.TargetGroup)
			ok = ok && found
			weighted = append(weighted, lb.WeightedTargetGroup{TargetGroup: tg, Weight: wt.Weight})
		}
		var stickiness *lb.Stickiness
		if w.StickinessSeconds > 0 {
			stickiness = &lb.Stickiness{Duration: time.Duration(w.StickinessSeconds) * time.Second}
		}
		return lb.WeightedForward(weighted, stickiness), ok
	case def.FixedResponse != nil:
		f := def.FixedResponse
		return lb.FixedResponse(f.StatusCode, lb.FixedResponseOptions{ContentType: f.ContentType, MessageBody: f.MessageBody}), true
	case def.Redirect != nil:
		r := def.Redirect
		return lb.Redirect(lb.RedirectOptions{
			Host:      r.Host,
			Path:      r.Path,
			Port:      r.Port,
			Protocol:  r.Protocol,
			Query:     r.Query,
			Permanent: r.Permanent,
		}), true
	case def.AuthenticateOIDC != nil:
		o := def.AuthenticateOIDC
		var next *lb.Action
		ok := true
		if o.Next != nil {
			next, ok = b.action(scope, o.Next)
		}
		return lb.AuthenticateOIDC(lb.OIDCOptions{
			Issuer:                   o.Issuer,
			AuthorizationEndpoint:    o.AuthorizationEndpoint,
			TokenEndpoint:            o.TokenEndpoint,
			UserInfoEndpoint:         o.UserInfoEndpoint,
			ClientID:                 o.ClientID,
			ClientSecret:             o.ClientSecret,
			Scope:                    o.Scope,
			SessionCookieName:        o.SessionCookieName,
			OnUnauthenticatedRequest: elbtypes.AuthenticateOidcActionConditionalBehaviorEnum(o.OnUnauthenticatedRequest),
		}, next), ok
	default:
		b.fail(fmt.Errorf("%w: empty action in scope %s", ErrInvalidDefinition, scope))
		return nil, false
	}
}

func condition(def ConditionDef) lb.Condition {
	switch def.Field {
	case string(lb.FieldHostHeader):
		return lb.HostHeaders(def.Values...)
	case string(lb.FieldPathPattern):
		return lb.PathPatterns(def.Values...)
	case string(lb.FieldHTTPHeader):
		return lb.HTTPHeader(def.HeaderName, def.Values...)
	case string(lb.FieldHTTPRequestMethod):
		return lb.HTTPRequestMethods(def.Values...)
	case string(lb.FieldQueryString):
		return lb.QueryStrings(lo.Map(def.QueryValues, func(q QueryStringDef, _ int) lb.QueryStringValue {
			return lb.QueryStringValue{Key: q.Key, Value: q.Value}
		})...)
	default:
		return lb.SourceIPs(def.Values...)
	}
}

func (b *builder) external(scope string, def ExternalDef) {
	props, err := normalizeAttributes(def.Properties)
	if err != nil {
		b.fail(fmt.Errorf("%s/%s properties: %w", scope, def.ID, err))
	}
	e := b.scopes[scope].AddExternal(def.ID, def.Type, props)
	for _, ref := range def.DependsOn {
		if h := b.handleRef(scope, ref); h != nil {
			e.DependOn(h)
		}
	}
	for _, ref := range def.WaitForAttachment {
		if tg, ok := b.targetGroupRef(scope, ref); ok {
			e.DependOn(tg.LoadBalancerAttached())
		}
	}
}

// handleRef resolves a resource path. A leading segment naming a scope
// selects that scope; otherwise the path is relative to scope.
func (b *builder) handleRef(scope, ref string) *lb.Handle {
	if s, rest, ok := strings.Cut(ref, "/"); ok {
		if other, found := b.scopes[s]; found {
			if h := other.Handle(rest); h != nil {
				return h
			}
		}
	}
	if h := b.scopes[scope].Handle(ref); h != nil {
		return h
	}
	b.fail(fmt.Errorf("%w: resource %q referenced from scope %s", ErrUnknownReference, ref, scope))
	return nil
}

// ZoneResolver looks up the availability zone of subnets.
type ZoneResolver interface {
	SubnetZones(ctx context.Context, subnetIDs []string) (map[string]string, error)
}

// ResolveZones fills in the zone of every load balancer subnet that does not
// declare one.
func ResolveZones(ctx context.Context, def *Definition, r ZoneResolver) error {
	var missing []string
	for _, s := range def.Scopes {
		for _, l := range s.LoadBalancers {
			for _, sn := range l.Subnets {
				if sn.Zone == "" {
					missing = append(missing, sn.ID)
				}
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	zones, err := r.SubnetZones(ctx, lo.Uniq(missing))
	if err != nil {
		return fmt.Errorf("resolving subnet zones: %w", err)
	}
	for si := range def.Scopes {
		for li := range def.Scopes[si].LoadBalancers {
			subnets := def.Scopes[si].LoadBalancers[li].Subnets
			for i := range subnets {
				if subnets[i].Zone == "" {
					subnets[i].Zone = zones[subnets[i].ID]
				}
			}
		}
	}
	return nil
}
