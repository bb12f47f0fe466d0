package lb

import (
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"tasnim.dev/lbgraph/template"
)

// ListenerState tracks a listener through configuration and commit.
type ListenerState int

const (
	// ListenerDraft has no default action yet.
	ListenerDraft ListenerState = iota
	// ListenerWired has a default action.
	ListenerWired
	// ListenerFinalized has been committed; the attachment gates of every
	// target group it routes to are open.
	ListenerFinalized
)

func (s ListenerState) String() string {
	switch s {
	case ListenerDraft:
		return "draft"
	case ListenerWired:
		return "wired"
	case ListenerFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("ListenerState(%d)", int(s))
	}
}

// ListenerProps configures a listener. An empty Protocol is inferred from
// the certificates and port; a zero Port from the protocol. Certificates and
// CertificateARNs are alternative sources and must not both be set.
// DefaultAction and DefaultTargetGroups are alternatives as well.
//
// Open, which defaults to true, admits the whole internet on the listener
// port of an application load balancer.
type ListenerProps struct {
	Port                int32
	Protocol            Protocol
	SSLPolicy           string
	Certificates        []Certificate
	CertificateARNs     []string
	DefaultAction       *Action
	DefaultTargetGroups []*TargetGroup
	Open                *bool
}

// AddActionProps configures Listener.AddAction. Without conditions and
// priority the action becomes the default action.
type AddActionProps struct {
	Action     *Action
	Conditions []Condition
	Priority   int
}

// AddTargetGroupsProps configures Listener.AddTargetGroups.
type AddTargetGroupsProps struct {
	TargetGroups []*TargetGroup
	Conditions   []Condition
	Priority     int
}

// AddTargetsProps configures Listener.AddTargets, which creates a target
// group next to the listener.
type AddTargetsProps struct {
	TargetGroupName string
	Port            int32
	Protocol        Protocol
	TargetType      TargetType
	Targets         []Target
	HealthCheck     *HealthCheck
	Attributes      map[string]string
	Conditions      []Condition
	Priority        int
}

type listenerCertificate struct {
	cert   Certificate
	handle *Handle
}

// Listener binds a load balancer port and protocol to a default action and
// a priority-ordered set of rules.
type Listener struct {
	handle    *Handle
	lb        *LoadBalancer
	port      int32
	protocol  Protocol
	sslPolicy string
	open      bool
	state     ListenerState

	certificates          []listenerCertificate
	certificatesAmbiguous bool

	defaultAction *Action
	defaultSetBy  string
	rules         []*Rule
}

func newListener(lb *LoadBalancer, id string, props ListenerProps) (*Listener, error) {
	path := lb.handle.path + "/" + id
	fullPath := lb.handle.scope.name + "/" + path
	if props.DefaultAction != nil && len(props.DefaultTargetGroups) > 0 {
		return nil, newIssue(fullPath, ErrDefaultActionConflict, "both a default action and default target groups supplied")
	}
	var (
		defaultAction *Action
		defaultSetBy  string
	)
	switch {
	case props.DefaultAction != nil:
		defaultAction, defaultSetBy = props.DefaultAction, "DefaultAction"
	case len(props.DefaultTargetGroups) > 0:
		defaultAction, defaultSetBy = Forward(props.DefaultTargetGroups...), "DefaultTargetGroups"
	}
	if defaultAction != nil {
		if msg := defaultAction.checkShape(); msg != "" {
			return nil, newIssue(fullPath+"/"+defaultSetBy, ErrInvalidAction, "%s", msg)
		}
	}
	certs := lo.Map(props.CertificateARNs, func(arn string, _ int) Certificate { return CertificateFromARN(arn) })
	certs = append(certs, props.Certificates...)

	l := &Listener{
		lb:                    lb,
		port:                  props.Port,
		protocol:              props.Protocol,
		sslPolicy:             props.SSLPolicy,
		open:                  props.Open == nil || *props.Open,
		certificatesAmbiguous: len(props.CertificateARNs) > 0 && len(props.Certificates) > 0,
	}
	if l.protocol == "" {
		l.protocol = inferListenerProtocol(lb.kind, l.port, len(certs) > 0)
	}
	if l.port == 0 && lb.kind == Application {
		l.port = 80
		if l.protocol == ProtocolHTTPS {
			l.port = 443
		}
	}

	// Every check that can reject the listener has run by now.
	l.handle = newHandle(lb.handle.scope, path, template.KindListener)
	l.handle.arn = lb.handle.scope.elbARN("listener/%s", l.arnSuffix())
	lb.listeners = append(lb.listeners, l)
	if len(certs) > 0 {
		if err := l.AddCertificates("Certificate", certs...); err != nil {
			return nil, err
		}
	}
	if defaultAction != nil {
		if err := l.setDefaultAction(defaultSetBy, defaultAction); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func inferListenerProtocol(kind LoadBalancerType, port int32, hasCerts bool) Protocol {
	if kind == Network {
		if hasCerts {
			return ProtocolTLS
		}
		return ProtocolTCP
	}
	if hasCerts || port == 443 {
		return ProtocolHTTPS
	}
	return ProtocolHTTP
}

func (l *Listener) arnSuffix() string {
	return fmt.Sprintf("%s/%s", l.lb.arnSuffix(), digest(l.handle.Path(), 16))
}

func (l *Listener) Handle() *Handle              { return l.handle }
func (l *Listener) LoadBalancer() *LoadBalancer  { return l.lb }
func (l *Listener) Port() int32                  { return l.port }
func (l *Listener) Protocol() Protocol           { return l.protocol }
func (l *Listener) State() ListenerState         { return l.state }
func (l *Listener) DefaultAction() *Action       { return l.defaultAction }
func (l *Listener) Rules() []*Rule               { return append([]*Rule(nil), l.rules...) }
func (l *Listener) dependencyHandles() []*Handle { return []*Handle{l.handle} }

// Certificates returns the certificates in declaration order. The first is
// bound to the listener, the rest are emitted as ListenerCertificate records.
func (l *Listener) Certificates() []Certificate {
	return lo.Map(l.certificates, func(c listenerCertificate, _ int) Certificate { return c.cert })
}

// AddAction sets the default action when props carries neither conditions
// nor a priority, and adds a rule otherwise. The rule is nil for a default
// action.
func (l *Listener) AddAction(id string, props AddActionProps) (*Rule, error) {
	if isDefaultAction(props) {
		return nil, l.setDefaultAction(id, props.Action)
	}
	return NewListenerRule(l, id, RuleProps{
		Priority:   props.Priority,
		Conditions: props.Conditions,
		Action:     props.Action,
	})
}

func isDefaultAction(props AddActionProps) bool {
	return len(props.Conditions) == 0 && props.Priority == 0
}

// checkAction reports the error AddAction would fail with, without
// changing the listener.
func (l *Listener) checkAction(id string, props AddActionProps) error {
	if isDefaultAction(props) {
		return l.checkDefaultAction(id, props.Action)
	}
	return checkRule(l, id, RuleProps{
		Priority:   props.Priority,
		Conditions: props.Conditions,
		Action:     props.Action,
	})
}

// AddTargetGroups is AddAction with a forward to props.TargetGroups.
func (l *Listener) AddTargetGroups(id string, props AddTargetGroupsProps) (*Rule, error) {
	return l.AddAction(id, AddActionProps{
		Action:     Forward(props.TargetGroups...),
		Conditions: props.Conditions,
		Priority:   props.Priority,
	})
}

// AddTargets creates a target group of the listener's kind holding
// props.Targets and forwards to it, by default or under the given
// conditions. The group is created as "<id>Group" next to the listener.
func (l *Listener) AddTargets(id string, props AddTargetsProps) (*TargetGroup, error) {
	tgProps := TargetGroupProps{
		Name:        props.TargetGroupName,
		Port:        props.Port,
		Protocol:    props.Protocol,
		TargetType:  props.TargetType,
		HealthCheck: props.HealthCheck,
		Attributes:  props.Attributes,
		VPC:         l.lb.vpc,
	}
	if l.lb.kind == Network {
		if tgProps.Port == 0 {
			tgProps.Port = l.port
		}
		if tgProps.Protocol == "" && l.protocol != ProtocolTLS {
			tgProps.Protocol = l.protocol
		}
	} else if tgProps.Port == 0 {
		tgProps.Port = 80
		if tgProps.Protocol == ProtocolHTTPS {
			tgProps.Port = 443
		}
	}
	// The group joins the scope only once targets and route are known to
	// be accepted.
	tg := buildTargetGroup(l.handle.scope, l.handle.path+"/"+id+"Group", l.lb.kind, tgProps)
	if err := tg.AddTarget(props.Targets...); err != nil {
		return nil, err
	}
	route := AddActionProps{
		Action:     Forward(tg),
		Conditions: props.Conditions,
		Priority:   props.Priority,
	}
	if err := l.checkAction(id, route); err != nil {
		return nil, err
	}
	l.handle.scope.addTargetGroup(tg)
	if _, err := l.AddAction(id, route); err != nil {
		return nil, err
	}
	return tg, nil
}

// AddCertificates attaches certificates. The first certificate of the
// listener is bound to it directly; every further certificate gets its own
// ListenerCertificate record, in declaration order.
func (l *Listener) AddCertificates(id string, certs ...Certificate) error {
	if l.state == ListenerFinalized {
		return newIssue(l.handle.Path(), ErrFrozenAfterAttach, "cannot add certificates to a committed listener")
	}
	for i, c := range certs {
		lc := listenerCertificate{cert: c}
		if len(l.certificates) > 0 {
			path := l.handle.path + "/" + id
			if i > 0 {
				path += strconv.Itoa(i + 1)
			}
			lc.handle = newHandle(l.handle.scope, path, template.KindListenerCertificate)
			lc.handle.arn = c.ARN
		}
		l.certificates = append(l.certificates, lc)
	}
	return nil
}

func (l *Listener) checkDefaultAction(id string, a *Action) error {
	if msg := a.checkShape(); msg != "" {
		return newIssue(l.handle.Path()+"/"+id, ErrInvalidAction, "%s", msg)
	}
	if l.defaultAction != nil {
		return newIssue(l.handle.Path(), ErrDefaultActionConflict, "%s: already set by %s", id, l.defaultSetBy)
	}
	return nil
}

func (l *Listener) setDefaultAction(id string, a *Action) error {
	if err := l.checkDefaultAction(id, a); err != nil {
		return err
	}
	l.defaultAction = a
	l.defaultSetBy = id
	if l.state == ListenerDraft {
		l.state = ListenerWired
	}
	for _, tg := range a.TargetGroups() {
		tg.RegisterListener(l)
	}
	return nil
}

// ruleAt returns the rule at priority, or nil.
func (l *Listener) ruleAt(priority int) *Rule {
	i := sort.Search(len(l.rules), func(i int) bool { return l.rules[i].priority >= priority })
	if i < len(l.rules) && l.rules[i].priority == priority {
		return l.rules[i]
	}
	return nil
}

// insertRule adds r to the priority-ordered rule set. The priority must be
// free.
func (l *Listener) insertRule(r *Rule) {
	i := sort.Search(len(l.rules), func(i int) bool { return l.rules[i].priority >= r.priority })
	l.rules = slices.Insert(l.rules, i, r)
}

// routes returns the distinct target groups the listener forwards to,
// default action first, then rules in priority order.
func (l *Listener) routes() []*TargetGroup {
	tgs := l.defaultAction.TargetGroups()
	for _, r := range l.rules {
		tgs = append(tgs, r.action.TargetGroups()...)
	}
	return lo.Uniq(tgs)
}

func (l *Listener) validate() []*Issue {
	path := l.handle.Path()
	var issues []*Issue
	add := func(err error, format string, args ...any) {
		issues = append(issues, newIssue(path, err, format, args...))
	}
	if !validPort(l.port) {
		add(ErrInvalidPortRange, "listener port %d", l.port)
	}
	if !lo.Contains(protocolsFor(l.lb.kind), l.protocol) {
		add(ErrProtocolMismatch, "%s load balancer cannot listen on %s", l.lb.kind, l.protocol)
	}
	switch tls := tlsBearing(l.protocol); {
	case l.certificatesAmbiguous:
		add(ErrCertificateSourceAmbiguous, "")
	case tls && len(l.certificates) == 0:
		add(ErrCertificateRequired, "%s listener on port %d", l.protocol, l.port)
	case !tls && len(l.certificates) > 0:
		add(ErrUnexpectedCertificate, "%s listener on port %d", l.protocol, l.port)
	}
	if l.sslPolicy != "" && !tlsBearing(l.protocol) {
		add(ErrProtocolMismatch, "ssl policy %s on %s listener", l.sslPolicy, l.protocol)
	}
	if l.defaultAction == nil {
		add(ErrDefaultActionMissing, "")
	} else {
		issues = append(issues, l.defaultAction.validate(path, l)...)
	}
	if l.lb.kind == Network && len(l.rules) > 0 {
		add(ErrInvalidAction, "network listeners do not support rules")
	}
	for _, r := range l.rules {
		issues = append(issues, r.validate()...)
	}
	return issues
}
