package lb

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tasnim.dev/lbgraph/template"
)

var testSubnets = []Subnet{
	{ID: "subnet-a", AvailabilityZone: "us-east-1a"},
	{ID: "subnet-b", AvailabilityZone: "us-east-1b"},
}

func newTestALB(s *Scope, id string) *LoadBalancer {
	return NewApplicationLoadBalancer(s, id, LoadBalancerProps{
		VPC:     "vpc-1",
		Subnets: testSubnets,
		Scheme:  SchemeInternetFacing,
	})
}

func newTestTG(s *Scope, id string, targets ...Target) *TargetGroup {
	tg := NewApplicationTargetGroup(s, id, TargetGroupProps{Port: 8080, VPC: "vpc-1"})
	if err := tg.AddTarget(targets...); err != nil {
		panic(err)
	}
	return tg
}

func properties[T template.Properties](t *testing.T, r template.Resource) T {
	t.Helper()
	p, ok := r.Properties.(T)
	require.Truef(t, ok, "resource %s has properties %T", r.LogicalID, r.Properties)
	return p
}

func commitIssues(t *testing.T, err error) []*Issue {
	t.Helper()
	var ce *CommitError
	require.ErrorAs(t, err, &ce)
	return ce.Issues
}

// recordingEmitter counts what it receives.
type recordingEmitter struct {
	scopes    []template.Scope
	resources []template.Resource
}

func (e *recordingEmitter) EmitScope(s template.Scope) error {
	e.scopes = append(e.scopes, s)
	return nil
}

func (e *recordingEmitter) Emit(r template.Resource) error {
	e.resources = append(e.resources, r)
	return nil
}

func TestCommit_SingleTargetGroupALB(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	alb := newTestALB(s, "LB")
	l, err := alb.AddListener("HTTP", ListenerProps{Port: 80})
	require.NoError(t, err)
	tg := newTestTG(s, "Fleet", InstanceTarget("i-abc", 8080))
	_, err = l.AddTargetGroups("Default", AddTargetGroupsProps{TargetGroups: []*TargetGroup{tg}})
	require.NoError(t, err)

	res, err := o.Commit()
	require.NoError(t, err)
	tpl := res.Template
	assert.Empty(t, res.Warnings)

	assert.Len(t, tpl.ByKind(template.KindLoadBalancer), 1)
	assert.Len(t, tpl.ByKind(template.KindTargetGroup), 1)
	assert.Empty(t, tpl.ByKind(template.KindListenerCertificate))
	assert.Empty(t, tpl.ByKind(template.KindListenerRule))

	listeners := tpl.ByKind(template.KindListener)
	require.Len(t, listeners, 1)
	lp := properties[template.ListenerProperties](t, listeners[0])
	assert.Equal(t, int32(80), lp.Port)
	assert.Equal(t, "HTTP", lp.Protocol)
	assert.Equal(t, alb.Handle().LogicalID(), lp.LoadBalancer.Ref)
	require.Len(t, lp.DefaultActions, 1)
	assert.Equal(t, "forward", lp.DefaultActions[0].Type)
	assert.Zero(t, lp.DefaultActions[0].Order)
	require.NotNil(t, lp.DefaultActions[0].TargetGroup)
	assert.Equal(t, tg.Handle().LogicalID(), lp.DefaultActions[0].TargetGroup.Ref)

	targets := tpl.ByKind(template.KindTarget)
	require.Len(t, targets, 1)
	tp := properties[template.TargetProperties](t, targets[0])
	assert.Equal(t, "i-abc", tp.ID)
	assert.Equal(t, int32(8080), tp.Port)
	assert.Equal(t, tg.Handle().LogicalID(), tp.TargetGroup.Ref)

	assert.Equal(t, ListenerFinalized, l.State())
	assert.True(t, tg.LoadBalancerAttached().IsOpen())
	assert.Same(t, l, tg.LoadBalancerAttached().OpenedBy())
}

func TestCommit_CertificateOverflow(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	alb := newTestALB(s, "LB")
	l, err := alb.AddListener("HTTPS", ListenerProps{
		Port:            443,
		CertificateARNs: []string{"arn:cert/A", "arn:cert/B"},
		DefaultAction:   FixedResponse("200", FixedResponseOptions{ContentType: "text/plain", MessageBody: "ok"}),
	})
	require.NoError(t, err)
	assert.Equal(t, ProtocolHTTPS, l.Protocol())

	res, err := o.Commit()
	require.NoError(t, err)

	listeners := res.Template.ByKind(template.KindListener)
	require.Len(t, listeners, 1)
	lp := properties[template.ListenerProperties](t, listeners[0])
	assert.Equal(t, []template.Certificate{{CertificateARN: "arn:cert/A"}}, lp.Certificates)

	extra := res.Template.ByKind(template.KindListenerCertificate)
	require.Len(t, extra, 1)
	cp := properties[template.ListenerCertificateProperties](t, extra[0])
	assert.Equal(t, []template.Certificate{{CertificateARN: "arn:cert/B"}}, cp.Certificates)
	assert.Equal(t, l.Handle().LogicalID(), cp.Listener.Ref)
}

func TestCommit_RulesInPriorityOrderAndGatesOpenOnce(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	alb := newTestALB(s, "LB")
	l, err := alb.AddListener("HTTP", ListenerProps{Port: 80})
	require.NoError(t, err)

	tg1 := newTestTG(s, "API", InstanceTarget("i-1", 0))
	tg2 := newTestTG(s, "Admin", InstanceTarget("i-2", 0))
	tg3 := newTestTG(s, "Web", InstanceTarget("i-3", 0))

	opened := map[*TargetGroup]int{}
	for _, tg := range []*TargetGroup{tg1, tg2, tg3} {
		tg := tg
		tg.LoadBalancerAttached().Subscribe(func(*Listener) {
			assert.True(t, tg.LoadBalancerAttached().IsOpen())
			opened[tg]++
		})
	}

	_, err = l.AddTargetGroups("Admin", AddTargetGroupsProps{
		TargetGroups: []*TargetGroup{tg2},
		Conditions:   []Condition{HostHeaders("admin.example.com")},
		Priority:     20,
	})
	require.NoError(t, err)
	_, err = l.AddTargetGroups("API", AddTargetGroupsProps{
		TargetGroups: []*TargetGroup{tg1},
		Conditions:   []Condition{PathPatterns("/api/*")},
		Priority:     10,
	})
	require.NoError(t, err)
	_, err = l.AddTargetGroups("Default", AddTargetGroupsProps{TargetGroups: []*TargetGroup{tg3}})
	require.NoError(t, err)

	res, err := o.Commit()
	require.NoError(t, err)
	assert.Equal(t, 3, res.GatesOpened)

	rules := res.Template.ByKind(template.KindListenerRule)
	require.Len(t, rules, 2)
	first := properties[template.ListenerRuleProperties](t, rules[0])
	second := properties[template.ListenerRuleProperties](t, rules[1])
	assert.Equal(t, 10, first.Priority)
	assert.Equal(t, 20, second.Priority)
	assert.Equal(t, "path-pattern", first.Conditions[0].Field)
	assert.Equal(t, []string{"/api/*"}, first.Conditions[0].PathPatternConfig.Values)
	assert.Equal(t, "host-header", second.Conditions[0].Field)
	assert.Equal(t, tg1.Handle().LogicalID(), first.Actions[0].TargetGroup.Ref)

	for _, tg := range []*TargetGroup{tg1, tg2, tg3} {
		assert.Equal(t, 1, opened[tg], tg.Handle().Path())
	}
}

func TestCommit_NLBWithSecurityGroupFails(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("net")
	NewNetworkLoadBalancer(s, "NLB", LoadBalancerProps{
		Subnets:        testSubnets,
		SecurityGroups: []*SecurityGroup{SecurityGroupID("sg-123")},
	})

	rec := &recordingEmitter{}
	_, err := o.CommitTo(rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNLBHasSecurityGroup)
	assert.Empty(t, rec.scopes)
	assert.Empty(t, rec.resources)

	issues := commitIssues(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "net/NLB", issues[0].Path)
}

func TestCommit_ActionChainOrder(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	alb := newTestALB(s, "LB")
	tg := newTestTG(s, "App", InstanceTarget("i-1", 0))

	secure, err := alb.AddListener("HTTPS", ListenerProps{
		Certificates: []Certificate{CertificateFromARN("arn:cert/A")},
		DefaultAction: AuthenticateOIDC(OIDCOptions{
			Issuer:                "https://idp.example.com",
			AuthorizationEndpoint: "https://idp.example.com/authorize",
			TokenEndpoint:         "https://idp.example.com/token",
			UserInfoEndpoint:      "https://idp.example.com/userinfo",
			ClientID:              "client",
			ClientSecret:          "secret",
		}, Forward(tg)),
	})
	require.NoError(t, err)
	plain, err := alb.AddListener("HTTP", ListenerProps{DefaultAction: Forward(tg)})
	require.NoError(t, err)

	res, err := o.Commit()
	require.NoError(t, err)

	secureRecord, ok := res.Template.Lookup(secure.Handle().LogicalID())
	require.True(t, ok)
	actions := properties[template.ListenerProperties](t, secureRecord).DefaultActions
	require.Len(t, actions, 2)
	assert.Equal(t, "authenticate-oidc", actions[0].Type)
	assert.Equal(t, 1, actions[0].Order)
	assert.Equal(t, "forward", actions[1].Type)
	assert.Equal(t, 2, actions[1].Order)

	plainRecord, ok := res.Template.Lookup(plain.Handle().LogicalID())
	require.True(t, ok)
	actions = properties[template.ListenerProperties](t, plainRecord).DefaultActions
	require.Len(t, actions, 1)
	assert.Zero(t, actions[0].Order)
}

func TestCommit_IsIdempotent(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	alb := newTestALB(s, "LB")
	tg := newTestTG(s, "App", InstanceTarget("i-1", 80))
	calls := 0
	tg.LoadBalancerAttached().Subscribe(func(*Listener) { calls++ })
	_, err := alb.AddListener("HTTP", ListenerProps{DefaultTargetGroups: []*TargetGroup{tg}})
	require.NoError(t, err)

	first, err := o.Commit()
	require.NoError(t, err)
	second, err := o.Commit()
	require.NoError(t, err)

	a, err := template.Marshal(first.Template, template.FormatYAML)
	require.NoError(t, err)
	b, err := template.Marshal(second.Template, template.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, 1, first.GatesOpened)
	assert.Equal(t, 0, second.GatesOpened)
	assert.Equal(t, 1, calls)
}

func TestCommit_FrozenAfterAttach(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	alb := newTestALB(s, "LB")
	tg := newTestTG(s, "App", InstanceTarget("i-1", 80))
	l, err := alb.AddListener("HTTP", ListenerProps{DefaultTargetGroups: []*TargetGroup{tg}})
	require.NoError(t, err)
	_, err = o.Commit()
	require.NoError(t, err)

	err = tg.AddTarget(InstanceTarget("i-2", 80))
	assert.ErrorIs(t, err, ErrFrozenAfterAttach)
	err = tg.ConfigureHealthCheck(HealthCheck{Path: "/healthz"})
	assert.ErrorIs(t, err, ErrFrozenAfterAttach)
	err = l.AddCertificates("Late", CertificateFromARN("arn:cert/C"))
	assert.ErrorIs(t, err, ErrFrozenAfterAttach)
	assert.Len(t, tg.Targets(), 1)
}

func TestCommit_AggregatesIssues(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	alb := NewApplicationLoadBalancer(s, "LB", LoadBalancerProps{Subnets: testSubnets[:1]})
	_, err := alb.AddListener("HTTP", ListenerProps{Port: 70000})
	require.NoError(t, err)
	_, err = alb.AddListener("HTTPS", ListenerProps{Protocol: ProtocolHTTPS, DefaultAction: FixedResponse("503", FixedResponseOptions{})})
	require.NoError(t, err)

	_, err = o.Commit()
	require.Error(t, err)
	for _, want := range []error{ErrInvalidSubnetSet, ErrInvalidPortRange, ErrDefaultActionMissing, ErrCertificateRequired} {
		assert.ErrorIs(t, err, want)
	}
	assert.Contains(t, err.Error(), "web/LB/HTTP: listener has no default action")
	assert.GreaterOrEqual(t, len(commitIssues(t, err)), 4)
}

func TestCommit_DuplicateID(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	newTestTG(s, "App")
	newTestTG(s, "App")

	_, err := o.Commit()
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestCommit_OrphanedTargetGroupWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	o := NewOrchestrator(WithLogger(zap.New(core)))
	s := o.NewScope("web")
	tg := newTestTG(s, "Lonely", InstanceTarget("i-1", 80))

	res, err := o.Commit()
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], ErrOrphanedTargetGroup)
	assert.Equal(t, tg.Handle().Path(), res.Warnings[0].Path)
	assert.Equal(t, 1, logs.FilterMessage("commit warning").Len())
}

func TestCommit_CrossScopeReferenceUsesToken(t *testing.T) {
	o := NewOrchestrator(WithRegion("eu-west-1"), WithAccount("111122223333"))
	web := o.NewScope("web")
	shared := o.NewScope("shared")
	tg := newTestTG(shared, "App", IPTarget("10.0.0.1", 80))
	alb := newTestALB(web, "LB")
	l, err := alb.AddListener("HTTP", ListenerProps{DefaultTargetGroups: []*TargetGroup{tg}})
	require.NoError(t, err)

	res, err := o.Commit()
	require.NoError(t, err)

	assert.Equal(t, []template.Scope{{Name: "shared"}, {Name: "web", DependsOn: []string{"shared"}}}, res.Template.Scopes)
	assert.Equal(t, "shared", res.Template.Resources[0].Scope)

	record, ok := res.Template.Lookup(l.Handle().LogicalID())
	require.True(t, ok)
	ref := properties[template.ListenerProperties](t, record).DefaultActions[0].TargetGroup
	assert.Empty(t, ref.Ref)
	assert.Equal(t, tg.Handle().ARN(), ref.Token)
	assert.Contains(t, ref.Token, "arn:aws:elasticloadbalancing:eu-west-1:111122223333:targetgroup/")
}

func TestCommit_CyclicScopeDependency(t *testing.T) {
	o := NewOrchestrator()
	a := o.NewScope("a")
	b := o.NewScope("b")
	ea := a.AddExternal("Queue", "AWS::SQS::Queue", nil)
	eb := b.AddExternal("Topic", "AWS::SNS::Topic", nil)
	ea.DependOn(eb.Handle())
	eb.DependOn(ea.Handle())

	rec := &recordingEmitter{}
	_, err := o.CommitTo(rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCyclicScopeDependency)
	assert.Contains(t, err.Error(), "a -> b -> a")
	assert.Empty(t, rec.resources)
}

func TestCommit_ExternalWaitsForGate(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	alb := newTestALB(s, "LB")
	tg := newTestTG(s, "App")
	l, err := alb.AddListener("HTTP", ListenerProps{DefaultTargetGroups: []*TargetGroup{tg}})
	require.NoError(t, err)
	svc := s.AddExternal("Service", "AWS::ECS::Service", map[string]string{"desiredCount": "2"})
	svc.DependOn(tg.LoadBalancerAttached())

	res, err := o.Commit()
	require.NoError(t, err)

	record, ok := res.Template.Lookup(svc.Handle().LogicalID())
	require.True(t, ok)
	assert.Equal(t, []string{l.Handle().LogicalID()}, record.DependsOn)
	assert.Equal(t, "AWS::ECS::Service", properties[template.ExternalProperties](t, record).Type)
}

func ingressFromGroups(tpl *template.Template) []template.Resource {
	var out []template.Resource
	for _, r := range tpl.ByKind(template.KindSecurityGroupIngress) {
		if r.Properties.(template.SecurityGroupIngressProperties).SourceGroup != nil {
			out = append(out, r)
		}
	}
	return out
}

func TestCommit_IngressPlacedInLoadBalancerScopeWhenItDependsOnPeer(t *testing.T) {
	o := NewOrchestrator()
	svc := o.NewScope("service")
	web := o.NewScope("web")

	tg := newTestTG(svc, "App")
	tasks := NewConnections(svc, "Tasks", SecurityGroupID("sg-tasks"))
	require.NoError(t, tg.RegisterConnectable(tasks, PortRange{}))

	alb := newTestALB(web, "LB")
	_, err := alb.AddListener("HTTP", ListenerProps{DefaultTargetGroups: []*TargetGroup{tg}})
	require.NoError(t, err)
	require.Len(t, alb.Connections().Grants(), 1)

	res, err := o.Commit()
	require.NoError(t, err)

	ingress := ingressFromGroups(res.Template)
	require.Len(t, ingress, 1)
	assert.Equal(t, "web", ingress[0].Scope)
	p := ingress[0].Properties.(template.SecurityGroupIngressProperties)
	assert.Equal(t, "sg-tasks", p.Group.Value)
	assert.NotEmpty(t, p.SourceGroup.Ref)
	assert.Equal(t, int32(8080), p.FromPort)
	assert.Equal(t, int32(8080), p.ToPort)
}

func TestCommit_IngressPlacedInPeerScope(t *testing.T) {
	o := NewOrchestrator()
	web := o.NewScope("web")
	svc := o.NewScope("service")

	alb := newTestALB(web, "LB")
	tg := newTestTG(web, "App")
	_, err := alb.AddListener("HTTP", ListenerProps{DefaultTargetGroups: []*TargetGroup{tg}})
	require.NoError(t, err)

	tasks := NewConnections(svc, "Tasks", SecurityGroupID("sg-tasks"))
	require.NoError(t, tg.RegisterConnectable(tasks, Ports(8000, 8100)))

	res, err := o.Commit()
	require.NoError(t, err)

	ingress := ingressFromGroups(res.Template)
	require.Len(t, ingress, 1)
	assert.Equal(t, "service", ingress[0].Scope)
	p := ingress[0].Properties.(template.SecurityGroupIngressProperties)
	assert.Equal(t, alb.Connections().SecurityGroups()[0].Handle().ARN(), p.SourceGroup.Token)
	assert.Equal(t, int32(8000), p.FromPort)
	assert.Equal(t, int32(8100), p.ToPort)
	assert.Equal(t, []template.Scope{{Name: "web"}, {Name: "service", DependsOn: []string{"web"}}}, res.Template.Scopes)
}

func TestCommit_OpenListenerIngress(t *testing.T) {
	closed := false
	tests := []struct {
		name      string
		ipType    IPAddressType
		open      *bool
		wantCIDRs []string
	}{
		{name: "default ipv4", ipType: IPv4, wantCIDRs: []string{"0.0.0.0/0"}},
		{name: "dual stack", ipType: DualStack, wantCIDRs: []string{"0.0.0.0/0", "::/0"}},
		{name: "closed", ipType: IPv4, open: &closed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOrchestrator()
			s := o.NewScope("web")
			alb := NewApplicationLoadBalancer(s, "LB", LoadBalancerProps{Subnets: testSubnets, IPAddressType: tt.ipType})
			_, err := alb.AddListener("HTTP", ListenerProps{
				Open:          tt.open,
				DefaultAction: FixedResponse("404", FixedResponseOptions{}),
			})
			require.NoError(t, err)

			res, err := o.Commit()
			require.NoError(t, err)

			var cidrs []string
			for _, r := range res.Template.ByKind(template.KindSecurityGroupIngress) {
				p := r.Properties.(template.SecurityGroupIngressProperties)
				assert.Equal(t, int32(80), p.FromPort)
				cidrs = append(cidrs, p.CidrIP+p.CidrIPv6)
			}
			assert.Equal(t, tt.wantCIDRs, cidrs)
		})
	}
}

func TestCommit_EmitterError(t *testing.T) {
	o := NewOrchestrator()
	o.NewScope("web").AddExternal("Thing", "Custom::Thing", nil)

	_, err := o.CommitTo(failingEmitter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errEmit)
}

var errEmit = errors.New("sink closed")

type failingEmitter struct{}

func (failingEmitter) EmitScope(template.Scope) error { return nil }
func (failingEmitter) Emit(template.Resource) error   { return errEmit }

func TestCommit_GateWithoutListenerWarns(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	tg := newTestTG(s, "App")
	svc := s.AddExternal("Service", "AWS::ECS::Service", nil)
	svc.DependOn(tg.LoadBalancerAttached())

	res, err := o.Commit()
	require.NoError(t, err)
	assert.False(t, tg.LoadBalancerAttached().IsOpen())

	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], ErrGateNeverOpens)
	assert.Equal(t, svc.Handle().Path(), res.Warnings[0].Path)
	assert.Contains(t, res.Warnings[0].Detail, "web/App")
}

func TestCommit_CycleReportedWithStructuralIssues(t *testing.T) {
	o := NewOrchestrator()
	a := o.NewScope("a")
	b := o.NewScope("b")
	ea := a.AddExternal("Queue", "AWS::SQS::Queue", nil)
	eb := b.AddExternal("Topic", "AWS::SNS::Topic", nil)
	ea.DependOn(eb.Handle())
	eb.DependOn(ea.Handle())
	_, err := newTestALB(a, "LB").AddListener("HTTP", ListenerProps{})
	require.NoError(t, err)

	_, err = o.Commit()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDefaultActionMissing)
	assert.ErrorIs(t, err, ErrCyclicScopeDependency)
}

func TestCommit_RetryAfterEmitterError(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	tg := newTestTG(s, "App", InstanceTarget("i-1", 0))
	l, err := newTestALB(s, "LB").AddListener("HTTP", ListenerProps{DefaultTargetGroups: []*TargetGroup{tg}})
	require.NoError(t, err)

	_, err = o.CommitTo(failingEmitter{})
	require.ErrorIs(t, err, errEmit)
	assert.Equal(t, ListenerFinalized, l.State())
	assert.True(t, tg.LoadBalancerAttached().IsOpen())

	res, err := o.Commit()
	require.NoError(t, err)
	assert.Zero(t, res.GatesOpened)
	assert.Len(t, res.Template.ByKind(template.KindTarget), 1)
}

func TestCommit_TemplateRoundTrip(t *testing.T) {
	o := NewOrchestrator()
	web := o.NewScope("web")
	svc := o.NewScope("service")

	api := newTestTG(web, "Api", IPTarget("10.0.0.1", 8080), IPTarget("10.0.0.2", 8080))
	require.NoError(t, api.ConfigureHealthCheck(HealthCheck{Path: "/healthz", Interval: 15 * time.Second}))
	admin := newTestTG(web, "Admin", InstanceTarget("i-1", 0))
	tasks := NewConnections(svc, "Tasks", SecurityGroupID("sg-tasks"))
	require.NoError(t, api.RegisterConnectable(tasks, PortRange{}))

	alb := newTestALB(web, "LB")
	l, err := alb.AddListener("HTTPS", ListenerProps{
		CertificateARNs: []string{"arn:cert/A", "arn:cert/B"},
		DefaultAction:   FixedResponse("404", FixedResponseOptions{ContentType: "text/plain", MessageBody: "not found"}),
	})
	require.NoError(t, err)
	_, err = l.AddAction("Split", AddActionProps{
		Action:     WeightedForward([]WeightedTargetGroup{{TargetGroup: api, Weight: 80}, {TargetGroup: admin, Weight: 20}}, &Stickiness{Duration: time.Hour}),
		Conditions: []Condition{HostHeaders("app.example.com"), PathPatterns("/api/*")},
		Priority:   10,
	})
	require.NoError(t, err)
	_, err = l.AddAction("Admin", AddActionProps{
		Action: AuthenticateOIDC(OIDCOptions{
			Issuer:                "https://idp.example.com",
			AuthorizationEndpoint: "https://idp.example.com/auth",
			TokenEndpoint:         "https://idp.example.com/token",
			UserInfoEndpoint:      "https://idp.example.com/userinfo",
			ClientID:              "client",
			ClientSecret:          "secret",
		}, Forward(admin)),
		Conditions: []Condition{PathPatterns("/admin/*")},
		Priority:   20,
	})
	require.NoError(t, err)
	_, err = alb.AddListener("HTTP", ListenerProps{
		DefaultAction: Redirect(RedirectOptions{Protocol: "HTTPS", Port: "443", Permanent: true}),
	})
	require.NoError(t, err)
	svc.AddExternal("Service", "AWS::ECS::Service", map[string]string{"desiredCount": "2"}).DependOn(api.LoadBalancerAttached())

	res, err := o.Commit()
	require.NoError(t, err)
	for _, k := range []template.Kind{
		template.KindLoadBalancer,
		template.KindListener,
		template.KindListenerCertificate,
		template.KindListenerRule,
		template.KindTargetGroup,
		template.KindTarget,
		template.KindSecurityGroup,
		template.KindSecurityGroupIngress,
		template.KindExternal,
	} {
		assert.NotEmpty(t, res.Template.ByKind(k), k)
	}

	for _, f := range []template.Format{template.FormatYAML, template.FormatJSON} {
		t.Run(string(f), func(t *testing.T) {
			first, err := template.Marshal(res.Template, f)
			require.NoError(t, err)
			parsed, err := template.Unmarshal(first, f)
			require.NoError(t, err)
			second, err := template.Marshal(parsed, f)
			require.NoError(t, err)
			assert.Equal(t, string(first), string(second))
		})
	}
}
