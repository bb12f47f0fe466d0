package definition

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/samber/lo"

	"tasnim.dev/lbgraph/internal/aws/elb"
	"tasnim.dev/lbgraph/internal/utils"
)

// ScopeTag is the load balancer tag that selects the scope of an imported
// load balancer.
const ScopeTag = "lbgraph:scope"

// SecretPlaceholder stands in for OIDC client secrets, which the service
// never returns.
const SecretPlaceholder = "${OIDC_CLIENT_SECRET}"

type importer struct {
	defaultScope string
	scopes       map[string]*ScopeDef
	order        []string
	tgRefs       map[string][2]string // arn -> scope, id
	warnings     []string
}

// FromSnapshot converts deployed state into a definition. Load balancers are
// placed in the scope named by their ScopeTag, or defaultScope. A target
// group joins the scope of the first load balancer that uses it. Anything the
// definition cannot express is dropped and reported as a warning.
func FromSnapshot(snap *elb.Snapshot, defaultScope string) (*Definition, []string) {
	im := &importer{
		defaultScope: defaultScope,
		scopes:       map[string]*ScopeDef{},
		tgRefs:       map[string][2]string{},
	}

	lbScope := map[string]string{}
	for _, l := range snap.LoadBalancers {
		scope := l.Tags[ScopeTag]
		if scope == "" {
			scope = defaultScope
		}
		lbScope[l.ARN] = scope
	}
	for _, tg := range snap.TargetGroups {
		scope := defaultScope
		if len(tg.LoadBalancerARNs) > 0 {
			if s, ok := lbScope[tg.LoadBalancerARNs[0]]; ok {
				scope = s
			}
		}
		im.tgRefs[tg.ARN] = [2]string{scope, tg.Name}
		im.scope(scope).TargetGroups = append(im.scope(scope).TargetGroups, targetGroupDef(tg))
	}
	for _, l := range snap.LoadBalancers {
		if l.Type != string(elbtypes.LoadBalancerTypeEnumApplication) && l.Type != string(elbtypes.LoadBalancerTypeEnumNetwork) {
			im.warn("%s: %s load balancers are not supported", l.Name, l.Type)
			continue
		}
		scope := lbScope[l.ARN]
		im.scope(scope).LoadBalancers = append(im.scope(scope).LoadBalancers, im.loadBalancer(scope, l))
	}

	def := &Definition{Version: 1}
	for _, name := range im.order {
		def.Scopes = append(def.Scopes, *im.scopes[name])
	}
	return def, im.warnings
}

func (im *importer) scope(name string) *ScopeDef {
	s, ok := im.scopes[name]
	if !ok {
		s = &ScopeDef{Name: name}
		im.scopes[name] = s
		im.order = append(im.order, name)
	}
	return s
}

func (im *importer) warn(format string, args ...any) {
	im.warnings = append(im.warnings, fmt.Sprintf(format, args...))
}

func (im *importer) tgRef(scope, arn string) string {
	ref, ok := im.tgRefs[arn]
	if !ok {
		// Not described with the snapshot; keep its name so the reference
		// surfaces as unknown when the definition is built.
		im.warn("target group %s is outside the snapshot", arn)
		return utils.SecondToLast(arn)
	}
	if ref[0] == scope {
		return ref[1]
	}
	return ref[0] + "/" + ref[1]
}

func targetGroupDef(tg elb.TargetGroup) TargetGroupDef {
	def := TargetGroupDef{
		ID:         tg.Name,
		Name:       tg.Name,
		Port:       tg.Port,
		Protocol:   tg.Protocol,
		TargetType: tg.TargetType,
		VPC:        tg.VPCID,
		Targets: lo.Map(tg.Targets, func(t elb.Target, _ int) TargetDef {
			return TargetDef{ID: t.ID, Type: tg.TargetType, Port: t.Port, Zone: t.AZ}
		}),
	}
	if tg.Protocol == string(elbtypes.ProtocolEnumTcp) || tg.Protocol == string(elbtypes.ProtocolEnumTls) ||
		tg.Protocol == string(elbtypes.ProtocolEnumUdp) || tg.Protocol == string(elbtypes.ProtocolEnumTcpUdp) {
		def.Type = string(elbtypes.LoadBalancerTypeEnumNetwork)
	}
	hc := tg.HealthCheck
	if hc != (elb.HealthCheck{}) {
		def.HealthCheck = &HealthCheckDef{
			Enabled:            aws.Bool(hc.Enabled),
			Protocol:           hc.Protocol,
			Port:               hc.Port,
			Path:               hc.Path,
			IntervalSeconds:    int(hc.IntervalSeconds),
			TimeoutSeconds:     int(hc.TimeoutSeconds),
			HealthyThreshold:   hc.HealthyThreshold,
			UnhealthyThreshold: hc.UnhealthyThreshold,
			Matcher:            hc.Matcher,
		}
	}
	return def
}

func (im *importer) loadBalancer(scope string, l elb.LoadBalancer) LoadBalancerDef {
	def := LoadBalancerDef{
		ID:             l.Name,
		Type:           l.Type,
		Name:           l.Name,
		VPC:            l.VPCID,
		Subnets:        lo.Map(l.Subnets, func(s elb.Subnet, _ int) SubnetDef { return SubnetDef{ID: s.ID, Zone: s.Zone} }),
		SecurityGroups: l.SecurityGroups,
		Scheme:         l.Scheme,
		IPAddressType:  l.IPAddressType,
	}
	if len(l.Attributes) > 0 {
		def.Attributes = make(map[string]any, len(l.Attributes))
		for k, v := range l.Attributes {
			def.Attributes[k] = v
		}
	}
	for _, ls := range l.Listeners {
		def.Listeners = append(def.Listeners, im.listener(scope, l.Name, ls))
	}
	return def
}

func (im *importer) listener(scope, lbName string, l elb.Listener) ListenerDef {
	def := ListenerDef{
		ID:              l.Protocol + strconv.Itoa(int(l.Port)),
		Port:            l.Port,
		Protocol:        l.Protocol,
		SSLPolicy:       l.SSLPolicy,
		CertificateARNs: l.Certificates,
	}
	path := lbName + "/" + def.ID
	def.DefaultAction = im.action(scope, path+".defaultAction", l.DefaultActions)

	rules := lo.Filter(l.Rules, func(r elb.Rule, _ int) bool { return !r.IsDefault })
	sort.SliceStable(rules, func(i, j int) bool { return priority(rules[i]) < priority(rules[j]) })
	for _, r := range rules {
		rd := RuleDef{
			ID:       "Rule" + r.Priority,
			Priority: priority(r),
		}
		rulePath := path + "/" + rd.ID
		for _, c := range r.Conditions {
			if cd, ok := im.condition(rulePath, c); ok {
				rd.Conditions = append(rd.Conditions, cd)
			}
		}
		rd.Action = im.action(scope, rulePath, r.Actions)
		if rd.Action == nil {
			continue
		}
		def.Rules = append(def.Rules, rd)
	}
	return def
}

func priority(r elb.Rule) int {
	p, _ := strconv.Atoi(r.Priority)
	return p
}

// action converts an ordered action list into a chain. Only authenticate-oidc
// may precede the terminal action.
func (im *importer) action(scope, path string, actions []elbtypes.Action) *ActionDef {
	actions = append([]elbtypes.Action(nil), actions...)
	sort.SliceStable(actions, func(i, j int) bool {
		return aws.ToInt32(actions[i].Order) < aws.ToInt32(actions[j].Order)
	})
	var head *ActionDef
	tail := &head
	for _, a := range actions {
		def := &ActionDef{}
		switch a.Type {
		case elbtypes.ActionTypeEnumForward:
			im.forward(scope, def, a)
		case elbtypes.ActionTypeEnumFixedResponse:
			fr := a.FixedResponseConfig
			if fr == nil {
				im.warn("%s: fixed-response without configuration", path)
				return nil
			}
			def.FixedResponse = &FixedResponseDef{
				StatusCode:  aws.ToString(fr.StatusCode),
				ContentType: aws.ToString(fr.ContentType),
				MessageBody: aws.ToString(fr.MessageBody),
			}
		case elbtypes.ActionTypeEnumRedirect:
			rc := a.RedirectConfig
			if rc == nil {
				im.warn("%s: redirect without configuration", path)
				return nil
			}
			def.Redirect = &RedirectDef{
				Host:      aws.ToString(rc.Host),
				Path:      aws.ToString(rc.Path),
				Port:      aws.ToString(rc.Port),
				Protocol:  aws.ToString(rc.Protocol),
				Query:     aws.ToString(rc.Query),
				Permanent: rc.StatusCode == elbtypes.RedirectActionStatusCodeEnumHttp301,
			}
		case elbtypes.ActionTypeEnumAuthenticateOidc:
			oc := a.AuthenticateOidcConfig
			if oc == nil {
				im.warn("%s: authenticate-oidc without configuration", path)
				return nil
			}
			def.AuthenticateOIDC = &OIDCDef{
				Issuer:                   aws.ToString(oc.Issuer),
				AuthorizationEndpoint:    aws.ToString(oc.AuthorizationEndpoint),
				TokenEndpoint:            aws.ToString(oc.TokenEndpoint),
				UserInfoEndpoint:         aws.ToString(oc.UserInfoEndpoint),
				ClientID:                 aws.ToString(oc.ClientId),
				ClientSecret:             SecretPlaceholder,
				Scope:                    aws.ToString(oc.Scope),
				SessionCookieName:        aws.ToString(oc.SessionCookieName),
				OnUnauthenticatedRequest: string(oc.OnUnauthenticatedRequest),
			}
			im.warn("%s: client secret replaced with %s", path, SecretPlaceholder)
		default:
			im.warn("%s: %s actions are not supported", path, a.Type)
			return nil
		}
		*tail = def
		if def.AuthenticateOIDC == nil {
			return head
		}
		tail = &def.AuthenticateOIDC.Next
	}
	if head != nil {
		im.warn("%s: action chain has no terminal action", path)
	}
	return nil
}

func (im *importer) forward(scope string, def *ActionDef, a elbtypes.Action) {
	fc := a.ForwardConfig
	if fc == nil || len(fc.TargetGroups) <= 1 && (fc.TargetGroupStickinessConfig == nil || !aws.ToBool(fc.TargetGroupStickinessConfig.Enabled)) {
		arn := aws.ToString(a.TargetGroupArn)
		if arn == "" && fc != nil && len(fc.TargetGroups) == 1 {
			arn = aws.ToString(fc.TargetGroups[0].TargetGroupArn)
		}
		def.Forward = []string{im.tgRef(scope, arn)}
		return
	}
	w := &WeightedDef{}
	for _, t := range fc.TargetGroups {
		w.TargetGroups = append(w.TargetGroups, WeightedTargetDef{
			TargetGroup: im.tgRef(scope, aws.ToString(t.TargetGroupArn)),
			Weight:      aws.ToInt32(t.Weight),
		})
	}
	if sc := fc.TargetGroupStickinessConfig; sc != nil && aws.ToBool(sc.Enabled) {
		w.StickinessSeconds = int(aws.ToInt32(sc.DurationSeconds))
	}
	def.WeightedForward = w
}

func (im *importer) condition(path string, c elbtypes.RuleCondition) (ConditionDef, bool) {
	field := aws.ToString(c.Field)
	def := ConditionDef{Field: field, Values: c.Values}
	switch field {
	case "host-header":
		if c.HostHeaderConfig != nil {
			def.Values = c.HostHeaderConfig.Values
		}
	case "path-pattern":
		if c.PathPatternConfig != nil {
			def.Values = c.PathPatternConfig.Values
		}
	case "http-header":
		if c.HttpHeaderConfig != nil {
			def.HeaderName = aws.ToString(c.HttpHeaderConfig.HttpHeaderName)
			def.Values = c.HttpHeaderConfig.Values
		}
	case "http-request-method":
		if c.HttpRequestMethodConfig != nil {
			def.Values = c.HttpRequestMethodConfig.Values
		}
	case "query-string":
		if c.QueryStringConfig != nil {
			def.Values = nil
			def.QueryValues = lo.Map(c.QueryStringConfig.Values, func(kv elbtypes.QueryStringKeyValuePair, _ int) QueryStringDef {
				return QueryStringDef{Key: aws.ToString(kv.Key), Value: aws.ToString(kv.Value)}
			})
		}
	case "source-ip":
		if c.SourceIpConfig != nil {
			def.Values = c.SourceIpConfig.Values
		}
	default:
		im.warn("%s: condition field %q is not supported", path, field)
		return ConditionDef{}, false
	}
	return def, true
}
