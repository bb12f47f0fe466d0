package lb

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/samber/lo"

	"tasnim.dev/lbgraph/template"
)

// ActionKind tags an Action variant.
type ActionKind string

const (
	ActionForward          ActionKind = "forward"
	ActionWeightedForward  ActionKind = "weighted-forward"
	ActionFixedResponse    ActionKind = "fixed-response"
	ActionRedirect         ActionKind = "redirect"
	ActionAuthenticateOIDC ActionKind = "authenticate-oidc"
)

const (
	maxForwardTargetGroups = 5
	maxWeight              = 999
	maxFixedResponseBody   = 1024
	maxStickiness          = 7 * 24 * time.Hour
)

var (
	fixedResponseStatus = regexp.MustCompile(`^[245][0-9][0-9]$`)
	fixedContentTypes   = []string{"text/plain", "text/css", "text/html", "application/javascript", "application/json"}
	unauthenticated     = []elbtypes.AuthenticateOidcActionConditionalBehaviorEnum{
		elbtypes.AuthenticateOidcActionConditionalBehaviorEnumDeny,
		elbtypes.AuthenticateOidcActionConditionalBehaviorEnumAllow,
		elbtypes.AuthenticateOidcActionConditionalBehaviorEnumAuthenticate,
	}
)

// WeightedTargetGroup is one destination of a weighted forward.
type WeightedTargetGroup struct {
	TargetGroup *TargetGroup
	Weight      int32
}

// Stickiness binds a client to a target group of a weighted forward for
// Duration.
type Stickiness struct {
	Duration time.Duration
}

type FixedResponseOptions struct {
	ContentType string
	MessageBody string
}

// RedirectOptions describes the redirect target. Empty components keep the
// request value; "#{host}", "#{path}", "#{port}", "#{protocol}" and
// "#{query}" do the same explicitly.
type RedirectOptions struct {
	Host      string
	Path      string
	Port      string
	Protocol  string
	Query     string
	Permanent bool
}

type OIDCOptions struct {
	Issuer                   string
	AuthorizationEndpoint    string
	TokenEndpoint            string
	UserInfoEndpoint         string
	ClientID                 string
	ClientSecret             string
	Scope                    string
	SessionCookieName        string
	OnUnauthenticatedRequest elbtypes.AuthenticateOidcActionConditionalBehaviorEnum
}

// Action is one node of an action chain. Chains are built leaf first, so
// they are finite and acyclic by construction: only authenticate-oidc nodes
// have a next action.
type Action struct {
	kind         ActionKind
	targetGroups []WeightedTargetGroup
	stickiness   *Stickiness
	statusCode   string
	fixed        FixedResponseOptions
	redirect     RedirectOptions
	oidc         OIDCOptions
	next         *Action
}

// Forward routes to tgs. With several groups traffic is split evenly.
func Forward(tgs ...*TargetGroup) *Action {
	a := &Action{kind: ActionForward}
	for _, tg := range tgs {
		a.targetGroups = append(a.targetGroups, WeightedTargetGroup{TargetGroup: tg, Weight: 1})
	}
	return a
}

// WeightedForward splits traffic by weight. stickiness may be nil.
func WeightedForward(tgs []WeightedTargetGroup, stickiness *Stickiness) *Action {
	return &Action{
		kind:         ActionWeightedForward,
		targetGroups: append([]WeightedTargetGroup(nil), tgs...),
		stickiness:   stickiness,
	}
}

// FixedResponse answers with statusCode, e.g. "404".
func FixedResponse(statusCode string, opts FixedResponseOptions) *Action {
	return &Action{kind: ActionFixedResponse, statusCode: statusCode, fixed: opts}
}

func Redirect(opts RedirectOptions) *Action {
	return &Action{kind: ActionRedirect, redirect: opts}
}

// AuthenticateOIDC authenticates the client, then performs next.
func AuthenticateOIDC(opts OIDCOptions, next *Action) *Action {
	return &Action{kind: ActionAuthenticateOIDC, oidc: opts, next: next}
}

func (a *Action) Kind() ActionKind { return a.kind }
func (a *Action) Next() *Action    { return a.next }

// Terminal reports whether a ends a chain.
func (a *Action) Terminal() bool { return a.kind != ActionAuthenticateOIDC }

// Chain returns a and its successors in execution order.
func (a *Action) Chain() []*Action {
	var chain []*Action
	for cur := a; cur != nil; cur = cur.next {
		chain = append(chain, cur)
	}
	return chain
}

// Leaf returns the last action of the chain.
func (a *Action) Leaf() *Action {
	chain := a.Chain()
	return chain[len(chain)-1]
}

// TargetGroups returns the distinct target groups the chain forwards to.
func (a *Action) TargetGroups() []*TargetGroup {
	if a == nil {
		return nil
	}
	var tgs []*TargetGroup
	for _, step := range a.Chain() {
		for _, w := range step.targetGroups {
			if w.TargetGroup != nil {
				tgs = append(tgs, w.TargetGroup)
			}
		}
	}
	return lo.Uniq(tgs)
}

// StatusCode returns the fixed-response status code.
func (a *Action) StatusCode() string { return a.statusCode }

// RedirectOptions returns the redirect target of a redirect action.
func (a *Action) RedirectOptions() RedirectOptions { return a.redirect }

// OIDCOptions returns the identity provider settings of an authenticate-oidc
// action.
func (a *Action) OIDCOptions() OIDCOptions { return a.oidc }

// WeightedTargetGroups returns the forward destinations with their weights.
func (a *Action) WeightedTargetGroups() []WeightedTargetGroup {
	return append([]WeightedTargetGroup(nil), a.targetGroups...)
}

// checkShape reports the construction-time problems of a chain: a missing
// action, forward without target groups, authenticate without next.
func (a *Action) checkShape() string {
	if a == nil {
		return "action is nil"
	}
	for _, step := range a.Chain() {
		switch step.kind {
		case ActionForward, ActionWeightedForward:
			if len(step.targetGroups) == 0 {
				return fmt.Sprintf("%s without target groups", step.kind)
			}
			for _, w := range step.targetGroups {
				if w.TargetGroup == nil {
					return fmt.Sprintf("%s with a nil target group", step.kind)
				}
			}
		case ActionAuthenticateOIDC:
			if step.next == nil {
				return "authenticate-oidc must be followed by another action"
			}
		case ActionFixedResponse, ActionRedirect:
		default:
			return fmt.Sprintf("unknown action kind %q", step.kind)
		}
	}
	return ""
}

// validate checks the chain against the listener it is attached to.
func (a *Action) validate(path string, l *Listener) []*Issue {
	if msg := a.checkShape(); msg != "" {
		return []*Issue{newIssue(path, ErrInvalidAction, "%s", msg)}
	}
	var issues []*Issue
	add := func(err error, format string, args ...any) {
		issues = append(issues, newIssue(path, err, format, args...))
	}
	for _, step := range a.Chain() {
		if l.lb.kind == Network && step.kind != ActionForward {
			add(ErrInvalidAction, "%s is not supported on network listeners", step.kind)
			continue
		}
		switch step.kind {
		case ActionForward:
			limit := maxForwardTargetGroups
			if l.lb.kind == Network {
				limit = 1
			}
			if len(step.targetGroups) > limit {
				add(ErrInvalidAction, "forward to %d target groups, at most %d", len(step.targetGroups), limit)
			}
		case ActionWeightedForward:
			if len(step.targetGroups) > maxForwardTargetGroups {
				add(ErrInvalidAction, "forward to %d target groups, at most %d", len(step.targetGroups), maxForwardTargetGroups)
			}
			positive := false
			for _, w := range step.targetGroups {
				if w.Weight < 0 || w.Weight > maxWeight {
					add(ErrInvalidWeight, "weight %d for %s outside [0, %d]", w.Weight, w.TargetGroup.handle.Path(), maxWeight)
				}
				positive = positive || w.Weight > 0
			}
			if !positive {
				add(ErrInvalidWeight, "at least one weight must be positive")
			}
			if s := step.stickiness; s != nil && (s.Duration < time.Second || s.Duration > maxStickiness) {
				add(ErrInvalidAction, "stickiness duration %s outside [1s, %s]", s.Duration, maxStickiness)
			}
		case ActionFixedResponse:
			if !fixedResponseStatus.MatchString(step.statusCode) {
				add(ErrInvalidAction, "fixed-response status %q is not 2XX, 4XX or 5XX", step.statusCode)
			}
			if ct := step.fixed.ContentType; ct != "" && !lo.Contains(fixedContentTypes, ct) {
				add(ErrInvalidAction, "fixed-response content type %q", ct)
			}
			if n := len(step.fixed.MessageBody); n > maxFixedResponseBody {
				add(ErrInvalidAction, "fixed-response body is %d bytes, at most %d", n, maxFixedResponseBody)
			}
		case ActionRedirect:
			if !step.redirect.changes(l) {
				add(ErrRedirectLoop, "")
			}
		case ActionAuthenticateOIDC:
			if l.Protocol() != ProtocolHTTPS {
				add(ErrInvalidAction, "authenticate-oidc requires an HTTPS listener")
			}
			o := step.oidc
			for _, f := range []struct{ name, value string }{
				{"issuer", o.Issuer},
				{"authorizationEndpoint", o.AuthorizationEndpoint},
				{"tokenEndpoint", o.TokenEndpoint},
				{"userInfoEndpoint", o.UserInfoEndpoint},
				{"clientId", o.ClientID},
				{"clientSecret", o.ClientSecret},
			} {
				if f.value == "" {
					add(ErrInvalidAction, "authenticate-oidc %s is required", f.name)
				}
			}
			if b := o.OnUnauthenticatedRequest; b != "" && !lo.Contains(unauthenticated, b) {
				add(ErrInvalidAction, "authenticate-oidc onUnauthenticatedRequest %q", b)
			}
		}
	}
	return issues
}

// changes reports whether the redirect alters at least one request
// component as seen by listener l.
func (r RedirectOptions) changes(l *Listener) bool {
	differs := func(v, placeholder, current string) bool {
		return v != "" && v != placeholder && v != current
	}
	return differs(r.Host, "#{host}", "") ||
		differs(r.Path, "#{path}", "") ||
		differs(r.Port, "#{port}", strconv.Itoa(int(l.Port()))) ||
		differs(r.Protocol, "#{protocol}", string(l.Protocol())) ||
		differs(r.Query, "#{query}", "")
}

// renderChain renders a chain as template actions. Order is assigned 1..N
// only when the chain has more than one step.
func renderChain(a *Action, ref func(*TargetGroup) template.Ref) []template.Action {
	chain := a.Chain()
	out := make([]template.Action, 0, len(chain))
	for i, step := range chain {
		ta := step.render(ref)
		if len(chain) > 1 {
			ta.Order = i + 1
		}
		out = append(out, ta)
	}
	return out
}

func (a *Action) render(ref func(*TargetGroup) template.Ref) template.Action {
	switch a.kind {
	case ActionForward:
		ta := template.Action{Type: string(elbtypes.ActionTypeEnumForward)}
		if len(a.targetGroups) == 1 {
			r := ref(a.targetGroups[0].TargetGroup)
			ta.TargetGroup = &r
			return ta
		}
		ta.ForwardConfig = &template.ForwardConfig{}
		for _, w := range a.targetGroups {
			ta.ForwardConfig.TargetGroups = append(ta.ForwardConfig.TargetGroups, template.TargetGroupTuple{TargetGroup: ref(w.TargetGroup)})
		}
		return ta
	case ActionWeightedForward:
		fc := &template.ForwardConfig{}
		for _, w := range a.targetGroups {
			weight := w.Weight
			fc.TargetGroups = append(fc.TargetGroups, template.TargetGroupTuple{TargetGroup: ref(w.TargetGroup), Weight: &weight})
		}
		if a.stickiness != nil {
			fc.Stickiness = &template.Stickiness{Enabled: true, DurationSeconds: int32(a.stickiness.Duration / time.Second)}
		}
		return template.Action{Type: string(elbtypes.ActionTypeEnumForward), ForwardConfig: fc}
	case ActionFixedResponse:
		return template.Action{
			Type: string(elbtypes.ActionTypeEnumFixedResponse),
			FixedResponseConfig: &template.FixedResponseConfig{
				StatusCode:  a.statusCode,
				ContentType: a.fixed.ContentType,
				MessageBody: a.fixed.MessageBody,
			},
		}
	case ActionRedirect:
		status := elbtypes.RedirectActionStatusCodeEnumHttp302
		if a.redirect.Permanent {
			status = elbtypes.RedirectActionStatusCodeEnumHttp301
		}
		return template.Action{
			Type: string(elbtypes.ActionTypeEnumRedirect),
			RedirectConfig: &template.RedirectConfig{
				Host:       a.redirect.Host,
				Path:       a.redirect.Path,
				Port:       a.redirect.Port,
				Protocol:   a.redirect.Protocol,
				Query:      a.redirect.Query,
				StatusCode: string(status),
			},
		}
	default:
		o := a.oidc
		return template.Action{
			Type: string(elbtypes.ActionTypeEnumAuthenticateOidc),
			AuthenticateOidcConfig: &template.AuthenticateOidcConfig{
				Issuer:                   o.Issuer,
				AuthorizationEndpoint:    o.AuthorizationEndpoint,
				TokenEndpoint:            o.TokenEndpoint,
				UserInfoEndpoint:         o.UserInfoEndpoint,
				ClientID:                 o.ClientID,
				ClientSecret:             o.ClientSecret,
				Scope:                    o.Scope,
				SessionCookieName:        o.SessionCookieName,
				OnUnauthenticatedRequest: string(o.OnUnauthenticatedRequest),
			},
		}
	}
}
