package lb

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasnim.dev/lbgraph/template"
)

var testOIDC = OIDCOptions{
	Issuer:                "https://idp.example.com",
	AuthorizationEndpoint: "https://idp.example.com/authorize",
	TokenEndpoint:         "https://idp.example.com/token",
	UserInfoEndpoint:      "https://idp.example.com/userinfo",
	ClientID:              "client",
	ClientSecret:          "secret",
}

func TestAction_ChainEndsInOneTerminal(t *testing.T) {
	s := NewOrchestrator().NewScope("web")
	tg := newTestTG(s, "App")

	chains := []*Action{
		Forward(tg),
		WeightedForward([]WeightedTargetGroup{{TargetGroup: tg, Weight: 1}}, nil),
		FixedResponse("404", FixedResponseOptions{}),
		Redirect(RedirectOptions{Protocol: "HTTPS", Port: "443"}),
		AuthenticateOIDC(testOIDC, Forward(tg)),
		AuthenticateOIDC(testOIDC, AuthenticateOIDC(testOIDC, FixedResponse("200", FixedResponseOptions{}))),
	}

	for _, a := range chains {
		steps := a.Chain()
		terminals := 0
		for _, step := range steps {
			if step.Terminal() {
				terminals++
			}
		}
		assert.Equal(t, 1, terminals, a.Kind())
		assert.True(t, a.Leaf().Terminal())
		assert.Same(t, steps[len(steps)-1], a.Leaf())
	}
}

func TestAction_CheckShape(t *testing.T) {
	s := NewOrchestrator().NewScope("web")
	tg := newTestTG(s, "App")

	tests := []struct {
		name   string
		action *Action
		want   string
	}{
		{name: "forward", action: Forward(tg)},
		{name: "nil", action: nil, want: "action is nil"},
		{name: "forward nothing", action: Forward(), want: "forward without target groups"},
		{name: "forward nil group", action: Forward(nil), want: "forward with a nil target group"},
		{name: "authenticate without next", action: AuthenticateOIDC(testOIDC, nil), want: "authenticate-oidc must be followed by another action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.action.checkShape())
		})
	}
}

func TestRenderChain_OrderIsDense(t *testing.T) {
	s := NewOrchestrator().NewScope("web")
	tg := newTestTG(s, "App")
	ref := func(tg *TargetGroup) template.Ref { return template.Ref{Ref: tg.Handle().LogicalID()} }

	for n := 1; n <= 4; n++ {
		a := Forward(tg)
		for i := 1; i < n; i++ {
			a = AuthenticateOIDC(testOIDC, a)
		}
		actions := renderChain(a, ref)
		require.Len(t, actions, n)
		for i, ta := range actions {
			if n == 1 {
				assert.Zero(t, ta.Order)
				continue
			}
			assert.Equal(t, i+1, ta.Order)
		}
	}
}

func TestRender_ForwardVariants(t *testing.T) {
	s := NewOrchestrator().NewScope("web")
	a := newTestTG(s, "A")
	b := newTestTG(s, "B")
	ref := func(tg *TargetGroup) template.Ref { return template.Ref{Ref: tg.Handle().LogicalID()} }

	single := Forward(a).render(ref)
	require.NotNil(t, single.TargetGroup)
	assert.Nil(t, single.ForwardConfig)

	even := Forward(a, b).render(ref)
	assert.Nil(t, even.TargetGroup)
	require.Len(t, even.ForwardConfig.TargetGroups, 2)
	assert.Nil(t, even.ForwardConfig.TargetGroups[0].Weight)

	weighted := WeightedForward([]WeightedTargetGroup{{TargetGroup: a, Weight: 80}, {TargetGroup: b, Weight: 20}}, &Stickiness{Duration: time.Hour}).render(ref)
	assert.Equal(t, "forward", weighted.Type)
	require.Len(t, weighted.ForwardConfig.TargetGroups, 2)
	assert.Equal(t, int32(80), *weighted.ForwardConfig.TargetGroups[0].Weight)
	assert.Equal(t, int32(20), *weighted.ForwardConfig.TargetGroups[1].Weight)
	assert.Equal(t, &template.Stickiness{Enabled: true, DurationSeconds: 3600}, weighted.ForwardConfig.Stickiness)

	redirect := Redirect(RedirectOptions{Protocol: "HTTPS", Port: "443", Permanent: true}).render(ref)
	assert.Equal(t, "redirect", redirect.Type)
	assert.Equal(t, "HTTP_301", redirect.RedirectConfig.StatusCode)
	assert.Equal(t, "HTTP_302", Redirect(RedirectOptions{Host: "example.com"}).render(ref).RedirectConfig.StatusCode)
}

func TestAction_Validate(t *testing.T) {
	o := NewOrchestrator()
	s := o.NewScope("web")
	alb := newTestALB(s, "LB")
	httpListener, err := alb.AddListener("HTTP", ListenerProps{Port: 80})
	require.NoError(t, err)
	httpsListener, err := alb.AddListener("HTTPS", ListenerProps{Port: 443, CertificateARNs: []string{"arn:cert/A"}})
	require.NoError(t, err)
	a := newTestTG(s, "A")
	b := newTestTG(s, "B")

	tests := []struct {
		name     string
		listener *Listener
		action   *Action
		want     []error
	}{
		{name: "forward", listener: httpListener, action: Forward(a, b)},
		{
			name:     "weights in range",
			listener: httpListener,
			action:   WeightedForward([]WeightedTargetGroup{{TargetGroup: a, Weight: 0}, {TargetGroup: b, Weight: 999}}, nil),
		},
		{
			name:     "weight above range",
			listener: httpListener,
			action:   WeightedForward([]WeightedTargetGroup{{TargetGroup: a, Weight: 1000}}, nil),
			want:     []error{ErrInvalidWeight},
		},
		{
			name:     "all weights zero",
			listener: httpListener,
			action:   WeightedForward([]WeightedTargetGroup{{TargetGroup: a}, {TargetGroup: b}}, nil),
			want:     []error{ErrInvalidWeight},
		},
		{
			name:     "stickiness too long",
			listener: httpListener,
			action:   WeightedForward([]WeightedTargetGroup{{TargetGroup: a, Weight: 1}}, &Stickiness{Duration: 8 * 24 * time.Hour}),
			want:     []error{ErrInvalidAction},
		},
		{name: "fixed 503", listener: httpListener, action: FixedResponse("503", FixedResponseOptions{ContentType: "application/json", MessageBody: "{}"})},
		{name: "fixed 302", listener: httpListener, action: FixedResponse("302", FixedResponseOptions{}), want: []error{ErrInvalidAction}},
		{name: "fixed content type", listener: httpListener, action: FixedResponse("200", FixedResponseOptions{ContentType: "image/png"}), want: []error{ErrInvalidAction}},
		{name: "fixed body too long", listener: httpListener, action: FixedResponse("200", FixedResponseOptions{MessageBody: strings.Repeat("x", 1025)}), want: []error{ErrInvalidAction}},
		{name: "redirect to https", listener: httpListener, action: Redirect(RedirectOptions{Protocol: "HTTPS", Port: "443"})},
		{name: "redirect nothing", listener: httpListener, action: Redirect(RedirectOptions{}), want: []error{ErrRedirectLoop}},
		{
			name:     "redirect placeholders",
			listener: httpListener,
			action:   Redirect(RedirectOptions{Host: "#{host}", Path: "#{path}", Port: "#{port}", Protocol: "#{protocol}", Query: "#{query}"}),
			want:     []error{ErrRedirectLoop},
		},
		{name: "redirect same protocol and port", listener: httpsListener, action: Redirect(RedirectOptions{Protocol: "HTTPS", Port: "443"}), want: []error{ErrRedirectLoop}},
		{name: "oidc on https", listener: httpsListener, action: AuthenticateOIDC(testOIDC, Forward(a))},
		{name: "oidc on http", listener: httpListener, action: AuthenticateOIDC(testOIDC, Forward(a)), want: []error{ErrInvalidAction}},
		{
			name:     "oidc missing client",
			listener: httpsListener,
			action:   AuthenticateOIDC(OIDCOptions{Issuer: "https://idp"}, Forward(a)),
			want:     []error{ErrInvalidAction, ErrInvalidAction, ErrInvalidAction, ErrInvalidAction, ErrInvalidAction},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := tt.action.validate("web/test", tt.listener)
			got := make([]error, 0, len(issues))
			for _, i := range issues {
				got = append(got, i.Err)
			}
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
