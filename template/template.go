// Package template holds the typed resource records produced by a commit of
// the load-balancing graph, and their YAML/JSON encodings.
package template

// Kind names a resource record kind.
type Kind string

const (
	KindLoadBalancer         Kind = "LoadBalancer"
	KindListener             Kind = "Listener"
	KindListenerCertificate  Kind = "ListenerCertificate"
	KindListenerRule         Kind = "ListenerRule"
	KindTargetGroup          Kind = "TargetGroup"
	KindTarget               Kind = "Target"
	KindSecurityGroup        Kind = "SecurityGroup"
	KindSecurityGroupIngress Kind = "SecurityGroupIngress"
	KindExternal             Kind = "External"
)

// Template is the ordered output of a commit.
type Template struct {
	Scopes    []Scope    `yaml:"scopes" json:"scopes"`
	Resources []Resource `yaml:"resources" json:"resources"`
}

// Scope lists a scope and the scopes it softly depends on. Scopes appear
// dependencies first.
type Scope struct {
	Name      string   `yaml:"name" json:"name"`
	DependsOn []string `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
}

// Resource is one emitted record.
type Resource struct {
	LogicalID  string
	Kind       Kind
	Scope      string
	Path       string
	DependsOn  []string
	Properties Properties
}

// Properties is implemented by every record payload.
type Properties interface {
	Kind() Kind
}

// Emitter accepts a commit's output: every scope, dependencies first, then
// every record in emission order.
type Emitter interface {
	EmitScope(s Scope) error
	Emit(r Resource) error
}

// EmitScope appends s to the template.
func (t *Template) EmitScope(s Scope) error {
	t.Scopes = append(t.Scopes, s)
	return nil
}

// Emit appends r to the template.
func (t *Template) Emit(r Resource) error {
	t.Resources = append(t.Resources, r)
	return nil
}

// ByKind returns the resources of the given kind in emission order.
func (t *Template) ByKind(k Kind) []Resource {
	var out []Resource
	for _, r := range t.Resources {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

// Lookup returns the resource with the given logical ID.
func (t *Template) Lookup(logicalID string) (Resource, bool) {
	for _, r := range t.Resources {
		if r.LogicalID == logicalID {
			return r, true
		}
	}
	return Resource{}, false
}

// Ref points at another record. Exactly one field is set: Ref for a record in
// the same scope, Token for an opaque ARN-valued token crossing scopes, Value
// for an identifier supplied from outside the graph.
type Ref struct {
	Ref   string `yaml:"ref,omitempty" json:"ref,omitempty"`
	Token string `yaml:"token,omitempty" json:"token,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// String returns whichever field is set.
func (r Ref) String() string {
	switch {
	case r.Ref != "":
		return r.Ref
	case r.Token != "":
		return r.Token
	default:
		return r.Value
	}
}

type LoadBalancerProperties struct {
	Name           string            `yaml:"name" json:"name"`
	Type           string            `yaml:"type" json:"type"`
	Scheme         string            `yaml:"scheme" json:"scheme"`
	Subnets        []string          `yaml:"subnets" json:"subnets"`
	SecurityGroups []Ref             `yaml:"securityGroups,omitempty" json:"securityGroups,omitempty"`
	IPAddressType  string            `yaml:"ipAddressType" json:"ipAddressType"`
	Attributes     map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

func (LoadBalancerProperties) Kind() Kind { return KindLoadBalancer }

type Certificate struct {
	CertificateARN string `yaml:"certificateArn" json:"certificateArn"`
}

type ListenerProperties struct {
	LoadBalancer   Ref           `yaml:"loadBalancerRef" json:"loadBalancerRef"`
	Port           int32         `yaml:"port" json:"port"`
	Protocol       string        `yaml:"protocol" json:"protocol"`
	SSLPolicy      string        `yaml:"sslPolicy,omitempty" json:"sslPolicy,omitempty"`
	Certificates   []Certificate `yaml:"certificates,omitempty" json:"certificates,omitempty"`
	DefaultActions []Action      `yaml:"defaultActions" json:"defaultActions"`
}

func (ListenerProperties) Kind() Kind { return KindListener }

type ListenerCertificateProperties struct {
	Listener     Ref           `yaml:"listenerRef" json:"listenerRef"`
	Certificates []Certificate `yaml:"certificates" json:"certificates"`
}

func (ListenerCertificateProperties) Kind() Kind { return KindListenerCertificate }

type ListenerRuleProperties struct {
	Listener   Ref         `yaml:"listenerRef" json:"listenerRef"`
	Priority   int         `yaml:"priority" json:"priority"`
	Conditions []Condition `yaml:"conditions" json:"conditions"`
	Actions    []Action    `yaml:"actions" json:"actions"`
}

func (ListenerRuleProperties) Kind() Kind { return KindListenerRule }

type HealthCheck struct {
	Enabled                 *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Protocol                string `yaml:"protocol,omitempty" json:"protocol,omitempty"`
	Port                    string `yaml:"port,omitempty" json:"port,omitempty"`
	Path                    string `yaml:"path,omitempty" json:"path,omitempty"`
	IntervalSeconds         int32  `yaml:"intervalSeconds,omitempty" json:"intervalSeconds,omitempty"`
	TimeoutSeconds          int32  `yaml:"timeoutSeconds,omitempty" json:"timeoutSeconds,omitempty"`
	HealthyThresholdCount   int32  `yaml:"healthyThresholdCount,omitempty" json:"healthyThresholdCount,omitempty"`
	UnhealthyThresholdCount int32  `yaml:"unhealthyThresholdCount,omitempty" json:"unhealthyThresholdCount,omitempty"`
	Matcher                 string `yaml:"matcher,omitempty" json:"matcher,omitempty"`
}

type TargetGroupProperties struct {
	Name        string            `yaml:"name" json:"name"`
	Port        int32             `yaml:"port,omitempty" json:"port,omitempty"`
	Protocol    string            `yaml:"protocol,omitempty" json:"protocol,omitempty"`
	VPC         string            `yaml:"vpc,omitempty" json:"vpc,omitempty"`
	TargetType  string            `yaml:"targetType" json:"targetType"`
	HealthCheck *HealthCheck      `yaml:"healthCheck,omitempty" json:"healthCheck,omitempty"`
	Attributes  map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

func (TargetGroupProperties) Kind() Kind { return KindTargetGroup }

type TargetProperties struct {
	TargetGroup      Ref    `yaml:"targetGroupRef" json:"targetGroupRef"`
	ID               string `yaml:"id" json:"id"`
	Port             int32  `yaml:"port,omitempty" json:"port,omitempty"`
	AvailabilityZone string `yaml:"availabilityZone,omitempty" json:"availabilityZone,omitempty"`
}

func (TargetProperties) Kind() Kind { return KindTarget }

type SecurityGroupProperties struct {
	Description string `yaml:"description" json:"description"`
	VPC         string `yaml:"vpc,omitempty" json:"vpc,omitempty"`
}

func (SecurityGroupProperties) Kind() Kind { return KindSecurityGroup }

type SecurityGroupIngressProperties struct {
	Group       Ref    `yaml:"groupRef" json:"groupRef"`
	SourceGroup *Ref   `yaml:"sourceGroupRef,omitempty" json:"sourceGroupRef,omitempty"`
	CidrIP      string `yaml:"cidrIp,omitempty" json:"cidrIp,omitempty"`
	CidrIPv6    string `yaml:"cidrIpv6,omitempty" json:"cidrIpv6,omitempty"`
	IPProtocol  string `yaml:"ipProtocol" json:"ipProtocol"`
	FromPort    int32  `yaml:"fromPort" json:"fromPort"`
	ToPort      int32  `yaml:"toPort" json:"toPort"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

func (SecurityGroupIngressProperties) Kind() Kind { return KindSecurityGroupIngress }

// ExternalProperties describes a resource owned by the enclosing program.
// The graph only tracks its dependencies.
type ExternalProperties struct {
	Type       string            `yaml:"type" json:"type"`
	Properties map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
}

func (ExternalProperties) Kind() Kind { return KindExternal }

// Action is one step of a rendered action chain. Order is omitted for
// single-step chains.
type Action struct {
	Type                   string                  `yaml:"type" json:"type"`
	Order                  int                     `yaml:"order,omitempty" json:"order,omitempty"`
	TargetGroup            *Ref                    `yaml:"targetGroupRef,omitempty" json:"targetGroupRef,omitempty"`
	ForwardConfig          *ForwardConfig          `yaml:"forwardConfig,omitempty" json:"forwardConfig,omitempty"`
	FixedResponseConfig    *FixedResponseConfig    `yaml:"fixedResponseConfig,omitempty" json:"fixedResponseConfig,omitempty"`
	RedirectConfig         *RedirectConfig         `yaml:"redirectConfig,omitempty" json:"redirectConfig,omitempty"`
	AuthenticateOidcConfig *AuthenticateOidcConfig `yaml:"authenticateOidcConfig,omitempty" json:"authenticateOidcConfig,omitempty"`
}

type ForwardConfig struct {
	TargetGroups []TargetGroupTuple `yaml:"targetGroups" json:"targetGroups"`
	Stickiness   *Stickiness        `yaml:"targetGroupStickinessConfig,omitempty" json:"targetGroupStickinessConfig,omitempty"`
}

type TargetGroupTuple struct {
	TargetGroup Ref    `yaml:"targetGroupRef" json:"targetGroupRef"`
	Weight      *int32 `yaml:"weight,omitempty" json:"weight,omitempty"`
}

type Stickiness struct {
	Enabled         bool  `yaml:"enabled" json:"enabled"`
	DurationSeconds int32 `yaml:"durationSeconds,omitempty" json:"durationSeconds,omitempty"`
}

type FixedResponseConfig struct {
	StatusCode  string `yaml:"statusCode" json:"statusCode"`
	ContentType string `yaml:"contentType,omitempty" json:"contentType,omitempty"`
	MessageBody string `yaml:"messageBody,omitempty" json:"messageBody,omitempty"`
}

type RedirectConfig struct {
	Host       string `yaml:"host,omitempty" json:"host,omitempty"`
	Path       string `yaml:"path,omitempty" json:"path,omitempty"`
	Port       string `yaml:"port,omitempty" json:"port,omitempty"`
	Protocol   string `yaml:"protocol,omitempty" json:"protocol,omitempty"`
	Query      string `yaml:"query,omitempty" json:"query,omitempty"`
	StatusCode string `yaml:"statusCode" json:"statusCode"`
}

type AuthenticateOidcConfig struct {
	Issuer                   string `yaml:"issuer" json:"issuer"`
	AuthorizationEndpoint    string `yaml:"authorizationEndpoint" json:"authorizationEndpoint"`
	TokenEndpoint            string `yaml:"tokenEndpoint" json:"tokenEndpoint"`
	UserInfoEndpoint         string `yaml:"userInfoEndpoint" json:"userInfoEndpoint"`
	ClientID                 string `yaml:"clientId" json:"clientId"`
	ClientSecret             string `yaml:"clientSecret" json:"clientSecret"`
	Scope                    string `yaml:"scope,omitempty" json:"scope,omitempty"`
	SessionCookieName        string `yaml:"sessionCookieName,omitempty" json:"sessionCookieName,omitempty"`
	OnUnauthenticatedRequest string `yaml:"onUnauthenticatedRequest,omitempty" json:"onUnauthenticatedRequest,omitempty"`
}

// Condition renders as { field, <fieldConfig>: {...} } with exactly one
// config block set.
type Condition struct {
	Field                   string             `yaml:"field" json:"field"`
	HostHeaderConfig        *ValuesConfig      `yaml:"hostHeaderConfig,omitempty" json:"hostHeaderConfig,omitempty"`
	PathPatternConfig       *ValuesConfig      `yaml:"pathPatternConfig,omitempty" json:"pathPatternConfig,omitempty"`
	HTTPHeaderConfig        *HTTPHeaderConfig  `yaml:"httpHeaderConfig,omitempty" json:"httpHeaderConfig,omitempty"`
	HTTPRequestMethodConfig *ValuesConfig      `yaml:"httpRequestMethodConfig,omitempty" json:"httpRequestMethodConfig,omitempty"`
	QueryStringConfig       *QueryStringConfig `yaml:"queryStringConfig,omitempty" json:"queryStringConfig,omitempty"`
	SourceIPConfig          *ValuesConfig      `yaml:"sourceIpConfig,omitempty" json:"sourceIpConfig,omitempty"`
}

type ValuesConfig struct {
	Values []string `yaml:"values" json:"values"`
}

type HTTPHeaderConfig struct {
	HTTPHeaderName string   `yaml:"httpHeaderName" json:"httpHeaderName"`
	Values         []string `yaml:"values" json:"values"`
}

type QueryStringConfig struct {
	Values []KeyValue `yaml:"values" json:"values"`
}

type KeyValue struct {
	Key   string `yaml:"key,omitempty" json:"key,omitempty"`
	Value string `yaml:"value" json:"value"`
}
