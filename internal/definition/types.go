package definition

// Definition is the declarative form of a load-balancing graph: a list of
// scopes, each holding load balancers, target groups, connectables and
// external resources. References between them use ids, qualified as
// "scope/id" when they cross scopes.
type Definition struct {
	Version int        `yaml:"version,omitempty" validate:"omitempty,eq=1"`
	Scopes  []ScopeDef `yaml:"scopes" validate:"required,min=1,unique=Name,dive"`
}

type ScopeDef struct {
	Name          string            `yaml:"name" validate:"required,excludesall=/"`
	LoadBalancers []LoadBalancerDef `yaml:"loadBalancers,omitempty" validate:"unique=ID,dive"`
	TargetGroups  []TargetGroupDef  `yaml:"targetGroups,omitempty" validate:"unique=ID,dive"`
	Connectables  []ConnectableDef  `yaml:"connectables,omitempty" validate:"unique=ID,dive"`
	Externals     []ExternalDef     `yaml:"externals,omitempty" validate:"unique=ID,dive"`
}

type SubnetDef struct {
	ID   string `yaml:"id" validate:"required"`
	Zone string `yaml:"zone,omitempty"`
}

type LoadBalancerDef struct {
	ID             string         `yaml:"id" validate:"required,excludesall=/"`
	Type           string         `yaml:"type" validate:"required,oneof=application network"`
	Name           string         `yaml:"name,omitempty"`
	VPC            string         `yaml:"vpc,omitempty"`
	Subnets        []SubnetDef    `yaml:"subnets,omitempty" validate:"dive"`
	SecurityGroups []string       `yaml:"securityGroups,omitempty" validate:"dive,required"`
	Scheme         string         `yaml:"scheme,omitempty"`
	IPAddressType  string         `yaml:"ipAddressType,omitempty"`
	Attributes     map[string]any `yaml:"attributes,omitempty"`
	Listeners      []ListenerDef  `yaml:"listeners,omitempty" validate:"unique=ID,dive"`
}

type ListenerDef struct {
	ID                  string     `yaml:"id" validate:"required,excludesall=/"`
	Port                int32      `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Protocol            string     `yaml:"protocol,omitempty"`
	SSLPolicy           string     `yaml:"sslPolicy,omitempty"`
	CertificateARNs     []string   `yaml:"certificateArns,omitempty" validate:"dive,required"`
	Certificates        []CertDef  `yaml:"certificates,omitempty" validate:"dive"`
	Open                *bool      `yaml:"open,omitempty"`
	DefaultAction       *ActionDef `yaml:"defaultAction,omitempty"`
	DefaultTargetGroups []string   `yaml:"defaultTargetGroups,omitempty" validate:"dive,required"`
	Rules               []RuleDef  `yaml:"rules,omitempty" validate:"unique=ID,dive"`
}

type CertDef struct {
	ARN string `yaml:"arn" validate:"required"`
}

// RuleDef is one listener rule. HostHeader, PathPattern and PathPatterns are
// accepted for older definitions only; Migrate rewrites them as conditions.
type RuleDef struct {
	ID         string         `yaml:"id" validate:"required,excludesall=/"`
	Priority   int            `yaml:"priority"`
	Conditions []ConditionDef `yaml:"conditions,omitempty" validate:"dive"`
	Action     *ActionDef     `yaml:"action,omitempty"`
	// TargetGroups is shorthand for a forward action.
	TargetGroups []string `yaml:"targetGroups,omitempty" validate:"dive,required"`

	HostHeader   string   `yaml:"hostHeader,omitempty"`
	PathPattern  string   `yaml:"pathPattern,omitempty"`
	PathPatterns []string `yaml:"pathPatterns,omitempty"`
}

type ConditionDef struct {
	Field       string           `yaml:"field" validate:"required,oneof=host-header path-pattern http-header http-request-method query-string source-ip"`
	HeaderName  string           `yaml:"headerName,omitempty" validate:"required_if=Field http-header"`
	Values      []string         `yaml:"values,omitempty"`
	QueryValues []QueryStringDef `yaml:"queryValues,omitempty"`
}

type QueryStringDef struct {
	Key   string `yaml:"key,omitempty"`
	Value string `yaml:"value"`
}

// ActionDef holds exactly one action variant.
type ActionDef struct {
	Forward          []string          `yaml:"forward,omitempty" validate:"omitempty,dive,required"`
	WeightedForward  *WeightedDef      `yaml:"weightedForward,omitempty"`
	FixedResponse    *FixedResponseDef `yaml:"fixedResponse,omitempty"`
	Redirect         *RedirectDef      `yaml:"redirect,omitempty"`
	AuthenticateOIDC *OIDCDef          `yaml:"authenticateOidc,omitempty"`
}

type WeightedDef struct {
	TargetGroups      []WeightedTargetDef `yaml:"targetGroups" validate:"required,min=1,dive"`
	StickinessSeconds int                 `yaml:"stickinessSeconds,omitempty"`
}

type WeightedTargetDef struct {
	TargetGroup string `yaml:"targetGroup" validate:"required"`
	Weight      int32  `yaml:"weight"`
}

type FixedResponseDef struct {
	StatusCode  string `yaml:"statusCode" validate:"required"`
	ContentType string `yaml:"contentType,omitempty"`
	MessageBody string `yaml:"messageBody,omitempty"`
}

type RedirectDef struct {
	Host      string `yaml:"host,omitempty"`
	Path      string `yaml:"path,omitempty"`
	Port      string `yaml:"port,omitempty"`
	Protocol  string `yaml:"protocol,omitempty"`
	Query     string `yaml:"query,omitempty"`
	Permanent bool   `yaml:"permanent,omitempty"`
}

type OIDCDef struct {
	Issuer                   string     `yaml:"issuer" validate:"required,url"`
	AuthorizationEndpoint    string     `yaml:"authorizationEndpoint" validate:"required,url"`
	TokenEndpoint            string     `yaml:"tokenEndpoint" validate:"required,url"`
	UserInfoEndpoint         string     `yaml:"userInfoEndpoint" validate:"required,url"`
	ClientID                 string     `yaml:"clientId" validate:"required"`
	ClientSecret             string     `yaml:"clientSecret" validate:"required"`
	Scope                    string     `yaml:"scope,omitempty"`
	SessionCookieName        string     `yaml:"sessionCookieName,omitempty"`
	OnUnauthenticatedRequest string     `yaml:"onUnauthenticatedRequest,omitempty" validate:"omitempty,oneof=deny allow authenticate"`
	Next                     *ActionDef `yaml:"next" validate:"required"`
}

type TargetGroupDef struct {
	ID          string          `yaml:"id" validate:"required,excludesall=/"`
	Type        string          `yaml:"type,omitempty" validate:"omitempty,oneof=application network"`
	Name        string          `yaml:"name,omitempty"`
	Port        int32           `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Protocol    string          `yaml:"protocol,omitempty"`
	TargetType  string          `yaml:"targetType,omitempty" validate:"omitempty,oneof=instance ip lambda"`
	VPC         string          `yaml:"vpc,omitempty"`
	HealthCheck *HealthCheckDef `yaml:"healthCheck,omitempty"`
	Attributes  map[string]any  `yaml:"attributes,omitempty"`
	Targets     []TargetDef     `yaml:"targets,omitempty" validate:"dive"`
}

type HealthCheckDef struct {
	Enabled            *bool  `yaml:"enabled,omitempty"`
	Protocol           string `yaml:"protocol,omitempty"`
	Port               string `yaml:"port,omitempty"`
	Path               string `yaml:"path,omitempty"`
	IntervalSeconds    int    `yaml:"intervalSeconds,omitempty" validate:"omitempty,min=5,max=300"`
	TimeoutSeconds     int    `yaml:"timeoutSeconds,omitempty" validate:"omitempty,min=2,max=120"`
	HealthyThreshold   int32  `yaml:"healthyThreshold,omitempty"`
	UnhealthyThreshold int32  `yaml:"unhealthyThreshold,omitempty"`
	Matcher            string `yaml:"matcher,omitempty"`
}

// TargetDef is one target. An empty Type is inferred from ID: "i-..." is an
// instance, a Lambda ARN a function, anything else an IP address.
type TargetDef struct {
	ID   string `yaml:"id" validate:"required"`
	Type string `yaml:"type,omitempty" validate:"omitempty,oneof=instance ip lambda"`
	Port int32  `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Zone string `yaml:"zone,omitempty"`
}

// ConnectableDef is a traffic consumer guarded by existing security groups.
// Each target group it lists admits it on Port (or Ports, "from-to").
type ConnectableDef struct {
	ID             string   `yaml:"id" validate:"required,excludesall=/"`
	SecurityGroups []string `yaml:"securityGroups" validate:"required,min=1,dive,required"`
	Port           int32    `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Ports          string   `yaml:"ports,omitempty" validate:"excluded_with=Port"`
	TargetGroups   []string `yaml:"targetGroups,omitempty" validate:"dive,required"`
}

// ExternalDef is a resource owned outside the graph. DependsOn lists
// resource paths; WaitForAttachment lists target groups whose attachment
// gate the resource waits for.
type ExternalDef struct {
	ID                string         `yaml:"id" validate:"required"`
	Type              string         `yaml:"type" validate:"required"`
	Properties        map[string]any `yaml:"properties,omitempty"`
	DependsOn         []string       `yaml:"dependsOn,omitempty" validate:"dive,required"`
	WaitForAttachment []string       `yaml:"waitForAttachment,omitempty" validate:"dive,required"`
}
