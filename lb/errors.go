package lb

import (
	"errors"
	"fmt"
	"strings"
)

// Structural errors.
var (
	ErrDefaultActionConflict      = errors.New("default action already set")
	ErrDefaultActionMissing       = errors.New("listener has no default action")
	ErrDuplicatePriority          = errors.New("rule priority already used on listener")
	ErrTargetTypeMismatch         = errors.New("target type does not match target group")
	ErrLambdaMultiTarget          = errors.New("lambda target group accepts a single target")
	ErrRedirectLoop               = errors.New("redirect does not change the request")
	ErrCertificateRequired        = errors.New("TLS-bearing listener requires a certificate")
	ErrUnexpectedCertificate      = errors.New("certificates are only valid on TLS-bearing listeners")
	ErrCertificateSourceAmbiguous = errors.New("both certificate ARNs and certificates supplied")
	ErrRuleIncomplete             = errors.New("rule needs both conditions and a priority")
	ErrInvalidCondition           = errors.New("invalid rule condition")
	ErrInvalidAction              = errors.New("invalid action")
	ErrInvalidWeight              = errors.New("invalid target group weight")
	ErrInvalidHealthCheck         = errors.New("invalid health check")
	ErrProtocolMismatch           = errors.New("protocol not supported by load balancer kind")
	ErrNotApplicationTargetGroup  = errors.New("operation requires an application target group")
	ErrDuplicateID                = errors.New("construct id already used in scope")
	ErrDuplicateListenerPort      = errors.New("listener port already used on load balancer")
)

// Topological errors. ErrOrphanedTargetGroup and ErrGateNeverOpens are only
// ever reported as warnings.
var (
	ErrCyclicScopeDependency = errors.New("cyclic scope dependency")
	ErrOrphanedTargetGroup   = errors.New("target group has targets but no listener")
	ErrGateNeverOpens        = errors.New("attachment gate never opens: no listener routes to the target group")
)

// Boundary errors.
var (
	ErrInvalidPortRange        = errors.New("port out of range")
	ErrInvalidPriority         = errors.New("rule priority out of range")
	ErrInvalidSubnetSet        = errors.New("load balancer needs at least two subnets in distinct availability zones")
	ErrNLBHasSecurityGroup     = errors.New("network load balancer cannot have security groups")
	ErrInvalidLoadBalancerProp = errors.New("invalid load balancer property")
)

// Lifecycle errors.
var ErrFrozenAfterAttach = errors.New("target group is frozen after attachment")

// Issue ties an error kind to the scope path of the offending entity.
type Issue struct {
	Path    string
	Err     error
	Detail  string
	Warning bool
}

func newIssue(path string, err error, format string, args ...any) *Issue {
	i := &Issue{Path: path, Err: err}
	if format != "" {
		i.Detail = fmt.Sprintf(format, args...)
	}
	return i
}

func (i *Issue) Error() string {
	if i.Detail == "" {
		return fmt.Sprintf("%s: %v", i.Path, i.Err)
	}
	return fmt.Sprintf("%s: %v: %s", i.Path, i.Err, i.Detail)
}

func (i *Issue) Unwrap() error {
	return i.Err
}

// CommitError aggregates every issue found by a failed commit.
type CommitError struct {
	Issues []*Issue
}

func (e *CommitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "commit failed with %d issue(s):", len(e.Issues))
	for _, i := range e.Issues {
		b.WriteString("\n  ")
		b.WriteString(i.Error())
	}
	return b.String()
}

func (e *CommitError) Unwrap() []error {
	errs := make([]error, len(e.Issues))
	for n, i := range e.Issues {
		errs[n] = i
	}
	return errs
}
