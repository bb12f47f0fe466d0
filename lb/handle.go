package lb

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"tasnim.dev/lbgraph/internal/utils"
	"tasnim.dev/lbgraph/template"
)

// Dependable is anything a Handle can depend on. Dependencies are resolved
// to concrete handles at commit time, so a Gate can be depended on before any
// listener routes to its target group.
type Dependable interface {
	dependencyHandles() []*Handle
}

// Handle is the identity of one graph resource: a stable scope path, the
// logical ID used in emitted records and an ARN-shaped token used when the
// resource is referenced from another scope.
type Handle struct {
	scope     *Scope
	path      string
	kind      template.Kind
	logicalID string
	arn       string
	deps      []Dependable
}

func newHandle(scope *Scope, path string, kind template.Kind) *Handle {
	h := makeHandle(scope, path, kind)
	scope.register(h)
	return h
}

// makeHandle creates a handle without registering it in scope.
func makeHandle(scope *Scope, path string, kind template.Kind) *Handle {
	return &Handle{
		scope:     scope,
		path:      path,
		kind:      kind,
		logicalID: logicalID(path),
	}
}

// Path is the full construct path, starting with the scope name.
func (h *Handle) Path() string { return h.scope.name + "/" + h.path }

// LogicalID is the record identifier inside the owning scope.
func (h *Handle) LogicalID() string { return h.logicalID }

// ARN is the opaque token other scopes use to reference this resource.
func (h *Handle) ARN() string { return h.arn }

// Kind is the record kind this handle is emitted as.
func (h *Handle) Kind() template.Kind { return h.kind }

// Scope returns the owning scope.
func (h *Handle) Scope() *Scope { return h.scope }

// Equal reports whether both handles identify the same resource.
func (h *Handle) Equal(o *Handle) bool {
	if h == nil || o == nil {
		return h == o
	}
	return h.scope == o.scope && h.path == o.path && h.arn == o.arn
}

// AddDependency makes the resource wait for every handle d resolves to.
// Same-scope dependencies become DependsOn entries; cross-scope ones become
// soft scope dependencies.
func (h *Handle) AddDependency(d ...Dependable) {
	h.deps = append(h.deps, d...)
}

func (h *Handle) dependencyHandles() []*Handle { return []*Handle{h} }

// validateDependencies warns about gate dependencies that resolve to
// nothing because no listener routes to the gate's target group.
func (h *Handle) validateDependencies() []*Issue {
	var issues []*Issue
	for _, d := range h.deps {
		g, ok := d.(*Gate)
		if !ok || len(g.tg.listeners) > 0 {
			continue
		}
		i := newIssue(h.Path(), ErrGateNeverOpens, "depends on %s", g.tg.handle.Path())
		i.Warning = true
		issues = append(issues, i)
	}
	return issues
}

func (h *Handle) String() string { return h.Path() }

// digest is a deterministic hex digest of a construct path.
func digest(path string, n int) string {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(path))
	return hex.EncodeToString(id[:])[:n]
}

// logicalID strips non-alphanumerics from every path segment and appends a
// short digest of the full path, so IDs stay readable and unique.
func logicalID(path string) string {
	var b strings.Builder
	for _, r := range path {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if len(base) > 240 {
		base = base[:240]
	}
	return base + strings.ToUpper(digest(path, 8))
}

// physicalName builds a name of at most max characters from a path, used
// when load balancers and target groups are not named explicitly.
func physicalName(scope, path string, max int) string {
	full := scope + "/" + path
	var parts []string
	for _, seg := range strings.Split(full, "/") {
		clean := strings.Map(func(r rune) rune {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				return r
			}
			return -1
		}, seg)
		if clean != "" {
			parts = append(parts, clean)
		}
	}
	suffix := digest(full, 8)
	base := strings.Join(parts, "-")
	if room := max - len(suffix) - 1; len(base) > room {
		base = strings.Trim(base[:room], "-")
	}
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

func (s *Scope) arn(service, resource string) string {
	return utils.BuildARN(s.o.partition, service, s.o.region, s.o.account, resource)
}

func (s *Scope) elbARN(format string, args ...any) string {
	return s.arn("elasticloadbalancing", fmt.Sprintf(format, args...))
}
