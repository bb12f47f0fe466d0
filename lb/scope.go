package lb

import "tasnim.dev/lbgraph/template"

// Scope is a named container of resources, deployed independently of other
// scopes. References between scopes are rendered as ARN tokens and recorded
// as soft scope dependencies.
type Scope struct {
	o     *Orchestrator
	name  string
	order int

	handles       []*Handle
	paths         map[string]bool
	loadBalancers []*LoadBalancer
	targetGroups  []*TargetGroup
	connections   []*Connections
	externals     []*External
}

// Name returns the scope name.
func (s *Scope) Name() string { return s.name }

// Orchestrator returns the orchestrator owning the scope.
func (s *Scope) Orchestrator() *Orchestrator { return s.o }

// LoadBalancers returns the load balancers in creation order.
func (s *Scope) LoadBalancers() []*LoadBalancer {
	return append([]*LoadBalancer(nil), s.loadBalancers...)
}

// TargetGroups returns the target groups in creation order.
func (s *Scope) TargetGroups() []*TargetGroup {
	return append([]*TargetGroup(nil), s.targetGroups...)
}

// Handle returns the handle registered at path, relative to the scope, or
// nil.
func (s *Scope) Handle(path string) *Handle {
	for _, h := range s.handles {
		if h.path == path {
			return h
		}
	}
	return nil
}

func (s *Scope) register(h *Handle) {
	if s.paths[h.path] {
		s.o.pending = append(s.o.pending, newIssue(h.Path(), ErrDuplicateID, ""))
	}
	s.paths[h.path] = true
	s.handles = append(s.handles, h)
}

func (s *Scope) addTargetGroup(tg *TargetGroup) {
	s.register(tg.handle)
	s.targetGroups = append(s.targetGroups, tg)
}

// External is a resource owned by the enclosing program. The graph emits it
// as a generic record so its dependencies, typically on an attachment gate,
// end up in the template.
type External struct {
	handle       *Handle
	resourceType string
	properties   map[string]string
}

// AddExternal declares an external resource in the scope.
func (s *Scope) AddExternal(id, resourceType string, properties map[string]string) *External {
	e := &External{
		handle:       newHandle(s, id, template.KindExternal),
		resourceType: resourceType,
		properties:   properties,
	}
	e.handle.arn = s.arn("cloudformation", "resource/"+e.handle.logicalID)
	s.externals = append(s.externals, e)
	return e
}

// Handle returns the external's identity.
func (e *External) Handle() *Handle { return e.handle }

// DependOn is shorthand for e.Handle().AddDependency(d...).
func (e *External) DependOn(d ...Dependable) { e.handle.AddDependency(d...) }

func (e *External) dependencyHandles() []*Handle { return []*Handle{e.handle} }
