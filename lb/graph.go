package lb

import (
	"slices"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"tasnim.dev/lbgraph/template"
)

// scopeGraph holds the soft dependencies between scopes. An edge from a to
// b means a references a resource of b and must be deployed after it.
type scopeGraph struct {
	scopes     []*Scope
	edges      map[*Scope][]*Scope
	placements map[*Scope][]placedGrant
}

// placedGrant is an ingress grant materialized in a particular scope.
type placedGrant struct {
	lb    *LoadBalancer
	grant Grant
}

func (o *Orchestrator) buildGraph() *scopeGraph {
	g := &scopeGraph{
		scopes:     o.scopes,
		edges:      map[*Scope][]*Scope{},
		placements: map[*Scope][]placedGrant{},
	}
	for _, s := range o.scopes {
		for _, h := range s.handles {
			for _, d := range h.deps {
				for _, dh := range d.dependencyHandles() {
					g.addEdge(s, dh.scope)
				}
			}
		}
		for _, lb := range s.loadBalancers {
			for _, l := range lb.listeners {
				for _, tg := range l.routes() {
					g.addEdge(s, tg.handle.scope)
				}
			}
		}
	}
	// Ingress records reference both the load balancer's and the peer's
	// groups. They go to the peer's scope unless the load balancer's scope
	// already depends on it, which would close a cycle.
	for _, s := range o.scopes {
		for _, lb := range s.loadBalancers {
			for _, grant := range lb.connections.grants {
				place := grant.Peer.scope
				if place != s && g.reaches(s, place) {
					place = s
				}
				g.placements[place] = append(g.placements[place], placedGrant{lb: lb, grant: grant})
				for _, sg := range append(lb.connections.SecurityGroups(), grant.Peer.securityGroups...) {
					if sg.handle != nil {
						g.addEdge(place, sg.handle.scope)
					}
				}
				o.log.Debug("placed ingress grant",
					zap.String("loadBalancer", lb.handle.Path()),
					zap.String("peer", grant.Peer.Path()),
					zap.Stringer("ports", grant.Ports),
					zap.String("scope", place.name),
				)
			}
		}
	}
	return g
}

func (g *scopeGraph) addEdge(from, to *Scope) {
	if from == to || lo.Contains(g.edges[from], to) {
		return
	}
	g.edges[from] = append(g.edges[from], to)
}

func (g *scopeGraph) reaches(from, to *Scope) bool {
	seen := map[*Scope]bool{}
	var visit func(s *Scope) bool
	visit = func(s *Scope) bool {
		if s == to {
			return true
		}
		if seen[s] {
			return false
		}
		seen[s] = true
		return lo.SomeBy(g.edges[s], visit)
	}
	return visit(from)
}

// cycles reports one CyclicScopeDependency per back edge, with the scope
// path that closes the cycle.
func (g *scopeGraph) cycles() []*Issue {
	const (
		white = iota
		grey
		black
	)
	color := map[*Scope]int{}
	var (
		stack  []*Scope
		issues []*Issue
		visit  func(s *Scope)
	)
	visit = func(s *Scope) {
		color[s] = grey
		stack = append(stack, s)
		for _, next := range g.edges[s] {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				start := lo.IndexOf(stack, next)
				names := lo.Map(stack[start:], func(s *Scope, _ int) string { return s.name })
				names = append(names, next.name)
				issues = append(issues, newIssue(next.name, ErrCyclicScopeDependency, "%s", strings.Join(names, " -> ")))
			}
		}
		stack = stack[:len(stack)-1]
		color[s] = black
	}
	for _, s := range g.scopes {
		if color[s] == white {
			visit(s)
		}
	}
	return issues
}

// order returns the scopes dependencies first, otherwise in creation order.
// The graph must be acyclic.
func (g *scopeGraph) order() []*Scope {
	seen := map[*Scope]bool{}
	var (
		out   []*Scope
		visit func(s *Scope)
	)
	visit = func(s *Scope) {
		if seen[s] {
			return
		}
		seen[s] = true
		for _, next := range g.edges[s] {
			visit(next)
		}
		out = append(out, s)
	}
	for _, s := range g.scopes {
		visit(s)
	}
	return out
}

func (g *scopeGraph) templateScope(s *Scope) template.Scope {
	ts := template.Scope{Name: s.name}
	if len(g.edges[s]) == 0 {
		return ts
	}
	deps := append([]*Scope(nil), g.edges[s]...)
	slices.SortFunc(deps, func(a, b *Scope) int { return a.order - b.order })
	ts.DependsOn = lo.Map(deps, func(d *Scope, _ int) string { return d.name })
	return ts
}
