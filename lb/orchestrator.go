package lb

import (
	"fmt"

	"go.uber.org/zap"

	"tasnim.dev/lbgraph/template"
)

const (
	defaultPartition = "aws"
	defaultRegion    = "us-east-1"
	defaultAccount   = "123456789012"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithPartition sets the partition used in ARN tokens.
func WithPartition(partition string) Option {
	return func(o *Orchestrator) { o.partition = partition }
}

// WithRegion sets the region used in ARN tokens.
func WithRegion(region string) Option {
	return func(o *Orchestrator) { o.region = region }
}

// WithAccount sets the account used in ARN tokens.
func WithAccount(account string) Option {
	return func(o *Orchestrator) { o.account = account }
}

// Orchestrator owns the scopes of one configuration and commits them:
// it validates the whole graph, resolves cross-scope references, opens the
// attachment gates and emits the resource records in dependency order.
//
// An Orchestrator is not safe for concurrent use.
type Orchestrator struct {
	log       *zap.Logger
	partition string
	region    string
	account   string

	scopes  []*Scope
	pending []*Issue
}

// NewOrchestrator creates an empty orchestrator.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:       zap.NewNop(),
		partition: defaultPartition,
		region:    defaultRegion,
		account:   defaultAccount,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewScope adds a scope. Scope names must be unique; a duplicate is
// reported by the next commit.
func (o *Orchestrator) NewScope(name string) *Scope {
	if o.Scope(name) != nil {
		o.pending = append(o.pending, newIssue(name, ErrDuplicateID, "scope %q already exists", name))
	}
	s := &Scope{o: o, name: name, order: len(o.scopes), paths: map[string]bool{}}
	o.scopes = append(o.scopes, s)
	return s
}

// Scope returns the first scope named name, or nil.
func (o *Orchestrator) Scope(name string) *Scope {
	for _, s := range o.scopes {
		if s.name == name {
			return s
		}
	}
	return nil
}

// Scopes returns the scopes in creation order.
func (o *Orchestrator) Scopes() []*Scope {
	return append([]*Scope(nil), o.scopes...)
}

// Result is the outcome of a successful commit.
type Result struct {
	// Template is set by Commit; CommitTo leaves it nil.
	Template    *template.Template
	Warnings    []*Issue
	GatesOpened int
	Resources   int
}

// Commit validates the graph and renders it into a new template. On failure
// the error is a *CommitError listing every issue and nothing is emitted.
// Committing an unchanged graph again yields the same template.
func (o *Orchestrator) Commit() (*Result, error) {
	t := &template.Template{}
	res, err := o.CommitTo(t)
	if err != nil {
		return nil, err
	}
	res.Template = t
	return res, nil
}

// CommitTo is Commit with a caller-supplied emitter. Records are only
// handed to e once validation and cycle detection have passed, and every
// issue of both is reported in one CommitError.
//
// Listeners are finalized and gates opened before anything is emitted, so
// gate subscribers can still shape the records. An emitter error therefore
// leaves the graph committed; a later commit renders the same records and
// opens no gate twice.
func (o *Orchestrator) CommitTo(e template.Emitter) (*Result, error) {
	o.log.Debug("committing graph", zap.Int("scopes", len(o.scopes)))

	warnings, issues := o.validate()
	for _, w := range warnings {
		o.log.Warn("commit warning", zap.String("path", w.Path), zap.Error(w.Err), zap.String("detail", w.Detail))
	}
	g := o.buildGraph()
	issues = append(issues, g.cycles()...)
	if len(issues) > 0 {
		err := &CommitError{Issues: issues}
		o.log.Debug("commit rejected", zap.Error(err))
		return nil, err
	}

	order := g.order()
	opened := o.openGates(order)

	var resources []template.Resource
	for _, s := range order {
		resources = append(resources, renderScope(s, g.placements[s])...)
	}
	for _, s := range order {
		if err := e.EmitScope(g.templateScope(s)); err != nil {
			return nil, fmt.Errorf("emitting scope %s: %w", s.name, err)
		}
	}
	for _, r := range resources {
		if err := e.Emit(r); err != nil {
			return nil, fmt.Errorf("emitting %s: %w", r.Path, err)
		}
	}

	o.log.Info("commit complete",
		zap.Int("scopes", len(order)),
		zap.Int("resources", len(resources)),
		zap.Int("gatesOpened", opened),
		zap.Int("warnings", len(warnings)),
	)
	return &Result{Warnings: warnings, GatesOpened: opened, Resources: len(resources)}, nil
}

// validate collects every issue of the graph, split into warnings, which
// never fail a commit, and errors.
func (o *Orchestrator) validate() (warnings, errs []*Issue) {
	issues := append([]*Issue(nil), o.pending...)
	for _, s := range o.scopes {
		for _, lb := range s.loadBalancers {
			issues = append(issues, lb.validate()...)
		}
		for _, tg := range s.targetGroups {
			issues = append(issues, tg.validate()...)
		}
		for _, h := range s.handles {
			issues = append(issues, h.validateDependencies()...)
		}
	}
	for _, i := range issues {
		if i.Warning {
			warnings = append(warnings, i)
		} else {
			errs = append(errs, i)
		}
	}
	return warnings, errs
}

// openGates finalizes every listener, scopes in dependency order, and opens
// the gate of each target group it routes to: default action first, then
// rules by ascending priority.
func (o *Orchestrator) openGates(order []*Scope) int {
	opened := 0
	for _, s := range order {
		for _, lb := range s.loadBalancers {
			for _, l := range lb.listeners {
				l.state = ListenerFinalized
				for _, tg := range l.routes() {
					if tg.gate.open(l) {
						opened++
						o.log.Debug("attachment gate opened",
							zap.String("targetGroup", tg.handle.Path()),
							zap.String("listener", l.handle.Path()),
						)
					}
				}
			}
		}
	}
	return opened
}
