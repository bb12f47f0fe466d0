package lb

import (
	"github.com/samber/lo"

	"tasnim.dev/lbgraph/template"
)

const (
	minPriority = 1
	maxPriority = 50000
)

// RuleProps configures a listener rule. Both Priority and at least one
// condition are required.
type RuleProps struct {
	Priority   int
	Conditions []Condition
	Action     *Action
}

// Rule routes requests matching all of its conditions to its action.
type Rule struct {
	handle     *Handle
	listener   *Listener
	priority   int
	conditions []Condition
	action     *Action
}

// NewListenerRule adds a rule to l. It fails with ErrRuleIncomplete when the
// priority or the conditions are missing and with ErrDuplicatePriority when
// the listener already has a rule at that priority. On success every target
// group the action forwards to registers l.
func NewListenerRule(l *Listener, id string, props RuleProps) (*Rule, error) {
	if err := checkRule(l, id, props); err != nil {
		return nil, err
	}
	path := l.handle.path + "/" + id
	r := &Rule{
		listener:   l,
		priority:   props.Priority,
		conditions: append([]Condition(nil), props.Conditions...),
		action:     props.Action,
	}
	l.insertRule(r)
	r.handle = newHandle(l.handle.scope, path, template.KindListenerRule)
	r.handle.arn = l.handle.scope.elbARN("listener-rule/%s/%s", l.arnSuffix(), digest(r.handle.Path(), 16))
	for _, tg := range r.action.TargetGroups() {
		tg.RegisterListener(l)
	}
	return r, nil
}

// checkRule reports the construction-time problems of a rule on l.
func checkRule(l *Listener, id string, props RuleProps) error {
	path := l.handle.Path() + "/" + id
	if len(props.Conditions) == 0 || props.Priority == 0 {
		return newIssue(path, ErrRuleIncomplete, "priority %d with %d condition(s)", props.Priority, len(props.Conditions))
	}
	if msg := props.Action.checkShape(); msg != "" {
		return newIssue(path, ErrInvalidAction, "%s", msg)
	}
	if taken := l.ruleAt(props.Priority); taken != nil {
		return newIssue(path, ErrDuplicatePriority, "priority %d is used by %s", props.Priority, taken.handle.Path())
	}
	return nil
}

func (r *Rule) Handle() *Handle              { return r.handle }
func (r *Rule) Listener() *Listener          { return r.listener }
func (r *Rule) Priority() int                { return r.priority }
func (r *Rule) Action() *Action              { return r.action }
func (r *Rule) Conditions() []Condition      { return append([]Condition(nil), r.conditions...) }
func (r *Rule) dependencyHandles() []*Handle { return []*Handle{r.handle} }

// Matches reports whether req satisfies every condition of the rule.
func (r *Rule) Matches(req Request) bool {
	return lo.EveryBy(r.conditions, func(c Condition) bool { return c.Matches(req) })
}

func (r *Rule) validate() []*Issue {
	path := r.handle.Path()
	var issues []*Issue
	if r.priority < minPriority || r.priority > maxPriority {
		issues = append(issues, newIssue(path, ErrInvalidPriority, "priority %d outside [%d, %d]", r.priority, minPriority, maxPriority))
	}
	if len(r.conditions) > maxConditions {
		issues = append(issues, newIssue(path, ErrInvalidCondition, "%d conditions, at most %d", len(r.conditions), maxConditions))
	}
	for _, c := range r.conditions {
		issues = append(issues, c.validate(path)...)
	}
	return append(issues, r.action.validate(path, r.listener)...)
}
