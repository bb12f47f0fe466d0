package lb

import "github.com/samber/lo"

// Gate is a one-shot latch that opens once a target group has been
// associated with a load balancer through one of its listeners.
//
// The orchestrator opens it during commit, on the first finalized listener
// routing to the target group. Subscribers run in subscription order, exactly
// once. Depending on a gate makes a resource wait for every listener and
// rule routing to the target group.
type Gate struct {
	tg          *TargetGroup
	opened      bool
	openedBy    *Listener
	subscribers []func(*Listener)
}

// IsOpen reports whether the gate has opened.
func (g *Gate) IsOpen() bool { return g.opened }

// OpenedBy returns the listener whose finalization opened the gate.
func (g *Gate) OpenedBy() *Listener { return g.openedBy }

// Subscribe registers fn to run when the gate opens. If the gate is already
// open fn runs immediately.
func (g *Gate) Subscribe(fn func(opener *Listener)) {
	if g.opened {
		fn(g.openedBy)
		return
	}
	g.subscribers = append(g.subscribers, fn)
}

// open latches the gate and reports whether this call opened it.
func (g *Gate) open(l *Listener) bool {
	if g.opened {
		return false
	}
	g.opened = true
	g.openedBy = l
	subs := g.subscribers
	g.subscribers = nil
	for _, fn := range subs {
		fn(l)
	}
	return true
}

func (g *Gate) dependencyHandles() []*Handle {
	var hs []*Handle
	for _, l := range g.tg.listeners {
		hs = append(hs, l.handle)
		for _, r := range l.rules {
			if lo.Contains(r.action.TargetGroups(), g.tg) {
				hs = append(hs, r.handle)
			}
		}
	}
	return hs
}
