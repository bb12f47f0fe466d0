package lb

import (
	"net/http"
	"net/netip"
	"net/url"
)

// Request is the part of an HTTP request rule conditions look at.
type Request struct {
	Host     string
	Path     string
	Method   string
	Header   http.Header
	Query    url.Values
	SourceIP netip.Addr
}

// Route returns the action the listener applies to req: the action of the
// lowest-priority rule whose conditions all match, or the default action.
// The rule is nil when the default action applies.
func (l *Listener) Route(req Request) (*Action, *Rule) {
	for _, r := range l.rules {
		if r.Matches(req) {
			return r.action, r
		}
	}
	return l.defaultAction, nil
}
