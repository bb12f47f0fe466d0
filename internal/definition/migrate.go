package definition

import (
	"fmt"

	"github.com/samber/lo"
)

// Migrate rewrites the legacy hostHeader, pathPattern and pathPatterns rule
// fields as conditions and clears them. It returns one line per rewritten
// field; running it again reports nothing.
func Migrate(def *Definition) []string {
	var changes []string
	for si := range def.Scopes {
		s := &def.Scopes[si]
		for li := range s.LoadBalancers {
			lb := &s.LoadBalancers[li]
			for ki := range lb.Listeners {
				l := &lb.Listeners[ki]
				for ri := range l.Rules {
					r := &l.Rules[ri]
					path := fmt.Sprintf("%s/%s/%s/%s", s.Name, lb.ID, l.ID, r.ID)
					if r.HostHeader != "" {
						r.Conditions = append(r.Conditions, ConditionDef{Field: "host-header", Values: []string{r.HostHeader}})
						changes = append(changes, fmt.Sprintf("%s: hostHeader -> conditions[host-header]", path))
						r.HostHeader = ""
					}
					patterns := r.PathPatterns
					if r.PathPattern != "" {
						patterns = append([]string{r.PathPattern}, patterns...)
					}
					if len(patterns) > 0 {
						r.Conditions = append(r.Conditions, ConditionDef{Field: "path-pattern", Values: lo.Uniq(patterns)})
						changes = append(changes, fmt.Sprintf("%s: pathPattern(s) -> conditions[path-pattern]", path))
						r.PathPattern = ""
						r.PathPatterns = nil
					}
				}
			}
		}
	}
	return changes
}
