package lb

import (
	"net/netip"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/lo"

	"tasnim.dev/lbgraph/template"
)

// ConditionField is a rule condition field, named as in the ELBv2 API.
type ConditionField string

const (
	FieldHostHeader        ConditionField = "host-header"
	FieldPathPattern       ConditionField = "path-pattern"
	FieldHTTPHeader        ConditionField = "http-header"
	FieldHTTPRequestMethod ConditionField = "http-request-method"
	FieldQueryString       ConditionField = "query-string"
	FieldSourceIP          ConditionField = "source-ip"
)

const (
	maxConditions      = 5
	maxConditionValues = 5
	maxPatternLength   = 128
)

var (
	headerName    = regexp.MustCompile("^[A-Za-z0-9!#$%&'*+.^_`|~-]+$")
	requestMethod = regexp.MustCompile(`^[A-Z_-]{1,40}$`)
)

// QueryStringValue matches one query parameter. An empty Key matches any
// parameter whose value matches Value.
type QueryStringValue struct {
	Key   string
	Value string
}

// Condition is one match condition of a listener rule.
type Condition struct {
	field       ConditionField
	headerName  string
	values      []string
	queryValues []QueryStringValue
}

// HostHeaders matches the Host header against wildcard patterns
// ('*' and '?'), case-insensitively.
func HostHeaders(patterns ...string) Condition {
	return Condition{field: FieldHostHeader, values: patterns}
}

// PathPatterns matches the request path against case-sensitive wildcard
// patterns.
func PathPatterns(patterns ...string) Condition {
	return Condition{field: FieldPathPattern, values: patterns}
}

// HTTPHeader matches header name against wildcard patterns.
func HTTPHeader(name string, patterns ...string) Condition {
	return Condition{field: FieldHTTPHeader, headerName: name, values: patterns}
}

func HTTPRequestMethods(methods ...string) Condition {
	return Condition{field: FieldHTTPRequestMethod, values: methods}
}

func QueryStrings(values ...QueryStringValue) Condition {
	return Condition{field: FieldQueryString, queryValues: values}
}

// SourceIPs matches the client address against CIDR blocks.
func SourceIPs(cidrs ...string) Condition {
	return Condition{field: FieldSourceIP, values: cidrs}
}

func (c Condition) Field() ConditionField           { return c.field }
func (c Condition) HeaderName() string              { return c.headerName }
func (c Condition) Values() []string                { return append([]string(nil), c.values...) }
func (c Condition) QueryValues() []QueryStringValue { return append([]QueryStringValue(nil), c.queryValues...) }
func (c Condition) count() int                      { return len(c.values) + len(c.queryValues) }

func (c Condition) validate(path string) []*Issue {
	var issues []*Issue
	add := func(format string, args ...any) {
		issues = append(issues, newIssue(path, ErrInvalidCondition, format, args...))
	}
	switch n := c.count(); {
	case n == 0:
		add("%s has no values", c.field)
	case n > maxConditionValues:
		add("%s has %d values, at most %d", c.field, n, maxConditionValues)
	}
	switch c.field {
	case FieldHostHeader, FieldPathPattern, FieldHTTPHeader:
		if c.field == FieldHTTPHeader && (c.headerName == "" || !headerName.MatchString(c.headerName)) {
			add("http-header name %q", c.headerName)
		}
		for _, v := range c.values {
			if v == "" || len(v) > maxPatternLength {
				add("%s pattern %q must have 1 to %d characters", c.field, v, maxPatternLength)
				continue
			}
			if _, err := glob.Compile(v); err != nil {
				add("%s pattern %q: %v", c.field, v, err)
			}
		}
	case FieldHTTPRequestMethod:
		for _, v := range c.values {
			if !requestMethod.MatchString(v) {
				add("http-request-method %q", v)
			}
		}
	case FieldQueryString:
		for _, kv := range c.queryValues {
			if kv.Value == "" {
				add("query-string value for key %q is empty", kv.Key)
			}
		}
	case FieldSourceIP:
		for _, v := range c.values {
			if _, err := netip.ParsePrefix(v); err != nil {
				add("source-ip %q is not a CIDR block", v)
			}
		}
	default:
		add("unknown field %q", c.field)
	}
	return issues
}

func (c Condition) render() template.Condition {
	tc := template.Condition{Field: string(c.field)}
	values := func() *template.ValuesConfig {
		return &template.ValuesConfig{Values: append([]string(nil), c.values...)}
	}
	switch c.field {
	case FieldHostHeader:
		tc.HostHeaderConfig = values()
	case FieldPathPattern:
		tc.PathPatternConfig = values()
	case FieldHTTPHeader:
		tc.HTTPHeaderConfig = &template.HTTPHeaderConfig{HTTPHeaderName: c.headerName, Values: append([]string(nil), c.values...)}
	case FieldHTTPRequestMethod:
		tc.HTTPRequestMethodConfig = values()
	case FieldQueryString:
		tc.QueryStringConfig = &template.QueryStringConfig{
			Values: lo.Map(c.queryValues, func(kv QueryStringValue, _ int) template.KeyValue {
				return template.KeyValue{Key: kv.Key, Value: kv.Value}
			}),
		}
	case FieldSourceIP:
		tc.SourceIPConfig = values()
	}
	return tc
}

// Matches reports whether r satisfies the condition: any value of the
// condition may match.
func (c Condition) Matches(r Request) bool {
	switch c.field {
	case FieldHostHeader:
		host := r.Host
		if h, _, ok := strings.Cut(host, ":"); ok {
			host = h
		}
		return anyGlob(c.values, strings.ToLower(host), strings.ToLower)
	case FieldPathPattern:
		return anyGlob(c.values, r.Path, nil)
	case FieldHTTPHeader:
		for _, v := range r.Header.Values(c.headerName) {
			if anyGlob(c.values, strings.ToLower(v), strings.ToLower) {
				return true
			}
		}
		return false
	case FieldHTTPRequestMethod:
		return lo.Contains(c.values, r.Method)
	case FieldQueryString:
		for _, kv := range c.queryValues {
			pattern := []string{kv.Value}
			for key, vals := range r.Query {
				if kv.Key != "" && !strings.EqualFold(kv.Key, key) {
					continue
				}
				for _, v := range vals {
					if anyGlob(pattern, strings.ToLower(v), strings.ToLower) {
						return true
					}
				}
			}
		}
		return false
	case FieldSourceIP:
		if !r.SourceIP.IsValid() {
			return false
		}
		for _, v := range c.values {
			if p, err := netip.ParsePrefix(v); err == nil && p.Contains(r.SourceIP) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func anyGlob(patterns []string, s string, fold func(string) string) bool {
	for _, p := range patterns {
		if fold != nil {
			p = fold(p)
		}
		g, err := glob.Compile(p)
		if err != nil {
			continue
		}
		if g.Match(s) {
			return true
		}
	}
	return false
}
