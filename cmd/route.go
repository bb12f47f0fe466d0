package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"tasnim.dev/lbgraph/internal/definition"
	"tasnim.dev/lbgraph/internal/theme"
	"tasnim.dev/lbgraph/lb"
)

type routeOptions struct {
	file     string
	listener string
	host     string
	path     string
	method   string
	headers  []string
	query    []string
	sourceIP string
}

func NewRouteCmd() *cobra.Command {
	var (
		logLevel string
		opts     routeOptions
	)

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Show which rule and action a listener applies to a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			s, err := newSession("", "", logLevel)
			if err != nil {
				return err
			}
			defer s.log.Sync()
			return runRoute(cmd.Context(), s, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "stack definition (path or s3:// URI)")
	cmd.Flags().StringVarP(&opts.listener, "listener", "l", "", "listener path scope/lb/listener (optional when there is only one)")
	cmd.Flags().StringVar(&opts.host, "host", "", "Host header")
	cmd.Flags().StringVar(&opts.path, "path", "/", "request path")
	cmd.Flags().StringVarP(&opts.method, "method", "X", http.MethodGet, "request method")
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, `request header "Name: value" (repeatable)`)
	cmd.Flags().StringArrayVarP(&opts.query, "query", "q", nil, "query parameter key=value (repeatable)")
	cmd.Flags().StringVar(&opts.sourceIP, "source-ip", "", "client address")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (o routeOptions) request() (lb.Request, error) {
	req := lb.Request{
		Host:   o.host,
		Path:   o.path,
		Method: strings.ToUpper(o.method),
		Header: http.Header{},
		Query:  url.Values{},
	}
	for _, h := range o.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return lb.Request{}, fmt.Errorf("header %q: want \"Name: value\"", h)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	for _, q := range o.query {
		key, value, _ := strings.Cut(q, "=")
		req.Query.Add(key, value)
	}
	if o.sourceIP != "" {
		addr, err := netip.ParseAddr(o.sourceIP)
		if err != nil {
			return lb.Request{}, fmt.Errorf("source ip: %w", err)
		}
		req.SourceIP = addr
	}
	return req, nil
}

func runRoute(ctx context.Context, s *session, w io.Writer, opts routeOptions) error {
	req, err := opts.request()
	if err != nil {
		return err
	}

	def, err := s.loadDefinition(ctx, opts.file)
	if err != nil {
		return err
	}
	g, err := definition.Build(s.orchestrator(""), def)
	if err != nil {
		return err
	}
	if _, err := g.Orchestrator.Commit(); err != nil {
		printCommitError(w, err)
		return errInvalid
	}

	path := opts.listener
	if path == "" {
		paths := g.ListenerPaths()
		if len(paths) != 1 {
			return fmt.Errorf("stack has %d listeners, choose one with --listener: %s", len(paths), strings.Join(paths, ", "))
		}
		path = paths[0]
	}
	l, err := g.Listener(path)
	if err != nil {
		return err
	}

	action, rule := l.Route(req)
	lipgloss.Fprintln(w, theme.TitleStyle.Render(path)+" "+theme.MutedStyle.Render(fmt.Sprintf("%s %s%s", req.Method, req.Host, req.Path)))
	if rule == nil {
		lipgloss.Fprintln(w, theme.LabelStyle.Render("matched")+" default action")
	} else {
		lipgloss.Fprintln(w, theme.LabelStyle.Render("matched")+fmt.Sprintf(" rule %s (priority %d)", rule.Handle().Path(), rule.Priority()))
	}
	for i, step := range action.Chain() {
		lipgloss.Fprintln(w, fmt.Sprintf("  %d. %s", i+1, describeAction(step)))
	}
	return nil
}

func describeAction(a *lb.Action) string {
	switch a.Kind() {
	case lb.ActionForward:
		return "forward -> " + strings.Join(lo.Map(a.TargetGroups(), func(tg *lb.TargetGroup, _ int) string {
			return tg.Handle().Path()
		}), ", ")
	case lb.ActionWeightedForward:
		return "weighted-forward -> " + strings.Join(lo.Map(a.WeightedTargetGroups(), func(w lb.WeightedTargetGroup, _ int) string {
			return fmt.Sprintf("%s=%d", w.TargetGroup.Handle().Path(), w.Weight)
		}), ", ")
	case lb.ActionFixedResponse:
		return "fixed-response " + a.StatusCode()
	case lb.ActionRedirect:
		r := a.RedirectOptions()
		code := "302"
		if r.Permanent {
			code = "301"
		}
		target := lo.Ternary(r.Host == "", "#{host}", r.Host) + lo.Ternary(r.Path == "", "#{path}", r.Path)
		return fmt.Sprintf("redirect %s %s", code, target)
	case lb.ActionAuthenticateOIDC:
		return "authenticate-oidc " + a.OIDCOptions().Issuer
	default:
		return string(a.Kind())
	}
}
