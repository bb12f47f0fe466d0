package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"charm.land/lipgloss/v2"
	"go.uber.org/zap"

	awsclient "tasnim.dev/lbgraph/internal/aws"
	awss3 "tasnim.dev/lbgraph/internal/aws/s3"
	"tasnim.dev/lbgraph/internal/config"
	"tasnim.dev/lbgraph/internal/definition"
	applog "tasnim.dev/lbgraph/internal/log"
	"tasnim.dev/lbgraph/internal/theme"
	"tasnim.dev/lbgraph/lb"
)

// session holds what every command resolves first: config defaults, the
// logger and, on first use, the AWS clients.
type session struct {
	cfg     *config.Config
	log     *zap.Logger
	profile string
	region  string

	client *awsclient.ServiceClient
}

func newSession(profile, region, logLevel string) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := applog.New(cfg.Level(logLevel))
	if err != nil {
		return nil, err
	}
	profile, region = cfg.Merge(profile, region)
	return &session{cfg: cfg, log: log, profile: profile, region: region}, nil
}

func (s *session) aws(ctx context.Context) (*awsclient.ServiceClient, error) {
	if s.client != nil {
		return s.client, nil
	}
	client, err := awsclient.NewServiceClient(ctx, s.profile, s.region, s.log)
	if err != nil {
		return nil, fmt.Errorf("initializing AWS client: %w", err)
	}
	s.client = client
	if s.region == "" {
		s.region = client.Region()
	}
	return client, nil
}

// loadDefinition reads a definition from a file or an s3:// URI, rewrites
// legacy rule fields and checks its shape.
func (s *session) loadDefinition(ctx context.Context, src string) (*definition.Definition, error) {
	var (
		def *definition.Definition
		err error
	)
	if strings.HasPrefix(src, "s3://") {
		loc, perr := awss3.ParseURI(src)
		if perr != nil {
			return nil, perr
		}
		client, aerr := s.aws(ctx)
		if aerr != nil {
			return nil, aerr
		}
		data, ferr := client.S3.Fetch(ctx, loc)
		if ferr != nil {
			return nil, ferr
		}
		def, err = definition.Parse(data)
	} else {
		def, err = definition.Load(src)
	}
	if err != nil {
		return nil, err
	}

	for _, change := range definition.Migrate(def) {
		s.log.Warn("migrated legacy rule field", zap.String("change", change))
	}
	if err := definition.Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

// orchestrator returns a new orchestrator for the session's region and
// account. Empty values keep the orchestrator defaults.
func (s *session) orchestrator(account string) *lb.Orchestrator {
	opts := []lb.Option{lb.WithLogger(s.log)}
	if s.region != "" {
		opts = append(opts, lb.WithRegion(s.region))
	}
	if account != "" {
		opts = append(opts, lb.WithAccount(account))
	}
	return lb.NewOrchestrator(opts...)
}

// stackName derives a history key from a definition source.
func stackName(src string) string {
	base := filepath.Base(src)
	if strings.HasPrefix(src, "s3://") {
		base = path.Base(src)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func printWarnings(w io.Writer, warnings []*lb.Issue) {
	for _, i := range warnings {
		lipgloss.Fprintln(w, theme.WarningStyle.Render("warning: ")+i.Error())
	}
}

// printCommitError lists every issue of a failed commit. It reports whether
// err was a commit error.
func printCommitError(w io.Writer, err error) bool {
	var ce *lb.CommitError
	if !errors.As(err, &ce) {
		return false
	}
	lipgloss.Fprintln(w, theme.ErrorStyle.Render(fmt.Sprintf("%d issue(s):", len(ce.Issues))))
	for _, i := range ce.Issues {
		lipgloss.Fprintln(w, "  "+theme.ErrorStyle.Render("✗")+" "+i.Error())
	}
	return true
}
