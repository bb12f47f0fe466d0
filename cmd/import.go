package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"tasnim.dev/lbgraph/internal/aws/elb"
	"tasnim.dev/lbgraph/internal/definition"
	"tasnim.dev/lbgraph/internal/theme"
)

type importOptions struct {
	scope  string
	output string
	names  []string
}

func NewImportCmd() *cobra.Command {
	var (
		profile  string
		region   string
		logLevel string
		opts     importOptions
	)

	cmd := &cobra.Command{
		Use:   "import [load-balancer-name...]",
		Short: "Describe live load balancers and write them as a stack definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			s, err := newSession(profile, region, logLevel)
			if err != nil {
				return err
			}
			defer s.log.Sync()

			client, err := s.aws(cmd.Context())
			if err != nil {
				return err
			}
			opts.names = args
			return runImport(cmd.Context(), s, client.ELB, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.scope, "scope", "imported", "scope for resources without a "+definition.ScopeTag+" tag")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the definition to a file instead of stdout")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "AWS profile to use")
	cmd.Flags().StringVarP(&region, "region", "r", "", "AWS region to use")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	return cmd
}

type snapshotter interface {
	Snapshot(ctx context.Context, names ...string) (*elb.Snapshot, error)
}

func runImport(ctx context.Context, s *session, src snapshotter, stdout, stderr io.Writer, opts importOptions) error {
	snap, err := src.Snapshot(ctx, opts.names...)
	if err != nil {
		return err
	}
	s.log.Debug("described load balancers",
		zap.Int("loadBalancers", len(snap.LoadBalancers)),
		zap.Int("targetGroups", len(snap.TargetGroups)),
	)

	def, warnings := definition.FromSnapshot(snap, opts.scope)
	for _, w := range warnings {
		lipgloss.Fprintln(stderr, theme.WarningStyle.Render("warning: ")+w)
	}
	if err := definition.Validate(def); err != nil {
		return fmt.Errorf("imported definition: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("encoding definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding definition: %w", err)
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing definition: %w", err)
		}
		return nil
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}
