package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"tasnim.dev/lbgraph/internal/definition"
	"tasnim.dev/lbgraph/internal/theme"
	"tasnim.dev/lbgraph/internal/utils"
)

var errInvalid = errors.New("stack is invalid")

func NewValidateCmd() *cobra.Command {
	var (
		file     string
		profile  string
		region   string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a stack definition without emitting a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			s, err := newSession(profile, region, logLevel)
			if err != nil {
				return err
			}
			defer s.log.Sync()
			return runValidate(cmd.Context(), s, cmd.OutOrStdout(), file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "stack definition (path or s3:// URI)")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "AWS profile to use")
	cmd.Flags().StringVarP(&region, "region", "r", "", "AWS region to use")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runValidate(ctx context.Context, s *session, w io.Writer, file string) error {
	def, err := s.loadDefinition(ctx, file)
	if err != nil {
		lipgloss.Fprintln(w, theme.RenderStatus("invalid")+" "+file)
		lipgloss.Fprintln(w, err.Error())
		return errInvalid
	}

	g, err := definition.Build(s.orchestrator(""), def)
	if err != nil {
		d := utils.NewDetailBuilder(0, theme.SectionStyle)
		for _, e := range multierr.Errors(err) {
			d.Item(theme.ErrorStyle.Render("✗"), e.Error())
		}
		lipgloss.Fprintln(w, theme.RenderStatus("invalid")+" "+file)
		lipgloss.Fprint(w, d.String())
		return errInvalid
	}

	res, err := g.Orchestrator.Commit()
	if err != nil {
		lipgloss.Fprintln(w, theme.RenderStatus("invalid")+" "+file)
		if !printCommitError(w, err) {
			return err
		}
		return errInvalid
	}

	lipgloss.Fprintln(w, theme.RenderStatus("valid")+" "+file+" "+theme.MutedStyle.Render(fmt.Sprintf("(%s, %s, %s opened)",
		utils.Count(len(res.Template.Scopes), "scope"),
		utils.Count(res.Resources, "resource"),
		utils.Count(res.GatesOpened, "gate"),
	)))
	printWarnings(w, res.Warnings)

	d := utils.NewDetailBuilder(28, theme.SectionStyle)
	d.Blank()
	d.Section("Listeners")
	for _, path := range g.ListenerPaths() {
		l, err := g.Listener(path)
		if err != nil {
			return err
		}
		d.Row(path, fmt.Sprintf("%s  %s:%d, %s",
			theme.RenderStatus(l.State().String()), l.Protocol(), l.Port(), utils.Count(len(l.Rules()), "rule")))
	}
	d.Blank()
	d.Section("Scopes")
	for _, sc := range res.Template.Scopes {
		deps := "-"
		if len(sc.DependsOn) > 0 {
			deps = fmt.Sprint(sc.DependsOn)
		}
		d.Row(sc.Name, "depends on "+deps)
	}
	lipgloss.Fprint(w, d.String())
	return nil
}
