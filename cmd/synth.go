package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	awss3 "tasnim.dev/lbgraph/internal/aws/s3"
	"tasnim.dev/lbgraph/internal/definition"
	"tasnim.dev/lbgraph/internal/store"
	"tasnim.dev/lbgraph/internal/theme"
	"tasnim.dev/lbgraph/internal/utils"
	"tasnim.dev/lbgraph/template"
)

type synthOptions struct {
	file           string
	output         string
	format         string
	account        string
	resolveAccount bool
	resolveSubnets bool
	publish        string
	split          bool
	record         bool
	stack          string
	history        string
}

func NewSynthCmd() *cobra.Command {
	var (
		profile  string
		region   string
		logLevel string
		opts     synthOptions
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Commit a stack definition and print the resource template",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			s, err := newSession(profile, region, logLevel)
			if err != nil {
				return err
			}
			defer s.log.Sync()
			return runSynth(cmd.Context(), s, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "stack definition (path or s3:// URI)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the template to a file instead of stdout")
	cmd.Flags().StringVar(&opts.format, "format", "", "template format: yaml or json")
	cmd.Flags().StringVar(&opts.account, "account", "", "account used in ARN tokens")
	cmd.Flags().BoolVar(&opts.resolveAccount, "resolve-account", false, "look up the account with STS")
	cmd.Flags().BoolVar(&opts.resolveSubnets, "resolve-subnets", false, "look up missing subnet zones with EC2")
	cmd.Flags().StringVar(&opts.publish, "publish", "", "upload the template to an s3:// URI")
	cmd.Flags().BoolVar(&opts.split, "split", false, "with --publish to a prefix, also upload one template per scope")
	cmd.Flags().BoolVar(&opts.record, "record", false, "record the template digest in the synthesis history")
	cmd.Flags().StringVar(&opts.stack, "stack", "", "history name of the stack (default: definition file name)")
	cmd.Flags().StringVar(&opts.history, "history", "", "history database path")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "AWS profile to use")
	cmd.Flags().StringVarP(&region, "region", "r", "", "AWS region to use")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSynth(ctx context.Context, s *session, stdout, stderr io.Writer, opts synthOptions) error {
	format, err := template.ParseFormat(s.cfg.Format(opts.format))
	if err != nil {
		return err
	}

	def, err := s.loadDefinition(ctx, opts.file)
	if err != nil {
		return err
	}

	if opts.resolveSubnets {
		client, err := s.aws(ctx)
		if err != nil {
			return err
		}
		if err := definition.ResolveZones(ctx, def, client.VPC); err != nil {
			return err
		}
	}

	account := s.cfg.Account(opts.account)
	if opts.resolveAccount {
		client, err := s.aws(ctx)
		if err != nil {
			return err
		}
		if account, err = client.AccountID(ctx); err != nil {
			return err
		}
	}

	g, err := definition.Build(s.orchestrator(account), def)
	if err != nil {
		return err
	}
	res, err := g.Orchestrator.Commit()
	if err != nil {
		printCommitError(stderr, err)
		return errors.New("synthesis failed")
	}
	printWarnings(stderr, res.Warnings)

	data, err := template.Marshal(res.Template, format)
	if err != nil {
		return err
	}
	if opts.output != "" {
		if err := os.WriteFile(opts.output, data, 0o644); err != nil {
			return fmt.Errorf("writing template: %w", err)
		}
	} else if _, err := stdout.Write(data); err != nil {
		return err
	}

	if opts.publish != "" {
		if err := publishTemplate(ctx, s, stderr, res.Template, format, opts); err != nil {
			return err
		}
	}

	if opts.record {
		stack := opts.stack
		if stack == "" {
			stack = stackName(opts.file)
		}
		if err := recordSynthesis(ctx, s, stderr, stack, res.Template, len(res.Warnings), opts.history); err != nil {
			return err
		}
	}

	s.log.Info("synthesized",
		zap.Int("scopes", len(res.Template.Scopes)),
		zap.Int("resources", res.Resources),
		zap.Int("gates", res.GatesOpened),
	)
	return nil
}

var contentTypes = map[template.Format]string{
	template.FormatYAML: "application/yaml",
	template.FormatJSON: "application/json",
}

// templateObjects lays out the upload. A URI ending in "/" (or naming only
// the bucket) is a prefix receiving template.<ext> and, with split, one
// <scope>.<ext> per scope; any other URI is the exact key of the template.
func templateObjects(loc awss3.Location, tpl *template.Template, format template.Format, split bool) ([]awss3.Object, error) {
	data, err := template.Marshal(tpl, format)
	if err != nil {
		return nil, err
	}
	ext := string(format)
	ct := contentTypes[format]

	if loc.Key != "" && !strings.HasSuffix(loc.Key, "/") {
		if split {
			return nil, fmt.Errorf("--split needs a prefix URI ending in \"/\", got %s", loc)
		}
		return []awss3.Object{{Body: data, ContentType: ct}}, nil
	}

	objects := []awss3.Object{{Key: "template." + ext, Body: data, ContentType: ct}}
	if !split {
		return objects, nil
	}
	for _, sc := range tpl.Scopes {
		part := &template.Template{
			Scopes:    []template.Scope{sc},
			Resources: lo.Filter(tpl.Resources, func(r template.Resource, _ int) bool {
				return r.Scope == sc.Name
			}),
		}
		body, err := template.Marshal(part, format)
		if err != nil {
			return nil, err
		}
		objects = append(objects, awss3.Object{Key: sc.Name + "." + ext, Body: body, ContentType: ct})
	}
	return objects, nil
}

func publishTemplate(ctx context.Context, s *session, w io.Writer, tpl *template.Template, format template.Format, opts synthOptions) error {
	loc, err := awss3.ParseURI(opts.publish)
	if err != nil {
		return err
	}
	objects, err := templateObjects(loc, tpl, format, opts.split)
	if err != nil {
		return err
	}
	client, err := s.aws(ctx)
	if err != nil {
		return err
	}
	published, err := client.S3.Publish(ctx, loc, objects)
	if err != nil {
		return err
	}
	for _, p := range published {
		lipgloss.Fprintln(w, theme.RenderStatus("published")+" "+p.Location.String()+" "+theme.MutedStyle.Render(p.ETag))
	}
	return nil
}

func recordSynthesis(ctx context.Context, s *session, w io.Writer, stack string, tpl *template.Template, warnings int, historyPath string) error {
	digest, err := template.Digest(tpl)
	if err != nil {
		return err
	}
	h, err := store.Open(ctx, s.cfg.History(historyPath))
	if err != nil {
		return err
	}
	defer h.Close()

	written, err := h.Record(ctx, store.Entry{
		Stack:     stack,
		Digest:    digest,
		Scopes:    len(tpl.Scopes),
		Resources: len(tpl.Resources),
		Warnings:  warnings,
	})
	if err != nil {
		return err
	}
	status := "no changes"
	if written {
		status = "recorded"
	}
	lipgloss.Fprintln(w, theme.RenderStatus(status)+" "+stack+" "+theme.MutedStyle.Render(utils.ShortDigest(digest)))
	return nil
}
