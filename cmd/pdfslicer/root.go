package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	cfgpkg "github.com/local/pdfslicer/internal/config"
	"github.com/local/pdfslicer/internal/history"
	logpkg "github.com/local/pdfslicer/internal/logger"
	"github.com/local/pdfslicer/internal/metrics"
	"github.com/local/pdfslicer/internal/output"
	"github.com/local/pdfslicer/internal/pdfdoc"
	"github.com/local/pdfslicer/internal/preview"
	"github.com/local/pdfslicer/internal/session"
	"github.com/local/pdfslicer/internal/source"
	"github.com/local/pdfslicer/internal/splitter"
	"github.com/local/pdfslicer/internal/storage"
)

type options struct {
	ranges  []string
	out     string
	preview bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "pdfslicer [pdf]",
		Short: "Split a PDF into smaller PDFs by page ranges",
		Long: "Split a PDF into smaller PDFs by page ranges.\n\n" +
			"Without arguments the tool asks for the file and then for one range per line\n" +
			"(\"3-7\" or \"5\") until an empty line. Slices are written to <name>_slices/ next\n" +
			"to the source. The source may be a path, file://, http(s):// or s3:// URL.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if cmd.Flags().Changed("out") {
				cfg.Output.Dir = opts.out
			}
			if cmd.Flags().Changed("preview") {
				cfg.PDF.Preview = opts.preview
			}

			_ = logpkg.Init(logpkg.Options{
				Level:        cfg.Logging.Level,
				Pretty:       cfg.Logging.Pretty,
				File:         cfg.Logging.File,
				MaxSizeMB:    cfg.Logging.MaxSizeMB,
				MaxBackups:   cfg.Logging.MaxBackups,
				MaxAgeDays:   cfg.Logging.MaxAgeDays,
				Compress:     cfg.Logging.Compress,
				Console:      cmd.ErrOrStderr(),
				SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
				AxiomAPIKey:  cfg.Axiom.APIKey,
				AxiomOrgID:   cfg.Axiom.OrgID,
				AxiomDataset: cfg.Axiom.Dataset,
				AxiomFlush:   cfg.Axiom.FlushInterval,
			})
			defer logpkg.Close()

			var ref string
			if len(args) == 1 {
				ref = args[0]
			}
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout(), ref, opts.ranges)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.ranges, "range", "r", nil, "page range to extract, e.g. 3-7 or 5 (repeatable; skips the prompt)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "parent directory for the <name>_slices folder (default: next to the source)")
	cmd.Flags().BoolVar(&opts.preview, "preview", false, "show the first line of text of each accepted slice")
	return cmd
}

func loadConfig() cfgpkg.Config {
	if err := cfgpkg.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	return cfgpkg.FromEnv()
}

// run loads the source document and hands it to an interactive session.
// Only a document that cannot be loaded fails the run.
func run(ctx context.Context, cfg cfgpkg.Config, in io.Reader, out io.Writer, ref string, ranges []string) error {
	s3 := &lazyS3{opts: storage.Options{
		Endpoint:        cfg.S3.Endpoint,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	}}

	deps := session.Dependencies{In: in, Out: out, Writer: pdfdoc.Writer{}}
	if cfg.History.RedisURL != "" {
		h, err := history.NewRedisHistory(cfg.History.RedisURL, cfg.History.TTL)
		if err != nil {
			log.Warn().Err(err).Msg("run history disabled")
		} else {
			defer h.Close()
			deps.History = h
		}
	}
	sess := session.New(deps)

	if ref == "" {
		var err error
		if ref, err = sess.PromptPath(ctx); err != nil {
			return err
		}
	}

	resolver := &source.Resolver{
		NewS3: func(ctx context.Context) (source.Downloader, error) {
			c, err := s3.get(ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		S3Password: cfg.Source.S3Password,
		Timeout:    cfg.Source.DownloadTimeout,
	}
	res, err := resolver.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	defer res.Close()

	doc, err := pdfdoc.Open(res.Path, pdfdoc.Options{
		UserPassword:  cfg.PDF.UserPassword,
		OwnerPassword: cfg.PDF.OwnerPassword,
		Strict:        cfg.PDF.Strict,
	})
	if err != nil {
		var le *splitter.DocumentLoadError
		if errors.As(err, &le) {
			le.Path = res.Ref
		}
		return err
	}
	log.Info().Str("source", res.Ref).Int("pages", doc.PageCount()).Msg("document loaded")

	dir, err := sliceDir(cfg.Output.Dir, res)
	if err != nil {
		return err
	}
	sinks := output.MultiSink{&output.LocalSink{Dir: dir}}
	if cfg.Output.S3Bucket != "" {
		c, err := s3.get(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("s3 mirror disabled")
		} else {
			sinks = append(sinks, &output.S3Sink{
				Client:   c,
				Bucket:   cfg.Output.S3Bucket,
				Prefix:   cfg.Output.S3Prefix,
				Folder:   res.Stem() + "_slices",
				Password: cfg.Output.S3Password,
				Source:   res.Ref,
			})
		}
	}

	req := session.Request{
		Doc:      doc,
		Sink:     sinks,
		Name:     res.Name,
		Stem:     res.Stem(),
		Source:   res.Ref,
		Location: dir,
		Ranges:   ranges,
	}
	if cfg.PDF.Preview {
		p, err := preview.Open(res.Path)
		if err != nil {
			log.Warn().Err(err).Msg("preview disabled")
		} else {
			defer p.Close()
			req.Preview = p
		}
	}

	sum, err := sess.Run(ctx, req)
	log.Info().Str("run_id", sum.RunID).Int("written", sum.Written).Int("failed", sum.Failed).Msg("run finished")

	if cfg.Metrics.Textfile != "" {
		if werr := metrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			log.Warn().Err(werr).Str("path", cfg.Metrics.Textfile).Msg("failed to write metrics textfile")
		}
	}
	return err
}

// sliceDir picks the folder for the slices: under outDir when set, next to a
// local source, otherwise under the working directory.
func sliceDir(outDir string, res *source.Resolved) (string, error) {
	parent := outDir
	if parent == "" {
		parent = res.Dir
	}
	if parent == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		parent = wd
	}
	return output.SliceDir(parent, res.Stem()), nil
}

// lazyS3 creates the S3 client on first use and shares it afterwards.
type lazyS3 struct {
	opts   storage.Options
	client *storage.S3Client
}

func (l *lazyS3) get(ctx context.Context) (*storage.S3Client, error) {
	if l.client == nil {
		c, err := storage.NewS3Client(ctx, l.opts)
		if err != nil {
			return nil, err
		}
		l.client = c
	}
	return l.client, nil
}
