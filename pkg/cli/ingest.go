package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/adapter"
	"github.com/urfave/cli/v3"
)

func ingestCommand() *cli.Command {
	var (
		cfg    config
		docs   string
		bucket string
		prefix string
		watch  bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "docs",
			Usage:       "Local directory containing course documents",
			Sources:     cli.EnvVars("LECTERN_DOCS_DIR"),
			Destination: &docs,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket containing course documents",
			Sources:     cli.EnvVars("LECTERN_DOCS_BUCKET"),
			Destination: &bucket,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Object prefix within the bucket",
			Sources:     cli.EnvVars("LECTERN_DOCS_PREFIX"),
			Destination: &prefix,
		},
		&cli.BoolFlag{
			Name:        "watch",
			Aliases:     []string{"w"},
			Usage:       "Keep running and re-ingest documents on change (local directory only)",
			Destination: &watch,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, backendFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Ingest course documents into the vector index",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := setupContext(ctx, &cfg)
			if err != nil {
				return err
			}

			if docs == "" && bucket == "" {
				return goerr.New("either --docs or --bucket is required")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			uc := cfg.newIngest(cfg.newIndex(repo, gemini))

			total := 0
			if docs != "" {
				count, err := uc.IngestDir(ctx, docs)
				if err != nil {
					return err
				}
				total += count
			}
			if bucket != "" {
				storage, err := adapter.NewStorage(ctx, bucket)
				if err != nil {
					return err
				}
				count, err := uc.IngestBucket(ctx, storage, prefix)
				if err != nil {
					return err
				}
				total += count
			}

			fmt.Fprintf(c.Root().Writer, "Ingested %d course(s)\n", total)

			if watch {
				if docs == "" {
					return goerr.New("--watch requires --docs")
				}
				return uc.Watch(ctx, docs)
			}

			return nil
		},
	}
}
