package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg       config
		query     string
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Question to ask about the course materials",
			Required:    true,
			Destination: &query,
		},
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Session ID to continue a conversation",
			Destination: &sessionID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, backendFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:  "ask",
		Usage: "Ask a single question",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := setupContext(ctx, &cfg)
			if err != nil {
				return err
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

			uc := cfg.newChat(gemini, cfg.newIndex(repo, gemini))

			answer, err := uc.Answer(ctx, model.SessionID(sessionID), query)
			if err != nil {
				return goerr.Wrap(err, "failed to answer query")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", answer.Text)
			printSources(c, answer.Sources)
			fmt.Fprintf(c.Root().Writer, "\nSession: %s\n", answer.SessionID)

			return nil
		},
	}
}

func printSources(c *cli.Command, sources []model.Source) {
	if len(sources) == 0 {
		return
	}

	fmt.Fprintf(c.Root().Writer, "\nSources:\n")
	for _, source := range sources {
		if source.Link != "" {
			fmt.Fprintf(c.Root().Writer, "  - %s (%s)\n", source.Label(), source.Link)
		} else {
			fmt.Fprintf(c.Root().Writer, "  - %s\n", source.Label())
		}
	}
}
