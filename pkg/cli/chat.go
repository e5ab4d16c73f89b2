package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, backendFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive question answering session",
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
			sessionID := model.NewSessionID()

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			fmt.Fprintf(c.Root().Writer, "Chat session started. Type '/exit' to quit, '/clear' to reset the conversation.\n")

			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
						break
					}
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				switch message {
				case "":
					continue
				case "/exit", "exit":
					fmt.Fprintf(c.Root().Writer, "\nChat session completed\n")
					return nil
				case "/clear":
					uc.Clear(sessionID)
					fmt.Fprintf(c.Root().Writer, "Conversation cleared\n")
					continue
				}

				s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = " thinking..."
				s.Start()
				answer, err := uc.Answer(ctx, sessionID, message)
				s.Stop()

				if err != nil {
					if errors.Is(err, model.ErrRetrievalTimeout) {
						fmt.Fprintf(c.Root().Writer, "The query timed out; your conversation is unchanged, please try again.\n")
						continue
					}
					return goerr.Wrap(err, "failed to answer query")
				}

				fmt.Fprintf(c.Root().Writer, "%s\n", answer.Text)
				printSources(c, answer.Sources)
			}

			fmt.Fprintf(c.Root().Writer, "\nChat session completed\n")
			return nil
		},
	}
}
