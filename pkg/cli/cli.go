package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/lectern/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "lectern",
		Usage: "Question answering over course materials",
		Commands: []*cli.Command{
			ingestCommand(),
			askCommand(),
			chatCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// setupContext applies logging configuration and the tuning file, and
// returns a context carrying the logger.
func setupContext(ctx context.Context, cfg *config) (context.Context, error) {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)

	if err := cfg.loadTuning(); err != nil {
		return nil, err
	}

	return logging.With(ctx, logger), nil
}
