package cli

import (
	"context"
	"os"

	"github.com/thatamjad/cf-ai-amjad/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "agentd",
		Usage: "Stateful conversational agent platform",
		Commands: []*cli.Command{
			serveCommand(),
			chatCommand(),
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

// setupLogger installs the configured logger as default and returns a
// context carrying it
func setupLogger(ctx context.Context, cfg *config) context.Context {
	logger := logging.New(cfg.logLevel, cfg.logFormat, os.Stdout)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}
