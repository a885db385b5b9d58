package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/model"
	"github.com/thatamjad/cf-ai-amjad/pkg/usecase/agent"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg            config
		conversationID string
		userID         string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "conversation-id",
			Aliases:     []string{"id"},
			Usage:       "Conversation ID to continue (a new one is created when omitted)",
			Sources:     cli.EnvVars("AGENT_CONVERSATION_ID"),
			Destination: &conversationID,
		},
		&cli.StringFlag{
			Name:        "user-id",
			Usage:       "User ID stamped on sent messages",
			Sources:     cli.EnvVars("AGENT_USER_ID"),
			Destination: &userID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation with a local agent",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = setupLogger(ctx, &cfg)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			llm, err := cfg.newLLM(ctx, gemini)
			if err != nil {
				return err
			}

			agentCfg, err := cfg.agentConfig()
			if err != nil {
				return err
			}

			id := model.ConversationID(conversationID)
			if id == "" {
				id = model.NewConversationID()
			}

			a, err := agent.New(ctx, agent.NewInput{
				Repo:           repo,
				LLM:            llm,
				Embedder:       gemini,
				ConversationID: id,
				Config:         agentCfg,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to create agent")
			}
			defer a.Close()

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			out := c.Root().Writer
			fmt.Fprintf(out, "Conversation %s. Type 'exit' to quit, '/clear' to reset history.\n", id)

			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
						break
					}
					return goerr.Wrap(err, "failed to read input")
				}

				switch line {
				case "":
					continue
				case "exit", "quit":
					fmt.Fprintln(out, "bye")
					return nil
				case "/clear":
					if err := a.ClearHistory(ctx); err != nil {
						return goerr.Wrap(err, "failed to clear history")
					}
					fmt.Fprintln(out, "history cleared")
					continue
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " thinking..."
				sp.Start()

				reply, err := a.ProcessMessage(ctx, line, userID)
				sp.Stop()
				if err != nil {
					if errors.Is(err, model.ErrValidation) {
						fmt.Fprintln(out, "(message was empty after sanitization)")
						continue
					}
					return goerr.Wrap(err, "failed to process message")
				}

				fmt.Fprintf(out, "%s\n\n", reply.Content)
			}

			return nil
		},
	}
}
