package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/server"
	"github.com/thatamjad/cf-ai-amjad/pkg/tool"
	"github.com/thatamjad/cf-ai-amjad/pkg/tool/files"
	"github.com/thatamjad/cf-ai-amjad/pkg/tool/warehouse"
	"github.com/thatamjad/cf-ai-amjad/pkg/usecase/agent"
	"github.com/thatamjad/cf-ai-amjad/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg         config
		addr        string
		evictAfter  time.Duration
		evictPeriod time.Duration
	)

	tools := append(files.New(), warehouse.New()...)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("AGENT_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "evict-after",
			Usage:       "Evict agents idle longer than this duration",
			Value:       30 * time.Minute,
			Sources:     cli.EnvVars("AGENT_EVICT_AFTER"),
			Destination: &evictAfter,
		},
		&cli.DurationFlag{
			Name:        "evict-period",
			Usage:       "Interval between idle eviction sweeps",
			Value:       5 * time.Minute,
			Sources:     cli.EnvVars("AGENT_EVICT_PERIOD"),
			Destination: &evictPeriod,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	for _, t := range tools {
		flags = append(flags, t.Flags()...)
	}

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP/SSE agent API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = setupLogger(ctx, &cfg)
			logger := logging.From(ctx)

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

			registry := tool.New()
			client := &tool.Client{Repo: repo, LLM: llm}
			for _, t := range tools {
				enabled, err := t.Init(ctx, client)
				if err != nil {
					return goerr.Wrap(err, "failed to initialize tool", goerr.V("tool", t.Spec().Name))
				}
				if !enabled {
					logger.Info("tool disabled", "tool", t.Spec().Name)
					continue
				}
				if err := registry.Register(t); err != nil {
					return err
				}
				logger.Info("tool registered", "tool", t.Spec().Name)
			}

			agents := agent.NewManager(repo, llm, gemini, agentCfg, agent.WithTools(registry))
			defer agents.Close()

			srv := server.New(agents, registry)

			go func() {
				ticker := time.NewTicker(evictPeriod)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if n := agents.EvictIdle(evictAfter); n > 0 {
							logger.Info("evicted idle agents", "count", n)
						}
					case <-ctx.Done():
						return
					}
				}
			}()

			go func() {
				<-ctx.Done()
				logger.Info("shutting down server")
				if err := srv.Shutdown(); err != nil {
					logger.Error("server shutdown failed", "error", err)
				}
			}()

			logger.Info("server listening", "addr", addr)
			if err := srv.Listen(addr); err != nil {
				return goerr.Wrap(err, "server terminated")
			}
			return nil
		},
	}
}
