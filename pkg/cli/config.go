package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/thatamjad/cf-ai-amjad/pkg/adapter"
	"github.com/thatamjad/cf-ai-amjad/pkg/repository"
	"github.com/thatamjad/cf-ai-amjad/pkg/usecase/agent"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Repository
	local    bool
	project  string
	database string

	// Adapters
	anthropicAPIKey string
	geminiProject   string
	geminiLocation  string

	// Agent defaults
	agentConfigFile string
}

// agentDefaults is the YAML shape of the optional agent defaults file
type agentDefaults struct {
	SystemPrompt  string `yaml:"systemPrompt"`
	PrimaryModel  string `yaml:"primaryModel"`
	FallbackModel string `yaml:"fallbackModel"`
	ContextBudget int    `yaml:"contextBudget"`
	HistoryWindow int    `yaml:"historyWindow"`
	MemoryTopK    int    `yaml:"memoryTopK"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("AGENT_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("AGENT_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.BoolFlag{
			Name:        "local",
			Usage:       "Use the in-memory repository instead of Firestore",
			Sources:     cli.EnvVars("AGENT_LOCAL"),
			Destination: &cfg.local,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "agent-config",
			Usage:       "Path to a YAML file with agent defaults (models, budget, window)",
			Sources:     cli.EnvVars("AGENT_CONFIG_FILE"),
			Destination: &cfg.agentConfigFile,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key (when set, Claude serves inference)",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
	}
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.local {
		return repository.NewMemory(), nil
	}

	if cfg.project == "" {
		return nil, goerr.New("project is required (or use --local)")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newGemini creates a new Gemini adapter instance, used for embeddings and
// as the default inference backend
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}
	return gemini, nil
}

// newLLM selects the inference backend: Claude when an API key is
// configured, Gemini otherwise
func (cfg *config) newLLM(ctx context.Context, gemini *adapter.GeminiClient) (adapter.LLM, error) {
	if cfg.anthropicAPIKey != "" {
		return adapter.NewClaude(cfg.anthropicAPIKey), nil
	}
	return gemini, nil
}

// agentConfig builds agent defaults, overlaying the optional YAML file
func (cfg *config) agentConfig() (agent.Config, error) {
	out := agent.Config{}

	if cfg.agentConfigFile == "" {
		return out, nil
	}

	data, err := os.ReadFile(cfg.agentConfigFile)
	if err != nil {
		return out, goerr.Wrap(err, "failed to read agent config file", goerr.V("path", cfg.agentConfigFile))
	}

	var defaults agentDefaults
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return out, goerr.Wrap(err, "failed to parse agent config file", goerr.V("path", cfg.agentConfigFile))
	}

	out.SystemPrompt = defaults.SystemPrompt
	out.PrimaryModel = defaults.PrimaryModel
	out.FallbackModel = defaults.FallbackModel
	out.ContextBudget = defaults.ContextBudget
	out.HistoryWindow = defaults.HistoryWindow
	out.MemoryTopK = defaults.MemoryTopK
	return out, nil
}
