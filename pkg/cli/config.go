package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/adapter"
	"github.com/m-mizutani/lectern/pkg/repository"
	"github.com/m-mizutani/lectern/pkg/tool"
	"github.com/m-mizutani/lectern/pkg/tool/course"
	"github.com/m-mizutani/lectern/pkg/usecase/chat"
	"github.com/m-mizutani/lectern/pkg/usecase/index"
	"github.com/m-mizutani/lectern/pkg/usecase/ingest"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values shared across commands
type config struct {
	logLevel string

	// Vector backend
	backend    string
	project    string
	database   string
	qdrantHost string
	qdrantPort int64

	// Gemini
	geminiProject   string
	geminiLocation  string
	generativeModel string
	embeddingModel  string

	// Retrieval tunables
	tuningFile string
	tuning     tuning
}

// tuning is the retrieval configuration surface, optionally loaded from a
// YAML file. Zero values fall back to the built-in defaults.
type tuning struct {
	ChunkSize        int     `yaml:"chunk_size"`
	ChunkOverlap     int     `yaml:"chunk_overlap"`
	MaxResults       int     `yaml:"max_results"`
	MaxHistoryTurns  int     `yaml:"max_history_turns"`
	ResolveThreshold float64 `yaml:"resolve_threshold"`
	MaxToolRounds    int     `yaml:"max_tool_rounds"`
	QueryTimeoutSec  int     `yaml:"query_timeout_sec"`
}

func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("LECTERN_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "tuning-file",
			Usage:       "YAML file with retrieval tunables (chunk_size, chunk_overlap, max_results, max_history_turns, resolve_threshold, max_tool_rounds, query_timeout_sec)",
			Sources:     cli.EnvVars("LECTERN_TUNING_FILE"),
			Destination: &cfg.tuningFile,
		},
	}
}

func backendFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Aliases:     []string{"b"},
			Usage:       "Vector backend: memory, firestore or qdrant",
			Value:       "memory",
			Sources:     cli.EnvVars("LECTERN_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID (firestore backend)",
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
			Name:        "qdrant-host",
			Usage:       "Qdrant host (qdrant backend)",
			Value:       "localhost",
			Sources:     cli.EnvVars("LECTERN_QDRANT_HOST"),
			Destination: &cfg.qdrantHost,
		},
		&cli.IntFlag{
			Name:        "qdrant-port",
			Usage:       "Qdrant gRPC port",
			Value:       6334,
			Sources:     cli.EnvVars("LECTERN_QDRANT_PORT"),
			Destination: &cfg.qdrantPort,
		},
	}
}

func geminiFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
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
		&cli.StringFlag{
			Name:        "generative-model",
			Usage:       "Gemini model used for answers",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("LECTERN_GENERATIVE_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini model used for embeddings",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("LECTERN_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
	}
}

// loadTuning reads the optional YAML tunables file.
func (cfg *config) loadTuning() error {
	if cfg.tuningFile == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.tuningFile)
	if err != nil {
		return goerr.Wrap(err, "failed to read tuning file", goerr.V("path", cfg.tuningFile))
	}
	if err := yaml.Unmarshal(data, &cfg.tuning); err != nil {
		return goerr.Wrap(err, "failed to parse tuning file", goerr.V("path", cfg.tuningFile))
	}

	return nil
}

// newRepository creates the configured vector backend
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	switch cfg.backend {
	case "memory":
		return repository.NewMemory(), nil

	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required for the firestore backend")
		}
		return repository.NewFirestore(ctx, cfg.project, cfg.database)

	case "qdrant":
		return repository.NewQdrant(cfg.qdrantHost, int(cfg.qdrantPort))

	default:
		return nil, goerr.New("unknown backend", goerr.V("backend", cfg.backend))
	}
}

// newGemini creates the Gemini adapter
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}

	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithGenerativeModel(cfg.generativeModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
	)
}

// newIndex wires the vector index on top of repository and embedder
func (cfg *config) newIndex(repo repository.Repository, embedder index.Embedder) *index.Index {
	var opts []index.Option
	if cfg.tuning.ResolveThreshold > 0 {
		opts = append(opts, index.WithResolveThreshold(cfg.tuning.ResolveThreshold))
	}
	if cfg.tuning.MaxResults > 0 {
		opts = append(opts, index.WithMaxResults(cfg.tuning.MaxResults))
	}
	return index.New(repo, embedder, opts...)
}

// newIngest wires the ingestion usecase
func (cfg *config) newIngest(idx *index.Index) *ingest.UseCase {
	var opts []ingest.Option
	if cfg.tuning.ChunkSize > 0 || cfg.tuning.ChunkOverlap > 0 {
		opts = append(opts, ingest.WithChunking(cfg.tuning.ChunkSize, cfg.tuning.ChunkOverlap))
	}
	return ingest.New(idx, opts...)
}

// newChat wires the orchestrator with the course tools
func (cfg *config) newChat(gemini adapter.Gemini, idx *index.Index) *chat.UseCase {
	registry := tool.New(
		course.NewSearch(idx, cfg.tuning.MaxResults),
		course.NewOutline(idx),
	)

	var opts []chat.Option
	if cfg.tuning.MaxToolRounds > 0 {
		opts = append(opts, chat.WithMaxRounds(cfg.tuning.MaxToolRounds))
	}
	if cfg.tuning.QueryTimeoutSec > 0 {
		opts = append(opts, chat.WithTimeout(time.Duration(cfg.tuning.QueryTimeoutSec)*time.Second))
	}

	sessions := chat.NewSessionStore(cfg.tuning.MaxHistoryTurns)
	return chat.New(gemini, registry, sessions, opts...)
}
