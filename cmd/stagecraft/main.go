package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/deepnoodle-ai/stagecraft"
	"github.com/fatih/color"
	_ "github.com/lib/pq"
)

// CLI configuration
type Config struct {
	PipelineFile   string
	Topic          string
	LogsDir        string
	CheckpointsDir string
	PostgresDSN    string
	Workers        int
	Verbose        bool
	JSON           bool
}

func main() {
	config := parseFlags()

	if config.Topic == "" {
		color.Red("Error: topic is required")
		flag.Usage()
		os.Exit(1)
	}

	logger := setupLogger(config.Verbose)

	// Load the pipeline definition
	var registry *stagecraft.Registry
	var err error
	if config.PipelineFile != "" {
		color.Blue("Loading pipeline from: %s", config.PipelineFile)
		registry, err = stagecraft.LoadFile(config.PipelineFile)
		if err != nil {
			log.Fatalf("Failed to load pipeline: %v", err)
		}
	} else {
		registry = stagecraft.DefaultPipeline()
	}
	color.Cyan("Pipeline: %s", registry.Name())

	// Set up generation logging
	var generationLogger stagecraft.GenerationLogger
	if config.LogsDir != "" {
		generationLogger = stagecraft.NewFileGenerationLogger(config.LogsDir)
		color.Blue("Generation logs: %s", config.LogsDir)
	} else {
		generationLogger = stagecraft.NewNullGenerationLogger()
	}

	// Set up checkpointing
	var checkpointer stagecraft.Checkpointer
	switch {
	case config.PostgresDSN != "":
		db, err := sql.Open("postgres", config.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		pg := stagecraft.NewPostgresCheckpointer(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Failed to prepare checkpoint schema: %v", err)
		}
		checkpointer = pg
		color.Blue("Checkpoints: postgres")
	case config.CheckpointsDir != "":
		checkpointer, err = stagecraft.NewFileCheckpointer(config.CheckpointsDir)
		if err != nil {
			log.Fatalf("Failed to create checkpointer: %v", err)
		}
		color.Blue("Checkpoints: %s", config.CheckpointsDir)
	default:
		checkpointer = stagecraft.NewMemoryCheckpointer()
	}

	engine, err := stagecraft.NewEngine(stagecraft.Options{
		Registry:         registry,
		Generator:        stagecraft.GeneratorFunc(placeholderGenerator),
		Checkpointer:     checkpointer,
		GenerationLogger: generationLogger,
		Logger:           logger,
		MaxWorkers:       config.Workers,
	})
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	ctx := context.Background()
	view, err := engine.Start(ctx, config.Topic)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	color.Green("Session started (ID: %s)\n", view.SessionID)
	showView(view, config)

	runReviewLoop(ctx, engine, view.SessionID, config)
}

// runReviewLoop drives the approve/feedback cycle from stdin.
func runReviewLoop(ctx context.Context, engine *stagecraft.Engine, sessionID string, config *Config) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		view, err := engine.GetState(sessionID)
		if err != nil {
			color.Red("Error: %v", err)
			return
		}
		if view.Status == stagecraft.SessionStatusCompleted {
			color.Green("Session completed.")
			return
		}

		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		command, arg, _ := strings.Cut(line, " ")

		switch command {
		case "continue", "c":
			view, err = engine.Continue(ctx, sessionID)
		case "feedback", "f":
			view, err = engine.Feedback(ctx, sessionID, arg, false)
		case "regen", "r":
			view, err = engine.Feedback(ctx, sessionID, arg, true)
		case "history", "h":
			showHistory(ctx, engine, sessionID)
			continue
		case "state", "s":
			showView(view, config)
			continue
		case "quit", "q":
			return
		default:
			color.Yellow("Commands: continue | feedback <text> | regen <text> | history | state | quit")
			continue
		}

		if err != nil {
			color.Red("Error: %v", err)
			continue
		}
		showView(view, config)
	}
}

func showView(view *stagecraft.SessionView, config *Config) {
	if config.JSON {
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			color.Red("Error: %v", err)
			return
		}
		fmt.Println(string(data))
		return
	}
	color.Cyan("Stage: %s  Status: %s  Awaiting feedback: %v",
		view.CurrentStage, view.Status, view.AwaitingFeedback)
	for stage, output := range view.StageOutputs {
		color.White("  %s: %d document(s)", stage, len(output.Documents))
	}
	if view.ErrorRecord != nil {
		color.Red("  error at %s: %s", view.ErrorRecord.Stage, view.ErrorRecord.Message)
	}
}

func showHistory(ctx context.Context, engine *stagecraft.Engine, sessionID string) {
	history, err := engine.ListHistory(ctx, sessionID)
	if err != nil {
		color.Red("Error: %v", err)
		return
	}
	for _, summary := range history {
		color.White("  %s  %s  %s",
			summary.CreatedAt.Format("15:04:05"), summary.CheckpointID, summary.Stage)
	}
}

// placeholderGenerator stands in for a real content generator. It returns a
// document that echoes the request so the pipeline can be exercised end to
// end without a model behind it.
func placeholderGenerator(ctx context.Context, req *stagecraft.GenerationRequest) (*stagecraft.Document, error) {
	return stagecraft.NewDocument(req.Stage, map[string]any{
		"topic":    req.Topic,
		"stage":    req.Stage,
		"feedback": req.Feedback,
	})
}

func setupLogger(verbose bool) *slog.Logger {
	if verbose {
		return stagecraft.NewLogger()
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.Topic, "topic", "", "Topic seed for the generation session (required)")
	flag.StringVar(&config.PipelineFile, "pipeline", "", "Path to a YAML pipeline definition (default: built-in narrative pipeline)")
	flag.StringVar(&config.LogsDir, "logs", "", "Directory to store generation logs (optional)")
	flag.StringVar(&config.CheckpointsDir, "checkpoints", "", "Directory to store session checkpoints (optional)")
	flag.StringVar(&config.PostgresDSN, "postgres", "", "Postgres DSN for checkpoint storage (optional)")
	flag.IntVar(&config.Workers, "workers", 0, "Max concurrent generation calls per stage-group")
	flag.BoolVar(&config.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&config.Verbose, "v", false, "Enable verbose logging (shorthand)")
	flag.BoolVar(&config.JSON, "json", false, "Output session state in JSON format")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Stagecraft CLI - Staged generation sessions with human review

Usage: %s [options] -topic <topic>

Examples:
  # Start a session with the built-in pipeline
  %s -topic "dark fantasy RPG"

  # Use a custom pipeline with file checkpoints
  %s -topic "space opera" -pipeline pipeline.yaml -checkpoints ./checkpoints

Options:
`, os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()

		fmt.Fprintf(os.Stderr, `
Review Commands:
  continue         - Approve the current stage and advance
  feedback <text>  - Regenerate the current stage with feedback (appends)
  regen <text>     - Regenerate the current stage, replacing prior items
  history          - List checkpoints for the session
  state            - Show the current session state
  quit             - Exit

`)
	}

	flag.Parse()
	return config
}
