// cmd/agroqa answers agricultural questions from the terminal. It
// wires the full pipeline: language normalization, intent and entity
// extraction, timeline resolution, concurrent weather fusion and
// corpus retrieval, answer composition, and back-translation.
//
// One-shot:
//
//	agroqa -q "What is the weather in Mumbai for the next 5 days?"
//
// Without -q it runs a read-eval loop on stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vruksh/agroqa/internal/attribution"
	"github.com/vruksh/agroqa/internal/config"
	"github.com/vruksh/agroqa/internal/engine"
	"github.com/vruksh/agroqa/internal/lang"
	"github.com/vruksh/agroqa/internal/llm"
	"github.com/vruksh/agroqa/internal/notify"
	"github.com/vruksh/agroqa/internal/query"
	"github.com/vruksh/agroqa/internal/retrieval"
	"github.com/vruksh/agroqa/internal/storage"
	"github.com/vruksh/agroqa/internal/storage/postgres"
	"github.com/vruksh/agroqa/internal/storage/sqlite"
	"github.com/vruksh/agroqa/internal/weather"
	"github.com/vruksh/agroqa/pkg/types"
)

func main() {
	question := flag.String("q", "", "question to answer (omit for interactive mode)")
	language := flag.String("lang", "", "declared query language code (skips detection)")
	location := flag.String("location", "", "location hint tried before any extracted location")
	topK := flag.Int("topk", 0, "number of knowledge chunks to retrieve (0 = default)")
	refDate := flag.String("date", "", "reference date for relative time expressions (YYYY-MM-DD)")
	user := flag.String("user", "", "user identifier for query attribution (default: detected)")
	flag.Parse()

	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	store, cfg, err := openStoreAndConfig()
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	defer func() { _ = store.Close() }()

	pipeline, retriever, err := buildPipeline(ctx, cfg, store)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	if cfg.Retrieval.WatchCorpus {
		watcher := notify.NewCorpusWatcher(cfg.Retrieval.CorpusPath, func() {
			go func() {
				if err := retriever.Rebuild(context.Background()); err != nil {
					log.Printf("Warning: corpus rebuild failed: %v", err)
				}
			}()
		})
		if err := watcher.Start(); err != nil {
			log.Printf("Warning: corpus watcher disabled: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	userID := *user
	if userID == "" {
		userID = attribution.DetectUser()
	}
	opts := []engine.QueryOption{engine.WithUserID(userID)}
	if *language != "" {
		opts = append(opts, engine.WithLanguage(*language))
	}
	if *location != "" {
		opts = append(opts, engine.WithLocationHint(*location))
	}
	if *topK > 0 {
		opts = append(opts, engine.WithTopK(*topK))
	}
	if *refDate != "" {
		parsed, err := time.Parse("2006-01-02", *refDate)
		if err != nil {
			log.Fatalf("ERROR: invalid -date %q: %v", *refDate, err)
		}
		opts = append(opts, engine.WithReferenceDate(parsed))
	}

	if *question != "" {
		if err := answerOne(ctx, pipeline, *question, opts); err != nil {
			log.Fatalf("ERROR: %v", err)
		}
		return
	}

	runREPL(ctx, pipeline, opts)
}

// openStoreAndConfig opens the configured storage backend and loads
// configuration, preferring persisted user settings when the backend
// supports them.
func openStoreAndConfig() (storage.CorpusStore, *config.Config, error) {
	base, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := openStore(base)
	if err != nil {
		return nil, nil, err
	}

	if sqliteStore, ok := store.(*sqlite.CorpusStore); ok {
		fromDB, err := config.LoadConfigFromDB(sqliteStore.DB())
		if err != nil {
			log.Printf("Warning: failed to load persisted settings, using environment only: %v", err)
			return store, base, nil
		}
		return store, fromDB, nil
	}
	return store, base, nil
}

// openStore opens the configured storage backend.
func openStore(cfg *config.Config) (storage.CorpusStore, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		store, err := postgres.Open(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil
	case "sqlite", "":
		store, err := sqlite.Open(cfg.Storage.DataPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage engine: %q", cfg.Storage.Engine)
	}
}

// buildPipeline wires every stage from configuration.
func buildPipeline(ctx context.Context, cfg *config.Config, store storage.CorpusStore) (*engine.Pipeline, *retrieval.Engine, error) {
	translator := lang.NewGoogleTranslator(lang.GoogleTranslatorConfig{
		APIKey:  cfg.Translate.APIKey,
		BaseURL: cfg.Translate.BaseURL,
		Timeout: cfg.Translate.Timeout,
	})
	normalizer := lang.NewNormalizer(translator, cfg.Pipeline.WorkingLanguage)

	timeline := query.NewTimelineResolver(cfg.Retrieval.MinHorizonDays,
		cfg.Retrieval.MaxHorizonDays, cfg.Retrieval.DefaultWindow)

	geocoder := weather.NewOpenMeteoGeocoder(weather.OpenMeteoGeocoderConfig{
		BaseURL: cfg.Weather.GeocodeURL,
	})
	providers, err := weather.NewProviders(cfg.Weather)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create weather providers: %w", err)
	}
	weatherService := weather.NewService(cfg.Weather, geocoder, providers)

	generator, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := llm.NewEmbeddingGenerator(cfg.LLM)
	if err != nil {
		return nil, nil, err
	}

	retriever := retrieval.NewEngine(cfg.Retrieval, embedder, store)
	if err := readyIndex(ctx, retriever); err != nil {
		return nil, nil, err
	}

	composer := engine.NewComposer(generator, cfg.Pipeline)
	pipeline := engine.NewPipeline(cfg.Pipeline, normalizer, timeline,
		weatherService, retriever, composer, cfg.User.DefaultLocation)
	return pipeline, retriever, nil
}

// readyIndex serves the persisted index when one matches the
// configured embedding model, rebuilding from source otherwise.
func readyIndex(ctx context.Context, retriever *retrieval.Engine) error {
	err := retriever.Load(ctx)
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Println("No corpus index found, building from source documents")
	case errors.Is(err, storage.ErrModelMismatch):
		log.Printf("Warning: %v; rebuilding index", err)
	default:
		return err
	}
	if err := retriever.Build(ctx); err != nil {
		return fmt.Errorf("failed to build corpus index: %w", err)
	}
	return nil
}

func answerOne(ctx context.Context, pipeline *engine.Pipeline, question string, opts []engine.QueryOption) error {
	answer, err := pipeline.Answer(ctx, question, opts...)
	if err != nil {
		return err
	}
	printAnswer(answer)
	return nil
}

func runREPL(ctx context.Context, pipeline *engine.Pipeline, opts []engine.QueryOption) {
	fmt.Println("agroqa - ask an agricultural question, or 'exit' to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		if ctx.Err() != nil {
			return
		}

		answer, err := pipeline.Answer(ctx, line, opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printAnswer(answer)
	}
}

func printAnswer(answer types.Answer) {
	fmt.Println(answer.Text)
	fmt.Println()
	fmt.Printf("confidence: %.2f  intent: %s\n", answer.Confidence, answer.Intent)
	if len(answer.Sources) > 0 {
		fmt.Printf("sources: %s\n", strings.Join(answer.Sources, ", "))
	}
	if answer.Weather != nil {
		fmt.Printf("weather providers: %s\n", strings.Join(answer.Weather.Providers(), ", "))
	}
	for _, note := range answer.Degradations {
		fmt.Printf("note: %s\n", note)
	}
}
