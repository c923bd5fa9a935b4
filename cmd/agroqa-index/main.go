// cmd/agroqa-index manages the knowledge corpus index.
//
//	agroqa-index build                 ingest, embed, and persist the corpus
//	agroqa-index inspect               show the persisted index's metadata
//	agroqa-index set-location <place>  persist the default query location
//	agroqa-index snapshot              snapshot the corpus database
//	agroqa-index restore <path>        restore the corpus database from a snapshot
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/vruksh/agroqa/internal/backup"
	"github.com/vruksh/agroqa/internal/config"
	"github.com/vruksh/agroqa/internal/llm"
	"github.com/vruksh/agroqa/internal/retrieval"
	"github.com/vruksh/agroqa/internal/storage"
	"github.com/vruksh/agroqa/internal/storage/postgres"
	"github.com/vruksh/agroqa/internal/storage/sqlite"
)

func main() {
	keep := flag.Int("keep", 10, "snapshots to retain after a snapshot command")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <build|inspect|set-location|snapshot|restore> [args]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags)

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("ERROR: failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	switch flag.Arg(0) {
	case "build":
		err = runBuild(ctx, cfg, store)
	case "inspect":
		err = runInspect(ctx, store)
	case "set-location":
		if flag.NArg() < 2 {
			log.Fatal("ERROR: set-location requires a location argument")
		}
		err = runSetLocation(cfg, store, flag.Arg(1))
	case "snapshot":
		err = runSnapshot(cfg, store, *keep)
	case "restore":
		if flag.NArg() < 2 {
			log.Fatal("ERROR: restore requires a snapshot path argument")
		}
		err = runRestore(cfg, store, flag.Arg(1))
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
}

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

func runBuild(ctx context.Context, cfg *config.Config, store storage.CorpusStore) error {
	embedder, err := llm.NewEmbeddingGenerator(cfg.LLM)
	if err != nil {
		return err
	}

	engine := retrieval.NewEngine(cfg.Retrieval, embedder, store)
	if err := engine.Build(ctx); err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	stats := engine.Stats()
	fmt.Printf("index built: %d chunks from %d documents\n", stats.Chunks, stats.Documents)
	fmt.Printf("model: %s  dimension: %d\n", stats.Model, stats.Dimension)
	return nil
}

func runInspect(ctx context.Context, store storage.CorpusStore) error {
	artifact, err := store.LoadArtifact(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Println("no corpus index has been built yet")
			return nil
		}
		return err
	}

	documents := make(map[string]struct{})
	for _, chunk := range artifact.Chunks {
		documents[chunk.DocumentID] = struct{}{}
	}

	fmt.Printf("model:      %s\n", artifact.Model)
	fmt.Printf("dimension:  %d\n", artifact.Dimension)
	fmt.Printf("chunks:     %d\n", len(artifact.Chunks))
	fmt.Printf("documents:  %d\n", len(documents))
	fmt.Printf("built at:   %s\n", artifact.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func runSnapshot(cfg *config.Config, store storage.CorpusStore, keep int) error {
	if _, ok := store.(*sqlite.CorpusStore); !ok {
		return errors.New("snapshot requires the sqlite storage engine")
	}

	dbPath := filepath.Join(cfg.Storage.DataPath, "corpus.db")
	snapDir := filepath.Join(cfg.Storage.DataPath, "snapshots")

	info, err := backup.Snapshot(dbPath, snapDir)
	if err != nil {
		return err
	}
	fmt.Printf("snapshot written: %s (%d bytes)\n", info.Path, info.Size)

	return backup.Prune(snapDir, keep)
}

func runRestore(cfg *config.Config, store storage.CorpusStore, snapshotPath string) error {
	if _, ok := store.(*sqlite.CorpusStore); !ok {
		return errors.New("restore requires the sqlite storage engine")
	}
	// Release the live handle before overwriting the file.
	if err := store.Close(); err != nil {
		return fmt.Errorf("failed to close store before restore: %w", err)
	}

	dbPath := filepath.Join(cfg.Storage.DataPath, "corpus.db")
	if err := backup.Restore(snapshotPath, dbPath); err != nil {
		return err
	}
	fmt.Printf("restored %s from %s\n", dbPath, snapshotPath)
	return nil
}

func runSetLocation(cfg *config.Config, store storage.CorpusStore, location string) error {
	sqliteStore, ok := store.(*sqlite.CorpusStore)
	if !ok {
		return errors.New("set-location requires the sqlite storage engine")
	}

	cfg.User.DefaultLocation = location
	if err := cfg.SaveConfig(sqliteStore.DB()); err != nil {
		return err
	}
	fmt.Printf("default location set to %q\n", location)
	return nil
}
