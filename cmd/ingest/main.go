// Command ingest is the operator CLI for the customer data ingestion
// pipeline: given a customer ID and one or more source folders, it wires
// the Handler Registry, Classifier, Chunker, Structured Extractor,
// Embedder, and Lakehouse stores together and runs the Orchestrator end
// to end. Grounded on cmd/orchestrator/main.go's run()/getenv*/
// observability.InitLogger wiring pattern.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	ingestcfg "manifold/internal/ingestion/config"
	"manifold/internal/ingestion/paths"
	"manifold/internal/ingestion/progress"
	"manifold/internal/ingestion/types"
	"manifold/internal/ingestion/wiring"
	"manifold/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("ingest")
	}
}

func run() error {
	customerID := flag.String("customer", "", "customer ID to ingest for (required)")
	folderFlag := flag.String("folders", "", "comma-separated list of folder_path[:category] entries")
	recursive := flag.Bool("recursive", true, "crawl folders recursively")
	configPath := flag.String("config", "", "optional YAML config overlay path")
	showPaths := flag.Bool("show-paths", false, "print resolved lakehouse paths for the customer and exit")
	flag.Parse()

	if strings.TrimSpace(*customerID) == "" {
		return fmt.Errorf("-customer is required")
	}

	cfg, err := ingestcfg.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load ingestion config: %w", err)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	resolver := paths.New(cfg.Deployment)
	if *showPaths {
		all, err := resolver.ResolveAll(*customerID)
		if err != nil {
			return fmt.Errorf("resolve paths: %w", err)
		}
		handlerStore, err := resolver.Resolve(*customerID, paths.KindHandlerStore)
		if err != nil {
			return fmt.Errorf("resolve handler store path: %w", err)
		}
		log.Info().
			Str("customer_id", *customerID).
			Str("tabular_root", all.Tabular).
			Str("vector_root", all.Vector).
			Str("graph_root", all.Graph).
			Str("handler_store", handlerStore).
			Msg("resolved lakehouse paths")
		return nil
	}

	folders := wiring.ParseFolders(*folderFlag, *recursive)

	baseCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.ObjectStore.Bucket != "" {
		scratchDir, err := os.MkdirTemp("", "ingest-"+*customerID+"-")
		if err != nil {
			return fmt.Errorf("create object store scratch dir: %w", err)
		}
		defer os.RemoveAll(scratchDir)

		n, err := wiring.PullObjectStore(baseCtx, cfg, scratchDir)
		if err != nil {
			return fmt.Errorf("pull object store: %w", err)
		}
		log.Info().Str("bucket", cfg.ObjectStore.Bucket).Int("objects", n).Msg("pulled object store files into scratch dir")
		folders = append(folders, wiring.ParseFolders(scratchDir, true)...)
	}

	if len(folders) == 0 {
		return fmt.Errorf("at least one folder must be supplied via -folders or OBJECT_STORE_BUCKET")
	}

	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 7 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   7 * time.Second,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	httpClient := observability.NewHTTPClient(&http.Client{Transport: tr})

	o, handlerStoreDir, closeStores, err := wiring.BuildOrchestrator(baseCtx, cfg, resolver, *customerID, httpClient)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}
	defer closeStores()
	o.HandlerStoreDir = handlerStoreDir

	kafkaWriter := progress.NewKafkaWriter(wiring.SplitCSV(cfg.KafkaBrokers), cfg.KafkaTopic)
	sink := progress.NewSink(*customerID, kafkaWriter)
	defer sink.Close()
	sink.On(func(p types.IngestionProgress) {
		log.Info().
			Str("customer_id", *customerID).
			Str("status", string(p.Status)).
			Str("phase", p.CurrentPhase).
			Int("total", p.Total).
			Int("processed", p.Processed).
			Int("failed", p.Failed).
			Msg("ingestion progress")
	})

	result, err := o.Run(baseCtx, *customerID, folders, nil, sink)
	if err != nil {
		return fmt.Errorf("run ingestion: %w", err)
	}

	log.Info().
		Str("customer_id", *customerID).
		Str("status", string(result.Status)).
		Int("total", result.Total).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Strs("unknown_extensions", result.UnknownExtensions).
		Msg("ingestion run complete")
	return nil
}
