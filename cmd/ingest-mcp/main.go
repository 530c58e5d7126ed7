// Command ingest-mcp exposes the ingestion pipeline as an MCP tool
// surface (start/status run) over stdio, for agent-driven ingestion
// rather than direct CLI invocation. MCP is used here instead of a
// bespoke HTTP/WS API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	mcppkg "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"manifold/internal/ingestion/config"
	"manifold/internal/ingestion/paths"
	"manifold/internal/ingestion/progress"
	"manifold/internal/ingestion/types"
	"manifold/internal/ingestion/wiring"
	"manifold/internal/observability"
	"manifold/internal/version"
)

type startRunArgs struct {
	CustomerID string `json:"customer_id"`
	Folders    string `json:"folders"` // comma-separated folder_path[:category]
	Recursive  bool   `json:"recursive"`
}

type runStatusArgs struct {
	CustomerID string `json:"customer_id"`
}

// runTracker keeps the latest progress snapshot per customer_id in
// memory so ingestion_run_status can be polled independently of the run
// that start_ingestion_run launches in the background.
type runTracker struct {
	mu   sync.RWMutex
	runs map[string]types.IngestionProgress
}

func newRunTracker() *runTracker { return &runTracker{runs: map[string]types.IngestionProgress{}} }

func (t *runTracker) set(customerID string, p types.IngestionProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[customerID] = p
}

func (t *runTracker) get(customerID string) (types.IngestionProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.runs[customerID]
	return p, ok
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("ingest-mcp: load config")
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	resolver := paths.New(cfg.Deployment)
	tracker := newRunTracker()
	httpClient := &http.Client{}

	server := mcppkg.NewServer(&mcppkg.Implementation{Name: "ingest-mcp", Version: version.Version}, nil)

	mcppkg.AddTool(server, &mcppkg.Tool{
		Name:        "start_ingestion_run",
		Description: "Start an ingestion run for a customer over one or more source folders",
	}, func(ctx context.Context, req *mcppkg.CallToolRequest, args startRunArgs) (*mcppkg.CallToolResult, any, error) {
		folders := wiring.ParseFolders(args.Folders, args.Recursive)

		var scratchDir string
		if cfg.ObjectStore.Bucket != "" {
			dir, err := os.MkdirTemp("", "ingest-"+args.CustomerID+"-")
			if err != nil {
				return nil, nil, fmt.Errorf("create object store scratch dir: %w", err)
			}
			scratchDir = dir
			n, err := wiring.PullObjectStore(ctx, cfg, scratchDir)
			if err != nil {
				os.RemoveAll(scratchDir)
				return nil, nil, fmt.Errorf("pull object store: %w", err)
			}
			log.Info().Str("bucket", cfg.ObjectStore.Bucket).Int("objects", n).Msg("pulled object store files into scratch dir")
			folders = append(folders, wiring.ParseFolders(scratchDir, true)...)
		}

		if len(folders) == 0 {
			return nil, nil, fmt.Errorf("no folders supplied")
		}

		o, handlerStoreDir, closeStores, err := wiring.BuildOrchestrator(ctx, cfg, resolver, args.CustomerID, httpClient)
		if err != nil {
			if scratchDir != "" {
				os.RemoveAll(scratchDir)
			}
			return nil, nil, fmt.Errorf("build orchestrator: %w", err)
		}
		o.HandlerStoreDir = handlerStoreDir

		sink := progress.NewSink(args.CustomerID, progress.NewKafkaWriter(wiring.SplitCSV(cfg.KafkaBrokers), cfg.KafkaTopic))
		sink.On(func(p types.IngestionProgress) { tracker.set(args.CustomerID, p) })

		go func() {
			defer closeStores()
			defer sink.Close()
			if scratchDir != "" {
				defer os.RemoveAll(scratchDir)
			}
			if _, err := o.Run(context.Background(), args.CustomerID, folders, nil, sink); err != nil {
				log.Error().Err(err).Str("customer_id", args.CustomerID).Msg("ingestion run failed")
			}
		}()

		return &mcppkg.CallToolResult{
			Content: []mcppkg.Content{&mcppkg.TextContent{Text: fmt.Sprintf("ingestion run started for customer %q", args.CustomerID)}},
		}, nil, nil
	})

	mcppkg.AddTool(server, &mcppkg.Tool{
		Name:        "ingestion_run_status",
		Description: "Get the latest progress snapshot for a customer's ingestion run",
	}, func(ctx context.Context, req *mcppkg.CallToolRequest, args runStatusArgs) (*mcppkg.CallToolResult, any, error) {
		p, ok := tracker.get(args.CustomerID)
		if !ok {
			return &mcppkg.CallToolResult{
				Content: []mcppkg.Content{&mcppkg.TextContent{Text: fmt.Sprintf("no run found for customer %q", args.CustomerID)}},
			}, nil, nil
		}
		text := fmt.Sprintf("status=%s phase=%q processed=%d failed=%d total=%d errors=%v",
			p.Status, p.CurrentPhase, p.Processed, p.Failed, p.Total, p.Errors)
		return &mcppkg.CallToolResult{Content: []mcppkg.Content{&mcppkg.TextContent{Text: text}}}, nil, nil
	})

	if err := server.Run(context.Background(), &mcppkg.StdioTransport{}); err != nil {
		log.Fatal().Err(err).Msg("ingest-mcp: server exited")
	}
}
