package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/permit"
	"github.com/oarkflow/permit/logger"
	"github.com/oarkflow/permit/metrics"
	"github.com/oarkflow/permit/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "explain":
		handleExplain()
	case "batch":
		handleBatch()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("permit-config - Configuration tool for the permission resolver")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  permit-config convert <input> <output>                          - Convert between formats")
	fmt.Println("  permit-config validate <file>                                   - Validate configuration")
	fmt.Println("  permit-config stats <file>                                      - Show configuration statistics")
	fmt.Println("  permit-config explain <file> <tenant> <user> <action> [resource] - Explain one decision")
	fmt.Println("  permit-config batch <file> <requests.json>                      - Resolve a list of requests")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
	fmt.Println("Environment: PERMIT_CACHE_BACKEND, PERMIT_REDIS_ADDR, PERMIT_CACHE_TTL, PERMIT_LOG_FORMAT, ...")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: permit-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: permit-config validate <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid configuration:")
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("  - %s\n", line)
		}
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Roles: %d\n", len(cfg.Roles))
	fmt.Printf("  Grants: %d\n", len(cfg.Grants))
	fmt.Printf("  Memberships: %d\n", len(cfg.Memberships))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: permit-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)
	s := cfg.Stats(time.Now())

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Components:")
	fmt.Printf("  Action extensions: %d\n", s.Actions)
	fmt.Printf("  Module defaults:   %d\n", s.Defaults)
	fmt.Printf("  Users:             %d\n", s.Users)
	fmt.Printf("  Memberships:       %d\n", s.Memberships)
	fmt.Printf("  Roles:             %d\n", s.Roles)
	fmt.Printf("  Role assignments:  %d\n", s.RoleAssignments)
	fmt.Printf("  Portal rules:      %d\n", s.PortalRules)
	fmt.Println()

	if s.Grants > 0 {
		fmt.Println("Grant Details:")
		fmt.Printf("  Allow grants:   %d\n", s.Grants-s.DenyGrants)
		fmt.Printf("  Deny grants:    %d\n", s.DenyGrants)
		fmt.Printf("  Expired grants: %d\n", s.ExpiredGrants)
		fmt.Println()
	}

	fmt.Println("Engine Configuration:")
	fmt.Printf("  Cache TTL:          %dms\n", cfg.Engine.CacheTTL)
	fmt.Printf("  Resolve timeout:    %dms\n", cfg.Engine.ResolveTimeout)
	fmt.Printf("  Batch worker count: %d\n", cfg.Engine.BatchWorkerCount)
}

func handleExplain() {
	if len(os.Args) < 6 {
		fmt.Println("Usage: permit-config explain <file> <tenant> <user> <action> [resource]")
		os.Exit(1)
	}
	ctx := context.Background()
	r, cleanup := mustResolver(ctx, os.Args[2])
	defer cleanup()

	req := &permit.ExplainRequest{Tenant: os.Args[3], UserID: os.Args[4], Action: os.Args[5]}
	if len(os.Args) > 6 {
		req.Resource = os.Args[6]
	}
	printJSON(r.ExplainRequest(ctx, req))
}

func handleBatch() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: permit-config batch <file> <requests.json>")
		os.Exit(1)
	}
	ctx := context.Background()
	r, cleanup := mustResolver(ctx, os.Args[2])
	defer cleanup()

	raw, err := os.ReadFile(os.Args[3])
	if err != nil {
		fmt.Printf("Error reading requests: %v\n", err)
		os.Exit(1)
	}
	var reqs []permit.Request
	if err := json.Unmarshal(raw, &reqs); err != nil {
		fmt.Printf("Error decoding requests: %v\n", err)
		os.Exit(1)
	}
	decisions, err := r.BatchResolve(ctx, reqs)
	if err != nil {
		fmt.Printf("Batch interrupted: %v\n", err)
	}
	printJSON(decisions)
}

// mustResolver builds a resolver from a config file plus PERMIT_* settings.
func mustResolver(ctx context.Context, filename string) (*permit.Resolver, func()) {
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	settings, err := permit.LoadSettings()
	if err != nil {
		fmt.Printf("Error loading settings: %v\n", err)
		os.Exit(1)
	}
	backend, cleanup, err := cacheBackend(settings, cfg.Engine)
	if err != nil {
		fmt.Printf("Error creating cache backend: %v\n", err)
		os.Exit(1)
	}
	sink, err := metrics.NewPrometheusSink(prometheus.NewRegistry())
	if err != nil {
		fmt.Printf("Error registering metrics: %v\n", err)
		os.Exit(1)
	}
	opts := append(settings.Options(),
		permit.WithCacheBackend(backend),
		permit.WithMetricsSink(sink),
		permit.WithLogger(newLogger(settings.LogFormat)),
	)
	r, err := permit.NewResolverFromConfig(ctx, cfg, opts...)
	if err != nil {
		cleanup()
		fmt.Printf("Error building resolver: %v\n", err)
		os.Exit(1)
	}
	return r, cleanup
}

func cacheBackend(s *permit.Settings, engine permit.EngineConfig) (permit.CacheBackend, func(), error) {
	switch s.CacheBackend {
	case permit.CacheBackendRistretto:
		c, err := stores.NewRistrettoCache(stores.RistrettoConfig{
			NumCounters: engine.RistrettoNumCounter,
			MaxCost:     engine.RistrettoMaxCost,
			BufferItems: engine.RistrettoBuffer,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case permit.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		return stores.NewRedisCache(client, s.RedisPrefix), func() { _ = client.Close() }, nil
	default:
		return permit.NewMemoryCache(), func() {}, nil
	}
}

func newLogger(format string) logger.Logger {
	switch format {
	case "slog":
		return logger.NewSLogLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)), "component", "permit")
	case "none":
		return logger.NewNullLogger()
	default:
		return logger.NewPhusluLogger()
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Error encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func loadConfig(filename string) (*permit.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".yaml", ".yml":
		loader := permit.NewConfigLoader()
		return loader.LoadYAML(data)
	case ".json":
		loader := permit.NewConfigLoader()
		return loader.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func saveConfig(cfg *permit.Config, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
