package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Layr-Labs/bip322-go/pkg/config"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/Layr-Labs/bip322-go/pkg/logger"
	"github.com/Layr-Labs/bip322-go/pkg/persistence"
	"github.com/Layr-Labs/bip322-go/pkg/persistence/badger"
	"github.com/Layr-Labs/bip322-go/pkg/persistence/memory"
	"github.com/Layr-Labs/bip322-go/pkg/persistence/redis"
	"github.com/Layr-Labs/bip322-go/pkg/server"
	"github.com/Layr-Labs/bip322-go/pkg/verifier"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "bip322-server",
		Usage: "BIP-322 message verification server",
		Description: `An HTTP service that verifies Bitcoin message signatures.

This server implements:
- BIP-322 simple verification for P2WPKH, P2SH-P2WPKH and single-key P2TR
- Legacy BIP-137 verification for 65-byte signatures
- Result caching in memory, Badger or Redis
- Witness decoding and address classification endpoints`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvBIP322Port},
			},
			&cli.StringFlag{
				Name:    "curve-provider",
				Usage:   fmt.Sprintf("secp256k1 backend: %s", strings.Join(crypto.ListProviders(), ", ")),
				Value:   crypto.ProviderBtcec,
				EnvVars: []string{config.EnvBIP322Provider},
			},
			&cli.StringFlag{
				Name:    "cache-type",
				Usage:   "Verification result cache: none, memory, badger or redis",
				Value:   config.CacheTypeMemory.String(),
				EnvVars: []string{config.EnvBIP322CacheType},
			},
			&cli.StringFlag{
				Name:    "cache-path",
				Usage:   "Data directory of the badger cache",
				Value:   config.DefaultCachePath,
				EnvVars: []string{config.EnvBIP322CachePath},
			},
			&cli.DurationFlag{
				Name:    "cache-ttl",
				Usage:   "Lifetime of cached results for badger and redis, 0 keeps them forever",
				Value:   config.DefaultCacheTTL,
				EnvVars: []string{config.EnvBIP322CacheTTL},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (host:port)",
				Value:   "localhost:6379",
				EnvVars: []string{config.EnvBIP322RedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvBIP322RedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvBIP322RedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for every Redis key",
				EnvVars: []string{config.EnvBIP322RedisPrefix},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Usage:   "Requests per second across all clients, 0 disables limiting",
				Value:   config.DefaultRateLimit,
				EnvVars: []string{config.EnvBIP322RateLimit},
			},
			&cli.IntFlag{
				Name:    "rate-burst",
				Usage:   "Token bucket size of the rate limiter",
				Value:   config.DefaultRateBurst,
				EnvVars: []string{config.EnvBIP322RateBurst},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvBIP322Debug},
			},
		},
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("debug")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseServerConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	provider, err := crypto.NewCurveProvider(cfg.CurveProvider)
	if err != nil {
		return err
	}

	cache, err := buildCache(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				l.Sugar().Warnw("Failed to close cache", "error", err)
			}
		}()
	}

	srv := server.NewServer(cfg, verifier.NewVerifier(provider, l), cache, l)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	l.Sugar().Infow("Available endpoints",
		"verify", "POST /verify",
		"witness", "POST /witness/decode",
		"address", "GET /address",
		"health", "GET /health")

	<-ctx.Done()
	l.Sugar().Infow("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func parseServerConfig(c *cli.Context) *config.ServerConfig {
	return &config.ServerConfig{
		Port:          c.Int("port"),
		CurveProvider: c.String("curve-provider"),
		CacheType:     config.CacheType(c.String("cache-type")),
		CachePath:     c.String("cache-path"),
		CacheTTL:      c.Duration("cache-ttl"),
		RedisAddress:  c.String("redis-address"),
		RedisPassword: c.String("redis-password"),
		RedisDB:       c.Int("redis-db"),
		RedisPrefix:   c.String("redis-key-prefix"),
		RateLimit:     c.Float64("rate-limit"),
		RateBurst:     c.Int("rate-burst"),
		Debug:         c.Bool("debug"),
	}
}

// buildCache returns nil for CacheTypeNone
func buildCache(cfg *config.ServerConfig, l *zap.Logger) (persistence.IVerificationCache, error) {
	switch cfg.CacheType {
	case config.CacheTypeNone:
		return nil, nil
	case config.CacheTypeMemory:
		return memory.NewMemoryCache(), nil
	case config.CacheTypeBadger:
		bc, err := badger.NewBadgerCache(cfg.CachePath, cfg.CacheTTL, l)
		if err != nil {
			return nil, err
		}
		return bc, nil
	case config.CacheTypeRedis:
		rc, err := redis.NewRedisCache(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
			TTL:       cfg.CacheTTL,
		}, l)
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unsupported cache type '%s'", cfg.CacheType)
	}
}
