package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	"github.com/shawn/tankwatch/internal/api"
	"github.com/shawn/tankwatch/internal/auth"
	"github.com/shawn/tankwatch/internal/config"
	"github.com/shawn/tankwatch/internal/contacts"
	"github.com/shawn/tankwatch/internal/dispatch"
	"github.com/shawn/tankwatch/internal/lock"
	"github.com/shawn/tankwatch/internal/reconciler"
	"github.com/shawn/tankwatch/internal/registry"
	"github.com/shawn/tankwatch/internal/settings"
	"github.com/shawn/tankwatch/internal/sophia"
	"github.com/shawn/tankwatch/internal/webhook"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	localMode := os.Getenv("LOCAL_MODE") == "true" || cfg.DynamoDB.Endpoint != ""

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// AWS DynamoDB
	awsOptFns := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.DynamoDB.Region)}
	if localMode {
		awsOptFns = append(awsOptFns, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			getenv("AWS_ACCESS_KEY_ID", "test"),
			getenv("AWS_SECRET_ACCESS_KEY", "test"),
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOptFns...)
	if err != nil {
		slog.Error("load AWS config", "err", err)
		os.Exit(1)
	}
	var dynamoOpts []func(*dynamodb.Options)
	if endpoint := cfg.DynamoDB.Endpoint; endpoint != "" {
		dynamoOpts = append(dynamoOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	db := dynamodb.NewFromConfig(awsCfg, dynamoOpts...)
	if localMode {
		if err := registry.CreateTable(ctx, db, cfg.DynamoDB.Table); err != nil {
			slog.Error("create local table", "table", cfg.DynamoDB.Table, "err", err)
			os.Exit(1)
		}
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	dir := contacts.NewRedis(rdb)
	reg := registry.New(registry.NewDynamo(db, cfg.DynamoDB.Table), dir)
	store := settings.NewRedis(rdb)

	tokens := cfg.Auth.TokenOwners()
	if len(tokens) == 0 {
		slog.Warn("no API tokens configured, any bearer token is accepted", "owner", auth.DefaultOwner)
	}
	authn := auth.NewAuthenticator(tokens)
	keys := auth.NewKeyRing(integrationKeys(cfg))

	d := dispatch.New(reg, dir, keys, dispatch.Config{
		Timeout:      cfg.Dispatch.Timeout,
		SlingFlowURL: cfg.Integrations.SlingFlow.URL,
	})

	var chat *sophia.Client
	if cfg.Integrations.SophiaAI.ChatURL != "" {
		chat = sophia.New(cfg.Integrations.SophiaAI.ChatURL, keys)
	}

	// Credentials rotate without a restart; everything else needs one.
	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, func(next *config.Config) {
				authn.SetTokens(next.Auth.TokenOwners())
				keys.Set(integrationKeys(next))
			})
			if err != nil {
				slog.Error("config watch stopped", "err", err)
			}
		}()
	}

	if cfg.Reconciler.Interval > 0 {
		rec := reconciler.New(reg, dir, lock.New(rdb), cfg.Reconciler.Interval)
		go rec.Run(ctx)
	}

	h := api.New(reg, store, d, chat, authn)
	port := strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("tankwatch listening", "port", port, "local_mode", localMode, "table", cfg.DynamoDB.Table)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}

func integrationKeys(cfg *config.Config) map[webhook.Integration]string {
	return map[webhook.Integration]string{
		webhook.IntegrationSlingFlow: cfg.Integrations.SlingFlow.APIKey(),
		webhook.IntegrationSophiaAI:  cfg.Integrations.SophiaAI.APIKey(),
	}
}
