package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rossjameslee/hermes-api-demo/api"
	"github.com/rossjameslee/hermes-api-demo/auth"
	"github.com/rossjameslee/hermes-api-demo/config"
	"github.com/rossjameslee/hermes-api-demo/ebay"
	"github.com/rossjameslee/hermes-api-demo/httpclient"
	"github.com/rossjameslee/hermes-api-demo/idempotency"
	"github.com/rossjameslee/hermes-api-demo/jobs"
	"github.com/rossjameslee/hermes-api-demo/llm"
	"github.com/rossjameslee/hermes-api-demo/pipeline"
	"github.com/rossjameslee/hermes-api-demo/supabase"
)

func main() {
	initLog()
	if err := run(os.Args[1:]); err != nil {
		log.WithField("err", err).Fatal("server crashed")
	}
}

func initLog() {
	log.SetFormatter(&log.JSONFormatter{})
	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	var outbound = httpclient.New(
		time.Duration(cfg.HTTP.TimeoutSecs)*time.Second,
		time.Duration(cfg.HTTP.ConnectSecs)*time.Second,
	)

	var llmClient = llm.NewClient(outbound, llm.Config{
		GatewayURL: cfg.LLM.GatewayURL,
		APIKey:     cfg.LLM.APIKey,
		Function:   cfg.LLM.Function,
		Model:      cfg.LLM.Model,
	})
	var ebayClient = ebay.NewClient(outbound, cfg.Ebay.Env, cfg.Ebay.AppID, cfg.Ebay.CertID, cfg.Ebay.CategoryTreeID)
	var supabaseClient = supabase.NewClient(outbound, cfg.Supabase.URL, cfg.Supabase.ServiceKey)

	var pipelineConfig = pipeline.DefaultConfig()
	pipelineConfig.MaxImages = cfg.Pipeline.MaxImages
	pipelineConfig.ImageAllowlist = cfg.ImageAllowlist()

	var p = &pipeline.Pipeline{
		Config:         pipelineConfig,
		LLM:            llmClient,
		Ebay:           ebayClient,
		Supabase:       supabaseClient,
		RefreshToken:   cfg.Ebay.RefreshToken,
		NetworkEnabled: cfg.Ebay.EnableNetwork,
	}

	var buckets = auth.NewTokenBuckets(cfg.RateLimit.PerSec, cfg.RateLimit.Capacity)
	var authState = auth.NewState(cfg.Auth.DemoAPIKeys, buckets)
	var queue = jobs.NewQueue(p, cfg.Jobs.QueueCapacity)
	var store = idempotency.NewStore(
		cfg.Idempotency.RedisURL,
		time.Duration(cfg.Idempotency.TTLSecs)*time.Second,
	)

	var server = api.NewServer(cfg, p, queue, authState, store)
	var httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: server.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithField("addr", httpServer.Addr).Info("listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		queue.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !strings.Contains(err.Error(), "context canceled") {
		return err
	}
	return nil
}
