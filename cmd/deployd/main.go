package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gleb-Shall/full-project/internal/deploy"
	"github.com/Gleb-Shall/full-project/internal/docker"
	httpx "github.com/Gleb-Shall/full-project/internal/http"
	"github.com/Gleb-Shall/full-project/internal/ingress"
	"github.com/Gleb-Shall/full-project/internal/project"
	"github.com/Gleb-Shall/full-project/internal/registry"
	"github.com/Gleb-Shall/full-project/pkg/config"
	"github.com/Gleb-Shall/full-project/pkg/logger"
)

func main() {
	cfg := config.LoadDeployConfig()
	log := logger.New("deployd", logger.ParseLevel(cfg.LogLevel))

	mode, err := deploy.ParseMode(cfg.Mode)
	if err != nil {
		log.Error("invalid deploy mode", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dockerClient, err := docker.New(cfg.DockerHost)
	if err != nil {
		log.Error("failed to create docker client", "error", err)
		os.Exit(1)
	}
	defer dockerClient.Close()

	if err := dockerClient.Ping(ctx); err != nil {
		log.Error("docker ping failed", "error", err)
		os.Exit(1)
	}

	projects, err := project.New(cfg.Workdir, log)
	if err != nil {
		log.Error("project store init failed", "error", err, "workdir", cfg.Workdir)
		os.Exit(1)
	}

	store, err := registry.Open(cfg.RegistryPath, log)
	if err != nil {
		log.Error("registry init failed", "error", err, "path", cfg.RegistryPath)
		os.Exit(1)
	}
	defer store.Close()

	var routes deploy.RoutePublisher
	if mode == deploy.ModeDirect {
		routes = ingress.NewPublisher(ingress.Config{
			FragmentDir:    cfg.FragmentDir,
			SitesAvailable: cfg.SitesAvailable,
			SitesEnabled:   cfg.SitesEnabled,
			Domain:         cfg.Domain,
		}, ingress.DefaultReloaders(dockerClient, cfg.NginxContainer), log)
	}

	deploySvc := deploy.NewService(dockerClient, projects, store, routes, deploy.Options{
		Mode:         mode,
		StageDir:     cfg.StageDir,
		BuildTimeout: cfg.BuildTimeout,
		StopTimeout:  cfg.StopTimeout,
		StartTimeout: cfg.StartTimeout,
	}, log)

	router := httpx.New(log, deploySvc, httpx.Config{
		Mode:     mode,
		Domain:   cfg.Domain,
		UseHTTPS: cfg.UseHTTPS,
		Token:    cfg.DeployToken,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("deploy server starting", "addr", cfg.Addr, "mode", string(mode))
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("deploy server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
