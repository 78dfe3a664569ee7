package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SentiNet/internal/api"
	"SentiNet/internal/bridge"
	"SentiNet/internal/config"
	"SentiNet/internal/controller"
	"SentiNet/internal/model"
	"SentiNet/internal/navigator"
	"SentiNet/internal/sentinel"
	"SentiNet/internal/southbound"
	"SentiNet/internal/storage"
	"SentiNet/internal/topology"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	log.Println("Starting sn-controller...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// A topology that fails validation would misroute traffic; refuse to start.
	topo, err := topology.New(cfg.Topology)
	if err != nil {
		log.Fatalf("Invalid topology: %v", err)
	}

	var br model.Bridge
	if cfg.Bridge.Enabled {
		gw, err := bridge.NewGateway(cfg.Bridge)
		if err != nil {
			log.Fatalf("Failed to create bridge gateway: %v", err)
		}
		defer gw.Close()
		br = gw
	} else {
		log.Println("[BACKEND] Bridge disabled in config")
		br = bridge.Noop{}
	}

	var classifier model.Classifier
	switch cfg.Classifier.Mode {
	case "remote":
		rc, err := sentinel.NewRemoteClassifier(cfg.Classifier, cfg.Bridge.NATSURL)
		if err != nil {
			log.Fatalf("Failed to create remote classifier: %v", err)
		}
		defer rc.Close()
		classifier = rc
	case "threshold", "":
		classifier = sentinel.NewThresholdClassifier(cfg.Sentinel)
	default:
		log.Fatalf("Unknown classifier mode %q", cfg.Classifier.Mode)
	}

	var writer model.RecordWriter
	switch cfg.Storage.Type {
	case "csv":
		writer = storage.NewCSVWriter(cfg.Storage.CSVPath)
	case "clickhouse":
		writer, err = storage.NewClickHouseWriter(cfg.Storage.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to create ClickHouse writer: %v", err)
		}
	case "none", "":
	default:
		log.Fatalf("Unknown storage type %q", cfg.Storage.Type)
	}

	var nav *navigator.Navigator
	if cfg.Navigator.Enabled {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		nav = navigator.New(cfg.Navigator, rng)
	}

	ctrl, err := controller.New(cfg, topo, classifier, br, writer, nav)
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}
	ctrl.Start()

	sb, err := southbound.NewAdapter(cfg.Bridge.NATSURL, cfg.Bridge.SubjectPrefix+".of", ctrl)
	if err != nil {
		log.Fatalf("Failed to create southbound adapter: %v", err)
	}
	if err := sb.Start(); err != nil {
		log.Fatalf("Southbound adapter failed to start: %v", err)
	}
	defer sb.Close()

	apiServer := api.NewServer(cfg.API.ListenAddr, ctrl)
	apiServer.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping controller...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("API server forced to shutdown: %v", err)
	}

	ctrl.Stop()
	log.Println("Shutdown complete.")
}
