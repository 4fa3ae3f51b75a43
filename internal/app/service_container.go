package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"shieldswap-client/internal/clients"
	"shieldswap-client/internal/config"
	"shieldswap-client/internal/db"
	"shieldswap-client/internal/repository"
	"shieldswap-client/internal/services"
	"shieldswap-client/internal/zkhash"
)

// ServiceContainer wires repositories, chain clients and services once at
// startup. Everything hangs off it so shutdown can unwind in order.
type ServiceContainer struct {
	// Database (nil in ephemeral mode)
	DB *gorm.DB

	// Repositories
	NoteRepo     repository.NoteRepository
	SnapshotRepo repository.SnapshotRepository

	// Clients
	NATSClient  *clients.NATSClient
	StatusHub   *clients.StatusHub
	Prover      *clients.ProverClient
	PoolClients map[string]*clients.PoolClient

	// Core services
	Hasher        zkhash.Hasher
	NoteService   *services.NoteService
	Synchronizers map[string]*services.TreeSyncService
	ProofServices map[string]*services.ProofService
	Scheduler     *services.SchedulerService
}

// Global service container instance
var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the container exactly once. Failures in
// required pieces abort startup; optional pieces (NATS, prover) degrade to
// disabled with a log line.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		logrus.Info("Initializing service container")

		container := &ServiceContainer{
			PoolClients:   make(map[string]*clients.PoolClient),
			Synchronizers: make(map[string]*services.TreeSyncService),
			ProofServices: make(map[string]*services.ProofService),
			Hasher:        zkhash.NewMiMC(),
		}

		if err := container.initStores(cfg); err != nil {
			initErr = fmt.Errorf("failed to initialize stores: %w", err)
			return
		}
		container.initClients(cfg)
		if err := container.initNetworks(ctx, cfg); err != nil {
			initErr = fmt.Errorf("failed to initialize networks: %w", err)
			return
		}
		container.initServices(cfg)

		Container = container
		logrus.Info("Service container initialized")
	})

	return Container, initErr
}

// initStores opens the note store and the tree snapshot store. Notes live
// in Postgres when a database is configured, otherwise in memory for the
// lifetime of the process.
func (c *ServiceContainer) initStores(cfg *config.Config) error {
	if cfg.Database.Enabled {
		if err := db.InitDB(); err != nil {
			return err
		}
		c.DB = db.DB
		c.NoteRepo = repository.NewNoteRepository(c.DB)
		logrus.Info("Note store: postgres")
	} else {
		c.NoteRepo = repository.NewMemoryNoteRepository()
		logrus.Warn("Note store: in-memory (notes are lost on restart)")
	}

	snapshotPath := filepath.Join(cfg.Sync.DataDir, "tree")
	snapshots, err := repository.NewSnapshotRepository(snapshotPath)
	if err != nil {
		return fmt.Errorf("open snapshot store %s: %w", snapshotPath, err)
	}
	c.SnapshotRepo = snapshots
	logrus.WithField("path", snapshotPath).Info("Tree snapshot store opened")
	return nil
}

// initClients connects the optional event fan-out and the prover.
func (c *ServiceContainer) initClients(cfg *config.Config) {
	c.StatusHub = clients.NewStatusHub()

	if cfg.NATS.URL == "" {
		logrus.Info("NATS not configured, event publishing disabled")
	} else {
		natsClient, err := clients.NewNATSClient(cfg.NATS)
		if err != nil {
			logrus.WithError(err).Warn("NATS connection failed, continuing without event publishing")
		} else {
			c.NATSClient = natsClient
			logrus.WithField("url", cfg.NATS.URL).Info("NATS client connected")
		}
	}

	if cfg.Prover.URL == "" {
		logrus.Info("Prover not configured, swap proving disabled")
	} else {
		c.Prover = clients.NewProverClient(cfg.Prover.URL, time.Duration(cfg.Prover.TimeoutSeconds)*time.Second)
		logrus.WithField("url", cfg.Prover.URL).Info("Prover client configured")
	}
}

// initNetworks dials every enabled network and restores its tree from the
// latest snapshot.
func (c *ServiceContainer) initNetworks(ctx context.Context, cfg *config.Config) error {
	for name, network := range cfg.Networks {
		if !network.Enabled {
			continue
		}

		pool, err := clients.NewPoolClient(network.RPCEndpoint, network.PoolAddress)
		if err != nil {
			return fmt.Errorf("dial network %s: %w", name, err)
		}
		c.PoolClients[name] = pool

		sync := services.NewTreeSyncService(
			network,
			pool,
			c.Hasher,
			c.SnapshotRepo,
			c.NoteRepo,
			c.NATSClient,
			c.StatusHub,
		)
		if err := sync.Load(ctx); err != nil {
			return fmt.Errorf("restore tree for network %s: %w", name, err)
		}
		c.Synchronizers[name] = sync

		logrus.WithFields(logrus.Fields{
			"network":  name,
			"chain_id": network.ChainID,
			"pool":     network.PoolAddress,
			"height":   network.TreeHeight,
		}).Info("Network initialized")
	}

	if len(c.Synchronizers) == 0 {
		return fmt.Errorf("no enabled networks in config")
	}
	return nil
}

// initServices builds the note, proof and scheduler services on top of the
// stores and synchronizers.
func (c *ServiceContainer) initServices(cfg *config.Config) {
	c.NoteService = services.NewNoteService(c.NoteRepo, c.Hasher, c.NATSClient, c.StatusHub)

	var provider services.ProofProvider
	if c.Prover != nil {
		provider = c.Prover
	}
	for name, sync := range c.Synchronizers {
		c.ProofServices[name] = services.NewProofService(c.NoteRepo, sync, c.Hasher, provider)
	}

	interval := time.Duration(cfg.Sync.IntervalSeconds) * time.Second
	c.Scheduler = services.NewSchedulerService(c.Synchronizers, interval)
	if cfg.Sync.AutoStart {
		c.Scheduler.Start()
		logrus.WithField("interval", interval).Info("Sync scheduler started")
	} else {
		logrus.Info("Sync scheduler created but not started (sync.autoStart is false)")
	}
}

// Cleanup unwinds the container: scheduler first so no sync is mid-flight,
// then transports, then stores.
func (c *ServiceContainer) Cleanup() {
	logrus.Info("Cleaning up service container")

	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.StatusHub != nil {
		c.StatusHub.CloseAll()
	}
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	for name, pool := range c.PoolClients {
		pool.Close()
		logrus.WithField("network", name).Debug("Pool client closed")
	}
	if c.SnapshotRepo != nil {
		if err := c.SnapshotRepo.Close(); err != nil {
			logrus.WithError(err).Warn("Snapshot store close failed")
		}
	}
	if c.DB != nil {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Database close failed")
		}
	}

	logrus.Info("Service container cleaned up")
}
