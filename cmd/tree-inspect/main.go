// Command tree-inspect prints the persisted commitment tree snapshots.
// With -network it also fetches the live on-chain root and reports whether
// the stored root still matches.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shieldswap-client/internal/clients"
	"shieldswap-client/internal/config"
	"shieldswap-client/internal/repository"
	"shieldswap-client/internal/zkhash"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	network := flag.String("network", "", "compare this network's snapshot against the chain")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	snapshotPath := filepath.Join(cfg.Sync.DataDir, "tree")
	snapshots, err := repository.NewSnapshotRepository(snapshotPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open snapshot store %s: %v\n", snapshotPath, err)
		os.Exit(1)
	}
	defer snapshots.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	list, err := snapshots.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list snapshots: %v\n", err)
		os.Exit(1)
	}

	if len(list) == 0 {
		fmt.Println("No tree snapshots persisted yet")
	}
	for _, snapshot := range list {
		fmt.Printf("chain %d pool %s\n", snapshot.ChainID, snapshot.PoolAddress)
		fmt.Printf("  height:            %d\n", snapshot.Height)
		fmt.Printf("  leaves:            %d\n", len(snapshot.Leaves))
		fmt.Printf("  last synced block: %d\n", snapshot.LastSyncedBlock)
		fmt.Printf("  root:              %s\n", snapshot.Root)
		fmt.Printf("  updated at:        %s\n", snapshot.UpdatedAt.Format(time.RFC3339))
		fmt.Println()
	}

	if *network == "" {
		return
	}

	netCfg, err := config.GetNetworkConfig(*network)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot inspect %q: %v\n", *network, err)
		os.Exit(1)
	}

	pool, err := clients.NewPoolClient(netCfg.RPCEndpoint, netCfg.PoolAddress)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to dial %s: %v\n", *network, err)
		os.Exit(1)
	}
	defer pool.Close()

	chainRoot, err := pool.CurrentRoot(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read on-chain root: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("on-chain root for %s: %s\n", *network, zkhash.ToDecimal(chainRoot))

	snapshot, err := snapshots.Get(ctx, netCfg.ChainID, netCfg.PoolAddress)
	if err != nil {
		fmt.Printf("no local snapshot for %s yet\n", *network)
		return
	}
	if snapshot.Root == zkhash.ToDecimal(chainRoot) {
		fmt.Println("local snapshot root MATCHES the chain")
	} else {
		fmt.Println("local snapshot root DIFFERS from the chain (run a sync)")
	}
}
