// Command carnotd runs a single Carnot consensus node: it loads a node
// key and committee topology from disk, wires the orchestrator around a
// libp2p transport and a badger-backed persister, and serves Prometheus
// metrics until interrupted. Flag/command layout follows
// cmd/consensus/main.go's pflag-plus-typed-defaults style, simplified
// since this repository has no analogue of flow-go's cmd.FlowNodeBuilder
// dependency-injection framework.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/multiformats/go-multiaddr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/carnot-network/carnot/carnot"
	"github.com/carnot-network/carnot/config"
	"github.com/carnot-network/carnot/crypto"
	"github.com/carnot-network/carnot/mempool"
	"github.com/carnot-network/carnot/metrics"
	"github.com/carnot-network/carnot/network"
	"github.com/carnot-network/carnot/notifications"
	"github.com/carnot-network/carnot/orchestrator"
	"github.com/carnot-network/carnot/overlay"
	"github.com/carnot-network/carnot/persister"
)

func main() {
	v := viper.New()

	root := &cobra.Command{
		Use:   "carnotd",
		Short: "run a Carnot consensus node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}
	config.RegisterFlags(root.Flags())
	if err := v.BindPFlags(root.Flags()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	v.SetEnvPrefix("carnot")
	v.AutomaticEnv()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	priv, self, err := loadNodeKey(cfg.NodeKeyPath)
	if err != nil {
		return fmt.Errorf("could not load node key: %w", err)
	}
	log.Info().Str("node", self.String()).Msg("loaded node identity")

	topo, err := loadTopology(cfg.CommitteeFile)
	if err != nil {
		return fmt.Errorf("could not load committee file: %w", err)
	}
	tree := overlay.NewTree(self, topo.layout)

	store, err := persister.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("could not open persister: %w", err)
	}
	defer store.Close()

	highQC, err := store.GetLocalHighQC()
	if err != nil {
		return fmt.Errorf("could not recover local high qc: %w", err)
	}
	highestVoted, err := store.GetHighestVotedView()
	if err != nil {
		return fmt.Errorf("could not recover highest voted view: %w", err)
	}
	node := carnot.Recover(self, tree, highQC, highestVoted)

	listenAddr, err := multiaddr.NewMultiaddr(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("could not parse listen address: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter, err := network.Start(ctx, self, listenAddr, topo, log)
	if err != nil {
		return fmt.Errorf("could not start network node: %w", err)
	}
	defer adapter.Stop()

	pool := mempool.New(int(cfg.MempoolLimit))
	beacon := mempool.NewHappyBeacon(node.GenesisBlock().ID[:])
	collector := metrics.NewCollector()
	consumer := notifications.Consumer(notifications.NewDistributor(collector))

	signer := crypto.NewEd25519Signer(priv)
	_ = signer // a future ingress-signing pass wires this into processVote/processTimeout/processNewView, see DESIGN.md

	orch := orchestrator.New(node, adapter, pool, beacon, store, consumer, cfg.LocalTimeout, log)
	exit, done := orch.Start()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info().Msg("shutting down")
	case <-ctx.Done():
	}
	exit()
	<-done
	return nil
}

func serveMetrics(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// loadNodeKey reads a single hex-encoded ed25519 private key from path
// and derives this node's carnot.NodeId from its public half.
func loadNodeKey(path string) (ed25519.PrivateKey, carnot.NodeId, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, carnot.NodeId{}, err
	}
	keyHex := strings.TrimSpace(string(raw))
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, carnot.NodeId{}, fmt.Errorf("could not decode node key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, carnot.NodeId{}, fmt.Errorf("node key: expected %d bytes, got %d", ed25519.PrivateKeySize, len(keyBytes))
	}
	priv := ed25519.PrivateKey(keyBytes)
	pub := priv.Public().(ed25519.PublicKey)
	var id carnot.NodeId
	copy(id[:], pub)
	return priv, id, nil
}
