// Package config loads a carnotd node's runtime configuration from
// flags and environment variables (no config file is read), following
// the flag-registration style of cmd/consensus/main.go's ExtraFlags
// block (pflag.FlagSet populated with typed defaults) layered on
// spf13/viper for the file/env sources flow-go's own bespoke
// cmd.FlowNodeBuilder otherwise hand-rolls.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is every knob a running carnotd node needs, beyond the
// committee membership file it loads separately at startup.
type Config struct {
	// NodeKeyPath points at the file holding this node's ed25519
	// private key, as a single hex-encoded key.
	NodeKeyPath string
	// CommitteeFile points at the file describing the tree overlay's
	// committee layout: one "<hex node id> <libp2p multiaddr>" pair per
	// line, grouped into committees by blank-line-separated sections,
	// root committee first.
	CommitteeFile string
	// DataDir is where the badger-backed persister keeps its database.
	DataDir string
	// ListenAddr is the libp2p multiaddr this node listens on.
	ListenAddr string
	// BootstrapPeers lists multiaddrs given on the command line. carnotd
	// does not dial them and runs no mDNS discovery; peers are reached
	// only through the addresses in CommitteeFile.
	BootstrapPeers []string
	// LocalTimeout is the per-view timer duration before a node casts a
	// Timeout and escalates toward a TimeoutQc.
	LocalTimeout time.Duration
	// MempoolLimit bounds the number of pending transactions retained.
	MempoolLimit uint
	// MetricsAddr is the address the Prometheus /metrics endpoint binds,
	// empty to disable.
	MetricsAddr string
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string
}

// RegisterFlags adds every Config field to flags with its default
// value, so a cobra command can call this from its own flag set and
// bind it straight into viper.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("node-key", "", "path to this node's hex-encoded ed25519 private key")
	flags.String("committee-file", "", "path to the committee layout file")
	flags.String("data-dir", "./carnot-data", "directory for the badger-backed persister")
	flags.String("listen-addr", "/ip4/0.0.0.0/tcp/0", "libp2p listen multiaddr")
	flags.StringSlice("bootstrap-peers", nil, "multiaddrs of bootstrap peers (read into the config, not dialed)")
	flags.Duration("local-timeout", 30*time.Second, "per-view local timeout before escalating")
	flags.Uint("mempool-limit", 50000, "maximum number of pending transactions retained")
	flags.String("metrics-addr", ":2112", "address the Prometheus endpoint binds, empty to disable")
	flags.String("log-level", "info", "zerolog level: debug, info, warn, error")
}

// Load reads every RegisterFlags-registered key out of v (already bound
// to the command's flags and environment by the caller) into a Config.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		NodeKeyPath:    v.GetString("node-key"),
		CommitteeFile:  v.GetString("committee-file"),
		DataDir:        v.GetString("data-dir"),
		ListenAddr:     v.GetString("listen-addr"),
		BootstrapPeers: v.GetStringSlice("bootstrap-peers"),
		LocalTimeout:   v.GetDuration("local-timeout"),
		MempoolLimit:   v.GetUint("mempool-limit"),
		MetricsAddr:    v.GetString("metrics-addr"),
		LogLevel:       v.GetString("log-level"),
	}
	if cfg.NodeKeyPath == "" {
		return Config{}, fmt.Errorf("--node-key is required")
	}
	if cfg.CommitteeFile == "" {
		return Config{}, fmt.Errorf("--committee-file is required")
	}
	return cfg, nil
}
