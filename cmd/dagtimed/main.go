// Command dagtimed runs one DAG-time participant set: a configured
// round/tick state machine, optionally bridged over libp2p GossipSub
// and anchored to a drand beacon, with a read-only HTTP inspection
// API.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/systemshift/dagvdf/beacon"
	"github.com/systemshift/dagvdf/message"
	"github.com/systemshift/dagvdf/network"
	"github.com/systemshift/dagvdf/node"
	"github.com/systemshift/dagvdf/round"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "dagtimed",
		Short: "Run a DAG-time round/tick participant set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, configFile)
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (flags take precedence over it)")

	flags := root.Flags()
	flags.StringSlice("processes", []string{"p0", "p1", "p2"}, "process ids")
	flags.StringSlice("byzantine", nil, "process ids to run as byzantine")
	flags.Uint64("twb", 4, "well-behaved VDF period, in ticks")
	flags.Uint64("tadv", 1, "byzantine VDF period, in ticks")
	flags.Uint64("max-tick", 0, "stop after this many ticks (0 = unbounded)")
	flags.String("store-path", "", "leveldb directory for durable storage (empty = in-memory)")

	flags.Bool("network", false, "bridge messages over libp2p GossipSub")
	flags.Int("port", 0, "listen port (0 = random)")
	flags.String("peer", "", "peer multiaddr to dial on startup")
	flags.String("topic", "dagtime", "GossipSub topic")

	flags.Bool("beacon", false, "anchor accepted rounds to a drand beacon")
	flags.String("drand-url", "https://api.drand.sh", "drand HTTP endpoint")
	flags.String("drand-chain-hash", "", "drand chain hash, hex-encoded")
	flags.String("drand-public-key", "", "drand group public key, hex-encoded")
	flags.Duration("drand-interval", 10*time.Second, "drand polling interval")
	flags.Uint64("anchor-every", 0, "anchor every N accepted rounds (0 disables)")

	flags.String("http-addr", "", "address for the read-only inspection API (empty disables it)")

	viper.BindPFlags(flags)

	return root
}

func run(cmd *cobra.Command, configFile string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	n, err := node.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	defer n.Close()

	logger.Info("node started",
		zap.Strings("processes", processStrings(cfg.Round.Processes)),
		zap.Strings("byzantine", processStrings(cfg.Round.Byzantine)),
		zap.Uint64("t_wb", cfg.Round.TWB),
		zap.Uint64("t_adv", cfg.Round.TAdv),
		zap.Bool("network", cfg.EnableNetwork),
		zap.Bool("beacon", cfg.EnableBeacon),
		zap.String("http_addr", cfg.HTTPAddr))

	if err := n.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("node run: %w", err)
	}
	return nil
}

func loadConfig() (node.Config, error) {
	processes := toProcesses(viper.GetStringSlice("processes"))
	byzantine := toProcesses(viper.GetStringSlice("byzantine"))

	cfg := node.Config{
		Round: round.Config{
			Processes: processes,
			Byzantine: byzantine,
			TWB:       viper.GetUint64("twb"),
			TAdv:      viper.GetUint64("tadv"),
			MaxTick:   viper.GetUint64("max-tick"),
		},
		StorePath:     viper.GetString("store-path"),
		EnableNetwork: viper.GetBool("network"),
		Network: network.Config{
			Port:  viper.GetInt("port"),
			Peer:  viper.GetString("peer"),
			Topic: viper.GetString("topic"),
		},
		EnableBeacon:   viper.GetBool("beacon"),
		BeaconInterval: viper.GetDuration("drand-interval"),
		AnchorEvery:    viper.GetUint64("anchor-every"),
		HTTPAddr:       viper.GetString("http-addr"),
	}

	if cfg.EnableBeacon {
		chainHash, err := hex.DecodeString(viper.GetString("drand-chain-hash"))
		if err != nil {
			return node.Config{}, fmt.Errorf("decoding drand-chain-hash: %w", err)
		}
		pubKey, err := hex.DecodeString(viper.GetString("drand-public-key"))
		if err != nil {
			return node.Config{}, fmt.Errorf("decoding drand-public-key: %w", err)
		}
		cfg.Beacon = beacon.Config{
			URL:       viper.GetString("drand-url"),
			ChainHash: chainHash,
			PublicKey: pubKey,
			Period:    viper.GetDuration("drand-interval"),
		}
	}

	return cfg, nil
}

func toProcesses(ids []string) []message.Process {
	out := make([]message.Process, 0, len(ids))
	for _, id := range ids {
		out = append(out, message.Process(id))
	}
	return out
}

func processStrings(ids []message.Process) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
