package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"propchain/config"
	"propchain/core"
	"propchain/core/types"
	"propchain/storage"
	"propchain/storage/eventlog"
)

const configPathEnv = "PROPCHAIN_CONFIG"

type rootOptions struct {
	configPath string
	caller     string
}

// app is the marketplace opened against the configured data dir for the
// duration of one command.
type app struct {
	cfg    *config.Config
	db     storage.Database
	events *eventlog.Log
	market *core.Marketplace
}

func (a *app) Close() {
	if a.events != nil {
		_ = a.events.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "propctl",
		Short:         "Operate a local property marketplace data directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultConfig := strings.TrimSpace(os.Getenv(configPathEnv))
	if defaultConfig == "" {
		defaultConfig = "./propd.toml"
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "Path to the configuration file")
	root.PersistentFlags().StringVar(&opts.caller, "as", "", "Principal (hex address) performing the operation")

	root.AddCommand(
		newPriceCmd(opts),
		newPropertyCmd(opts),
		newLeaseCmd(opts),
		newTxCmd(opts),
		newEscrowCmd(opts),
		newBankCmd(opts),
		newEventsCmd(opts),
	)
	return root
}

func (o *rootOptions) open() (*app, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	a := &app{cfg: cfg}
	a.db, err = storage.Open(cfg.StorageBackend, cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	a.events, err = eventlog.Open(cfg.EventLogDSN())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open event log: %w", err)
	}
	vault, err := cfg.Vault()
	if err != nil {
		a.Close()
		return nil, err
	}
	policy := cfg.Pricing.Policy()
	a.market, err = core.NewMarketplace(core.Options{
		DB:      a.db,
		Emitter: a.events,
		Pauses:  cfg.Pauses(),
		Policy:  &policy,
		Vault:   vault,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// withApp opens the marketplace, runs fn and closes it again.
func (o *rootOptions) withApp(fn func(*app) error) error {
	a, err := o.open()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (o *rootOptions) callerPrincipal() (types.Principal, error) {
	if strings.TrimSpace(o.caller) == "" {
		return types.Principal{}, fmt.Errorf("--as is required for this command")
	}
	return types.ParsePrincipal(o.caller)
}

func parseAmount(flag, raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("--%s must be a base-10 integer, got %q", flag, raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("--%s must not be negative", flag)
	}
	return value, nil
}

func parsePrincipalFlag(flag, raw string) (types.Principal, error) {
	p, err := types.ParsePrincipal(raw)
	if err != nil {
		return types.Principal{}, fmt.Errorf("--%s: %w", flag, err)
	}
	return p, nil
}

func parseIDFlag(flag, raw string) (types.ID, error) {
	id, err := types.ParseID(raw)
	if err != nil {
		return types.ID{}, fmt.Errorf("--%s: %w", flag, err)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
