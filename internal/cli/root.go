// Package cli defines the toypay command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/devrev/toypay/internal/config"
)

// options holds flags shared by every command
type options struct {
	configPath string
	v          *viper.Viper
}

// NewRootCommand builds the toypay command tree
func NewRootCommand() *cobra.Command {
	opts := &options{v: viper.New()}

	root := &cobra.Command{
		Use:   "toypay <transactions.csv>",
		Short: "Replay a transaction stream and print the final account balances",
		Long: `toypay reads deposits, withdrawals, disputes, resolves and chargebacks
from a CSV file, applies them in order and writes one CSV row per client
account to stdout.

Input columns:  type, client, tx, amount
Output columns: client, available, held, total, locked`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedger(cmd, opts, args[0])
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	flags.Int("partitions", 0, "Number of storage partitions (0 = max(4, CPUs))")
	flags.Int("capacity", 0, "Transaction history capacity per partition")
	flags.Int("workers", 0, "Dispatch workers (<= 1 dispatches sequentially)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (json, console)")
	flags.Bool("metrics", false, "Serve Prometheus metrics while running")
	flags.Int("metrics-port", 0, "Port for the metrics endpoint")

	bindFlag(opts.v, "partitions.count", root, "partitions")
	bindFlag(opts.v, "partitions.transaction_capacity", root, "capacity")
	bindFlag(opts.v, "engine.workers", root, "workers")
	bindFlag(opts.v, "logging.level", root, "log-level")
	bindFlag(opts.v, "logging.format", root, "log-format")
	bindFlag(opts.v, "metrics.enabled", root, "metrics")
	bindFlag(opts.v, "metrics.port", root, "metrics-port")

	root.AddCommand(newConfigCommand(opts))
	root.AddCommand(newVersionCommand())

	return root
}

// bindFlag binds a flag to a config key. viper only uses the flag value when
// the flag was set, so unset flags never mask file or env values.
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

func (o *options) load() (*config.Config, error) {
	return config.Load(o.configPath, o.v)
}

// newLogger initializes the zap logger. Logs go to stderr; stdout carries
// the account snapshot.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
