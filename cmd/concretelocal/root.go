// The concretelocal command administers a local database file: table
// DDL, TTL configuration, bulk export/import and TTL sweeps. The data
// plane itself is a library; this tool only covers what an operator needs
// outside the embedding process.
package main

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tabeth/concretelocal/config"
	"github.com/tabeth/concretelocal/service"
	"github.com/tabeth/concretelocal/store"
)

var rootCmd = &cobra.Command{
	Use:   "concretelocal",
	Short: "local DynamoDB-style table store",
	Long: `concretelocal maintains DynamoDB-style tables in a single SQLite file.

Configuration comes from flags or environment variables with the
CONCRETELOCAL_ prefix (e.g. CONCRETELOCAL_PATH=/var/lib/app.db).`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("path", "concretelocal.db", "database file path")
	rootCmd.PersistentFlags().String("mode", string(config.ModeFile), "storage mode: file or memory")
	rootCmd.PersistentFlags().Duration("sweep-interval", time.Minute, "minimum spacing between TTL sweeps of one table")
	rootCmd.PersistentFlags().Duration("busy-timeout", 5*time.Second, "SQLite busy timeout")

	rootCmd.AddCommand(tablesCmd, ttlCmd, exportCmd, importCmd, sweepCmd, runsCmd)
}

// initConfig reads env files and environment variables if set.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("concretelocal")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// openService builds the engine from the resolved configuration. The
// caller must Close the returned store.
func openService(cmd *cobra.Command) (*service.Service, store.Store, error) {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return nil, nil, err
	}
	cfg := &config.Config{
		Path:          viper.GetString("path"),
		Mode:          config.Mode(viper.GetString("mode")),
		SweepInterval: viper.GetDuration("sweep-interval"),
		BusyTimeout:   viper.GetDuration("busy-timeout"),
	}
	st, err := store.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return service.New(st), st, nil
}
