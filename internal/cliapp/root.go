package cliapp

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"prtip/internal/config"
	coreerrors "prtip/internal/core/errors"
	"prtip/internal/pkg/logger"
)

var cfgFile string
var logLevel string

var rootCmd = &cobra.Command{
	Use:   "prtip",
	Short: "ProRT-IP: a high-throughput, stateless-capable network port scanner",
	Long: `prtip discovers reachable hosts, enumerates TCP/UDP port states, and
fingerprints services and operating systems, in the Nmap/Masscan lineage.

Examples:
  prtip scan -t 192.168.1.0/24 -p 1-1000 --variant sS --privileged
  prtip scan -t 10.0.0.5 -F --service-detect --oJ results.json
  prtip version`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initCLILogger(cmd)
	},
}

// Execute runs the root command, recovering from any panic so an internal
// bug surfaces as a plain-language message instead of a raw Go stack trace
// (spec §7: user-visible messages must not include stack traces).
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "prtip: unexpected internal error: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, coreerrors.UserMessage(err))
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	viper.AutomaticEnv()
	_ = viper.ReadInConfig() // absent config file is not an error: every flag has a default
}

func initCLILogger(cmd *cobra.Command) {
	level := "warn"
	if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
		level = flag.Value.String()
	} else if viper.IsSet("log.level") {
		level = viper.GetString("log.level")
	}

	logCfg := &config.LogConfig{
		Level:  level,
		Format: "text",
		Output: "stderr",
		Caller: false,
	}
	if _, err := logger.InitLogger(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "prtip: failed to init logger: %v\n", err)
	}
}

// Exit codes from spec.md §6: 0 success, 1 partial, 2 configuration error,
// 3 permission error, 4 resource error.
const (
	ExitSuccess      = 0
	ExitPartial      = 1
	ExitConfigError  = 2
	ExitPermission   = 3
	ExitResourceErr  = 4
)

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, coreerrors.ErrPrivilege):
		return ExitPermission
	case errors.Is(err, coreerrors.ErrNetwork), errors.Is(err, coreerrors.ErrTimeout):
		return ExitResourceErr
	case errors.Is(err, coreerrors.ErrConfig), errors.Is(err, coreerrors.ErrParse):
		return ExitConfigError
	default:
		return ExitConfigError
	}
}
