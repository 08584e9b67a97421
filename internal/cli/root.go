package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configPath  string
	metricsAddr string
	logLevel    string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lbctl",
	Short: "Load-balanced HTTP client for logical services",
	Long: `lbctl sends HTTP requests to logical services. The host part of a URL
names a service; lbctl picks a live instance through the service's load
balancer and retries failed attempts according to the service's retry policy.

Get started:
  lbctl call GET http://users/v1/users/1     Send a request
  lbctl instances users                      List discovered instances
  lbctl register users 10.0.0.5:8080         Announce an instance (etcd)
  lbctl serve --service users                Run an echo backend`,
	Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (overrides metrics.addr)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
}

// SetVersion sets the version info
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}
