package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mini-lb/config"
	"mini-lb/registry"
)

var (
	registerWeight  int
	registerVersion string
	registerTTL     int64
)

var registerCmd = &cobra.Command{
	Use:   "register SERVICE ADDR",
	Short: "Announce an instance in etcd until interrupted",
	Long: `Register ADDR as an instance of SERVICE under a lease and keep the lease
alive until lbctl is interrupted; the instance is then deregistered.`,
	Args: cobra.ExactArgs(2),
	RunE: runRegister,
}

var deregisterCmd = &cobra.Command{
	Use:   "deregister SERVICE ADDR",
	Short: "Remove an instance from etcd",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeregister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(deregisterCmd)

	registerCmd.Flags().IntVar(&registerWeight, "weight", 1, "Instance weight for weighted_random")
	registerCmd.Flags().StringVar(&registerVersion, "version", "", "Instance version tag")
	registerCmd.Flags().Int64Var(&registerTTL, "ttl", 0, "Lease TTL in seconds (0 = registry.lease_ttl)")
}

func etcdEnv() (*env, error) {
	e, err := loadEnv()
	if err != nil {
		return nil, err
	}
	if e.cfg.Registry.Type != config.RegistryEtcd {
		e.close()
		return nil, fmt.Errorf("registry type is %q, register needs %q", e.cfg.Registry.Type, config.RegistryEtcd)
	}
	return e, nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	e, err := etcdEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ttl := registerTTL
	if ttl <= 0 {
		ttl = e.cfg.Registry.LeaseTTL
	}
	service, addr := args[0], args[1]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	inst := registry.ServiceInstance{Addr: addr, Weight: registerWeight, Version: registerVersion}
	if err := e.discovery.Register(ctx, service, inst, ttl); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registered %s as %s, press Ctrl+C to withdraw\n", addr, service)

	<-ctx.Done()
	dctx, cancel := context.WithTimeout(context.Background(), e.cfg.Registry.DialTimeout)
	defer cancel()
	if err := e.discovery.Deregister(dctx, service, addr); err != nil {
		e.logger.Warn("deregister failed", zap.Error(err))
	}
	return nil
}

func runDeregister(cmd *cobra.Command, args []string) error {
	e, err := etcdEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Registry.DialTimeout)
	defer cancel()
	if err := e.discovery.Deregister(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deregistered %s from %s\n", args[1], args[0])
	return nil
}
