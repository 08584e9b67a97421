package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mini-lb/config"
	"mini-lb/server"
)

var (
	serveListen    string
	serveAdvertise string
	serveServices  []string
	serveName      string
	serveWeight    int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an echo backend that registers itself in etcd",
	Long: `Run an HTTP backend that answers every request with a JSON description
of it. With an etcd registry the backend announces itself for each --service
and withdraws on Ctrl+C, which makes it handy for trying out balancing and
failover locally.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:8080", "Listen address")
	serveCmd.Flags().StringVar(&serveAdvertise, "advertise", "", "Address to register (default: listen address)")
	serveCmd.Flags().StringSliceVar(&serveServices, "service", nil, "Service name to register under (repeatable)")
	serveCmd.Flags().StringVar(&serveName, "name", "", "Backend name reported in responses (default: advertise address)")
	serveCmd.Flags().IntVar(&serveWeight, "weight", 1, "Instance weight")
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	name := serveName
	if name == "" {
		name = serveAdvertise
	}
	if name == "" {
		name = serveListen
	}
	opts := []server.Option{
		server.WithLogger(e.logger),
		server.WithInstance(serveAdvertise, serveWeight, e.cfg.Registry.LeaseTTL),
	}
	if e.cfg.Registry.Type == config.RegistryEtcd && len(serveServices) > 0 {
		opts = append(opts, server.WithRegistry(e.discovery, serveServices...))
	}
	svr := server.NewServer(server.EchoHandler(name), opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() { errc <- svr.Serve("tcp", serveListen) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svr.Shutdown(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errc
}
