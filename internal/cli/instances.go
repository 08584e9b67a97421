package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var instancesCmd = &cobra.Command{
	Use:   "instances SERVICE",
	Short: "List the discovered instances of a service",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstances,
}

func init() {
	rootCmd.AddCommand(instancesCmd)
}

func runInstances(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Registry.DialTimeout)
	defer cancel()
	insts, err := e.discovery.Discover(ctx, args[0])
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDR\tWEIGHT\tVERSION")
	for _, inst := range insts {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", inst.Addr, inst.Weight, inst.Version)
	}
	return tw.Flush()
}
