package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

type storeFlags struct {
	kind string
	path string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "store", "", "store backend: memory|sqlite|badger (default from config)")
	cmd.Flags().StringVar(&f.path, "db-path", "", "sqlite database file or badger directory (default from config)")
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bitgactl",
		Short:         "Run and inspect bit-genome genetic algorithm runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file")

	root.AddCommand(
		newRunCommand(),
		newRunsCommand(),
		newHistoryCommand(),
		newExportCommand(),
		newDecodeCommand(),
	)
	return root
}
