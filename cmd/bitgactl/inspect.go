package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bitga/internal/config"
	"bitga/pkg/bitga"
)

func openClient(cmd *cobra.Command, f storeFlags) (*bitga.Client, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if f.kind != "" {
		cfg.Store.Kind = f.kind
	}
	if f.path != "" {
		cfg.Store.Path = f.path
	}
	return bitga.New(bitga.Options{StoreKind: cfg.Store.Kind, DBPath: cfg.Store.Path})
}

func newRunsCommand() *cobra.Command {
	var (
		store storeFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := openClient(cmd, store)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			runs, err := client.Runs(cmd.Context(), bitga.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tNAME\tSTARTED\tPOP\tGENS\tBITS\tSELECTOR\tBEST\tSTATUS")
			for _, run := range runs {
				status := string(run.Status)
				if status == "" {
					status = string(bitga.RunRunning)
					if run.Finished() {
						status = string(bitga.RunCompleted)
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\t%s\n",
					run.ID,
					run.Name,
					humanize.Time(run.StartedAt),
					humanize.Comma(int64(run.PopulationSize)),
					run.Generations,
					run.TotalGenerations,
					humanize.Comma(int64(run.BitsRequired)),
					run.Selector,
					humanize.Ftoa(run.BestScore),
					status,
				)
			}
			return w.Flush()
		},
	}
	store.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	var (
		store  storeFlags
		runID  string
		latest bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show per-generation statistics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := openClient(cmd, store)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			history, err := client.History(cmd.Context(), bitga.HistoryRequest{RunID: runID, Latest: latest, Limit: limit})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "GEN\tMIN\tAVG\tSTDDEV\tDIVERSITY\tMUTATION")
			for _, stats := range history {
				fmt.Fprintf(w, "%d\t%s\t%.4f\t%.4f\t%.4f\t%.4f\n",
					stats.Generation,
					humanize.Ftoa(stats.MinimumScore),
					stats.AverageScore,
					stats.ScoreStdDev,
					stats.Diversity,
					stats.MutationRate,
				)
			}
			return w.Flush()
		},
	}
	store.register(cmd)
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "use the most recent run")
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the last N generations (0 shows all)")
	return cmd
}

func newExportCommand() *cobra.Command {
	var (
		store  storeFlags
		runID  string
		latest bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a run's summary and generation series to a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := openClient(cmd, store)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			exported, err := client.Export(cmd.Context(), bitga.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run=%s dir=%s improvement=%s\n",
				exported.RunID, exported.Directory, humanize.Ftoa(exported.Summary.Improvement))
			return nil
		},
	}
	store.register(cmd)
	cmd.Flags().StringVar(&runID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&latest, "latest", false, "use the most recent run")
	cmd.Flags().StringVar(&outDir, "out", "exports", "output directory")
	return cmd
}

func newDecodeCommand() *cobra.Command {
	var bitCount int
	cmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Print the binary and hex forms of a hex chromosome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := bitga.ParseHex(args[0])
			if err != nil {
				return err
			}
			if bitCount > 0 {
				if bitCount > buf.BitCount() {
					return fmt.Errorf("--bits %d exceeds the %d bits given", bitCount, buf.BitCount())
				}
				clipped := bitga.NewBuffer(bitCount)
				buf.SubVector(clipped, 0, 0, bitCount)
				buf = clipped
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bits=%d ones=%d\n", buf.BitCount(), buf.OnesCount())
			fmt.Fprintf(out, "binary=%s\n", buf.String())
			fmt.Fprintf(out, "hex=%s\n", buf.HexString())
			return nil
		},
	}
	cmd.Flags().IntVar(&bitCount, "bits", 0, "clip to this many bits")
	return cmd
}
