package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/curator/pkg/analytics/cluster"
	"github.com/synaptica-ai/curator/pkg/common/config"
	"github.com/synaptica-ai/curator/pkg/common/database"
	"github.com/synaptica-ai/curator/pkg/common/logger"
	"github.com/synaptica-ai/curator/pkg/normalizer"
	"github.com/synaptica-ai/curator/pkg/pipeline"
	"github.com/synaptica-ai/curator/pkg/storage"
)

func main() {
	logger.Init()

	rootCmd := &cobra.Command{
		Use:           "curator",
		Short:         "De-identify and curate raw clinical extracts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(transformCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(clusterCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Log.WithError(err).Error("command failed")
		stop()
		os.Exit(1)
	}
}

func transformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform --local INPUT OUTDIR",
		Short: "Curate a local CSV or XLSX file into OUTDIR",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, _ := cmd.Flags().GetBool("local")
			flat, _ := cmd.Flags().GetBool("flat")
			if !local {
				return errors.New("transform only reads local files; use process for object store keys")
			}

			cfg := config.Load()
			input, outDir := args[0], args[1]
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("input %s: %w", input, err)
			}

			filter, err := pipeline.NewFilterFromConfig(cfg)
			if err != nil {
				return err
			}
			layout := pipeline.NestedLayout(cfg.CuratedPrefix, cfg.FHIRPrefix)
			if flat {
				layout = pipeline.FlatLayout()
			}

			runner := pipeline.NewRunner(
				storage.NewLocalStore(filepath.Dir(input)),
				filter,
				normalizer.NewBuilder(normalizer.DefaultColumns()),
				storage.NewWriter(storage.Destination{Name: "local", Store: storage.NewLocalStore(outDir)}),
				layout,
			)
			if runner.ProcessKeys(cmd.Context(), []string{filepath.Base(input)}) == 0 {
				return fmt.Errorf("failed to curate %s", input)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote local outputs to %s\n", outDir)
			return nil
		},
	}
	cmd.Flags().Bool("local", false, "Read INPUT from the local filesystem")
	cmd.Flags().Bool("flat", false, "Write all outputs directly under OUTDIR")
	return cmd
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process KEY...",
		Short: "Curate raw object store keys from the configured bucket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()

			s3Store, err := storage.NewS3Store(ctx, cfg)
			if err != nil {
				return err
			}
			dests, err := pipeline.DestinationsFromConfig(ctx, cfg, "s3", s3Store)
			if err != nil {
				return err
			}
			filter, err := pipeline.NewFilterFromConfig(cfg)
			if err != nil {
				return err
			}

			runner := pipeline.NewRunner(
				s3Store,
				filter,
				normalizer.NewBuilder(normalizer.DefaultColumns()),
				storage.NewWriter(dests...),
				pipeline.LayoutFromConfig(cfg),
			)
			resp := runner.Run(ctx, args)
			return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
		},
	}
}

func clusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster curated persons and write assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			k, _ := cmd.Flags().GetInt("k")

			s3Store, err := storage.NewS3Store(ctx, cfg)
			if err != nil {
				return err
			}

			options := []cluster.Option{
				cluster.WithLocalCopy(storage.NewLocalStore(".")),
				cluster.WithSummary(cmd.OutOrStdout()),
			}
			if cfg.FeatureCacheEnabled {
				client := database.GetRedis(cfg)
				defer database.CloseRedis()
				options = append(options, cluster.WithFeatureSink(
					storage.NewFeatureStore(client, cfg.FeatureCachePrefix, cfg.FeatureCacheTTL),
				))
			}

			svc := cluster.NewService(s3Store, cluster.Options{
				K:             k,
				ReferenceYear: cfg.ClusterReferenceYear,
				CuratedPrefix: cfg.CuratedPrefix,
				OutputKey:     cfg.ClusterOutputKey,
				LocalPath:     cfg.ClusterLocalPath,
			}, options...)

			if _, err := svc.Run(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote s3://%s/%s and %s\n", s3Store.Bucket(), cfg.ClusterOutputKey, cfg.ClusterLocalPath)
			return nil
		},
	}
	cmd.Flags().Int("k", config.Load().ClusterK, "Number of clusters, clamped to the number of persons")
	return cmd
}
