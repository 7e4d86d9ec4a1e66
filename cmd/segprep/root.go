package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wgdzlh/segprep"
	"github.com/wgdzlh/segprep/log"
)

var (
	cfgFile  string
	divideBy float64
)

var rootCmd = &cobra.Command{
	Use:   "segprep",
	Short: "Multi-channel segmentation dataset builder",
	Long: "Aligns orthophoto, lidar deviation and polygon labels to lod-image footprints,\n" +
		"splits the aligned stack into training patches and writes train/val manifests.",
	SilenceUsage: true,
}

func Execute() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Ctrl-C后停止派发新footprint任务，在途任务自行收尾
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		log.Warn("interrupt received, stopping dispatch")
		cancel()
	}()
	return ctx
}

func newPipeline() (*segprep.Pipeline, error) {
	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	return segprep.NewPipeline(cfg)
}

func reportFailures(fails []segprep.FootprintFailure) {
	for _, f := range fails {
		log.Warn("footprint skipped", zap.String("footprint", f.ID),
			zap.String("stage", f.Stage), zap.Error(f.Err))
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: labels, align, patches, manifests",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		rep, err := p.Run(signalContext())
		if err != nil {
			return err
		}
		reportFailures(rep.Failures)
		fmt.Printf("footprints: %d, patches: %d, train: %d, val: %d, failed: %d\n",
			rep.Footprints, len(rep.Patches), rep.Train, rep.Val, len(rep.Failures))
		return nil
	},
}

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Rasterize label polygons per footprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		fails, err := p.RunLabels(signalContext())
		reportFailures(fails)
		return err
	},
}

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Align and stack the channel sources per footprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		fails, err := p.RunAlign(signalContext())
		reportFailures(fails)
		return err
	},
}

var patchesCmd = &cobra.Command{
	Use:   "patches",
	Short: "Split aligned footprints into training patches",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		ids, fails, err := p.RunPatches(signalContext())
		reportFailures(fails)
		if err != nil {
			return err
		}
		fmt.Printf("patches: %d, failed footprints: %d\n", len(ids), len(fails))
		return nil
	},
}

var manifestsCmd = &cobra.Command{
	Use:   "manifests",
	Short: "Write deterministic train/val manifests from emitted patches",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		nTrain, nVal, err := p.RunManifests()
		if err != nil {
			return err
		}
		fmt.Printf("train: %d, val: %d\n", nTrain, nVal)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute per-channel statistics over emitted patches",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		rep, err := p.RunStats(divideBy)
		if err != nil {
			return err
		}
		fmt.Printf("files: %d\n", len(rep.Files))
		fmt.Printf("max of max: %.2f, min of min: %.2f, max mean: %.2f, max std: %.2f\n",
			rep.MaxMax, rep.MinMin, rep.MaxMean, rep.MaxStd)
		fmt.Printf("avg min: %.2f, avg max: %.2f, avg mean: %.2f, avg std: %.2f\n",
			rep.AvgMin, rep.AvgMax, rep.AvgMean, rep.AvgStd)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to dataset config .ini file")
	_ = rootCmd.MarkPersistentFlagRequired("config")
	statsCmd.Flags().Float64Var(&divideBy, "divide-by", 1.0, "divide pixel values before collecting statistics")
	rootCmd.AddCommand(runCmd, labelsCmd, alignCmd, patchesCmd, manifestsCmd, statsCmd)
}
