package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"spam-detector/internal/artifact"
	"spam-detector/internal/config"
	"spam-detector/internal/logging"
	"spam-detector/internal/repository"
	"spam-detector/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile      string
	corpusPath   string
	embeddings   string
	artifactsDir string
	seed         int64
	maxEpochs    int
	keepBest     bool
	noHistory    bool
	reportJSON   bool
)

var cmd = &cobra.Command{
	Use:   "trainer",
	Short: "trainer builds the vocabulary, trains the spam classifier and saves its artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd)
	},
	SilenceUsage: true,
}

func init() {
	cmd.Flags().StringVar(&cfgFile, "config", "configs/config.yml", "config file")
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "labeled corpus, one \"<spam|ham>,<text>\" per line")
	cmd.Flags().StringVar(&embeddings, "embeddings", "", "pretrained embeddings in GloVe text format")
	cmd.Flags().StringVar(&artifactsDir, "artifacts", "", "output directory for the artifacts")
	cmd.Flags().Int64Var(&seed, "seed", 0, "shuffle and initialisation seed (0 picks one)")
	cmd.Flags().IntVar(&maxEpochs, "max-epochs", 0, "epoch limit")
	cmd.Flags().BoolVar(&keepBest, "keep-best", false, "restore the best epoch before saving")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run in the database")
	cmd.Flags().BoolVar(&reportJSON, "json", false, "print the report as JSON")
}

func run(c *cobra.Command) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	flags := c.Flags()
	if flags.Changed("corpus") {
		cfg.Training.CorpusPath = corpusPath
	}
	if flags.Changed("embeddings") {
		cfg.Training.EmbeddingsPath = embeddings
	}
	if flags.Changed("artifacts") {
		cfg.Artifacts.Dir = artifactsDir
	}
	if flags.Changed("seed") {
		cfg.Training.Seed = seed
	}
	if flags.Changed("max-epochs") {
		cfg.Training.MaxEpochs = maxEpochs
	}
	if flags.Changed("keep-best") {
		cfg.Training.KeepBest = keepBest
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var runs service.RunRecorder
	if !noHistory {
		if cfg.Database.Type == "sqlite" {
			os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755)
		}
		repo, err := repository.NewHistoryRepository(cfg.Database.Type, cfg.Database.Path, logger)
		if err != nil {
			return err
		}
		defer repo.Close()
		runs = repo
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := artifact.NewFileStore(cfg.Artifacts.Dir)
	report, err := service.NewTrainer(cfg.Training, store, runs, logger).Run(ctx)
	if err != nil {
		logger.Error("Training failed", zap.Error(err))
		return err
	}

	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(report, cfg.Artifacts.Dir)
	return nil
}

func printReport(r *service.TrainingReport, dir string) {
	fmt.Printf("run %s finished: %s after %d epochs, success rate %.4f\n",
		r.Run.ID, r.Result.State, r.Result.Epochs, r.Result.SuccessRate)
	fmt.Printf("corpus %s records, vocabulary %s tokens, max_len %d\n",
		humanize.Comma(int64(r.Run.CorpusSize)), humanize.Comma(int64(r.Run.VocabSize)), r.Run.MaxLen)
	fmt.Printf("embedding hits %d, misses %d\n", r.Coverage.Hits, r.Coverage.Misses)
	fmt.Printf("artifacts saved to %s\n", dir)

	if len(r.Misclassifications) > 0 {
		fmt.Printf("\n%d validation samples did not clear the threshold:\n", len(r.Misclassifications))
		for _, m := range r.Misclassifications {
			fmt.Printf("  %-14s score=%.4f label=%.0f  %s\n", m.Outcome, m.Score, m.Label, m.Text)
		}
	}
	if r.Sanity != nil {
		fmt.Printf("\nsanity check: %s (confidence %.2f)\n", r.Sanity.Message, r.Sanity.Confidence)
	}
}

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
