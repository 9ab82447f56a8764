// Command cnrload bulk-loads normalized CNR envelopes (JSONL) into the
// relational store.
//
//	cnrload [--batch-size N] [--dry-run] envelopes_*.jsonl
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/greendigit/cnr-ingest/internal/config"
	convertdomain "github.com/greendigit/cnr-ingest/internal/convert/domain"
	"github.com/greendigit/cnr-ingest/internal/enrich"
	"github.com/greendigit/cnr-ingest/internal/loader"
	"github.com/greendigit/cnr-ingest/internal/logger"
	"github.com/greendigit/cnr-ingest/internal/metrics"
	"github.com/greendigit/cnr-ingest/internal/migration"
	"github.com/greendigit/cnr-ingest/internal/reader"
	"github.com/greendigit/cnr-ingest/internal/reference"
	"github.com/greendigit/cnr-ingest/pkg/db"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	flags := pflag.NewFlagSet("cnrload", pflag.ExitOnError)
	flags.Int("batch-size", loader.DefaultConfig().BatchSize, "envelopes per transaction")
	flags.Bool("dry-run", false, "parse and validate, but never commit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fatal(err)
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		fatal(err)
	}
	v.SetEnvPrefix("CNR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	paths := flags.Args()
	if len(paths) == 0 {
		fatal(fmt.Errorf("usage: cnrload [flags] FILE..."))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			fatal(fmt.Errorf("not found: %s", p))
		}
	}

	loaderCfg := loader.Config{
		BatchSize: v.GetInt("batch-size"),
		DryRun:    v.GetBool("dry-run"),
	}
	if loaderCfg.BatchSize < 1 {
		loaderCfg.BatchSize = 1
	}

	appCfg := config.Load()
	if err := appCfg.ValidateDB(); err != nil {
		fatal(err)
	}

	app := fx.New(
		fx.Supply(appCfg),
		fx.Supply(loaderCfg),
		fx.Provide(RegisterSnowflake),
		logger.Module,
		db.Module,
		migration.Module,
		metrics.Module,
		reference.Module,
		enrich.Module,
		loader.Module,
		fx.Invoke(func(lc fx.Lifecycle, log *zap.Logger, node *snowflake.Node, l *loader.Loader, e enrich.Service, sh fx.Shutdowner) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go run(log, node, l, e, sh, paths)
					return nil
				},
			})
		}),
	)
	app.Run()
}

func run(log *zap.Logger, node *snowflake.Node, l *loader.Loader, e enrich.Service, sh fx.Shutdowner, paths []string) {
	ctx := context.Background()
	runID := node.Generate()
	log = log.Named("cnrload").With(zap.String("run_id", runID.String()))

	exit := 0
	inputFailed := false
	for _, path := range paths {
		err := reader.EachEnvelope(path, func(env *convertdomain.Envelope) error {
			e.Enrich(ctx, env)
			return l.Add(ctx, env)
		})
		if err != nil {
			log.Error("load failed", zap.String("path", path), zap.Error(err))
			exit = 1
			inputFailed = true
			break
		}
	}

	var summary loader.Summary
	if inputFailed {
		// Envelopes buffered from the bad file are discarded, so fixing
		// the file and re-running cannot double-insert them.
		summary = l.Abort()
	} else {
		var err error
		summary, err = l.Close(ctx)
		if err != nil {
			log.Error("final flush failed", zap.Error(err))
			exit = 1
		}
	}

	log.Info("load finished",
		zap.Int64("inserted", summary.Inserted),
		zap.Int64("seen", summary.Seen),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("flushes", summary.Flushes),
	)
	fmt.Printf("inserted=%d seen=%d skipped=%d flushes=%d\n",
		summary.Inserted, summary.Seen, summary.Skipped, summary.Flushes)

	_ = sh.Shutdown(fx.ExitCode(exit))
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
