// Command cnrdump converts a raw partner dump (JSONL or JSON) into CNR
// envelope JSONL files, one output file per publisher, ready for cnrload.
// KPI enrichment runs only when KPI_BASE is configured.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/greendigit/cnr-ingest/internal/config"
	convertservice "github.com/greendigit/cnr-ingest/internal/convert/service"
	"github.com/greendigit/cnr-ingest/internal/enrich"
	"github.com/greendigit/cnr-ingest/internal/logger"
	"github.com/greendigit/cnr-ingest/internal/rawlog"
	"github.com/greendigit/cnr-ingest/internal/reader"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type sink struct {
	out       *bufio.Writer
	err       *bufio.Writer
	outFile   *os.File
	errFile   *os.File
	envelopes int
	errors    int
}

func main() {
	flags := pflag.NewFlagSet("cnrdump", pflag.ExitOnError)
	outDir := flags.String("out-dir", "dump_processed", "output directory")
	emailsArg := flags.String("emails", "", "comma-separated publisher_email filter")
	startArg := flags.String("start", "", "filter by document timestamp >= start (ISO)")
	endArg := flags.String("end", "", "filter by document timestamp <= end (ISO)")
	rawLogPath := flags.String("raw-log", "", "append raw documents to this JSONL file")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fatal(err)
	}
	if flags.NArg() != 1 {
		fatal(fmt.Errorf("usage: cnrdump [flags] DUMP_FILE"))
	}
	dumpPath := flags.Arg(0)

	appCfg := config.Load()
	log, err := logger.New(appCfg.LogLevel)
	if err != nil {
		fatal(err)
	}
	defer log.Sync()
	log = log.Named("cnrdump")

	var emails map[string]bool
	if strings.TrimSpace(*emailsArg) != "" {
		emails = make(map[string]bool)
		for _, e := range strings.Split(*emailsArg, ",") {
			if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
				emails[e] = true
			}
		}
	}
	startFilter := parseISO(*startArg)
	endFilter := parseISO(*endArg)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatal(err)
	}

	converter := convertservice.NewService(convertservice.ServiceParam{Log: log})
	enricher, err := enrich.NewFromConfig(appCfg, log)
	if err != nil {
		fatal(err)
	}

	var rawSink rawlog.Sink = rawlog.NoOpSink{}
	if *rawLogPath != "" {
		fileSink, err := rawlog.NewFileSink(*rawLogPath)
		if err != nil {
			fatal(err)
		}
		defer fileSink.Close()
		rawSink = fileSink
	}

	sinks := make(map[string]*sink)
	ctx := context.Background()

	var docsSeen, entriesSeen, envelopesWritten, errorsSeen int

	err = reader.EachDocument(dumpPath, func(doc reader.Document) error {
		docsSeen++

		pub := strings.ToLower(strings.TrimSpace(doc.PublisherEmail))
		if emails != nil && !emails[pub] {
			return nil
		}
		if doc.Timestamp != "" && (startFilter != nil || endFilter != nil) {
			ts := parseISO(doc.Timestamp)
			if ts == nil {
				return nil
			}
			if startFilter != nil && ts.Before(*startFilter) {
				return nil
			}
			if endFilter != nil && ts.After(*endFilter) {
				return nil
			}
		}

		key := pub
		if key == "" {
			key = "unknown"
		}
		s, err := getSink(sinks, *outDir, key)
		if err != nil {
			return err
		}

		if err := rawSink.Store(ctx, pub, doc.Body); err != nil {
			return err
		}

		entriesSeen++
		recs, err := converter.Convert(doc.Body)
		if err != nil {
			s.errors++
			errorsSeen++
			return writeJSONLine(s.err, map[string]any{
				"error":           err.Error(),
				"publisher_email": pub,
				"timestamp":       doc.Timestamp,
			})
		}

		for _, rec := range recs {
			env := convertservice.BuildEnvelope(rec)
			enricher.Enrich(ctx, env)
			if err := writeJSONLine(s.out, env); err != nil {
				return err
			}
			s.envelopes++
			envelopesWritten++
		}
		return nil
	})
	if err != nil {
		log.Error("dump processing failed", zap.Error(err))
		closeSinks(sinks)
		os.Exit(1)
	}

	closeSinks(sinks)

	summary := map[string]any{
		"dump":              dumpPath,
		"out_dir":           *outDir,
		"docs_seen":         docsSeen,
		"entries_seen":      entriesSeen,
		"envelopes_written": envelopesWritten,
		"errors":            errorsSeen,
	}
	data, _ := json.MarshalIndent(summary, "", "  ")
	_ = os.WriteFile(filepath.Join(*outDir, "summary.json"), data, 0o644)
	fmt.Println(string(data))
}

func getSink(sinks map[string]*sink, outDir, key string) (*sink, error) {
	if s, ok := sinks[key]; ok {
		return s, nil
	}
	slug := slugify(key)
	outFile, err := os.Create(filepath.Join(outDir, "envelopes_"+slug+".jsonl"))
	if err != nil {
		return nil, err
	}
	errFile, err := os.Create(filepath.Join(outDir, "errors_"+slug+".jsonl"))
	if err != nil {
		outFile.Close()
		return nil, err
	}
	s := &sink{
		out:     bufio.NewWriter(outFile),
		err:     bufio.NewWriter(errFile),
		outFile: outFile,
		errFile: errFile,
	}
	sinks[key] = s
	return s, nil
}

func closeSinks(sinks map[string]*sink) {
	for _, s := range sinks {
		_ = s.out.Flush()
		_ = s.err.Flush()
		_ = s.outFile.Close()
		_ = s.errFile.Close()
	}
}

func writeJSONLine(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

func slugify(email string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(email) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func parseISO(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999-07:00", "2006-01-02T15:04:05-07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
