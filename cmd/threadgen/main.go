package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/timzifer/threadgen/automation"
	"github.com/timzifer/threadgen/config"
	"github.com/timzifer/threadgen/processor"
	"github.com/timzifer/threadgen/render"
)

const (
	formatSource    = "source"
	formatSDKConfig = "sdkconfig"
	formatYAML      = "yaml"
)

func main() {
	cfgPath := flag.String("config", "device.yaml", "Path to the device document or a directory of documents")
	outPath := flag.String("out", "", "Output file (defaults to stdout)")
	format := flag.String("format", formatSource, "Output format: source, sdkconfig or yaml")
	configCheck := flag.Bool("config-check", false, "Validate configuration and exit")
	watch := flag.Bool("watch", false, "Recompile whenever the configuration changes")
	flag.Parse()

	if err := checkFormat(*format); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *configCheck {
		os.Exit(executeConfigCheck(*cfgPath, os.Stdout))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	proc, err := processor.New(ctx,
		processor.WithConfigPath(*cfgPath),
		processor.WithAutomation(automation.Deferred{}),
		processor.WithWatch(*watch),
		processor.WithSink(func(_ context.Context, plan *processor.Plan) error {
			return emit(plan, *format, *outPath)
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	defer proc.Close()

	if err := proc.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error().Err(err).Msg("compilation failed")
		proc.Close()
		os.Exit(1)
	}
}

func checkFormat(format string) error {
	switch format {
	case formatSource, formatSDKConfig, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// emit renders a plan and writes it out. Plans with failed units are not
// written so a previous good output stays in place.
func emit(plan *processor.Plan, format, outPath string) error {
	if err := plan.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := write(&buf, plan, format); err != nil {
		return err
	}
	if outPath == "" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	tmp := outPath + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace output: %w", err)
	}
	log.Info().Str("run_id", plan.RunID).Str("file", filepath.Clean(outPath)).Msg("output written")
	return nil
}

func write(w io.Writer, plan *processor.Plan, format string) error {
	switch format {
	case formatYAML:
		return render.YAML(w, plan)
	case formatSDKConfig:
		out, err := render.Render(plan.Actions)
		if err != nil {
			return err
		}
		return out.WriteSDKConfig(w)
	default:
		return render.Source(w, plan.Actions)
	}
}

func executeConfigCheck(path string, w io.Writer) int {
	doc, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(w, "configuration invalid: %v\n", err)
		return 1
	}
	proc, err := processor.New(context.Background(),
		processor.WithDocument(doc),
		processor.WithAutomation(automation.Deferred{}),
	)
	if err != nil {
		fmt.Fprintf(w, "configuration invalid: %v\n", err)
		return 1
	}
	defer proc.Close()

	target, err := processor.Target(doc)
	if err == nil {
		fmt.Fprintf(w, "Target: %s\n", target)
	}

	plan, err := proc.Build(context.Background())
	if err != nil {
		fmt.Fprintf(w, "configuration invalid: %v\n", err)
		return 1
	}

	for _, unit := range plan.Units {
		fmt.Fprintf(w, "Unit %q\n", unit.Name)
		fmt.Fprintf(w, "  Priority: %.1f\n", unit.Priority)
		fmt.Fprintf(w, "  Actions: %d\n", unit.Actions)
		fmt.Fprintln(w, "  Status: OK")
		fmt.Fprintln(w)
	}
	for _, failure := range plan.Failures {
		fmt.Fprintf(w, "Unit %q\n", failure.Unit)
		fmt.Fprintln(w, "  Errors:")
		fmt.Fprintf(w, "    - %s: %v\n", failure.Kind, failure.Err)
		fmt.Fprintln(w)
	}

	if len(plan.Failures) > 0 {
		fmt.Fprintln(w, "Configuration check completed with errors.")
		return 1
	}
	if _, err := render.Render(plan.Actions); err != nil {
		fmt.Fprintf(w, "configuration invalid: %v\n", err)
		return 1
	}
	fmt.Fprintln(w, "Configuration check completed successfully.")
	return 0
}
