package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/timzifer/threadgen/action"
	"github.com/timzifer/threadgen/automation"
	"github.com/timzifer/threadgen/compiler"
	"github.com/timzifer/threadgen/config"
	"github.com/timzifer/threadgen/internal/logging"
	"github.com/timzifer/threadgen/internal/reload"
	"github.com/timzifer/threadgen/telemetry"
)

// Option configures the processor during construction.
type Option func(*settings) error

// Sink consumes a finished plan, e.g. by rendering it to a file.
type Sink func(ctx context.Context, plan *Plan) error

type settings struct {
	document          *config.Document
	configPath        string
	logger            zerolog.Logger
	customLogger      bool
	telemetry         telemetry.Collector
	telemetryProvided bool
	units             []UnitDefinition
	automation        automation.Builder
	sink              Sink
	watch             bool
}

// Processor schedules the compile units of a device document and merges
// their actions into one plan.
type Processor struct {
	mu sync.Mutex

	doc        *config.Document
	configPath string

	factories  map[string]UnitFactory
	automation automation.Builder
	collector  telemetry.Collector
	sink       Sink
	watch      bool

	logger  zerolog.Logger
	cleanup func()

	running bool
}

// New constructs a processor with the supplied options.
func New(ctx context.Context, opts ...Option) (*Processor, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cfg := settings{
		logger:    zerolog.Nop(),
		telemetry: telemetry.Noop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.document == nil {
		if cfg.configPath == "" {
			return nil, errors.New("configuration path required")
		}
		loaded, err := config.Load(cfg.configPath)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		cfg.document = loaded
	}
	if cfg.watch && cfg.configPath == "" {
		return nil, errors.New("watch mode requires a configuration path")
	}

	if !cfg.telemetryProvided {
		collector, err := newTelemetryCollector(cfg.document.Telemetry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
			cfg.telemetry = telemetry.Noop()
		} else {
			cfg.telemetry = collector
		}
	}

	factories := make(map[string]UnitFactory)
	for _, def := range builtinUnits() {
		factories[def.Component] = def.Factory
	}
	for _, def := range cfg.units {
		factories[def.Component] = def.Factory
	}

	proc := &Processor{
		doc:        cfg.document,
		configPath: cfg.configPath,
		factories:  factories,
		automation: cfg.automation,
		collector:  cfg.telemetry,
		sink:       cfg.sink,
		watch:      cfg.watch,
		logger:     cfg.logger,
		cleanup:    func() {},
	}
	if !cfg.customLogger {
		logger, cleanup, err := logging.Setup(cfg.document.Logging)
		if err != nil {
			return nil, err
		}
		proc.logger = logger
		proc.cleanup = cleanup
		log.Logger = logger
	}
	proc.logger = proc.logger.With().Str("component", "processor").Logger()
	return proc, nil
}

// Document returns the document the next build compiles.
func (p *Processor) Document() *config.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc
}

// Build compiles every scheduled unit and merges the results. Nothing is
// returned when ctx is cancelled or a unit fails fatally; validation and
// platform failures only drop their unit and are recorded on the plan.
func (p *Processor) Build(ctx context.Context) (*Plan, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	doc := p.Document()
	units, err := schedule(doc, p.factories, Dependencies{Logger: p.logger, Automation: p.automation})
	if err != nil {
		return nil, err
	}

	plan := &Plan{RunID: uuid.New().String()}
	logger := p.logger.With().Str("run_id", plan.RunID).Logger()

	compiled := make([][][]action.Action, 0, len(units))
	for _, s := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := s.unit.Name()
		actions, err := s.unit.Compile(ctx, s.raw)
		p.collector.IncCompile(name, outcome(err))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			cerr := compiler.Wrap(name, err)
			if cerr.Fatal() {
				logger.Error().Err(cerr).Str("unit", name).Msg("fatal compile error")
				return nil, cerr
			}
			logger.Warn().Err(cerr).Str("unit", name).Msg("compile unit failed")
			plan.Failures = append(plan.Failures, cerr)
			continue
		}

		phases := splitPhases(actions)
		compiled = append(compiled, phases)
		plan.Units = append(plan.Units, UnitResult{
			Name:     name,
			Priority: s.unit.Priority(),
			Actions:  len(actions),
			Phases:   len(phases),
		})
		p.collector.AddActions(name, len(actions))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan.Actions = interleave(compiled)
	logger.Info().
		Int("units", len(plan.Units)).
		Int("failures", len(plan.Failures)).
		Int("actions", len(plan.Actions)).
		Msg("build finished")
	return plan, nil
}

// Run builds once and hands the plan to the sink. In watch mode it keeps
// rebuilding whenever a document source file changes until ctx is done.
// Failed rebuilds are logged and the previous output stays in place.
func (p *Processor) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("processor already running")
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	if err := p.buildAndEmit(ctx); err != nil {
		if !p.watch {
			return err
		}
		p.logger.Error().Err(err).Msg("initial build failed")
	}
	if !p.watch {
		return nil
	}

	watcher, err := reload.NewWatcher(p.Document().Files, p.logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watcher.Run(watchCtx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-watcher.Changes():
			changes, err := watcher.Check()
			if err != nil {
				p.logger.Error().Err(err).Msg("failed to check configuration changes")
				continue
			}
			if len(changes) == 0 {
				continue
			}
			if err := p.Reload(ctx); err != nil {
				p.logger.Error().Err(err).Strs("files", changes).Msg("failed to reload configuration")
				continue
			}
			if err := watcher.Update(p.Document().Files); err != nil {
				p.logger.Error().Err(err).Msg("failed to update configuration watcher")
			}
			for _, file := range changes {
				p.collector.IncHotReload(file)
			}
			if err := p.buildAndEmit(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.Error().Err(err).Msg("rebuild failed")
			}
		}
	}
}

// Reload replaces the document with the latest version from disk.
func (p *Processor) Reload(ctx context.Context) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if p.configPath == "" {
		return errors.New("reload not supported without configuration path")
	}
	doc, err := config.Load(p.configPath)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
	return nil
}

// Close releases resources managed by the processor.
func (p *Processor) Close() {
	p.mu.Lock()
	cleanup := p.cleanup
	p.cleanup = func() {}
	p.mu.Unlock()
	cleanup()
}

func (p *Processor) buildAndEmit(ctx context.Context) error {
	plan, err := p.Build(ctx)
	if err != nil {
		return err
	}
	if p.sink == nil {
		return nil
	}
	return p.sink(ctx, plan)
}
