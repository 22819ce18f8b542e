package processor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/timzifer/threadgen/action"
	"github.com/timzifer/threadgen/compiler"
	"github.com/timzifer/threadgen/config"
	"github.com/timzifer/threadgen/platform"
	"github.com/timzifer/threadgen/schema"
	"github.com/timzifer/threadgen/sequencer"
	"github.com/timzifer/threadgen/telemetry"
)

const deviceYAML = `name: livingroom
platform:
  family: esp32
  variant: ESP32C6
  framework: esp-idf
radio:
  id: net1
  networks:
    - id: n1
`

type stubUnit struct {
	name     string
	priority float64
	actions  []action.Action
	err      error
	onRun    func()
}

func (s stubUnit) Name() string      { return s.name }
func (s stubUnit) Priority() float64 { return s.priority }

func (s stubUnit) Compile(context.Context, config.Node) ([]action.Action, error) {
	if s.onRun != nil {
		s.onRun()
	}
	return s.actions, s.err
}

func stubDefinition(unit stubUnit) UnitDefinition {
	return UnitDefinition{Component: unit.name, Factory: func(*config.Document, Dependencies) (Unit, error) {
		return unit, nil
	}}
}

type recordingCollector struct {
	mu       sync.Mutex
	compiles map[string]int
	actions  map[string]int
	reloads  []string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{compiles: map[string]int{}, actions: map[string]int{}}
}

func (r *recordingCollector) IncHotReload(file string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloads = append(r.reloads, file)
}

func (r *recordingCollector) IncCompile(unit, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compiles[unit+"/"+outcome]++
}

func (r *recordingCollector) AddActions(unit string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[unit] += count
}

func parseDocument(t *testing.T, raw string) *config.Document {
	t.Helper()
	doc, err := config.Parse([]byte(raw), "device.yaml")
	require.NoError(t, err)
	return doc
}

func newProcessor(t *testing.T, doc *config.Document, opts ...Option) *Processor {
	t.Helper()
	opts = append([]Option{WithDocument(doc), WithLogger(zerolog.Nop())}, opts...)
	proc, err := New(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(proc.Close)
	return proc
}

func TestBuildAutoLoadsNetworkUnitFirst(t *testing.T) {
	collector := newRecordingCollector()
	proc := newProcessor(t, parseDocument(t, deviceYAML), WithTelemetry(collector))

	plan, err := proc.Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, plan.Err())
	require.NotEmpty(t, plan.RunID)

	require.Len(t, plan.Units, 2)
	require.Equal(t, compiler.NetworkComponent, plan.Units[0].Name)
	require.Equal(t, compiler.Component, plan.Units[1].Name)
	require.Equal(t, 2, plan.Units[1].Phases)

	require.Equal(t, action.DefineFlag{Name: compiler.FlagNetwork, Value: true}, plan.Actions[0])
	require.Equal(t, action.Construct{ID: "net1", Type: sequencer.RootType}, plan.Actions[1])
	require.Equal(t, action.Checkpoint{Name: action.SafeMode}, plan.Actions[len(plan.Actions)-1])
	require.Contains(t, plan.Actions, action.SetField{Target: "net1", Field: "use_address", Value: "livingroom.local"})

	require.Equal(t, 1, collector.compiles["radio/"+telemetry.OutcomeOK])
	require.Equal(t, 1, collector.compiles["network/"+telemetry.OutcomeOK])
	require.Equal(t, plan.Units[1].Actions, collector.actions["radio"])
}

func TestBuildInterleavesPhasesByPriority(t *testing.T) {
	doc := parseDocument(t, deviceYAML+"display:\n")
	display := stubUnit{name: "display", priority: 100, actions: []action.Action{
		action.Construct{ID: "lcd", Type: "Display"},
		action.RegisterComponent{Target: "lcd"},
		action.SetField{Target: "lcd", Field: "late", Value: true},
	}}
	proc := newProcessor(t, doc, WithUnit(stubDefinition(display)))

	plan, err := proc.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"network", "display", "radio"}, unitNames(plan))

	register := func(target string) int {
		return action.Find(plan.Actions, func(a action.Action) bool {
			r, ok := a.(action.RegisterComponent)
			return ok && r.Target == target
		})
	}
	late := action.Find(plan.Actions, func(a action.Action) bool {
		s, ok := a.(action.SetField)
		return ok && s.Field == "late"
	})
	checkpoint := action.Find(plan.Actions, func(a action.Action) bool { return a.Kind() == action.KindCheckpoint })

	require.Less(t, register("lcd"), register("net1"))
	require.Less(t, register("net1"), late)
	require.Less(t, late, checkpoint)
	require.Equal(t, action.Construct{ID: "lcd", Type: "Display"}, plan.Actions[1])
}

func TestBuildValidationFailureDropsOnlyItsUnit(t *testing.T) {
	doc := parseDocument(t, `radio:
  tlvs: short
network:
  enable_ipv6: true
`)
	collector := newRecordingCollector()
	proc := newProcessor(t, doc, WithTelemetry(collector))

	plan, err := proc.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, []action.Action{
		action.DefineFlag{Name: compiler.FlagNetwork, Value: true},
		action.DefineFlag{Name: compiler.FlagNetworkIPv6, Value: true},
	}, plan.Actions)
	require.Len(t, plan.Failures, 1)
	require.Equal(t, compiler.KindValidation, plan.Failures[0].Kind)

	var verr *schema.ValidationError
	require.ErrorAs(t, plan.Err(), &verr)
	require.Equal(t, "TLVs must be at least 8 characters long", verr.Message)
	require.Equal(t, 1, collector.compiles["radio/"+telemetry.OutcomeValidation])
}

func TestBuildPlatformFailureIsUnitScoped(t *testing.T) {
	doc := parseDocument(t, `platform:
  family: esp32
  variant: esp32h2
  framework: esp-idf
radio:
`)
	plan, err := newProcessor(t, doc).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, plan.Failures, 1)
	require.Equal(t, compiler.KindPlatform, plan.Failures[0].Kind)

	var perr *platform.PlatformError
	require.ErrorAs(t, plan.Err(), &perr)
	require.Equal(t, []string{"network"}, unitNames(plan))
}

func TestBuildConfigErrorAbortsEverything(t *testing.T) {
	doc := parseDocument(t, `platform:
  family: esp32
  variant: ESP32S3
  framework: arduino
radio:
`)
	plan, err := newProcessor(t, doc).Build(context.Background())
	require.Nil(t, plan)
	require.True(t, compiler.IsFatal(err))
}

func TestBuildRejectsUnknownComponent(t *testing.T) {
	plan, err := newProcessor(t, parseDocument(t, "sensor:\n")).Build(context.Background())
	require.Nil(t, plan)
	require.ErrorContains(t, err, `no compile unit registered for component "sensor"`)
	require.True(t, compiler.IsFatal(err))
}

func TestBuildInvalidPolicyIsFatal(t *testing.T) {
	doc := parseDocument(t, deviceYAML+"policy:\n  managed: 'framework =='\n")
	_, err := newProcessor(t, doc).Build(context.Background())
	require.True(t, compiler.IsFatal(err))
}

func TestBuildCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plan, err := newProcessor(t, parseDocument(t, deviceYAML)).Build(ctx)
	require.Nil(t, plan)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildCancelledMidwayEmitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	display := stubUnit{name: "display", priority: 100, onRun: cancel, actions: []action.Action{
		action.Construct{ID: "lcd", Type: "Display"},
	}}
	doc := parseDocument(t, deviceYAML+"display:\n")
	plan, err := newProcessor(t, doc, WithUnit(stubDefinition(display))).Build(ctx)
	require.Nil(t, plan)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunWithoutWatchEmitsOnce(t *testing.T) {
	var plans []*Plan
	sink := func(_ context.Context, plan *Plan) error {
		plans = append(plans, plan)
		return nil
	}
	proc := newProcessor(t, parseDocument(t, deviceYAML), WithSink(sink))
	require.NoError(t, proc.Run(context.Background()))
	require.Len(t, plans, 1)
	require.NotEmpty(t, plans[0].Actions)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(context.Background(), WithLogger(zerolog.Nop()))
	require.Error(t, err)

	_, err = New(context.Background(), WithDocument(&config.Document{}), WithLogger(zerolog.Nop()), WithWatch(true))
	require.Error(t, err)

	def := stubDefinition(stubUnit{name: "display"})
	_, err = New(context.Background(), WithDocument(&config.Document{}), WithUnit(def), WithUnit(def))
	require.ErrorContains(t, err, "already registered")

	_, err = New(context.Background(), WithDocument(&config.Document{}), WithUnit(UnitDefinition{Component: "x"}))
	require.Error(t, err)
}

func TestReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.yaml")
	require.NoError(t, os.WriteFile(path, []byte(deviceYAML), 0o600))

	proc, err := New(context.Background(), WithConfigPath(path), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer proc.Close()

	updated := deviceYAML + "    - id: n2\n      tlvs: abcdefgh\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	require.NoError(t, proc.Reload(context.Background()))

	plan, err := proc.Build(context.Background())
	require.NoError(t, err)
	require.Contains(t, plan.Actions, action.SetField{Target: "n2", Field: "tlvs", Value: "abcdefgh"})
}

func TestRunWatchRebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.yaml")
	require.NoError(t, os.WriteFile(path, []byte(deviceYAML), 0o600))

	plans := make(chan *Plan, 4)
	collector := newRecordingCollector()
	proc, err := New(context.Background(),
		WithConfigPath(path),
		WithLogger(zerolog.Nop()),
		WithTelemetry(collector),
		WithWatch(true),
		WithSink(func(_ context.Context, plan *Plan) error {
			select {
			case plans <- plan:
			default:
			}
			return nil
		}),
	)
	require.NoError(t, err)
	defer proc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- proc.Run(ctx) }()

	first := <-plans
	require.NotContains(t, first.Actions, action.Construct{ID: "n2", Type: "thread::TLVs", Local: true})

	time.Sleep(50 * time.Millisecond)
	updated := deviceYAML + "    - id: n2\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case second := <-plans:
		require.Contains(t, second.Actions, action.Construct{ID: "n2", Type: "thread::TLVs", Local: true})
		require.NotEqual(t, first.RunID, second.RunID)
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after configuration change")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	collector.mu.Lock()
	defer collector.mu.Unlock()
	require.Contains(t, collector.reloads, path)
}

func TestSplitPhasesAndInterleave(t *testing.T) {
	a := []action.Action{
		action.Construct{ID: "a", Type: "A"},
		action.RegisterComponent{Target: "a"},
		action.Checkpoint{Name: "x"},
		action.SetField{Target: "a", Field: "f", Value: 1},
	}
	phases := splitPhases(a)
	require.Len(t, phases, 3)
	require.Len(t, phases[0], 2)
	require.Len(t, phases[1], 1)
	require.Len(t, phases[2], 1)

	b := []action.Action{action.DefineFlag{Name: "B", Value: true}}
	merged := interleave([][][]action.Action{phases, splitPhases(b)})
	require.Equal(t, []action.Action{a[0], a[1], b[0], a[2], a[3]}, merged)

	require.Empty(t, interleave(nil))
	require.Empty(t, splitPhases(nil))
}

func TestTargetDefaultsToHost(t *testing.T) {
	target, err := Target(&config.Document{})
	require.NoError(t, err)
	require.Equal(t, platform.FamilyHost, target.Family)

	target, err = Target(parseDocument(t, deviceYAML))
	require.NoError(t, err)
	require.Equal(t, platform.VariantESP32C6, target.Variant)
}

func unitNames(plan *Plan) []string {
	names := make([]string, 0, len(plan.Units))
	for _, u := range plan.Units {
		names = append(names, u.Name)
	}
	return names
}
