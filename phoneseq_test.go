package phoneseq

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ieee0824/phoneseq-go/internal/observe"
	"github.com/ieee0824/phoneseq-go/lexicon"
	"github.com/ieee0824/phoneseq-go/seqgen"
)

const testDict = "[SILENCE]\tsi\n" +
	"hello\th e l o\n" +
	"world\tw o r l d\n" +
	"world\tw a l d\t0.5\n" +
	"foo\tf u\n"

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(writeFile(t, "lexicon.txt", testDict), opts...)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

var testOrths = []string{
	"hello world",
	"foo",
	"world foo hello",
	"hello-world",
	"foo foo foo world",
	"hello",
	"world world",
}

func TestBatchIndependentOfWorkers(t *testing.T) {
	ctx := context.Background()
	var want []Result
	for _, workers := range []int{1, 3, 8} {
		p := newTestPipeline(t, WithWorkers(workers), WithRandomSeqs(1))
		got, err := p.Batch(ctx, 4, testOrths)
		if err != nil {
			t.Fatalf("workers=%d: Batch: %v", workers, err)
		}
		if len(got) != len(testOrths) {
			t.Fatalf("workers=%d: %d results, want %d", workers, len(got), len(testOrths))
		}
		if want == nil {
			want = got
			continue
		}
		for i := range got {
			if !slices.Equal(got[i].Labels, want[i].Labels) {
				t.Errorf("workers=%d seq %d: labels differ from workers=1", workers, i)
			}
			if !slices.EqualFunc(got[i].Garbage, want[i].Garbage, slices.Equal) {
				t.Errorf("workers=%d seq %d: garbage differs from workers=1", workers, i)
			}
		}
	}
}

func TestSequenceMatchesBatch(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, WithWorkers(2))
	batch, err := p.Batch(ctx, 7, testOrths)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	for i, orth := range testOrths {
		r, err := p.Sequence(ctx, 7, i, orth)
		if err != nil {
			t.Fatalf("Sequence(%d): %v", i, err)
		}
		if r.Index != i || r.Orth != orth {
			t.Errorf("result %d = (%d, %q)", i, r.Index, r.Orth)
		}
		if !slices.Equal(r.Labels, batch[i].Labels) {
			t.Errorf("seq %d: Sequence labels %v, Batch labels %v", i, r.Labels, batch[i].Labels)
		}
		if len(r.States) != len(r.Labels) {
			t.Errorf("seq %d: %d states, %d labels", i, len(r.States), len(r.Labels))
		}
	}
}

func TestEpochChangesOutput(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)
	orths := make([]string, 20)
	for i := range orths {
		orths[i] = "hello world foo hello world"
	}
	a, err := p.Batch(ctx, 1, orths)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Batch(ctx, 2, orths)
	if err != nil {
		t.Fatal(err)
	}
	same := 0
	for i := range a {
		if slices.Equal(a[i].Labels, b[i].Labels) {
			same++
		}
	}
	if same == len(a) {
		t.Error("epochs 1 and 2 produced identical output")
	}
}

func TestUnresolvedIsRecoverable(t *testing.T) {
	p := newTestPipeline(t, WithWorkers(2))
	got, err := p.Batch(context.Background(), 0, []string{"hello", "hello zzz", "foo"})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if got[0].Err != nil || got[2].Err != nil {
		t.Errorf("unexpected errors: %v, %v", got[0].Err, got[2].Err)
	}
	var uw *lexicon.UnresolvedWordError
	if !errors.As(got[1].Err, &uw) {
		t.Fatalf("seq 1 err = %v, want UnresolvedWordError", got[1].Err)
	}
	if uw.Word != "zzz" {
		t.Errorf("unresolved word = %q, want zzz", uw.Word)
	}
	if got[1].Labels != nil {
		t.Errorf("failed sequence has labels %v", got[1].Labels)
	}
}

func TestGarbageLengths(t *testing.T) {
	p := newTestPipeline(t, WithRandomSeqs(3))
	r, err := p.Sequence(context.Background(), 0, 0, "hello world foo")
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Garbage) != 3 {
		t.Fatalf("%d garbage sequences, want 3", len(r.Garbage))
	}
	numClasses := len(p.ClassLabels())
	for k, g := range r.Garbage {
		if len(g) != len(r.Labels) {
			t.Errorf("garbage %d length = %d, want %d", k, len(g), len(r.Labels))
		}
		for _, l := range g {
			if l < 0 || l >= numClasses {
				t.Errorf("garbage %d label %d out of range [0,%d)", k, l, numClasses)
			}
		}
	}
}

func TestStateTyingFile(t *testing.T) {
	cfg := seqgen.DefaultConfig()
	cfg.NumStates = 1
	cfg.ContextLength = 0
	cfg.SilenceBeginning = 0
	cfg.SilenceBetweenWords = 0
	cfg.SilenceEnd = 0
	tying := writeFile(t, "tying.txt", "f{#+#}@i.0 0\nu{#+#}@f.0 1\n")

	p := newTestPipeline(t, WithConfig(cfg), WithStateTyingFile(tying))
	r, err := p.Sequence(context.Background(), 0, 0, "foo")
	if err != nil {
		t.Fatal(err)
	}
	if r.Err != nil {
		t.Fatalf("Err = %v", r.Err)
	}
	for i, l := range r.Labels {
		want := 0
		if r.States[i].ID == "u" {
			want = 1
		}
		if l != want {
			t.Errorf("label %d = %d, want %d", i, l, want)
		}
	}

	// hello is missing from the tying: recoverable.
	r, err = p.Sequence(context.Background(), 0, 1, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if r.Err == nil {
		t.Error("want unknown allophone state error")
	}
}

func TestDecode(t *testing.T) {
	p := newTestPipeline(t)
	r, err := p.Sequence(context.Background(), 0, 0, "hello world")
	if err != nil {
		t.Fatal(err)
	}
	idx, err := p.Indices(r.States)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range idx {
		s, err := p.Decode(v)
		if err != nil {
			t.Fatalf("Decode(%d): %v", v, err)
		}
		if !s.Equal(r.States[i]) {
			t.Errorf("Decode(%d) = %s, want %s", v, s, r.States[i])
		}
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newTestPipeline(t, WithWorkers(2))
	if _, err := p.Batch(ctx, 0, testOrths); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSeedFor(t *testing.T) {
	seen := map[int64]bool{}
	for epoch := int64(0); epoch < 4; epoch++ {
		for idx := 0; idx < 100; idx++ {
			s := SeedFor(epoch, idx)
			if seen[s] {
				t.Fatalf("SeedFor(%d, %d) = %d collides", epoch, idx, s)
			}
			seen[s] = true
		}
	}
	if SeedFor(3, 5) != SeedFor(3, 5) {
		t.Error("SeedFor is not deterministic")
	}
}

func TestNewPipelineErrors(t *testing.T) {
	if _, err := NewPipeline(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("missing lexicon: want error")
	}
	lex := writeFile(t, "lexicon.txt", testDict)
	if _, err := NewPipeline(lex, WithStateTyingFile(filepath.Join(t.TempDir(), "missing"))); err == nil {
		t.Error("missing tying: want error")
	}
	cfg := seqgen.DefaultConfig()
	cfg.Repetition = 1
	if _, err := NewPipeline(lex, WithConfig(cfg)); err == nil {
		t.Error("repetition 1: want error")
	}
}

func TestBatchMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(t, WithWorkers(3), WithMetrics(m))
	if _, err := p.Batch(context.Background(), 0, []string{"hello", "zzz", "foo"}); err != nil {
		t.Fatal(err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	var durations uint64
	var sequences int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Histogram[float64]:
				if md.Name == "phoneseq.batch.duration" {
					for _, dp := range data.DataPoints {
						durations += dp.Count
					}
				}
			case metricdata.Sum[int64]:
				if md.Name == "phoneseq.sequences" {
					for _, dp := range data.DataPoints {
						sequences += dp.Value
					}
				}
			}
		}
	}
	if durations != 1 {
		t.Errorf("batch durations recorded = %d, want 1", durations)
	}
	if sequences != 3 {
		t.Errorf("sequences recorded = %d, want 3", sequences)
	}
}
