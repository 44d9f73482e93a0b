package board

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBoard(t *testing.T) *Board {
	t.Helper()
	b, err := New("sample", []Layer{{Name: "top", Preferred: Horizontal}, {Name: "bottom", Preferred: Vertical}}, []Trace{
		// L shape with a via at the corner, both segments along their layer's direction
		{ID: 2, Points: []Point{{0, 0}, {10, 0}, {10, 5}}, Layers: []int{0, 1}},
		// vertical run on the horizontal layer
		{ID: 1, Points: []Point{{0, 0}, {0, 4}}, Layers: []int{0}},
	})
	require.NoError(t, err)
	return b
}

func TestMeasures(t *testing.T) {
	b := sampleBoard(t)
	assert.Equal(t, []int{1, 2}, b.ItemIDs())
	assert.Equal(t, 1, b.ViaCount())
	assert.InDelta(t, 19.0, b.TraceLength(), 1e-9)
	assert.InDelta(t, 4*DefaultAgainstFactor+15, b.WeightedTraceLength(), 1e-9)
}

func TestCopyIsDeep(t *testing.T) {
	b := sampleBoard(t)
	c := b.Clone()
	c.Traces[0].Points[1].Y = 100
	c.Traces[1].Layers[0] = 0
	c.Layers[0].Preferred = Vertical
	assert.Equal(t, 4.0, b.Traces[0].Points[1].Y)
	assert.Equal(t, Horizontal, b.Layers[0].Preferred)
	assert.NotEqual(t, b.Fingerprint(), c.Fingerprint())
}

func TestTraceLookupAndReplace(t *testing.T) {
	b := sampleBoard(t)
	tr, ok := b.Trace(2)
	require.True(t, ok)
	tr.Layers = []int{0, 0}
	tr.Points[2] = Point{20, 0}
	require.NoError(t, b.ReplaceTrace(tr))
	assert.Equal(t, 0, b.ViaCount())

	_, ok = b.Trace(7)
	assert.False(t, ok)
	assert.Error(t, b.ReplaceTrace(Trace{ID: 7, Points: []Point{{0, 0}, {1, 1}}, Layers: []int{0}}))
	assert.Error(t, b.ReplaceTrace(Trace{ID: 1, Points: []Point{{0, 0}}}))
}

func TestValidate(t *testing.T) {
	layers := []Layer{{Name: "top"}}
	tests := map[string][]Trace{
		"duplicate id":   {{ID: 1, Points: []Point{{0, 0}, {1, 0}}, Layers: []int{0}}, {ID: 1, Points: []Point{{0, 0}, {1, 0}}, Layers: []int{0}}},
		"single point":   {{ID: 1, Points: []Point{{0, 0}}}},
		"layer mismatch": {{ID: 1, Points: []Point{{0, 0}, {1, 0}}, Layers: []int{0, 0}}},
		"unknown layer":  {{ID: 1, Points: []Point{{0, 0}, {1, 0}}, Layers: []int{3}}},
	}
	for name, traces := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New("bad", layers, traces)
			assert.Error(t, err)
		})
	}
	_, err := New("no layers", nil, nil)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	b := Generate(rand.New(rand.NewSource(3)), DefaultGenerateOptions(12))
	require.NoError(t, b.Validate())
	dir := t.TempDir()
	for _, name := range []string{"board.yaml", "board.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, b))
		got, err := Load(path)
		require.NoError(t, err)
		if diff := cmp.Diff(b, got); diff != "" {
			t.Fatalf("%s round trip mismatch (-want +got):\n%s", name, diff)
		}
		assert.Equal(t, b.Fingerprint(), got.Fingerprint())
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(bytes.NewBufferString("layers: [{name: top}]\nwires: []\n"), YAML)
	assert.Error(t, err)
}

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(rand.New(rand.NewSource(9)), DefaultGenerateOptions(30))
	b := Generate(rand.New(rand.NewSource(9)), DefaultGenerateOptions(30))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.ItemIDs(), 30)
	assert.Positive(t, a.ViaCount())
}
