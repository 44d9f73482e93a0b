package opt

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpdateStrategy(t *testing.T) {
	for in, want := range map[string]UpdateStrategy{
		"":               Greedy,
		"GREEDY":         Greedy,
		"global_optimal": GlobalOptimal,
		"global-optimal": GlobalOptimal,
		"Global Optimal": GlobalOptimal,
		"hybrid":         Hybrid,
	} {
		got, err := ParseUpdateStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseUpdateStrategy("lazy")
	assert.Error(t, err)
}

func TestHybridSchedule(t *testing.T) {
	tests := []struct {
		ratio   string
		want    []UpdateStrategy
		wantErr bool
	}{
		{"2:1", []UpdateStrategy{GlobalOptimal, GlobalOptimal, Greedy}, false},
		{" 1 : 3 ", []UpdateStrategy{GlobalOptimal, Greedy, Greedy, Greedy}, false},
		{"0:2", []UpdateStrategy{Greedy, Greedy}, false},
		{"3:0", []UpdateStrategy{GlobalOptimal, GlobalOptimal, GlobalOptimal}, false},
		{"abc", []UpdateStrategy{GlobalOptimal, Greedy}, true},
		{"", []UpdateStrategy{GlobalOptimal, Greedy}, true},
		{"1:2:3", []UpdateStrategy{GlobalOptimal, Greedy}, true},
		{"-1:2", []UpdateStrategy{GlobalOptimal, Greedy}, true},
		{"0:0", []UpdateStrategy{GlobalOptimal, Greedy}, true},
		{"2000000000:1", []UpdateStrategy{GlobalOptimal, Greedy}, true},
		{"1:1001", []UpdateStrategy{GlobalOptimal, Greedy}, true},
	}
	for _, tt := range tests {
		got, err := HybridSchedule(tt.ratio)
		if tt.wantErr {
			assert.Error(t, err, tt.ratio)
		} else {
			assert.NoError(t, err, tt.ratio)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("HybridSchedule(%q) mismatch (-want +got):\n%s", tt.ratio, diff)
		}
	}
}

func TestHybridScheduleAtLimit(t *testing.T) {
	got, err := HybridSchedule("1000:1")
	require.NoError(t, err)
	assert.Len(t, got, MaxHybridCount+1)
}

func TestStrategyCycleWraps(t *testing.T) {
	tokens, err := HybridSchedule("2:1")
	require.NoError(t, err)
	c := newStrategyCycle(tokens)
	var got []UpdateStrategy
	for i := 0; i < 6; i++ {
		got = append(got, c.next())
	}
	want := []UpdateStrategy{GlobalOptimal, GlobalOptimal, Greedy, GlobalOptimal, GlobalOptimal, Greedy}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cycle mismatch (-want +got):\n%s", diff)
	}
}
