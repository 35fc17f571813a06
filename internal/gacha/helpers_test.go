package gacha

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSixStarProbabilityBase(t *testing.T) {
	for pity := uint32(0); pity <= 59; pity++ {
		assert.Equal(t, 0.015, SixStarProbability(pity), "pity %d", pity)
	}
}

func TestSixStarProbabilitySoftPity(t *testing.T) {
	assert.InDelta(t, 0.04, SixStarProbability(60), 1e-12)
	for pity := uint32(61); pity <= 69; pity++ {
		step := SixStarProbability(pity) - SixStarProbability(pity-1)
		assert.InDelta(t, 0.025, step, 1e-12, "pity %d", pity)
	}
	assert.InDelta(t, 0.265, SixStarProbability(69), 1e-12)
}

func TestSixStarProbabilityHardPity(t *testing.T) {
	for _, pity := range []uint32{70, 71, 100, 1 << 31, ^uint32(0)} {
		assert.Equal(t, 1.0, SixStarProbability(pity))
	}
}

func TestSixStarProbabilityMonotonic(t *testing.T) {
	prev := 0.0
	for pity := uint32(0); pity <= 200; pity++ {
		p := SixStarProbability(pity)
		assert.GreaterOrEqual(t, p, prev)
		assert.LessOrEqual(t, p, 1.0)
		prev = p
	}
}

func TestPickWeighted(t *testing.T) {
	half := []Weighted[string]{{"A", 0.5}, {"B", 0.5}}
	assert.Equal(t, "A", PickWeighted(half, 0.49))
	assert.Equal(t, "B", PickWeighted(half, 0.51))
	assert.Equal(t, "A", PickWeighted(half, 0))

	single := []Weighted[string]{{"A", 1.0}}
	assert.Equal(t, "A", PickWeighted(single, 0.999))

	short := []Weighted[string]{{"A", 0.3}, {"B", 0.3}, {"C", 0.3999999}}
	assert.Equal(t, "C", PickWeighted(short, 0.9999999999))

	assert.Equal(t, "", PickWeighted[string](nil, 0.5))
}

func TestPickWeightedNeverPanics(t *testing.T) {
	items := []Weighted[int]{{1, 0.1}, {2, 0.2}, {3, 0.7}}
	for i := 0; i < 1000; i++ {
		roll := float64(i) / 1000
		assert.NotPanics(t, func() { PickWeighted(items, roll) })
	}
}

func TestParseUpHeroes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		six  []int32
		five []int32
	}{
		{"empty", "", []int32{}, []int32{}},
		{"both", "1#2#3|4#5", []int32{1, 2, 3}, []int32{4, 5}},
		{"six only", "1#2", []int32{1, 2}, []int32{}},
		{"five only", "|4", []int32{}, []int32{4}},
		{"junk skipped", "1#x#3|#5#", []int32{1, 3}, []int32{5}},
		{"extra segments ignored", "1|2|3", []int32{1}, []int32{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			six, five := ParseUpHeroes(tt.in)
			assert.Equal(t, tt.six, six)
			assert.Equal(t, tt.five, five)
		})
	}
}
