// Package gacha resolves summon draws. Every function is pure: callers pass
// the pity counter and the random source in and persist what comes out.
package gacha

import (
	"strconv"
	"strings"
)

// Base rates per rarity (stars). The six-star rate is the pre-pity base.
const (
	RateSixBase = 0.015
	RateFive    = 0.085
	RateFour    = 0.40
	RateThree   = 0.45
	RateTwo     = 0.05
)

// HardPity is the pity count at which a six-star is guaranteed.
const HardPity = 70

const softPityStart = 60

// SixStarProbability returns the six-star chance for the next pull after
// pity consecutive non-six-star pulls.
func SixStarProbability(pity uint32) float64 {
	switch {
	case pity < softPityStart:
		return RateSixBase
	case pity < HardPity:
		return 0.04 + float64(pity-softPityStart)*0.025
	default:
		return 1.0
	}
}

// Weighted pairs a value with its selection weight.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// PickWeighted walks the cumulative weights in order and returns the first
// item whose running sum exceeds roll. If rounding leaves the total at or
// below roll the last item is returned. An empty list yields the zero value.
func PickWeighted[T any](items []Weighted[T], roll float64) T {
	var acc float64
	for _, it := range items {
		acc += it.Weight
		if roll < acc {
			return it.Value
		}
	}
	if len(items) == 0 {
		var zero T
		return zero
	}
	return items[len(items)-1].Value
}

// ParseUpHeroes splits a banner's up-hero string "six#six|five#five" into
// the six-star and five-star id lists. Tokens that are not integers are
// skipped; segments after the second are ignored.
func ParseUpHeroes(up string) (six, five []int32) {
	if up == "" {
		return []int32{}, []int32{}
	}
	parts := strings.SplitN(up, "|", 3)
	six = parseIDList(parts[0])
	if len(parts) > 1 {
		five = parseIDList(parts[1])
	} else {
		five = []int32{}
	}
	return six, five
}

func parseIDList(s string) []int32 {
	out := []int32{}
	if s == "" {
		return out
	}
	for _, tok := range strings.Split(s, "#") {
		v, err := strconv.ParseInt(tok, 10, 32)
		if err != nil {
			continue
		}
		out = append(out, int32(v))
	}
	return out
}
