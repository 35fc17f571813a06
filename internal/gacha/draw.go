package gacha

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Rand is the random source a draw consumes. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Pool is the resolved content of one banner.
type Pool struct {
	BannerID int32
	// ByRarity holds the summonable heroes per star count (2-6).
	ByRarity map[int][]int32
	UpSix    []int32
	UpFive   []int32
}

// Pull is one resolved draw.
type Pull struct {
	HeroID int32
	Rarity int
	Up     bool
}

// upChance is the share of six- and five-star results taken from the up list
// when the banner has one.
const upChance = 0.5

var ErrEmptyPool = errors.New("gacha pool has no heroes for rarity")

var lowerRarities = []Weighted[int]{
	{Value: 5, Weight: RateFive / (1 - RateSixBase)},
	{Value: 4, Weight: RateFour / (1 - RateSixBase)},
	{Value: 3, Weight: RateThree / (1 - RateSixBase)},
	{Value: 2, Weight: RateTwo / (1 - RateSixBase)},
}

// Validate checks that every rarity a draw can produce has at least one hero.
func (p *Pool) Validate() error {
	for rarity := 2; rarity <= 6; rarity++ {
		if len(p.ByRarity[rarity]) == 0 && len(p.ups(rarity)) == 0 {
			return fmt.Errorf("banner %d: %w %d", p.BannerID, ErrEmptyPool, rarity)
		}
	}
	return nil
}

func (p *Pool) ups(rarity int) []int32 {
	switch rarity {
	case 6:
		return p.UpSix
	case 5:
		return p.UpFive
	}
	return nil
}

// Draw resolves n pulls starting from pity and returns the results and the
// pity to persist. Each pull is a Bernoulli trial at SixStarProbability(pity);
// a six-star resets pity to 0, anything else advances it by one. Failed
// trials pick the rarity from the remaining base rates.
func Draw(p *Pool, pity uint32, n int, rng Rand) ([]Pull, uint32, error) {
	if err := p.Validate(); err != nil {
		return nil, pity, err
	}
	pulls := make([]Pull, 0, n)
	for range n {
		rarity := 6
		if rng.Float64() >= SixStarProbability(pity) {
			rarity = PickWeighted(lowerRarities, rng.Float64())
			pity++
		} else {
			pity = 0
		}
		pulls = append(pulls, p.pickHero(rarity, rng))
	}
	return pulls, pity, nil
}

func (p *Pool) pickHero(rarity int, rng Rand) Pull {
	ups := p.ups(rarity)
	pool := p.ByRarity[rarity]
	if len(ups) > 0 && (len(pool) == 0 || rng.Float64() < upChance) {
		return Pull{HeroID: ups[rng.IntN(len(ups))], Rarity: rarity, Up: true}
	}
	return Pull{HeroID: pool[rng.IntN(len(pool))], Rarity: rarity}
}

// LockedRand is a seeded PCG source shared by all sessions.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a PCG source. A zero seed draws one from crypto/rand.
func NewRand(seed uint64) (*LockedRand, error) {
	if seed == 0 {
		var b [8]byte
		if _, err := crand.Read(b[:]); err != nil {
			return nil, fmt.Errorf("read gacha seed: %w", err)
		}
		seed = binary.LittleEndian.Uint64(b[:])
	}
	return &LockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}, nil
}

func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *LockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
