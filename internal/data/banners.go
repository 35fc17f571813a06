package data

import (
	"fmt"
	"os"

	"github.com/sonettogo/server/internal/gacha"
	"gopkg.in/yaml.v3"
)

// Banner types.
const (
	BannerNormal   = 1
	BannerLimited  = 2
	BannerEnhanced = 3 // player picks the six-star up hero
)

// Banner holds static data for one summon pool.
type Banner struct {
	ID           int32  `yaml:"id"`
	Name         string `yaml:"name"`
	Type         int    `yaml:"type"`
	UpHeroes     string `yaml:"up_heroes"` // "six#six|five#five"
	CostCurrency int32  `yaml:"cost_currency"`
	CostPerPull  int32  `yaml:"cost_per_pull"`
	StartTime    int64  `yaml:"start_time"` // unix ms, 0 = always open
	EndTime      int64  `yaml:"end_time"`   // unix ms, 0 = never ends
}

type bannerListFile struct {
	Banners []Banner `yaml:"banners"`
}

// BannerTable holds all banners indexed by ID.
type BannerTable struct {
	banners map[int32]*Banner
	order   []int32
}

// LoadBannerTable loads banners from a YAML file.
func LoadBannerTable(path string) (*BannerTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read banner_list: %w", err)
	}
	var f bannerListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse banner_list: %w", err)
	}
	t := &BannerTable{banners: make(map[int32]*Banner, len(f.Banners))}
	for i := range f.Banners {
		b := &f.Banners[i]
		if _, dup := t.banners[b.ID]; dup {
			return nil, fmt.Errorf("banner %d: duplicate id", b.ID)
		}
		t.banners[b.ID] = b
		t.order = append(t.order, b.ID)
	}
	return t, nil
}

// Get returns a banner by ID.
func (t *BannerTable) Get(id int32) (*Banner, bool) {
	b, ok := t.banners[id]
	return b, ok
}

// All returns banners in file order.
func (t *BannerTable) All() []*Banner {
	out := make([]*Banner, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.banners[id])
	}
	return out
}

// OpenAt reports whether the banner accepts pulls at nowMs.
func (b *Banner) OpenAt(nowMs int64) bool {
	if b.StartTime > 0 && nowMs < b.StartTime {
		return false
	}
	return b.EndTime == 0 || nowMs < b.EndTime
}

// Pool builds the draw pool of b. A non-empty upOverride replaces the
// banner's configured up heroes.
func (b *Banner) Pool(chars *CharacterTable, upOverride string) *gacha.Pool {
	up := b.UpHeroes
	if upOverride != "" {
		up = upOverride
	}
	six, five := gacha.ParseUpHeroes(up)
	p := &gacha.Pool{
		BannerID: b.ID,
		ByRarity: make(map[int][]int32, 5),
		UpSix:    six,
		UpFive:   five,
	}
	for r := 2; r <= 6; r++ {
		p.ByRarity[r] = chars.ByRarity(r)
	}
	return p
}
