package data

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Character holds static data for one hero loaded from YAML.
type Character struct {
	ID         int32  `yaml:"id"`
	Name       string `yaml:"name"`
	Rare       int    `yaml:"rare"`     // star count, 2-6
	Birthday   string `yaml:"birthday"` // "MM/DD", empty if none
	Summonable bool   `yaml:"summonable"`
	SkinID     int32  `yaml:"skin_id"`
}

type characterListFile struct {
	Characters []Character `yaml:"characters"`
}

// CharacterTable holds all heroes indexed by ID.
type CharacterTable struct {
	chars    map[int32]*Character
	byRarity map[int][]int32
	birthday map[string][]int32
}

// LoadCharacterTable loads hero data from a YAML file.
func LoadCharacterTable(path string) (*CharacterTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read character_list: %w", err)
	}
	var f characterListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse character_list: %w", err)
	}
	t := &CharacterTable{
		chars:    make(map[int32]*Character, len(f.Characters)),
		byRarity: make(map[int][]int32),
		birthday: make(map[string][]int32),
	}
	for i := range f.Characters {
		c := &f.Characters[i]
		if c.Rare < 2 || c.Rare > 6 {
			return nil, fmt.Errorf("character %d: rare %d out of range", c.ID, c.Rare)
		}
		if _, dup := t.chars[c.ID]; dup {
			return nil, fmt.Errorf("character %d: duplicate id", c.ID)
		}
		t.chars[c.ID] = c
		if c.Summonable {
			t.byRarity[c.Rare] = append(t.byRarity[c.Rare], c.ID)
		}
		if c.Birthday != "" {
			t.birthday[c.Birthday] = append(t.birthday[c.Birthday], c.ID)
		}
	}
	for r := range t.byRarity {
		slices.Sort(t.byRarity[r])
	}
	for k := range t.birthday {
		slices.Sort(t.birthday[k])
	}
	return t, nil
}

// Get returns a hero by ID.
func (t *CharacterTable) Get(id int32) (*Character, bool) {
	c, ok := t.chars[id]
	return c, ok
}

// ByRarity returns the summonable hero ids of one star count, ascending.
func (t *CharacterTable) ByRarity(rare int) []int32 {
	return t.byRarity[rare]
}

// BirthdayOn returns the heroes whose birthday is month/day.
func (t *CharacterTable) BirthdayOn(month, day int) []int32 {
	return t.birthday[fmt.Sprintf("%02d/%02d", month, day)]
}

// Count returns the number of loaded heroes.
func (t *CharacterTable) Count() int {
	return len(t.chars)
}
