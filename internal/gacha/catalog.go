package gacha

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/internal/rng"
	"gopkg.in/yaml.v3"
)

// MaxCreatureID is the highest id the creature API serves
const MaxCreatureID = 1025

// maxRejections bounds common-id rejection sampling before a linear scan
const maxRejections = 1000

var defaultLegendary = []int{
	144, 145, 146, 150, 151,
	243, 244, 245, 249, 250, 251,
	377, 378, 379, 380, 381, 382, 383, 384, 385, 386,
	480, 481, 482, 483, 484, 485, 486, 487, 488, 489, 490, 491, 492, 493, 494,
	638, 639, 640, 641, 642, 643, 644, 645, 646, 647, 648, 649,
	716, 717, 718, 719, 720, 721,
	785, 786, 787, 788, 789, 790, 791, 792, 800, 801, 802, 807,
	888, 889, 890, 891, 892, 893, 894, 895, 896, 897, 898, 905,
	1001, 1002, 1003, 1004, 1007, 1008, 1024, 1025,
}

var defaultRare = []int{
	3, 6, 9, 25, 130, 131, 143, 149,
	154, 157, 160, 248,
	254, 257, 260, 282, 330, 373, 376,
	389, 392, 395, 445, 448,
	497, 500, 503, 635,
	652, 655, 658, 706,
	724, 727, 730, 784,
	812, 815, 818, 887,
	908, 911, 914, 998,
}

// Catalog holds the curated rarity lists. It is read-only once loaded.
type Catalog struct {
	MaxID     int   `yaml:"max_id"`
	Rare      []int `yaml:"rare"`
	Legendary []int `yaml:"legendary"`

	rarity map[int]models.Rarity
}

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() *Catalog {
	c := &Catalog{
		MaxID:     MaxCreatureID,
		Rare:      slices.Clone(defaultRare),
		Legendary: slices.Clone(defaultLegendary),
	}
	c.index()
	return c
}

// LoadCatalog reads a YAML catalog from path and merges it over the defaults.
// An empty path or a missing file yields the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	def := DefaultCatalog()
	if path == "" {
		return def, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return def, nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file Catalog
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	merged := mergeCatalog(def, &file)
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	merged.index()
	return merged, nil
}

// mergeCatalog overrides a with the non-zero fields of b. Lists are replaced, not appended.
func mergeCatalog(a, b *Catalog) *Catalog {
	out := &Catalog{
		MaxID:     a.MaxID,
		Rare:      slices.Clone(a.Rare),
		Legendary: slices.Clone(a.Legendary),
	}
	if b.MaxID != 0 {
		out.MaxID = b.MaxID
	}
	if len(b.Rare) > 0 {
		out.Rare = slices.Clone(b.Rare)
	}
	if len(b.Legendary) > 0 {
		out.Legendary = slices.Clone(b.Legendary)
	}
	return out
}

// Validate collects every problem with the catalog into one error
func (c *Catalog) Validate() error {
	var errs []error
	if c.MaxID < 1 {
		errs = append(errs, fmt.Errorf("max_id must be positive, got %d", c.MaxID))
	}
	if len(c.Rare) == 0 {
		errs = append(errs, errors.New("rare list is empty"))
	}
	if len(c.Legendary) == 0 {
		errs = append(errs, errors.New("legendary list is empty"))
	}

	seen := make(map[int]string, len(c.Rare)+len(c.Legendary))
	check := func(list string, ids []int) {
		for _, id := range ids {
			if id < 1 || id > c.MaxID {
				errs = append(errs, fmt.Errorf("%s id %d out of range 1..%d", list, id, c.MaxID))
			}
			if prev, ok := seen[id]; ok && prev != list {
				errs = append(errs, fmt.Errorf("id %d listed as both %s and %s", id, prev, list))
			}
			seen[id] = list
		}
	}
	check("rare", c.Rare)
	check("legendary", c.Legendary)

	if len(seen) >= c.MaxID {
		errs = append(errs, errors.New("no ids left for common rarity"))
	}
	return errors.Join(errs...)
}

func (c *Catalog) index() {
	c.rarity = make(map[int]models.Rarity, len(c.Rare)+len(c.Legendary))
	for _, id := range c.Rare {
		c.rarity[id] = models.RarityRare
	}
	for _, id := range c.Legendary {
		c.rarity[id] = models.RarityLegendary
	}
}

// RarityOf returns the rarity of id; ids on neither list are common
func (c *Catalog) RarityOf(id int) models.Rarity {
	if r, ok := c.rarity[id]; ok {
		return r
	}
	return models.RarityCommon
}

// RollID draws a creature id of the given rarity. Rare and legendary ids come
// from the curated lists, common ids from the rest of 1..MaxID.
func (c *Catalog) RollID(src rng.Source, r models.Rarity) int {
	switch r {
	case models.RarityLegendary:
		return rng.Pick(src, c.Legendary)
	case models.RarityRare:
		return rng.Pick(src, c.Rare)
	}

	for i := 0; i < maxRejections; i++ {
		id := rng.IntRange(src, 1, c.MaxID)
		if c.RarityOf(id) == models.RarityCommon {
			return id
		}
	}
	// unreachable with any sane catalog
	for id := 1; id <= c.MaxID; id++ {
		if c.RarityOf(id) == models.RarityCommon {
			return id
		}
	}
	return 1
}

// RollAny draws uniformly over the whole id space
func (c *Catalog) RollAny(src rng.Source) int {
	return rng.IntRange(src, 1, c.MaxID)
}
