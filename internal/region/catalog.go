package region

import (
	"fmt"
	"strings"
)

// Region is one monitored administrative area.
// FeedIndex is the position of the region's status character in the feed string.
type Region struct {
	Key       string
	Title     string
	FeedIndex int
}

// Catalog is an immutable, validated set of regions.
type Catalog struct {
	regions []Region
	byKey   map[string]Region
	byIndex map[int]Region
}

var oblasts = []Region{
	{Key: "volyn", Title: "Волинська область", FeedIndex: 1},
	{Key: "vinnytsia", Title: "Вінницька область", FeedIndex: 2},
	{Key: "dnipro", Title: "Дніпропетровська область", FeedIndex: 3},
	{Key: "donetsk", Title: "Донецька область", FeedIndex: 4},
	{Key: "zhytomyr", Title: "Житомирська область", FeedIndex: 5},
	{Key: "zakarpattia", Title: "Закарпатська область", FeedIndex: 6},
	{Key: "zaporizhzhia", Title: "Запорізька область", FeedIndex: 7},
	{Key: "ivano_frankivsk", Title: "Івано-Франківська область", FeedIndex: 8},
	{Key: "kyiv_city", Title: "м. Київ", FeedIndex: 9},
	{Key: "kyiv", Title: "Київська область", FeedIndex: 10},
	{Key: "kirovohrad", Title: "Кіровоградська область", FeedIndex: 11},
	{Key: "luhansk", Title: "Луганська область", FeedIndex: 12},
	{Key: "lviv", Title: "Львівська область", FeedIndex: 13},
	{Key: "mykolaiv", Title: "Миколаївська область", FeedIndex: 14},
	{Key: "odesa", Title: "Одеська область", FeedIndex: 15},
	{Key: "poltava", Title: "Полтавська область", FeedIndex: 16},
	{Key: "rivne", Title: "Рівненська область", FeedIndex: 17},
	{Key: "sumy", Title: "Сумська область", FeedIndex: 19},
	{Key: "ternopil", Title: "Тернопільська область", FeedIndex: 20},
	{Key: "kharkiv", Title: "Харківська область", FeedIndex: 21},
	{Key: "kherson", Title: "Херсонська область", FeedIndex: 22},
	{Key: "khmelnytskyi", Title: "Хмельницька область", FeedIndex: 23},
	{Key: "cherkasy", Title: "Черкаська область", FeedIndex: 24},
	{Key: "chernivtsi", Title: "Чернівецька область", FeedIndex: 25},
	{Key: "chernihiv", Title: "Чернігівська область", FeedIndex: 26},
}

var defaultCatalog = MustCatalog(oblasts)

// Default returns the built-in oblast catalog.
func Default() *Catalog { return defaultCatalog }

// NewCatalog validates regions: keys and feed indices must be unique, keys
// non-empty and indices non-negative. The input order is preserved.
func NewCatalog(regions []Region) (*Catalog, error) {
	c := &Catalog{
		regions: make([]Region, 0, len(regions)),
		byKey:   make(map[string]Region, len(regions)),
		byIndex: make(map[int]Region, len(regions)),
	}
	for _, r := range regions {
		r.Key = strings.TrimSpace(r.Key)
		if r.Key == "" {
			return nil, fmt.Errorf("region: empty key (title %q)", r.Title)
		}
		if r.FeedIndex < 0 {
			return nil, fmt.Errorf("region %q: negative feed index %d", r.Key, r.FeedIndex)
		}
		if _, dup := c.byKey[r.Key]; dup {
			return nil, fmt.Errorf("region %q: duplicate key", r.Key)
		}
		if other, dup := c.byIndex[r.FeedIndex]; dup {
			return nil, fmt.Errorf("region %q: feed index %d already used by %q", r.Key, r.FeedIndex, other.Key)
		}
		c.regions = append(c.regions, r)
		c.byKey[r.Key] = r
		c.byIndex[r.FeedIndex] = r
	}
	return c, nil
}

// MustCatalog is NewCatalog for static tables.
func MustCatalog(regions []Region) *Catalog {
	c, err := NewCatalog(regions)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns the regions in catalog order. The slice is a copy.
func (c *Catalog) All() []Region {
	return append([]Region(nil), c.regions...)
}

func (c *Catalog) Len() int { return len(c.regions) }

func (c *Catalog) ByKey(key string) (Region, bool) {
	r, ok := c.byKey[key]
	return r, ok
}

func (c *Catalog) ByFeedIndex(idx int) (Region, bool) {
	r, ok := c.byIndex[idx]
	return r, ok
}

// MaxFeedIndex returns the largest feed index, or -1 for an empty catalog.
func (c *Catalog) MaxFeedIndex() int {
	out := -1
	for _, r := range c.regions {
		out = max(out, r.FeedIndex)
	}
	return out
}
