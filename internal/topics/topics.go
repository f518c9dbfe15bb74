// Package topics defines the ordered topic catalog and the bitmask codec
// that maps an item's topic flags onto bits.
package topics

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"topicpush/internal/model"
)

// MaxTopics is the number of bits available in a topic mask.
const MaxTopics = 63

// AddedLayout is the format of the derived human-readable timestamp.
const AddedLayout = "2006-01-02 15:04:05"

// Topic is a single named flag. Keywords are used when tagging imported items.
type Topic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Catalog is the ordered list of topics. Topic i owns bit i of every mask.
type Catalog struct {
	Topics []Topic `yaml:"topics"`
}

// Default returns the reference five-topic catalog.
func Default() Catalog {
	return Catalog{Topics: []Topic{
		{Name: "jumping", Keywords: []string{"jump", "drop", "gap", "air"}},
		{Name: "downhill", Keywords: []string{"downhill", "dh", "descent"}},
		{Name: "tech", Keywords: []string{"technique", "skills", "cornering", "manual"}},
		{Name: "maint", Keywords: []string{"maintenance", "repair", "service", "bleed"}},
		{Name: "scenic", Keywords: []string{"scenic", "views", "trail ride", "epic"}},
	}}
}

// LoadFile reads a YAML topic catalog.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return Catalog{}, fmt.Errorf("read topics file: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse topics yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks that the catalog fits in a mask and has unique names.
func (c Catalog) Validate() error {
	if len(c.Topics) == 0 {
		return errors.New("topic catalog is empty")
	}
	if len(c.Topics) > MaxTopics {
		return fmt.Errorf("topic catalog has %d topics, max is %d", len(c.Topics), MaxTopics)
	}
	seen := make(map[string]bool, len(c.Topics))
	for i, t := range c.Topics {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("topic %d has no name", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate topic %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Names returns topic names in bit order.
func (c Catalog) Names() []string {
	names := make([]string, len(c.Topics))
	for i, t := range c.Topics {
		names[i] = t.Name
	}
	return names
}

// Mask sets bit i when the flag for topic i is true. Missing flags are false.
func (c Catalog) Mask(flags map[string]bool) int64 {
	var mask int64
	for i, t := range c.Topics {
		if flags[t.Name] {
			mask |= 1 << i
		}
	}
	return mask
}

// Enrich fills the derived timestamp and topic mask of an item.
// Items with a non-blank AddedStr are returned untouched, even when their
// mask looks wrong. The boolean reports whether the item changed and needs
// to be written back.
func (c Catalog) Enrich(item model.Item) (model.Item, bool) {
	if strings.TrimSpace(item.AddedStr) != "" {
		return item, false
	}
	item.AddedStr = time.Unix(item.AddedEpoch, 0).UTC().Format(AddedLayout)
	item.TopicMask = c.Mask(item.Topics)
	return item, true
}
