// Package catalog loads a YAML mapping of well-known applet IDs to
// human-readable names, used by "asmctl applets list --catalog" to
// annotate applets beyond the bare header name the device itself reports.
// Grounded on the same yaml.v3-decode shape as internal/config, applied to
// a flat id->name table instead of a nested profile.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Unknown is the name reported for an applet id absent from the catalog.
const Unknown = "Unknown"

// Catalog maps applet ids to catalog entries.
type Catalog struct {
	entries map[uint16]Entry
}

// Entry is one catalog record.
type Entry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// rawFile is the on-disk shape: a flat map keyed by the hex or decimal
// applet id string, since YAML map keys are strings.
type rawFile struct {
	Applets map[string]Entry `yaml:"applets"`
}

// Load parses the YAML catalog at path. A missing file yields an empty,
// usable Catalog rather than an error — the catalog is an optional
// annotation layer, not a required one.
func Load(path string) (Catalog, error) {
	if path == "" {
		return Catalog{entries: map[uint16]Entry{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Catalog{entries: map[uint16]Entry{}}, nil
		}
		return Catalog{}, fmt.Errorf("catalog: reading %s: %w", path, err)
	}

	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Catalog{}, fmt.Errorf("catalog: parsing %s: %w", path, err)
	}

	entries := make(map[uint16]Entry, len(raw.Applets))
	for key, entry := range raw.Applets {
		id, err := parseAppletID(key)
		if err != nil {
			return Catalog{}, fmt.Errorf("catalog: %s: %w", path, err)
		}
		entries[id] = entry
	}
	return Catalog{entries: entries}, nil
}

func parseAppletID(key string) (uint16, error) {
	var id uint32
	if _, err := fmt.Sscanf(key, "0x%x", &id); err == nil {
		return uint16(id), nil
	}
	if _, err := fmt.Sscanf(key, "%d", &id); err == nil {
		return uint16(id), nil
	}
	return 0, fmt.Errorf("applet id %q is neither decimal nor 0x-prefixed hex", key)
}

// NameFor returns the catalog's name for appletID, or Unknown if absent.
func (c Catalog) NameFor(appletID uint16) string {
	if e, ok := c.entries[appletID]; ok && e.Name != "" {
		return e.Name
	}
	return Unknown
}

// DescriptionFor returns the catalog's description for appletID, or "" if
// absent.
func (c Catalog) DescriptionFor(appletID uint16) string {
	return c.entries[appletID].Description
}

// IDs returns every applet id the catalog knows about, sorted ascending.
func (c Catalog) IDs() []uint16 {
	ids := make([]uint16, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
