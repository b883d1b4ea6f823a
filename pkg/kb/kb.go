// Package kb loads the SWC weakness knowledge base used to annotate
// security findings. The on-disk JSON comes in two shapes: a list of entry
// objects carrying their own id, or an object keyed by SWC id. Both are
// accepted; field synonyms (description/impact, mitigation/fix) are folded.
package kb

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

// Entry describes one SWC weakness class.
type Entry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation"`
}

// KB is an immutable lookup of SWC entries keyed by normalized id.
type KB struct {
	entries map[string]Entry
}

// rawEntry is the permissive decode target. Mitigation may arrive as a
// string or a list of steps.
type rawEntry struct {
	ID          string `mapstructure:"id"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Impact      string `mapstructure:"impact"`
	Mitigation  any    `mapstructure:"mitigation"`
	Fix         any    `mapstructure:"fix"`
}

// Load reads the knowledge base from path. A missing file yields an empty
// KB, not an error: findings ingest fine without annotations.
func Load(log logrus.FieldLogger, path string) (*KB, error) {
	log = log.WithField("component", "kb")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Warn("Knowledge base file not found, continuing without it")

			return &KB{entries: map[string]Entry{}}, nil
		}

		return nil, fmt.Errorf("reading knowledge base: %w", err)
	}

	entries, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing knowledge base %s: %w", path, err)
	}

	log.WithField("entries", len(entries)).Info("Knowledge base loaded")

	return &KB{entries: entries}, nil
}

// parse accepts both supported JSON shapes.
func parse(data []byte) (map[string]Entry, error) {
	var asList []map[string]any
	if err := json.Unmarshal(data, &asList); err == nil {
		return fromList(asList)
	}

	var asDict map[string]map[string]any
	if err := json.Unmarshal(data, &asDict); err == nil {
		return fromDict(asDict)
	}

	return nil, fmt.Errorf("unrecognized knowledge base shape")
}

func fromList(items []map[string]any) (map[string]Entry, error) {
	entries := make(map[string]Entry, len(items))

	for i, item := range items {
		raw, err := decodeEntry(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		id := normalizeID(raw.ID)
		if id == "" {
			continue
		}

		entries[id] = raw.toEntry(id)
	}

	return entries, nil
}

func fromDict(items map[string]map[string]any) (map[string]Entry, error) {
	entries := make(map[string]Entry, len(items))

	for key, item := range items {
		raw, err := decodeEntry(item)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", key, err)
		}

		id := normalizeID(key)
		if id == "" {
			continue
		}

		entries[id] = raw.toEntry(id)
	}

	return entries, nil
}

func decodeEntry(item map[string]any) (*rawEntry, error) {
	var raw rawEntry
	if err := mapstructure.Decode(item, &raw); err != nil {
		return nil, fmt.Errorf("decoding entry: %w", err)
	}

	return &raw, nil
}

// toEntry folds the field synonyms into the canonical shape.
func (r *rawEntry) toEntry(id string) Entry {
	description := r.Description
	if description == "" {
		description = r.Impact
	}

	mitigation := stringify(r.Mitigation)
	if mitigation == "" {
		mitigation = stringify(r.Fix)
	}

	return Entry{
		ID:          id,
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(description),
		Mitigation:  mitigation,
	}
}

// stringify flattens a string or list of strings into one newline-joined
// text block.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))

		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}

		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// normalizeID uppercases and trims an SWC identifier so SWC-107, swc-107
// and " SWC-107 " address the same entry.
func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Lookup returns the entry for an SWC id.
func (k *KB) Lookup(id string) (Entry, bool) {
	e, ok := k.entries[normalizeID(id)]

	return e, ok
}

// Entries returns all entries sorted by id.
func (k *KB) Entries() []Entry {
	out := make([]Entry, 0, len(k.entries))
	for _, e := range k.entries {
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// Len reports the number of entries.
func (k *KB) Len() int { return len(k.entries) }
