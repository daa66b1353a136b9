package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// ClassManifest maps model class IDs to human-readable names. The file is a
// JSON object keyed by the numeric ID as a string:
//
//	{"1": "bucket_digging", "2": "bucket_dumping", "5": "truck_empty", "6": "truck_full"}
//
// A missing or malformed manifest is a startup error; detections cannot be
// routed to the right counter without it.
type ClassManifest map[int]string

// LoadClassManifest reads a class manifest from a JSON file.
func LoadClassManifest(path string) (ClassManifest, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("class manifest must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read class manifest: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse class manifest: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("class manifest %s is empty", cleanPath)
	}

	m := make(ClassManifest, len(raw))
	for k, name := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("class manifest key %q is not a class ID: %w", k, err)
		}
		if name == "" {
			return nil, fmt.Errorf("class manifest ID %d has an empty name", id)
		}
		m[id] = name
	}
	return m, nil
}

// Name returns the class name for an ID, or "class_<id>" when unknown.
func (m ClassManifest) Name(id int) string {
	if name, ok := m[id]; ok {
		return name
	}
	return fmt.Sprintf("class_%d", id)
}

// IDs returns the manifest's class IDs in ascending order.
func (m ClassManifest) IDs() []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// IDsByName returns the inverse mapping, class name to ID.
func (m ClassManifest) IDsByName() map[string]int {
	byName := make(map[string]int, len(m))
	for id, name := range m {
		byName[name] = id
	}
	return byName
}
