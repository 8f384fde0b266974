package pipeline

import "encoding/json"

// MaterialsFromField decodes the reading_materials entry of a metadata
// map. Extractors and artifact files carry the list as loosely typed JSON
// (maps or plain strings); a plain string becomes an optional book with
// that title. Unrecognized shapes are dropped.
func MaterialsFromField(v any) []ReadingMaterial {
	if v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		// Round-trip via JSON for typed slices coming straight from an
		// extractor rather than a decoded artifact.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
	}

	out := make([]ReadingMaterial, 0, len(items))
	for _, item := range items {
		switch entry := item.(type) {
		case string:
			out = append(out, ReadingMaterial{
				Title:       entry,
				Requirement: RequirementOptional,
				Type:        "book",
			})
		case map[string]any:
			m := ReadingMaterial{
				Title:       stringField(entry, "title"),
				Creator:     stringField(entry, "creator"),
				Requirement: RequirementOptional,
				Type:        stringField(entry, "type"),
				URL:         stringField(entry, "url"),
			}
			if m.Creator == "" {
				m.Creator = stringField(entry, "author")
			}
			if stringField(entry, "requirement") == string(RequirementRequired) {
				m.Requirement = RequirementRequired
			}
			if m.Type == "" {
				m.Type = "book"
			}
			if m.Title == "" {
				continue
			}
			out = append(out, m)
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
