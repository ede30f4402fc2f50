package loader

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// decodeJSONShard accepts three shapes: a bare `{techName: {...}}` shard
// (the `a.json`..`z.json`/`_.json` form), `{"apps": {...}}`, or
// `{"technologies": {...}}` (single-document forms).
func decodeJSONShard(name string, data []byte) (map[string]rawTech, error) {
	var wrapped struct {
		Apps         map[string]rawTech `json:"apps"`
		Technologies map[string]rawTech `json:"technologies"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		if len(wrapped.Apps) > 0 {
			return wrapped.Apps, nil
		}
		if len(wrapped.Technologies) > 0 {
			return wrapped.Technologies, nil
		}
	}

	var bare map[string]rawTech
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, parseErr(name, "/", err)
	}
	return bare, nil
}

func decodeJSONCategories(name string, data []byte) (map[string]rawCategory, error) {
	var cats map[string]rawCategory
	if err := json.Unmarshal(data, &cats); err != nil {
		return nil, parseErr(name, "/", err)
	}
	return cats, nil
}

// decodeYAMLDialect accepts the same field names as the JSON dialect,
// under a top-level `technologies:`/`apps:` key or as a bare mapping.
func decodeYAMLDialect(name string, data []byte) (map[string]rawTech, map[string]rawCategory, error) {
	var doc struct {
		Apps         map[string]rawTech   `yaml:"apps"`
		Technologies map[string]rawTech   `yaml:"technologies"`
		Categories   map[string]rawCategory `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, parseErr(name, "/", err)
	}
	if len(doc.Apps) > 0 {
		return doc.Apps, doc.Categories, nil
	}
	if len(doc.Technologies) > 0 {
		return doc.Technologies, doc.Categories, nil
	}

	var bare map[string]rawTech
	if err := yaml.Unmarshal(data, &bare); err != nil {
		return nil, nil, parseErr(name, "/", err)
	}
	return bare, nil, nil
}
