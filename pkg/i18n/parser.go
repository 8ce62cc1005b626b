package i18n

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

// ParseYAML parses a translation document keyed by language tag.
func ParseYAML(content []byte) (map[string]map[string]any, error) {
	var data map[string]any
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, errors.Join(ErrInvalidDocument, err)
	}

	result := make(map[string]map[string]any, len(data))
	for lang, val := range data {
		tree, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: language %q: expected map, got %T", ErrInvalidDocument, lang, val)
		}
		result[lang] = tree
	}
	if len(result) == 0 {
		return nil, ErrNoTranslations
	}
	return result, nil
}

// LoadFS parses every *.yaml and *.yml file in the root of fsys and merges
// the results. Later files override earlier keys of the same language.
func LoadFS(fsys fs.FS) (map[string]map[string]any, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	merged := make(map[string]map[string]any)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch path.Ext(e.Name()) {
		case ".yaml", ".yml":
		default:
			continue
		}

		content, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, err
		}
		doc, err := ParseYAML(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		for lang, tree := range doc {
			if merged[lang] == nil {
				merged[lang] = make(map[string]any)
			}
			mergeTree(merged[lang], tree)
		}
	}

	if len(merged) == 0 {
		return nil, ErrNoTranslations
	}
	return merged, nil
}

func mergeTree(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				mergeTree(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}
