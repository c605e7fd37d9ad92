package site

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/jsxsite/internal/errors"
)

var dataExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// LoadData reads every data file directly inside dir into a map keyed by
// file stem. JSON files are parsed as YAML. A missing dir yields no data.
func LoadData(dir string) (map[string]any, error) {
	data := map[string]any{}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "reading data directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && dataExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "reading data file", err).
				WithLocation(path, 0, 0)
		}

		var value any
		if err := yaml.Unmarshal(raw, &value); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeConfigInvalid, "parsing data file", err).
				WithLocation(path, 0, 0)
		}

		key := strings.TrimSuffix(name, filepath.Ext(name))
		if _, ok := data[key]; ok {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				"duplicate data key "+key).WithLocation(path, 0, 0)
		}
		data[key] = normalize(value)
	}

	return data, nil
}

// normalize rewrites maps decoded with non-string keys into map[string]any,
// recursing into nested maps and slices.
func normalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for k, item := range v {
			v[k] = normalize(item)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range v {
			v[i] = normalize(item)
		}
		return v
	default:
		return value
	}
}
