package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// scriptFile is the YAML layout of a script file. A bare list of items is accepted
// too. The file-level category applies to items that do not set their own.
type scriptFile struct {
	Category string   `yaml:"category"`
	Tags     []string `yaml:"tags"`
	Scripts  []Item   `yaml:"scripts"`
}

// DecodeScripts parses one YAML script file.
func DecodeScripts(data []byte) ([]Item, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '-' || data[0] == '[' {
		var items []Item
		if err := yaml.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decoding script list: %w", err)
		}
		return items, nil
	}

	var f scriptFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding script file: %w", err)
	}
	for i := range f.Scripts {
		if f.Scripts[i].Category == "" {
			f.Scripts[i].Category = f.Category
		}
		if len(f.Tags) > 0 {
			f.Scripts[i].Tags = append(append([]string(nil), f.Tags...), f.Scripts[i].Tags...)
		}
	}
	return f.Scripts, nil
}

// LoadFiles reads and decodes paths concurrently. Items are returned in path order.
func LoadFiles(ctx context.Context, paths []string) ([]Item, error) {
	results := make([][]Item, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			items, err := DecodeScripts(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Item
	for _, items := range results {
		out = append(out, items...)
	}
	return out, nil
}
