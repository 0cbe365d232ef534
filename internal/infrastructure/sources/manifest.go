package sources

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mvolkov/firmscope/internal/core/domain"
)

// Manifest is the operator-maintained list of target sites. It is resolved
// once at startup and synced into the registry; runs never mutate it.
type Manifest struct {
	Sources []Entry `yaml:"sources"`
}

type Entry struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	URL        string   `yaml:"url"`
	ExtraPaths []string `yaml:"extra_paths"`
}

func Load(path string) ([]domain.Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source manifest %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) ([]domain.Source, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("decode source manifest: %w", err)
	}
	if len(manifest.Sources) == 0 {
		return nil, fmt.Errorf("source manifest lists no sources")
	}

	seen := make(map[string]bool, len(manifest.Sources))
	out := make([]domain.Source, 0, len(manifest.Sources))
	for i, entry := range manifest.Sources {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, fmt.Errorf("source %d: id is required", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("source %d: duplicate id %q", i, id)
		}
		seen[id] = true

		rootURL := strings.TrimSpace(entry.URL)
		parsed, err := url.Parse(rootURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("source %q: invalid url %q", id, entry.URL)
		}

		name := strings.TrimSpace(entry.Name)
		if name == "" {
			name = nameFromHost(parsed.Host)
		}

		out = append(out, domain.Source{
			ID:         id,
			Name:       name,
			RootURL:    rootURL,
			ExtraPaths: entry.ExtraPaths,
			Status:     domain.StatusPending,
		})
	}
	return out, nil
}

// nameFromHost turns "www.kingsley-napley.co.uk" into "Kingsley Napley".
func nameFromHost(host string) string {
	host = strings.TrimPrefix(host, "www.")
	base, _, _ := strings.Cut(host, ".")
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")

	words := strings.Fields(base)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
