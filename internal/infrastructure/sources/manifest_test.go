package sources

import (
	"testing"

	"github.com/mvolkov/firmscope/internal/core/domain"
)

func TestParseManifest(t *testing.T) {
	raw := []byte(`
sources:
  - id: kingsley-napley
    url: https://www.kingsley-napley.co.uk
    extra_paths:
      - /graduate-recruitment
  - id: firm-b
    name: Firm B LLP
    url: https://firm-b.example
`)

	sources, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}

	first := sources[0]
	if first.ID != "kingsley-napley" {
		t.Fatalf("first id = %s", first.ID)
	}
	if first.Name != "Kingsley Napley" {
		t.Fatalf("derived name = %q", first.Name)
	}
	if len(first.ExtraPaths) != 1 || first.ExtraPaths[0] != "/graduate-recruitment" {
		t.Fatalf("extra paths = %v", first.ExtraPaths)
	}
	if first.Status != domain.StatusPending {
		t.Fatalf("status = %s", first.Status)
	}
	if sources[1].Name != "Firm B LLP" {
		t.Fatalf("explicit name not kept: %q", sources[1].Name)
	}
}

func TestParseManifestEmpty(t *testing.T) {
	if _, err := Parse([]byte("sources: []")); err == nil {
		t.Fatalf("expected error for empty manifest")
	}
}

func TestParseManifestMissingID(t *testing.T) {
	raw := []byte(`
sources:
  - url: https://firm.example
`)
	if _, err := Parse(raw); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestParseManifestDuplicateID(t *testing.T) {
	raw := []byte(`
sources:
  - id: firm-a
    url: https://a.example
  - id: firm-a
    url: https://a2.example
`)
	if _, err := Parse(raw); err == nil {
		t.Fatalf("expected error for duplicate id")
	}
}

func TestParseManifestInvalidURL(t *testing.T) {
	raw := []byte(`
sources:
  - id: firm-a
    url: not-a-url
`)
	if _, err := Parse(raw); err == nil {
		t.Fatalf("expected error for invalid url")
	}
}

func TestNameFromHost(t *testing.T) {
	cases := map[string]string{
		"www.kingsley-napley.co.uk": "Kingsley Napley",
		"firm-b.example":            "Firm B",
		"www.single.example":        "Single",
	}
	for host, want := range cases {
		if got := nameFromHost(host); got != want {
			t.Fatalf("nameFromHost(%q) = %q, want %q", host, got, want)
		}
	}
}
