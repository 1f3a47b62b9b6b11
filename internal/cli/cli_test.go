package cli

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty defaults to svg", "", []string{"svg"}},
		{"single format", "png", []string{"png"}},
		{"multiple formats", "svg,dot, json", []string{"svg", "dot", "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseFormats(tt.input); !slices.Equal(got, tt.want) {
				t.Errorf("parseFormats(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	if got := parseList(""); got != nil {
		t.Errorf("parseList(\"\") = %v, want nil", got)
	}
	if got := parseList(" D, ,A,B "); !slices.Equal(got, []string{"D", "A", "B"}) {
		t.Errorf("parseList = %v", got)
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		output, input, want string
	}{
		{"", "runs/primates.nwk", "runs/primates"},
		{"out.svg", "primates.nwk", "out"},
		{"out.PNG", "primates.nwk", "out"},
		{"out.frames", "primates.nwk", "out.frames"},
		{"out", "primates.nwk", "out"},
		{"", "https://example.org/runs/primates.nwk?raw=1", "primates"},
		{"", "-", "phylomorph"},
	}

	for _, tt := range tests {
		t.Run(tt.output+"|"+tt.input, func(t *testing.T) {
			if got := basePath(tt.output, tt.input); got != tt.want {
				t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
			}
		})
	}
}

func TestArtifactPath(t *testing.T) {
	tests := []struct {
		format, want string
	}{
		{"svg", "run.svg"},
		{"graphviz", "run.gv.svg"},
		{"dot", "run.dot"},
	}
	for _, tt := range tests {
		if got := artifactPath("run", tt.format); got != tt.want {
			t.Errorf("artifactPath(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestWriteArtifacts(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "frame_0001")
	artifacts := map[string][]byte{"svg": []byte("<svg/>"), "dot": []byte("graph G {}")}

	paths, err := writeArtifacts(base, []string{"svg", "dot"}, artifacts)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	data, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "graph G {}" {
		t.Errorf("dot file = %q", data)
	}
}

func TestCacheLabel(t *testing.T) {
	tests := []struct {
		backend string
		noCache bool
		want    string
	}{
		{"", false, "file"},
		{"redis", false, "redis"},
		{"redis", true, "disabled"},
		{"none", false, "disabled"},
	}
	for _, tt := range tests {
		if got := cacheLabel(tt.backend, tt.noCache); got != tt.want {
			t.Errorf("cacheLabel(%q, %v) = %q, want %q", tt.backend, tt.noCache, got, tt.want)
		}
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(os.Stderr, LogInfo).RootCommand()
	want := []string{"cache", "completion", "config", "diff", "layout", "movie", "play", "render", "serve"}
	var got []string
	for _, cmd := range root.Commands() {
		got = append(got, cmd.Name())
	}
	slices.Sort(got)
	for _, name := range want {
		if !slices.Contains(got, name) {
			t.Errorf("missing subcommand %q in %v", name, got)
		}
	}
}
