package buildinfo

import (
	"strings"
	"testing"
)

func TestTemplateShortensCommit(t *testing.T) {
	old := Commit
	defer func() { Commit = old }()

	Commit = "0123456789abcdef"
	if got := Template(); !strings.Contains(got, "(0123456,") {
		t.Errorf("Template() = %q, want short commit", got)
	}

	Commit = "none"
	if got := Template(); !strings.Contains(got, "(none,") {
		t.Errorf("Template() = %q, want %q kept", got, "none")
	}
}

func TestCurrent(t *testing.T) {
	info := Current()
	if info.Version != Version || info.Go == "" {
		t.Errorf("Current() = %+v", info)
	}
}
