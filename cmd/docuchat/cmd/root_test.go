package cmd

import "testing"

func TestRootSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := map[string]bool{
		"ingest":     false,
		"documents":  false,
		"search":     false,
		"chat":       false,
		"index":      false,
		"embeddings": false,
	}
	for _, sub := range root.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestIndexSubcommands(t *testing.T) {
	var configPath string
	var verbose bool
	idx := newIndexCmd(&configPath, &verbose)

	names := make(map[string]bool)
	for _, sub := range idx.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"create", "inspect", "repair"} {
		if !names[name] {
			t.Errorf("index command missing %q", name)
		}
	}
}
