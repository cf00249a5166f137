package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ramkansal/fightgraph/pkg/plugin"
	"github.com/stretchr/testify/require"
)

func TestStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "state.json")

	s, err := loadState(path)
	require.NoError(t, err)
	require.Nil(t, s)

	want := plugin.FrontierSnapshot{
		Queue:   []string{"https://boxrec.com/en/proboxer/3"},
		Visited: []string{"https://boxrec.com/en/proboxer/1", "https://boxrec.com/en/proboxer/2"},
	}
	require.NoError(t, saveState(path, want))

	got, err := loadState(path)
	require.NoError(t, err)
	require.Equal(t, want, *got)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = loadState(path)
	require.ErrorContains(t, err, "parse crawl state")
}
