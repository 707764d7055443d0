// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, level string) {
	t.Helper()
	data := []byte("log:\n  level: " + level + "\nplaylist:\n  shuffle: false\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestConfigHolder_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aerial.yaml")
	writeConfig(t, path, "info")

	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewConfigHolder(initial, loader)
	updates := make(chan AppConfig, 1)
	h.RegisterListener(updates)

	writeConfig(t, path, "debug")
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, "debug", h.Get().Log.Level)

	select {
	case got := <-updates:
		assert.Equal(t, "debug", got.Log.Level)
	default:
		t.Fatal("listener was not notified")
	}
}

func TestConfigHolder_ReloadKeepsOldConfigOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aerial.yaml")
	writeConfig(t, path, "warn")

	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewConfigHolder(initial, loader)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  listenAddr: nope\n"), 0o600))
	err = h.Reload(context.Background())
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, "warn", h.Get().Log.Level)
	assert.Equal(t, initial, h.Get())
}

func TestConfigHolder_FullListenerIsSkipped(t *testing.T) {
	h := NewConfigHolder(Defaults(), NewLoader("", "test"))
	full := make(chan AppConfig)
	h.RegisterListener(full)

	done := make(chan struct{})
	go func() {
		_ = h.Reload(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reload blocked on a listener")
	}
}

func TestConfigHolder_WatchPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aerial.yaml")
	writeConfig(t, path, "info")

	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewConfigHolder(initial, loader)

	ctx, cancel := context.WithCancel(context.Background())
	watchErr := make(chan error, 1)
	go func() { watchErr <- h.Watch(ctx) }()

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))

	require.Eventually(t, func() bool {
		if h.Get().Log.Level == "error" {
			return true
		}
		// The tick outlasts the debounce, so a rewrite never starves it.
		_ = os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600)
		return false
	}, 10*time.Second, time.Second)

	cancel()
	select {
	case err := <-watchErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestConfigHolder_WatchWithoutFileBlocksUntilDone(t *testing.T) {
	h := NewConfigHolder(Defaults(), NewLoader("", "test"))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, h.Watch(ctx))
}
