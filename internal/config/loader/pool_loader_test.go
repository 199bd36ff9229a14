package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const poolBody = `pool:
  - auth: tok-a
    stock_code: "600547"
    stock_name: 山东黄金
  - auth: tok-b
    stock_code: "601899"
`

func writePool(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestPoolLoaderInitialSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	writePool(t, path, poolBody)

	l, err := NewPoolLoader(path)
	require.NoError(t, err)
	defer l.Close()

	snap := l.Snapshot()
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, "tok-a", snap.Entries[0].Auth)
	assert.Equal(t, "山东黄金", snap.Entries[0].StockName)
	assert.Equal(t, "601899", snap.Entries[1].StockCode)
}

func TestPoolLoaderSkipsIncompleteRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	writePool(t, path, "pool:\n  - auth: tok-a\n  - stock_code: \"600547\"\n  - auth: tok-b\n    stock_code: \"601899\"\n")

	l, err := NewPoolLoader(path)
	require.NoError(t, err)
	defer l.Close()

	snap := l.Snapshot()
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "tok-b", snap.Entries[0].Auth)
}

func TestPoolLoaderRejectsDuplicateAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	writePool(t, path, "pool:\n  - {auth: tok-a, stock_code: \"600547\"}\n  - {auth: tok-a, stock_code: \"601899\"}\n")

	_, err := NewPoolLoader(path)
	assert.Error(t, err)
}

func TestPoolLoaderHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	writePool(t, path, poolBody)

	l, err := NewPoolLoader(path)
	require.NoError(t, err)
	defer l.Close()

	got := make(chan PoolSnapshot, 4)
	l.Subscribe(func(s PoolSnapshot) { got <- s })

	// Initial snapshot arrives first.
	select {
	case s := <-got:
		assert.Equal(t, 1, s.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	writePool(t, path, "pool:\n  - {auth: tok-c, stock_code: \"600919\"}\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-got:
			if len(s.Entries) == 1 && s.Entries[0].Auth == "tok-c" {
				return
			}
		case <-deadline:
			t.Fatal("reload never observed")
		}
	}
}

func TestPoolLoaderSnapshotIsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	writePool(t, path, poolBody)

	l, err := NewPoolLoader(path)
	require.NoError(t, err)
	defer l.Close()

	snap := l.Snapshot()
	snap.Entries[0].Auth = "mutated"
	assert.Equal(t, "tok-a", l.Snapshot().Entries[0].Auth)
}
