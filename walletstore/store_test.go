package walletstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStoreGetSetDelete(t *testing.T) {
	store := NewMemStore()
	ns, err := store.Namespace(NamespaceAddress)
	require.NoError(t, err)

	_, ok, err := ns.Get([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, ns.Set([]byte("k"), []byte("v")))
	v, ok, err := ns.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	require.NoError(t, ns.Delete([]byte("k")))
	_, ok, err = ns.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStoreEntriesPrefix(t *testing.T) {
	store := NewMemStore()
	ns, err := store.Namespace(NamespaceUnspent)
	require.NoError(t, err)

	require.NoError(t, ns.Set([]byte("ext/0"), []byte("a")))
	require.NoError(t, ns.Set([]byte("ext/1"), []byte("b")))
	require.NoError(t, ns.Set([]byte("int/0"), []byte("c")))

	entries, err := ns.Entries([]byte("ext/"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestMemStoreClear(t *testing.T) {
	store := NewMemStore()
	ns, err := store.Namespace(NamespaceState)
	require.NoError(t, err)

	require.NoError(t, ns.Set([]byte("a"), []byte("1")))
	require.NoError(t, ns.Clear())

	entries, err := ns.Entries(nil)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMemStoreNamespacesIsolated(t *testing.T) {
	store := NewMemStore()
	a, err := store.Namespace(NamespaceAddress)
	require.NoError(t, err)
	b, err := store.Namespace(NamespaceHDWallet)
	require.NoError(t, err)

	require.NoError(t, a.Set([]byte("k"), []byte("addr")))
	_, ok, err := b.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}
