package statestore

import (
	"path/filepath"
	"testing"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/fixture"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	bdg, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	t.Cleanup(func() { bdg.Close() })

	mem := NewMemory()
	t.Cleanup(func() { mem.Close() })

	return map[string]Store{"memory": mem, "badger": bdg}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			acc := fixture.Wallet("alice")
			acc.Data = []byte{1, 2, 3}
			if err := st.Put(acc); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := st.Get(acc.Key)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Key != acc.Key || got.Owner != acc.Owner || got.Lamports != acc.Lamports {
				t.Errorf("Get = %+v, want %+v", got, acc)
			}
			if !got.IsSigner || !got.IsWritable {
				t.Error("harness flags not preserved")
			}
			if string(got.Data) != string(acc.Data) {
				t.Errorf("Data = %v, want %v", got.Data, acc.Data)
			}

			// The returned account is a clone.
			got.Lamports = 0
			again, err := st.Get(acc.Key)
			if err != nil || again.Lamports != acc.Lamports {
				t.Errorf("stored account mutated through a Get result")
			}

			count, err := st.Count()
			if err != nil || count != 1 {
				t.Errorf("Count = %d, %v, want 1", count, err)
			}
		})
	}
}

func TestStoreMissingAndDelete(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			key := fixture.Key("ghost")
			if _, err := st.Get(key); err != ErrNotFound {
				t.Errorf("Get missing = %v, want ErrNotFound", err)
			}
			if err := st.Delete(key); err != nil {
				t.Errorf("Delete missing = %v, want nil", err)
			}

			acc := fixture.Wallet("bob")
			if err := st.Put(acc); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := st.Delete(acc.Key); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if has, _ := st.Has(acc.Key); has {
				t.Error("account survived Delete")
			}
			count, err := st.Count()
			if err != nil || count != 0 {
				t.Errorf("Count = %d, %v, want 0", count, err)
			}
		})
	}
}

func TestPutNonExistentDeletes(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			acc := fixture.Wallet("carol")
			if err := st.Put(acc); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			gone := acc.Clone()
			gone.Lamports = 0
			gone.Data = nil
			if err := st.Put(gone); err != nil {
				t.Fatalf("Put zero failed: %v", err)
			}
			if has, _ := st.Has(acc.Key); has {
				t.Error("non-existent account was kept")
			}
		})
	}
}

func TestIterateSorted(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, label := range []string{"a", "b", "c", "d"} {
				if err := st.Put(fixture.Wallet(label)); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			var keys []types.Pubkey
			err := st.Iterate(func(acc *account.Account) error {
				keys = append(keys, acc.Key)
				return nil
			})
			if err != nil {
				t.Fatalf("Iterate failed: %v", err)
			}
			if len(keys) != 4 {
				t.Fatalf("Iterate visited %d accounts, want 4", len(keys))
			}
			for i := 1; i < len(keys); i++ {
				if string(keys[i-1][:]) >= string(keys[i][:]) {
					t.Fatalf("iteration out of order at %d", i)
				}
			}
		})
	}
}

func TestClosedStore(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}
			if _, err := st.Get(fixture.Key("alice")); err != ErrClosed {
				t.Errorf("Get after close = %v, want ErrClosed", err)
			}
			if err := st.Put(fixture.Wallet("alice")); err != ErrClosed {
				t.Errorf("Put after close = %v, want ErrClosed", err)
			}
		})
	}
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultBadgerConfig(dir)

	st, err := OpenBadger(cfg)
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	if err := st.Put(fixture.Wallet("alice")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := st.SetRevision(7); err != nil {
		t.Fatalf("SetRevision failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	st, err = OpenBadger(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer st.Close()

	if got := st.Revision(); got != 7 {
		t.Errorf("Revision after reopen = %d, want 7", got)
	}
	count, err := st.Count()
	if err != nil || count != 1 {
		t.Errorf("Count after reopen = %d, %v, want 1", count, err)
	}
	if _, err := st.Get(fixture.Key("alice")); err != nil {
		t.Errorf("Get after reopen failed: %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := NewMemory()
	defer src.Close()

	for _, label := range []string{"alice", "bob", "carol"} {
		if err := src.Put(fixture.Wallet(label)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := src.SetRevision(3); err != nil {
		t.Fatalf("SetRevision failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), SnapshotFilename(3))
	if err := WriteSnapshot(src, path); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	header, err := ReadSnapshotHeader(path)
	if err != nil {
		t.Fatalf("ReadSnapshotHeader failed: %v", err)
	}
	if header.Count != 3 || header.Revision != 3 {
		t.Errorf("header = %+v, want count 3 revision 3", header)
	}

	dst, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	defer dst.Close()
	// Pre-populate with an entry the snapshot must displace.
	if err := dst.Put(fixture.Wallet("stale")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := LoadSnapshot(dst, path); err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if got := dst.Revision(); got != 3 {
		t.Errorf("Revision = %d, want 3", got)
	}
	count, err := dst.Count()
	if err != nil || count != 3 {
		t.Errorf("Count = %d, %v, want 3", count, err)
	}
	if has, _ := dst.Has(fixture.Key("stale")); has {
		t.Error("stale entry survived LoadSnapshot")
	}
	got, err := dst.Get(fixture.Key("alice"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.IsSigner || got.Lamports != fixture.DefaultLamports {
		t.Errorf("restored account = %+v", got)
	}
}

func TestSnapshotMissing(t *testing.T) {
	src := NewMemory()
	defer src.Close()
	if err := src.Put(fixture.Wallet("alice")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), SnapshotFilename(0))
	if err := WriteSnapshot(src, path); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	if _, err := ReadSnapshotHeader(path + ".missing"); err != ErrSnapshotNotFound {
		t.Errorf("missing snapshot = %v, want ErrSnapshotNotFound", err)
	}
}
