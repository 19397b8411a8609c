package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/teamlens/teamlens/internal/config"
)

func newTestLocalStore(t *testing.T) *localStore {
	t.Helper()
	store, err := newLocalStore(config.ExportsDirConfig{Directory: t.TempDir()})
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return store
}

func TestLocalStorePutGetRoundTrip(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	payload := []byte("a,b\n1,2\n")
	info, err := store.Put(ctx, "u1/export.csv", bytes.NewReader(payload), PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"owner": "u1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", info.Size, len(payload))
	}

	body, got, err := store.Get(ctx, "u1/export.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("body = %q, want %q", data, payload)
	}
	if got.ContentType != "text/csv" || got.Metadata["owner"] != "u1" {
		t.Fatalf("metadata = %+v", got)
	}
}

func TestLocalStoreGetMissing(t *testing.T) {
	store := newTestLocalStore(t)
	_, _, err := store.Get(context.Background(), "nope/missing.csv")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStoreDelete(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "u1/gone.csv", bytes.NewReader([]byte("x")), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "u1/gone.csv"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Get(ctx, "u1/gone.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// Deleting twice is fine.
	if err := store.Delete(ctx, "u1/gone.csv"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store := newTestLocalStore(t)
	for _, key := range []string{"../outside", ".", "../../etc/passwd"} {
		if _, err := store.Put(context.Background(), key, bytes.NewReader(nil), PutOptions{}); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}
