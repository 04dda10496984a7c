package localstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/p-n-ai/pai-scorm/internal/localstore"
)

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	st, err := localstore.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	exerciseStore(t, st.Namespace("course-1:learner-1"), st.Namespace("course-1:learner-2"))
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")
	key := localstore.DefaultKeys().CourseData

	st, err := localstore.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := st.Namespace("ns").Set(ctx, key, `{"page":3}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	st.Close()

	st, err = localstore.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer st.Close()

	got, ok, err := st.Namespace("ns").Get(ctx, key)
	if err != nil || !ok || got != `{"page":3}` {
		t.Errorf("Get() after reopen = %q, %v, %v", got, ok, err)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := localstore.OpenSQLite(context.Background(), ""); err == nil {
		t.Fatal("OpenSQLite(\"\") should fail")
	}
}
