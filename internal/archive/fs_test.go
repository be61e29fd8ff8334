package archive

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
)

func newTestArchive(t *testing.T) *FSArchive {
	t.Helper()

	a, err := NewFSArchive(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSArchive() error = %v", err)
	}
	return a
}

func TestFSArchive_PutAndGet(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	content := []byte(`{"id":"abc","name":"Wang Min"}`)
	url, err := a.Put(ctx, "profiles/abc/detail.json", content)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Errorf("Put() url = %q, want file:// prefix", url)
	}
	if url != a.Link("profiles/abc/detail.json") {
		t.Errorf("Put() url = %q, Link() = %q", url, a.Link("profiles/abc/detail.json"))
	}

	got, err := a.Get(ctx, "profiles/abc/detail.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Get() = %q, want %q", got, content)
	}
}

func TestFSArchive_Put_Replaces(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	if _, err := a.Put(ctx, "profiles/abc/detail.json", []byte("v1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := a.Put(ctx, "profiles/abc/detail.json", []byte("v2")); err != nil {
		t.Fatalf("Put() replace error = %v", err)
	}

	got, err := a.Get(ctx, "profiles/abc/detail.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("Get() = %q, want v2", got)
	}
}

func TestFSArchive_Get_NotFound(t *testing.T) {
	a := newTestArchive(t)

	if _, err := a.Get(context.Background(), "profiles/missing/detail.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestFSArchive_List(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	seed := []string{
		"profiles/a/detail.json",
		"profiles/a/cover.jpg",
		"profiles/b/detail.json",
	}
	for _, path := range seed {
		if _, err := a.Put(ctx, path, []byte("x")); err != nil {
			t.Fatalf("Put(%s) error = %v", path, err)
		}
	}

	got, err := a.List(ctx, "profiles/a")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	sort.Strings(got)
	want := []string{"profiles/a/cover.jpg", "profiles/a/detail.json"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	empty, err := a.List(ctx, "profiles/missing")
	if err != nil {
		t.Fatalf("List() absent prefix error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("List() absent prefix = %v, want empty", empty)
	}
}

func TestFSArchive_Delete_Idempotent(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	if _, err := a.Put(ctx, "profiles/a/detail.json", []byte("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := a.Delete(ctx, "profiles/a/detail.json"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := a.Delete(ctx, "profiles/a/detail.json"); err != nil {
		t.Errorf("Delete() second call error = %v", err)
	}

	if _, err := a.Get(ctx, "profiles/a/detail.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestFSArchive_DeletePrefix(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	for _, path := range []string{"profiles/a/detail.json", "profiles/a/cover.jpg", "profiles/b/detail.json"} {
		if _, err := a.Put(ctx, path, []byte("x")); err != nil {
			t.Fatalf("Put(%s) error = %v", path, err)
		}
	}

	if err := a.DeletePrefix(ctx, "profiles/a"); err != nil {
		t.Fatalf("DeletePrefix() error = %v", err)
	}
	if err := a.DeletePrefix(ctx, "profiles/a"); err != nil {
		t.Errorf("DeletePrefix() second call error = %v", err)
	}

	remaining, err := a.List(ctx, "profiles")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0] != "profiles/b/detail.json" {
		t.Errorf("List() after DeletePrefix = %v, want only profiles/b/detail.json", remaining)
	}
}

func TestFSArchive_RejectsTraversal(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	for _, path := range []string{"../escape.json", "/etc/passwd", "."} {
		if _, err := a.Put(ctx, path, []byte("x")); err == nil {
			t.Errorf("Put(%q) should fail", path)
		}
	}
}
