package store

import (
	"errors"
	"sort"
	"testing"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	return &DiskStore{Root: t.TempDir()}
}

func TestDiskStore_WriteReadRoundTrip(t *testing.T) {
	st := newTestStore(t)

	if err := st.Write("sessions/a.json", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := st.Read("sessions/a.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != `{"x":1}` {
		t.Fatalf("Read = %q, want %q", data, `{"x":1}`)
	}
	if !st.Exists("sessions/a.json") {
		t.Fatal("Exists = false after write")
	}
}

func TestDiskStore_ReadMissingIsErrNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Read("nope.json")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read missing = %v, want ErrNotFound", err)
	}
}

func TestDiskStore_DeleteAndCopy(t *testing.T) {
	st := newTestStore(t)

	if err := st.Write("a.json", []byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.Copy("a.json", "trash/a.json"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if err := st.Delete("a.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if st.Exists("a.json") {
		t.Fatal("source still exists after delete")
	}
	data, err := st.Read("trash/a.json")
	if err != nil {
		t.Fatalf("Read copy: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("copy content = %q, want %q", data, "payload")
	}
}

func TestDiskStore_List(t *testing.T) {
	st := newTestStore(t)

	for _, p := range []string{"trash/a.json", "trash/b.json", "sessions/c.json"} {
		if err := st.Write(p, []byte("{}")); err != nil {
			t.Fatalf("Write %s: %v", p, err)
		}
	}

	paths, err := st.List("trash")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(paths)
	want := []string{"trash/a.json", "trash/b.json"}
	if len(paths) != len(want) {
		t.Fatalf("List = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("List[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestDiskStore_ListMissingDirIsEmpty(t *testing.T) {
	st := newTestStore(t)

	paths, err := st.List("absent")
	if err != nil {
		t.Fatalf("List absent dir: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("List absent dir = %v, want empty", paths)
	}
}
