// manager_test.go - Tests for storage layer
package storage

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func createTestStore(t *testing.T) *LocalStore {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		if _, err := NewLocalStore(uploadDir); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			t.Error("Expected upload directory to be created")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createTestStore(t)

		content := "Battery History (0% used):\n"
		info, err := store.Save("dump.txt", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if info.ID == "" {
			t.Error("Expected ID to be set")
		}
		if info.Name != "dump.txt" {
			t.Errorf("Expected name 'dump.txt', got %v", info.Name)
		}
		if info.Size != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), info.Size)
		}
		if info.Status != "uploaded" {
			t.Errorf("Expected status 'uploaded', got %v", info.Status)
		}

		path, err := store.GetFilePath(info.ID)
		if err != nil {
			t.Fatalf("GetFilePath failed: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read saved file: %v", err)
		}
		if string(data) != content {
			t.Errorf("Stored content = %q", string(data))
		}
	})

	t.Run("decompresses gzip input", func(t *testing.T) {
		store := createTestStore(t)

		content := "Battery History (0% used):\n0 (2) 100 status=discharging\n"
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
		gz.Close()

		info, err := store.Save("dump.txt.gz", &buf)
		if err != nil {
			t.Fatalf("Failed to save gzip file: %v", err)
		}

		if info.Name != "dump.txt" {
			t.Errorf("Expected .gz suffix stripped, got %v", info.Name)
		}
		if info.Size != int64(len(content)) {
			t.Errorf("Expected decompressed size %d, got %d", len(content), info.Size)
		}

		path, _ := store.GetFilePath(info.ID)
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != content {
			t.Error("Stored file must hold the decompressed text")
		}
	})

	t.Run("plain text starting like gzip name stays plain", func(t *testing.T) {
		store := createTestStore(t)

		// A short plain file without the gzip magic bytes.
		info, err := store.Save("tiny.gz", strings.NewReader("ok"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if info.Size != 2 {
			t.Errorf("Expected size 2, got %d", info.Size)
		}
	})
}

func TestLocalStore_ImportFile(t *testing.T) {
	store := createTestStore(t)

	src := filepath.Join(t.TempDir(), "batterystats-20240115.txt")
	if err := os.WriteFile(src, []byte("level: 57\n"), 0644); err != nil {
		t.Fatal(err)
	}

	info, err := store.ImportFile(src)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if info.Name != "batterystats-20240115.txt" {
		t.Errorf("Expected base name kept, got %v", info.Name)
	}
	if info.Size != 10 {
		t.Errorf("Expected size 10, got %d", info.Size)
	}
}

func TestLocalStore_GetListDelete(t *testing.T) {
	store := createTestStore(t)

	a, _ := store.Save("a.txt", strings.NewReader("aaa"))
	b, _ := store.Save("b.txt", strings.NewReader("bbb"))

	t.Run("get returns metadata", func(t *testing.T) {
		info, err := store.Get(a.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if info.Name != "a.txt" {
			t.Errorf("Expected 'a.txt', got %v", info.Name)
		}
	})

	t.Run("get unknown id fails", func(t *testing.T) {
		if _, err := store.Get("nope"); err == nil {
			t.Error("Expected error for unknown id")
		}
	})

	t.Run("list honors limit", func(t *testing.T) {
		list, err := store.List(1)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("Expected 1 entry, got %d", len(list))
		}
	})

	t.Run("rename updates display name", func(t *testing.T) {
		info, err := store.Rename(b.ID, "renamed.txt")
		if err != nil {
			t.Fatalf("Rename failed: %v", err)
		}
		if info.Name != "renamed.txt" {
			t.Errorf("Expected 'renamed.txt', got %v", info.Name)
		}
	})

	t.Run("delete removes file and metadata", func(t *testing.T) {
		path, _ := store.GetFilePath(a.ID)
		if err := store.Delete(a.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(a.ID); err == nil {
			t.Error("Expected metadata to be gone")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("Expected physical file to be gone")
		}
	})
}
