package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rom.bin")
	data := []byte("cartridge bytes")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	size, digest, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if size != int64(len(data)) || digest != sum(data) {
		t.Fatalf("unexpected hash result %d %s", size, digest)
	}
	if _, _, err := HashFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "cover.png")
	if err := WriteFileAtomic(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("v2"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "v2" {
		t.Fatalf("unexpected content %q err=%v", got, err)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected mode %v", info.Mode())
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, found %d entries", len(entries))
	}
}

func TestConcatPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	chunks := []string{"alpha-", "beta-", "gamma"}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = filepath.Join(dir, "part"+string(rune('0'+i)))
		if err := os.WriteFile(parts[i], []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	dst := filepath.Join(dir, "assembled")
	size, digest, err := Concat(dst, parts)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	want := []byte("alpha-beta-gamma")
	got, _ := os.ReadFile(dst)
	if string(got) != string(want) || size != int64(len(want)) || digest != sum(want) {
		t.Fatalf("unexpected assembly %q size=%d", got, size)
	}
}

func TestConcatMissingPartRemovesDestination(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "assembled")
	if _, _, err := Concat(dst, []string{filepath.Join(dir, "nope")}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("expected destination removed, stat err=%v", err)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified: %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "payload" {
		t.Fatalf("unexpected copy %q", got)
	}
	if err := CopyFileVerified(filepath.Join(dir, "missing"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, ".game.part")
	dst := filepath.Join(dir, "snes", "game.sfc")
	if err := os.WriteFile(src, []byte("rom"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("expected source removed")
	}
	if got, _ := os.ReadFile(dst); string(got) != "rom" {
		t.Fatalf("unexpected content %q", got)
	}
}
