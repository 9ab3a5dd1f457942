package adb

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "adbkey")

	if err := GenerateKey(path); err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	priv, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading private key: %v", err)
	}
	block, _ := pem.Decode(priv)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		t.Fatalf("private key is not a PKCS#1 PEM block")
	}
	if _, err := x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
		t.Errorf("ParsePKCS1PrivateKey() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("private key mode = %v, want 0600", info.Mode().Perm())
	}

	pub, err := os.ReadFile(path + ".pub")
	if err != nil {
		t.Fatalf("reading public key: %v", err)
	}
	fields := strings.Fields(string(pub))
	if len(fields) != 2 || !strings.HasPrefix(fields[1], "graylogic@") {
		t.Fatalf("public key line = %q", pub)
	}

	raw, err := base64.StdEncoding.DecodeString(fields[0])
	if err != nil {
		t.Fatalf("public key is not base64: %v", err)
	}
	if len(raw) != 4+4+keyBytes+keyBytes+4 {
		t.Fatalf("public key struct length = %d", len(raw))
	}
	if words := binary.LittleEndian.Uint32(raw[:4]); words != keyWords {
		t.Errorf("word count = %d, want %d", words, keyWords)
	}
	if e := binary.LittleEndian.Uint32(raw[len(raw)-4:]); e != 65537 {
		t.Errorf("exponent = %d, want 65537", e)
	}
}

func TestEnsureKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adbkey")

	created, err := EnsureKey(path)
	if err != nil || !created {
		t.Fatalf("EnsureKey() = %v, %v, want true, nil", created, err)
	}
	first, _ := os.ReadFile(path)

	created, err = EnsureKey(path)
	if err != nil || created {
		t.Fatalf("second EnsureKey() = %v, %v, want false, nil", created, err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Error("EnsureKey() overwrote an existing key")
	}

	if created, err := EnsureKey(""); created || err != nil {
		t.Errorf("EnsureKey(\"\") = %v, %v", created, err)
	}
}

func TestIsReadableFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "adbkey")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if !IsReadableFile(file) {
		t.Error("IsReadableFile(file) = false")
	}
	if IsReadableFile(dir) {
		t.Error("IsReadableFile(dir) = true")
	}
	if IsReadableFile(filepath.Join(dir, "missing")) {
		t.Error("IsReadableFile(missing) = true")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/.android/adbkey"); got != filepath.Join(home, ".android/adbkey") {
		t.Errorf("ExpandPath() = %q", got)
	}
	if got := ExpandPath("/abs/key"); got != "/abs/key" {
		t.Errorf("ExpandPath(abs) = %q", got)
	}
}
