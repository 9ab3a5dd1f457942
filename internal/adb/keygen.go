package adb

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
)

const (
	keyBits  = 2048
	keyWords = keyBits / 32
	keyBytes = keyBits / 8
)

// EnsureKey generates an ADB key pair at path unless a key already exists.
// It reports whether a new key was written.
func EnsureKey(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	path = ExpandPath(path)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := GenerateKey(path); err != nil {
		return false, err
	}
	return true, nil
}

// GenerateKey writes a new RSA private key to path (PKCS#1 PEM) and the
// matching Android public key to path + ".pub".
func GenerateKey(path string) error {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("generating rsa key: %w", err)
	}

	der := x509.MarshalPKCS1PrivateKey(key)

	pub, err := AndroidPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}), 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	line := pub + " graylogic@" + host + "\n"
	if err := os.WriteFile(path+".pub", []byte(line), 0o644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// AndroidPublicKey encodes pub in the format adbd expects in adb_keys:
// a little-endian RSAPublicKey struct (word count, n0inv, modulus, R^2 mod n,
// exponent), base64 encoded.
func AndroidPublicKey(pub *rsa.PublicKey) (string, error) {
	if pub.N.BitLen() != keyBits {
		return "", fmt.Errorf("adb: public key must be %d bits", keyBits)
	}

	r32 := new(big.Int).Lsh(big.NewInt(1), 32)
	n0inv := new(big.Int).ModInverse(new(big.Int).Mod(pub.N, r32), r32)
	if n0inv == nil {
		return "", fmt.Errorf("adb: modulus is not invertible mod 2^32")
	}
	n0inv.Sub(r32, n0inv)

	rr := new(big.Int).Lsh(big.NewInt(1), keyBits*2)
	rr.Mod(rr, pub.N)

	buf := make([]byte, 0, 4+4+keyBytes+keyBytes+4)
	buf = binary.LittleEndian.AppendUint32(buf, keyWords)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(n0inv.Uint64()))
	buf = append(buf, littleEndian(pub.N)...)
	buf = append(buf, littleEndian(rr)...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(pub.E))

	return base64.StdEncoding.EncodeToString(buf), nil
}

func littleEndian(n *big.Int) []byte {
	b := n.FillBytes(make([]byte, keyBytes))
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// IsReadableFile reports whether path names a regular file the bridge can read.
func IsReadableFile(path string) bool {
	path = ExpandPath(path)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
