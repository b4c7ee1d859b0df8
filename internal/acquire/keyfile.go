package acquire

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/systmms/keyturn/pkg/credential"
)

// Key files come in four shapes, tried in this order:
//
//   - XML key file, version 2.0: hex-encoded key data with an integrity
//     hash attribute.
//   - XML key file, version 1.0: base64-encoded 32-byte key data.
//   - Raw 32-byte file: used verbatim.
//   - 64 hex characters: decoded.
//
// Anything else falls back to SHA-256 of the whole file, so any file
// can serve as a key file; the fallback is stable across loads.

const (
	keyFileSize = 32

	// maxKeyFileSize caps how much of an arbitrary fallback file is
	// read. Larger files are almost certainly a mistake (a vault, a
	// disk image) rather than a key file.
	maxKeyFileSize = 16 << 20
)

// ErrKeyFileHashMismatch is returned when a v2 XML key file's integrity
// hash does not match its key data, which means the file was damaged.
var ErrKeyFileHashMismatch = errors.New("key file integrity hash mismatch")

type xmlKeyFile struct {
	XMLName xml.Name   `xml:"KeyFile"`
	Meta    xmlKeyMeta `xml:"Meta"`
	Key     xmlKeyData `xml:"Key"`
}

type xmlKeyMeta struct {
	Version string `xml:"Version"`
}

type xmlKeyData struct {
	Data xmlKeyBlob `xml:"Data"`
}

type xmlKeyBlob struct {
	Hash    string `xml:"Hash,attr"`
	Content string `xml:",chardata"`
}

// KeyFileLoader loads key files from the file system and derives
// file-key factors. It implements rotation.FileKeyLoader.
type KeyFileLoader struct{}

// LoadFileKey reads and parses the key file at path.
func (KeyFileLoader) LoadFileKey(ctx context.Context, path string) (credential.Factor, error) {
	if err := ctx.Err(); err != nil {
		return credential.Factor{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return credential.Factor{}, err
	}
	if info.IsDir() {
		return credential.Factor{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxKeyFileSize {
		return credential.Factor{}, fmt.Errorf("%s is too large to be a key file (%d bytes)", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return credential.Factor{}, err
	}

	material, err := parseKeyFile(data)
	if err != nil {
		return credential.Factor{}, err
	}
	defer wipe(material)

	return credential.NewFactor(credential.KindFileKey, material), nil
}

func parseKeyFile(data []byte) ([]byte, error) {
	if looksLikeXML(data) {
		return parseXMLKeyFile(data)
	}

	if len(data) == keyFileSize {
		out := make([]byte, keyFileSize)
		copy(out, data)
		return out, nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 2*keyFileSize {
		if raw, err := hex.DecodeString(string(trimmed)); err == nil {
			return raw, nil
		}
	}

	// Fallback: any other file keys the vault through its hash.
	sum := sha256.Sum256(data)
	return sum[:], nil
}

func looksLikeXML(data []byte) bool {
	head := bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(head, []byte("<?xml")) || bytes.HasPrefix(head, []byte("<KeyFile"))
}

func parseXMLKeyFile(data []byte) ([]byte, error) {
	var kf xmlKeyFile
	if err := xml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("key file is malformed: %w", err)
	}

	content := strings.Join(strings.Fields(kf.Key.Data.Content), "")
	if content == "" {
		return nil, errors.New("key file is malformed: no key data")
	}

	switch {
	case strings.HasPrefix(kf.Meta.Version, "2"):
		raw, err := hex.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("key file is malformed: invalid hex key data: %w", err)
		}
		if len(raw) != keyFileSize {
			return nil, fmt.Errorf("key file is malformed: key data is %d bytes, want %d", len(raw), keyFileSize)
		}
		if kf.Key.Data.Hash != "" && !verifyKeyHash(raw, kf.Key.Data.Hash) {
			return nil, ErrKeyFileHashMismatch
		}
		return raw, nil

	case strings.HasPrefix(kf.Meta.Version, "1"), kf.Meta.Version == "":
		raw, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("key file is malformed: invalid base64 key data: %w", err)
		}
		if len(raw) != keyFileSize {
			return nil, fmt.Errorf("key file is malformed: key data is %d bytes, want %d", len(raw), keyFileSize)
		}
		return raw, nil

	default:
		return nil, fmt.Errorf("unsupported key file version %q", kf.Meta.Version)
	}
}

// verifyKeyHash checks the v2 integrity attribute: the first four bytes
// of SHA-256 over the key data, hex-encoded.
func verifyKeyHash(key []byte, attr string) bool {
	sum := sha256.Sum256(key)
	return strings.EqualFold(attr, hex.EncodeToString(sum[:4]))
}

// GenerateKeyFile writes a fresh version 2.0 XML key file with 32
// random bytes at path. It refuses to overwrite an existing file: a
// clobbered key file permanently locks every vault sealed with it.
func GenerateKeyFile(path string) error {
	key := make([]byte, keyFileSize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("generating key material: %w", err)
	}
	defer wipe(key)

	sum := sha256.Sum256(key)
	kf := xmlKeyFile{
		Meta: xmlKeyMeta{Version: "2.0"},
		Key: xmlKeyData{
			Data: xmlKeyBlob{
				Hash:    hex.EncodeToString(sum[:4]),
				Content: hex.EncodeToString(key),
			},
		},
	}

	body, err := xml.MarshalIndent(kf, "", "    ")
	if err != nil {
		return err
	}
	content := append([]byte(xml.Header), body...)
	content = append(content, '\n')

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
