package engine

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/fsutil"
)

// Snapshot file layout inside a main index directory.
const (
	SnapshotFile   = "snapshot.ssx"
	ManifestFile   = "manifest.json"
	SnapshotFormat = "ssx1"

	snapshotMagic = "SSX1"
)

// Manifest describes a snapshot. It is written in clear next to the
// encrypted payload.
type Manifest struct {
	Format       string    `json:"format"`
	IndexVersion string    `json:"indexVersion"`
	Count        int       `json:"count"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WriteSnapshot encrypts messages with key and writes them under dir.
func WriteSnapshot(dir string, key []byte, messages []json.RawMessage) (*Manifest, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeInvalidKey, "snapshot key rejected", err)
	}

	var plain bytes.Buffer
	for _, m := range messages {
		var compact bytes.Buffer
		if err := json.Compact(&compact, m); err != nil {
			return nil, fmt.Errorf("compact message: %w", err)
		}
		plain.Write(compact.Bytes())
		plain.WriteByte('\n')
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(plain.Bytes(), nil)
	_ = enc.Close()

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(snapshotMagic)+len(nonce)+len(compressed)+aead.Overhead())
	out = append(out, snapshotMagic...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, compressed, []byte(snapshotMagic))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, SnapshotFile), out, 0o600); err != nil {
		return nil, err
	}

	m := &Manifest{
		Format:       SnapshotFormat,
		IndexVersion: config.IndexVersion,
		Count:        len(messages),
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return nil, err
	}
	return m, nil
}

// OpenSnapshot decrypts the snapshot under dir. A wrong key, a truncated
// file or a count mismatch with the manifest is reported as a corrupt index.
func OpenSnapshot(dir string, key []byte) ([]json.RawMessage, *Manifest, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, SnapshotFile))
	if err != nil {
		return nil, nil, amerrors.New(amerrors.ErrCodeCorruptIndex, "snapshot missing", err).WithDetail("dir", dir)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, amerrors.New(amerrors.ErrCodeInvalidKey, "snapshot key rejected", err)
	}
	header := len(snapshotMagic) + chacha20poly1305.NonceSizeX
	if len(data) < header+aead.Overhead() || string(data[:len(snapshotMagic)]) != snapshotMagic {
		return nil, nil, amerrors.New(amerrors.ErrCodeCorruptIndex, "snapshot header invalid", nil)
	}
	nonce := data[len(snapshotMagic):header]
	compressed, err := aead.Open(nil, nonce, data[header:], []byte(snapshotMagic))
	if err != nil {
		return nil, nil, amerrors.New(amerrors.ErrCodeCorruptIndex, "snapshot decryption failed", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()
	plain, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, nil, amerrors.New(amerrors.ErrCodeCorruptIndex, "snapshot payload invalid", err)
	}

	var messages []json.RawMessage
	sc := bufio.NewScanner(bytes.NewReader(plain))
	sc.Buffer(make([]byte, 0, 64*1024), len(plain)+1)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		messages = append(messages, append(json.RawMessage(nil), line...))
	}
	if err := sc.Err(); err != nil {
		return nil, nil, amerrors.New(amerrors.ErrCodeCorruptIndex, "snapshot payload invalid", err)
	}
	if len(messages) != manifest.Count {
		return nil, nil, amerrors.New(amerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("snapshot holds %d messages, manifest says %d", len(messages), manifest.Count), nil)
	}
	return messages, manifest, nil
}

// ReadManifest reads the clear-text manifest under dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeCorruptIndex, "snapshot manifest missing", err).WithDetail("dir", dir)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeCorruptIndex, "snapshot manifest invalid", err)
	}
	if m.Format != SnapshotFormat {
		return nil, amerrors.New(amerrors.ErrCodeCorruptIndex, "unknown snapshot format "+m.Format, nil)
	}
	return &m, nil
}
