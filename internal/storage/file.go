package storage

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"CollabBoard/internal/state"
)

const (
	plainExt      = ".json"
	compressedExt = ".json.zst"
)

// FileStore writes each room to <dir>/<room>.json, or <room>.json.zst when
// compression is on. Files are replaced atomically on every save.
type FileStore struct {
	dir      string
	compress bool

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, compress bool) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating data dir %s", dir)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, errors.Wrap(err, "zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, errors.Wrap(err, "zstd decoder")
	}
	return &FileStore{dir: dir, compress: compress, enc: enc, dec: dec}, nil
}

func (f *FileStore) path(roomID, ext string) string {
	return filepath.Join(f.dir, url.PathEscape(roomID)+ext)
}

// Load reads the compressed snapshot if there is one, else the plain one,
// so toggling compression keeps old rooms readable.
func (f *FileStore) Load(_ context.Context, roomID string) ([]state.LogEntry, error) {
	data, err := os.ReadFile(f.path(roomID, compressedExt))
	if err == nil {
		if data, err = f.dec.DecodeAll(data, nil); err != nil {
			return nil, errors.Wrapf(err, "decompressing room %s", roomID)
		}
	} else if os.IsNotExist(err) {
		data, err = os.ReadFile(f.path(roomID, plainExt))
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading room %s", roomID)
		}
	} else {
		return nil, errors.Wrapf(err, "reading room %s", roomID)
	}

	var entries []state.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "decoding room %s", roomID)
	}
	return entries, nil
}

func (f *FileStore) Save(_ context.Context, roomID string, entries []state.LogEntry) error {
	if entries == nil {
		entries = []state.LogEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding room %s", roomID)
	}
	ext, stale := plainExt, compressedExt
	if f.compress {
		data = f.enc.EncodeAll(data, nil)
		ext, stale = compressedExt, plainExt
	}

	tmp, err := os.CreateTemp(f.dir, ".room-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing room %s", roomID)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "writing room %s", roomID)
	}
	if err := os.Rename(tmp.Name(), f.path(roomID, ext)); err != nil {
		return errors.Wrapf(err, "replacing room %s", roomID)
	}
	if err := os.Remove(f.path(roomID, stale)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing stale snapshot of room %s", roomID)
	}
	return nil
}

func (f *FileStore) Close() error {
	f.enc.Close()
	f.dec.Close()
	return nil
}
