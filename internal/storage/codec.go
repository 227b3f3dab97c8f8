package storage

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/annel0/map-editor/internal/storage_interface"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// blobCodec сжимает содержимое ревизий и проверяет дайджест
type blobCodec struct {
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

func newBlobCodec(compress bool) (*blobCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &blobCodec{compress: compress, enc: enc, dec: dec}, nil
}

// Digest blake2b-256 содержимого в hex
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// pack создаёт описание новой ревизии и упаковывает данные для хранения
func (c *blobCodec) pack(name string, data []byte, meta map[string]string) (storage_interface.Revision, []byte) {
	rev := storage_interface.Revision{
		ID:      uuid.NewString(),
		Name:    name,
		Created: time.Now().UTC(),
		Size:    len(data),
		Digest:  Digest(data),
		Meta:    copyMeta(meta),
	}

	var stored []byte
	if c.compress {
		stored = c.enc.EncodeAll(data, make([]byte, 0, len(data)/2))
		rev.Compressed = true
	} else {
		stored = append([]byte(nil), data...)
	}
	rev.Stored = len(stored)
	return rev, stored
}

// unpack восстанавливает исходные данные и сверяет дайджест
func (c *blobCodec) unpack(rev storage_interface.Revision, stored []byte) ([]byte, error) {
	data := stored
	if rev.Compressed {
		var err error
		data, err = c.dec.DecodeAll(stored, make([]byte, 0, rev.Size))
		if err != nil {
			return nil, fmt.Errorf("ревизия %s: %w: %v", rev.ID, storage_interface.ErrCorrupted, err)
		}
	}
	if Digest(data) != rev.Digest {
		return nil, fmt.Errorf("ревизия %s: %w: дайджест не совпадает", rev.ID, storage_interface.ErrCorrupted)
	}
	return data, nil
}

func (c *blobCodec) close() {
	c.enc.Close()
	c.dec.Close()
}

func copyMeta(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("пустое имя документа")
	}
	return nil
}
