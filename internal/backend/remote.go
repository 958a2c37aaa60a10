package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/klauspost/compress/zstd"

	"filevault/internal/blobstore"
	"filevault/internal/chunk"
)

const zstdSuffix = ".zst"

var shardableID = regexp.MustCompile(`^[0-9a-z]{4,}$`)

// ShardKey returns the remote key for id: the first two pairs of
// characters become directory levels, e.g. "ab/cd/abcdef...".
func ShardKey(id string) (string, error) {
	if !shardableID.MatchString(id) {
		return "", fmt.Errorf("id %q cannot be sharded", id)
	}
	return fmt.Sprintf("%s/%s/%s", id[0:2], id[2:4], id), nil
}

// RemoteBackend stores each body as one whole blob at a sharded key,
// optionally zstd-compressed.
type RemoteBackend struct {
	name    string
	client  blobstore.ObjectClient
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewRemote returns a remote backend over client. When compress is true
// new blobs are written zstd-compressed under a ".zst" key; reads accept
// either form.
func NewRemote(name string, client blobstore.ObjectClient, compress bool) (*RemoteBackend, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	b := &RemoteBackend{name: name, client: client, decoder: decoder}
	if compress {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			decoder.Close()
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		b.encoder = encoder
	}
	return b, nil
}

func (b *RemoteBackend) Name() string { return b.name }

// Close releases the compression state.
func (b *RemoteBackend) Close() error {
	b.decoder.Close()
	if b.encoder != nil {
		return b.encoder.Close()
	}
	return nil
}

func (b *RemoteBackend) Read(ctx context.Context, id string) ([]byte, bool, error) {
	key, err := ShardKey(id)
	if err != nil {
		return nil, false, err
	}

	for _, candidate := range b.readOrder(key) {
		data, found, err := b.get(ctx, candidate)
		if err != nil {
			return nil, false, fmt.Errorf("%s read %s: %w", b.name, id, err)
		}
		if found {
			return data, true, nil
		}
	}
	return nil, false, nil
}

func (b *RemoteBackend) get(ctx context.Context, key string) ([]byte, bool, error) {
	rc, err := b.client.Open(ctx, key)
	if errors.Is(err, blobstore.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, err
	}
	if !strings.HasSuffix(key, zstdSuffix) {
		return raw, true, nil
	}
	data, err := b.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompress %s: %w", key, err)
	}
	return data, true, nil
}

func (b *RemoteBackend) Write(ctx context.Context, id string, r io.Reader) (WriteResult, error) {
	key, err := ShardKey(id)
	if err != nil {
		return WriteResult{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return WriteResult{}, fmt.Errorf("%s write %s: read source: %w", b.name, id, err)
	}
	sum := chunk.Sum(data)

	payload := data
	if b.encoder != nil {
		payload = b.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
		key += zstdSuffix
	}
	if err := b.client.Put(ctx, key, bytes.NewReader(payload), int64(len(payload))); err != nil {
		return WriteResult{}, fmt.Errorf("%s write %s: %w", b.name, id, err)
	}
	return WriteResult{Length: sum.Length, MD5: sum.MD5}, nil
}

func (b *RemoteBackend) Exists(ctx context.Context, id string) (bool, error) {
	key, err := ShardKey(id)
	if err != nil {
		return false, err
	}
	for _, candidate := range b.readOrder(key) {
		ok, err := b.client.Stat(ctx, candidate)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// readOrder tries the form new writes use first.
func (b *RemoteBackend) readOrder(key string) []string {
	if b.encoder != nil {
		return []string{key + zstdSuffix, key}
	}
	return []string{key, key + zstdSuffix}
}
