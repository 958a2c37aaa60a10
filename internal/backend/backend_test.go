package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"filevault/internal/blobstore"
	"filevault/internal/chunk"
	"filevault/internal/config"
	"filevault/internal/store"
)

type memBackend struct {
	name     string
	mu       sync.Mutex
	data     map[string][]byte
	writeErr error
	readErr  error
	writes   int
}

func newMem(name string) *memBackend {
	return &memBackend{name: name, data: map[string][]byte{}}
}

func (m *memBackend) Name() string { return m.name }

func (m *memBackend) Read(_ context.Context, id string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, false, m.readErr
	}
	data, ok := m.data[id]
	return data, ok, nil
}

func (m *memBackend) Write(_ context.Context, id string, r io.Reader) (WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.writeErr != nil {
		return WriteResult{}, m.writeErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return WriteResult{}, err
	}
	m.data[id] = data
	sum := chunk.Sum(data)
	return WriteResult{Length: sum.Length, MD5: sum.MD5}, nil
}

func (m *memBackend) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[id]
	return ok, nil
}

func TestReadFirstHitOrder(t *testing.T) {
	ctx := context.Background()
	first, second := newMem("first"), newMem("second")
	chain := NewChain("test", []Backend{first, second}, nil, nil)

	first.data["both"] = []byte("from first")
	second.data["both"] = []byte("from second")
	second.data["only2"] = []byte("second only")

	data, from, err := chain.ReadFirstHit(ctx, "both")
	if err != nil {
		t.Fatalf("read both: %v", err)
	}
	if string(data) != "from first" || from != "first" {
		t.Fatalf("expected first backend data, got %q from %s", data, from)
	}

	data, from, err = chain.ReadFirstHit(ctx, "only2")
	if err != nil {
		t.Fatalf("read only2: %v", err)
	}
	if string(data) != "second only" || from != "second" {
		t.Fatalf("expected second backend data, got %q from %s", data, from)
	}

	_, _, err = chain.ReadFirstHit(ctx, "nowhere")
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, ErrBackendReadExhausted) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReadFirstHitSkipsFailingBackend(t *testing.T) {
	ctx := context.Background()
	broken, healthy := newMem("broken"), newMem("healthy")
	broken.readErr = errors.New("connection refused")
	healthy.data["x"] = []byte("ok")
	chain := NewChain("test", []Backend{broken, healthy}, nil, nil)

	data, from, err := chain.ReadFirstHit(ctx, "x")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "ok" || from != "healthy" {
		t.Fatalf("expected fallback to healthy, got %q from %s", data, from)
	}

	_, _, err = chain.ReadFirstHit(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found with backend errors attached, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected backend error in message, got %v", err)
	}
}

func TestReadFirstHitHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chain := NewChain("test", []Backend{newMem("a")}, nil, nil)
	if _, _, err := chain.ReadFirstHit(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestWriteAllToleratesPartialFailure(t *testing.T) {
	ctx := context.Background()
	failing, ok := newMem("failing"), newMem("ok")
	failing.writeErr = errors.New("disk full")
	chain := NewChain("test", []Backend{failing, ok}, []Backend{failing, ok}, nil)

	report, err := chain.WriteAll(ctx, "id1", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("write all: %v", err)
	}
	if report.Result.Length != 7 || report.Result.MD5 != chunk.Sum([]byte("payload")).MD5 {
		t.Fatalf("unexpected result: %+v", report.Result)
	}
	if len(report.Written) != 1 || report.Written[0] != "ok" {
		t.Fatalf("unexpected written list: %v", report.Written)
	}
	if _, failed := report.Failed["failing"]; !failed {
		t.Fatalf("expected failing backend reported, got %v", report.Failed)
	}

	data, from, err := chain.ReadFirstHit(ctx, "id1")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "payload" || from != "ok" {
		t.Fatalf("expected data from ok backend, got %q from %s", data, from)
	}
}

func TestWriteAllFailsWhenEveryWriterFails(t *testing.T) {
	a, b := newMem("a"), newMem("b")
	a.writeErr = errors.New("a down")
	b.writeErr = errors.New("b down")
	chain := NewChain("test", nil, []Backend{a, b}, nil)

	_, err := chain.WriteAll(context.Background(), "id1", strings.NewReader("x"))
	if !errors.Is(err, ErrBackendWriteFailed) {
		t.Fatalf("expected ErrBackendWriteFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "a down") || !strings.Contains(err.Error(), "b down") {
		t.Fatalf("expected both causes, got %v", err)
	}
	if a.writes != 1 || b.writes != 1 {
		t.Fatalf("expected every writer attempted, got a=%d b=%d", a.writes, b.writes)
	}
}

func TestWriteAllRewindsSourceForEachWriter(t *testing.T) {
	a, b := newMem("a"), newMem("b")
	chain := NewChain("test", nil, []Backend{a, b}, nil)

	if _, err := chain.WriteAll(context.Background(), "id1", bytes.NewReader([]byte("full body"))); err != nil {
		t.Fatalf("write all: %v", err)
	}
	if string(a.data["id1"]) != "full body" || string(b.data["id1"]) != "full body" {
		t.Fatalf("expected both writers to receive the full body, got %q and %q", a.data["id1"], b.data["id1"])
	}
}

func TestWriteMissingSkipsPresentBackends(t *testing.T) {
	a, b := newMem("a"), newMem("b")
	a.data["id1"] = []byte("already")
	chain := NewChain("test", nil, []Backend{a, b}, nil)

	report, err := chain.WriteMissing(context.Background(), "id1", strings.NewReader("copy"), WriteResult{})
	if err != nil {
		t.Fatalf("write missing: %v", err)
	}
	if a.writes != 0 || b.writes != 1 {
		t.Fatalf("expected only b written, got a=%d b=%d", a.writes, b.writes)
	}
	if len(report.Written) != 1 || report.Written[0] != "b" {
		t.Fatalf("unexpected report: %+v", report)
	}

	report, err = chain.WriteMissing(context.Background(), "id1", strings.NewReader("copy"), WriteResult{})
	if err != nil {
		t.Fatalf("write missing again: %v", err)
	}
	if len(report.Written) != 0 {
		t.Fatalf("expected no writes when all present, got %v", report.Written)
	}
}

func TestChainReadRangeFallsBackToSlicing(t *testing.T) {
	m := newMem("mem")
	m.data["id"] = []byte("0123456789")
	chain := NewChain("test", []Backend{m}, nil, nil)

	got, err := chain.ReadRange(context.Background(), "id", 3, 4, WriteResult{})
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	if string(got) != "3456" {
		t.Fatalf("expected 3456, got %q", got)
	}
	got, err = chain.ReadRange(context.Background(), "id", 8, 10, WriteResult{})
	if err != nil {
		t.Fatalf("read range tail: %v", err)
	}
	if string(got) != "89" {
		t.Fatalf("expected 89, got %q", got)
	}
}

func digestOf(data string) WriteResult {
	return measure([]byte(data))
}

func TestReadVerifiedSkipsStaleCopy(t *testing.T) {
	ctx := context.Background()
	lagging, current := newMem("lagging"), newMem("current")
	lagging.data["id1"] = []byte("old body")
	current.data["id1"] = []byte("new body!")
	chain := NewChain("test", []Backend{lagging, current}, nil, nil)

	data, from, err := chain.ReadVerified(ctx, "id1", digestOf("new body!"))
	if err != nil {
		t.Fatalf("read verified: %v", err)
	}
	if string(data) != "new body!" || from != "current" {
		t.Fatalf("expected current copy, got %q from %s", data, from)
	}

	delete(current.data, "id1")
	_, _, err = chain.ReadVerified(ctx, "id1", digestOf("new body!"))
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, ErrStaleCopy) {
		t.Fatalf("expected not found with stale copy attached, got %v", err)
	}
}

func TestReplaceAfterPartialWriteFailureReadsNewBody(t *testing.T) {
	ctx := context.Background()
	one, two := newMem("one"), newMem("two")
	chain := NewChain("test", []Backend{one, two}, []Backend{one, two}, nil)

	if _, err := chain.WriteAll(ctx, "id1", strings.NewReader("old body")); err != nil {
		t.Fatalf("write old: %v", err)
	}
	one.writeErr = errors.New("disk full")
	report, err := chain.WriteAll(ctx, "id1", strings.NewReader("new body!"))
	if err != nil {
		t.Fatalf("write new: %v", err)
	}

	data, from, err := chain.ReadVerified(ctx, "id1", report.Result)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "new body!" || from != "two" {
		t.Fatalf("served stale body %q from %s", data, from)
	}
	got, err := chain.ReadRange(ctx, "id1", 4, 4, report.Result)
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	if string(got) != "body" {
		t.Fatalf("expected range from new body, got %q", got)
	}
}

func TestChunkedReadRangeChecksDigest(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	lagging := NewChunked("lagging", st.Chunks(), 4)
	current := newMem("current")
	current.data["id1"] = []byte("0123456789")
	if _, err := lagging.Write(ctx, "id1", strings.NewReader("abcdefghij")); err != nil {
		t.Fatalf("write lagging: %v", err)
	}
	chain := NewChain("test", []Backend{lagging, current}, nil, nil)

	got, err := chain.ReadRange(ctx, "id1", 2, 3, digestOf("0123456789"))
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	if string(got) != "234" {
		t.Fatalf("expected 234 from current copy, got %q", got)
	}

	got, err = chain.ReadRange(ctx, "id1", 2, 3, digestOf("abcdefghij"))
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	if string(got) != "cde" {
		t.Fatalf("expected cde from chunked copy, got %q", got)
	}
}

func TestWriteMissingRewritesStaleCopy(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	chunked := NewChunked("chunked", st.Chunks(), 4)
	mem := newMem("mem")
	if _, err := chunked.Write(ctx, "id1", strings.NewReader("old")); err != nil {
		t.Fatalf("write chunked: %v", err)
	}
	mem.data["id1"] = []byte("new")
	chain := NewChain("test", nil, []Backend{chunked, mem}, nil)

	report, err := chain.WriteMissing(ctx, "id1", strings.NewReader("new"), digestOf("new"))
	if err != nil {
		t.Fatalf("write missing: %v", err)
	}
	if len(report.Written) != 1 || report.Written[0] != "chunked" || mem.writes != 0 {
		t.Fatalf("expected only the stale chunked copy rewritten, got %+v mem writes=%d", report, mem.writes)
	}
	got, found, err := chunked.Digest(ctx, "id1")
	if err != nil || !found {
		t.Fatalf("digest: found=%v err=%v", found, err)
	}
	if got != digestOf("new") {
		t.Fatalf("expected new digest, got %+v", got)
	}
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestChunkedBackendRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	b := NewChunked("primary", st.Chunks(), 5)

	body := []byte("chunked backend body")
	result, err := b.Write(ctx, "id1", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if result.Length != int64(len(body)) || result.MD5 != chunk.Sum(body).MD5 {
		t.Fatalf("unexpected result: %+v", result)
	}

	data, found, err := b.Read(ctx, "id1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !found || !bytes.Equal(data, body) {
		t.Fatalf("round trip mismatch: found=%v data=%q", found, data)
	}

	part, found, err := b.ReadRange(ctx, "id1", 8, 7)
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	if !found || string(part) != "backend" {
		t.Fatalf("expected 'backend', got %q", part)
	}

	if ok, _ := b.Exists(ctx, "id1"); !ok {
		t.Fatal("expected id1 to exist")
	}
	if _, found, _ := b.Read(ctx, "missing"); found {
		t.Fatal("expected missing id not found")
	}
}

func TestShardKey(t *testing.T) {
	key, err := ShardKey("0190f2a4b6c87d3e9f1a2b3c4d5e6f70")
	if err != nil {
		t.Fatalf("shard key: %v", err)
	}
	if key != "01/90/0190f2a4b6c87d3e9f1a2b3c4d5e6f70" {
		t.Fatalf("unexpected key: %s", key)
	}
	for _, bad := range []string{"", "abc", "../../etc", "AB12CD"} {
		if _, err := ShardKey(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestRemoteBackendRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			ctx := context.Background()
			root := t.TempDir()
			client, err := blobstore.NewLocalDir(root)
			if err != nil {
				t.Fatalf("local dir: %v", err)
			}
			b, err := NewRemote("remote", client, compress)
			if err != nil {
				t.Fatalf("new remote: %v", err)
			}
			t.Cleanup(func() { b.Close() })

			id := "0190f2a4b6c87d3e9f1a2b3c4d5e6f70"
			body := bytes.Repeat([]byte("compressible "), 100)
			result, err := b.Write(ctx, id, bytes.NewReader(body))
			if err != nil {
				t.Fatalf("write: %v", err)
			}
			if result.Length != int64(len(body)) || result.MD5 != chunk.Sum(body).MD5 {
				t.Fatalf("result must describe uncompressed bytes, got %+v", result)
			}

			key, _ := ShardKey(id)
			if compress {
				key += ".zst"
			}
			if ok, err := client.Stat(ctx, key); err != nil || !ok {
				t.Fatalf("expected blob at %s, ok=%v err=%v", key, ok, err)
			}

			data, found, err := b.Read(ctx, id)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !found || !bytes.Equal(data, body) {
				t.Fatal("round trip mismatch")
			}
			if ok, _ := b.Exists(ctx, id); !ok {
				t.Fatal("expected exists")
			}
		})
	}
}

func TestRemoteBackendReadsEitherForm(t *testing.T) {
	ctx := context.Background()
	client, err := blobstore.NewLocalDir(t.TempDir())
	if err != nil {
		t.Fatalf("local dir: %v", err)
	}
	plain, err := NewRemote("remote", client, false)
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}
	defer plain.Close()

	id := "0190f2a4b6c87d3e9f1a2b3c4d5e6f71"
	if _, err := plain.Write(ctx, id, strings.NewReader("written plain")); err != nil {
		t.Fatalf("write: %v", err)
	}

	compressed, err := NewRemote("remote", client, true)
	if err != nil {
		t.Fatalf("new remote: %v", err)
	}
	defer compressed.Close()

	data, found, err := compressed.Read(ctx, id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !found || string(data) != "written plain" {
		t.Fatalf("expected plain blob readable after enabling compression, got %q", data)
	}

	_, found, err = compressed.Read(ctx, "0190f2a4b6c87d3e9f1a2b3c4d5e6f72")
	if err != nil || found {
		t.Fatalf("expected clean miss, found=%v err=%v", found, err)
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	st := testStore(t)
	cfg := config.Default()
	cfg.Remote.Root = t.TempDir()
	cfg.Backends.PermanentRead = []string{config.BackendPrimary, config.BackendRemote}
	cfg.Backends.PermanentWrite = []string{config.BackendPrimary, config.BackendRemote}

	reg, err := NewRegistry(cfg, st, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	defer reg.Close()

	names := func(bs []Backend) []string {
		var out []string
		for _, b := range bs {
			out = append(out, b.Name())
		}
		return out
	}
	if got := names(reg.Permanent().Writers()); fmt.Sprint(got) != "[primary remote]" {
		t.Fatalf("unexpected permanent writers: %v", got)
	}
	if got := names(reg.Temp().Readers()); fmt.Sprint(got) != "[temp primary]" {
		t.Fatalf("unexpected temp readers: %v", got)
	}

	ctx := context.Background()
	id := "0190f2a4b6c87d3e9f1a2b3c4d5e6f73"
	if _, err := reg.Permanent().WriteAll(ctx, id, strings.NewReader("both")); err != nil {
		t.Fatalf("write all: %v", err)
	}
	remote, err := reg.Get(config.BackendRemote)
	if err != nil {
		t.Fatalf("get remote: %v", err)
	}
	if ok, _ := remote.Exists(ctx, id); !ok {
		t.Fatal("expected remote copy")
	}
}

func TestNewRegistrySkipsUnusedRemote(t *testing.T) {
	st := testStore(t)
	cfg := config.Default()
	cfg.Remote.Driver = "s3" // would fail without endpoint if constructed

	reg, err := NewRegistry(cfg, st, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, err := reg.Get(config.BackendRemote); err == nil {
		t.Fatal("expected remote to be absent")
	}
}
