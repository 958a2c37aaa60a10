package objects

import (
	"context"
	"strings"
	"testing"
	"time"

	"filevault/internal/backend"
	"filevault/internal/blobstore"
)

func TestSweepTempPromotes(t *testing.T) {
	f := newFixture(t, fixtureOptions{tempCapacity: 1 << 20})
	ctx := context.Background()
	sweeper := NewSweeper(f.svc, SweepOptions{BatchSize: 2}, nil)

	var ids []string
	for _, body := range []string{"one", "two", "three"} {
		obj, err := f.svc.Store(ctx, strings.NewReader(body), StoreInput{Temp: true})
		if err != nil {
			t.Fatalf("store: %v", err)
		}
		ids = append(ids, obj.ID)
	}
	permanent, err := f.svc.Store(ctx, strings.NewReader("already"), StoreInput{})
	if err != nil {
		t.Fatalf("store permanent: %v", err)
	}

	result, err := sweeper.SweepTemp(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Scanned != 3 || result.Copied != 3 {
		t.Fatalf("unexpected sweep result: %+v", result)
	}
	for _, id := range ids {
		obj, err := f.svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if obj.IsTemp {
			t.Fatalf("object %s still temp", id)
		}
		if ok, _ := f.primary.Exists(ctx, id); !ok {
			t.Fatalf("object %s missing from primary", id)
		}
		content, err := f.svc.Fetch(ctx, id)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if content.Backend != "primary" {
			t.Fatalf("expected promoted read from primary, got %s", content.Backend)
		}
	}

	result, err = sweeper.SweepTemp(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if result.Scanned != 0 {
		t.Fatalf("expected nothing left to sweep, got %+v", result)
	}

	result, err = sweeper.PromoteIDs(ctx, []string{permanent.ID, "bad-id", ids[0]})
	if err != nil {
		t.Fatalf("promote ids: %v", err)
	}
	if result.Skipped != 3 || result.Copied != 0 {
		t.Fatalf("expected all skipped, got %+v", result)
	}
}

func TestPromoteIDsAfterReplace(t *testing.T) {
	f := newFixture(t, fixtureOptions{tempCapacity: 1 << 20})
	ctx := context.Background()
	sweeper := NewSweeper(f.svc, SweepOptions{}, nil)

	obj, err := f.svc.Store(ctx, strings.NewReader("draft"), StoreInput{Temp: true})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	// A stale copy in primary must not win over the replaced body.
	if _, err := f.primary.Write(ctx, obj.ID, strings.NewReader("draft")); err != nil {
		t.Fatalf("seed primary: %v", err)
	}
	if _, err := f.svc.ReplaceBody(ctx, obj.ID, strings.NewReader("final")); err != nil {
		t.Fatalf("replace: %v", err)
	}

	result, err := sweeper.PromoteIDs(ctx, []string{obj.ID})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if result.Copied != 1 {
		t.Fatalf("expected promotion, got %+v", result)
	}
	data, found, err := f.primary.Read(ctx, obj.ID)
	if err != nil || !found {
		t.Fatalf("read primary: found=%v err=%v", found, err)
	}
	if string(data) != "final" {
		t.Fatalf("expected replaced body in primary, got %q", data)
	}
}

func TestPromoteSkipsMismatchedBody(t *testing.T) {
	f := newFixture(t, fixtureOptions{tempCapacity: 1 << 20})
	ctx := context.Background()
	sweeper := NewSweeper(f.svc, SweepOptions{}, nil)

	obj, err := f.svc.Store(ctx, strings.NewReader("expected"), StoreInput{Temp: true})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := f.temp.Write(ctx, obj.ID, strings.NewReader("tampered")); err != nil {
		t.Fatalf("overwrite temp: %v", err)
	}

	result, err := sweeper.PromoteIDs(ctx, []string{obj.ID})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if result.Skipped != 1 {
		t.Fatalf("expected skip, got %+v", result)
	}
	got, err := f.svc.Get(ctx, obj.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsTemp {
		t.Fatalf("mismatched body was promoted")
	}
}

func TestPromoteFailsWhenTempBodyEvicted(t *testing.T) {
	f := newFixture(t, fixtureOptions{tempCapacity: 6})
	ctx := context.Background()
	sweeper := NewSweeper(f.svc, SweepOptions{}, nil)

	first, err := f.svc.Store(ctx, strings.NewReader("aaaa"), StoreInput{Temp: true})
	if err != nil {
		t.Fatalf("store first: %v", err)
	}
	if _, err := f.svc.Store(ctx, strings.NewReader("bbbb"), StoreInput{Temp: true}); err != nil {
		t.Fatalf("store second: %v", err)
	}

	result, err := sweeper.PromoteIDs(ctx, []string{first.ID})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected failure for evicted body, got %+v", result)
	}
}

func TestSweepMigrate(t *testing.T) {
	remote := newRemote(t)
	f := newFixture(t, fixtureOptions{extra: []backend.Backend{remote}})
	ctx := context.Background()
	sweeper := NewSweeper(f.svc, SweepOptions{BatchSize: 1, MigrateFrom: "primary", MigrateTo: "remote"}, nil)

	var ids []string
	for _, body := range []string{"alpha", "beta"} {
		obj, err := f.svc.Store(ctx, strings.NewReader(body), StoreInput{})
		if err != nil {
			t.Fatalf("store: %v", err)
		}
		ids = append(ids, obj.ID)
	}
	if _, err := remote.Write(ctx, ids[1], strings.NewReader("beta")); err != nil {
		t.Fatalf("seed remote: %v", err)
	}

	result, err := sweeper.SweepMigrate(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if result.Scanned != 2 || result.Copied != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected migrate result: %+v", result)
	}
	data, found, err := remote.Read(ctx, ids[0])
	if err != nil || !found || string(data) != "alpha" {
		t.Fatalf("expected alpha in remote, got %q found=%v err=%v", data, found, err)
	}

	cursor, err := f.st.GetCursor(ctx, migrateCursorName("primary", "remote"))
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor != ids[1] {
		t.Fatalf("expected cursor at %s, got %s", ids[1], cursor)
	}

	result, err = sweeper.SweepMigrate(ctx)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if result.Scanned != 0 {
		t.Fatalf("expected cursor to resume past migrated ids, got %+v", result)
	}
}

func newRemote(t *testing.T) *backend.RemoteBackend {
	t.Helper()
	dir, err := blobstore.NewLocalDir(t.TempDir())
	if err != nil {
		t.Fatalf("local dir: %v", err)
	}
	remote, err := backend.NewRemote("remote", dir, true)
	if err != nil {
		t.Fatalf("remote: %v", err)
	}
	t.Cleanup(func() { remote.Close() })
	return remote
}

func TestSweepMigrateRetriesObjectsNotYetPromoted(t *testing.T) {
	remote := newRemote(t)
	f := newFixture(t, fixtureOptions{tempCapacity: 1 << 20, extra: []backend.Backend{remote}})
	ctx := context.Background()
	sweeper := NewSweeper(f.svc, SweepOptions{MigrateFrom: "primary", MigrateTo: "remote"}, nil)
	cursorName := migrateCursorName("primary", "remote")

	draft, err := f.svc.Store(ctx, strings.NewReader("draft"), StoreInput{Temp: true})
	if err != nil {
		t.Fatalf("store temp: %v", err)
	}
	final, err := f.svc.Store(ctx, strings.NewReader("final"), StoreInput{})
	if err != nil {
		t.Fatalf("store permanent: %v", err)
	}

	result, err := sweeper.SweepMigrate(ctx)
	if err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if result.Scanned != 2 || result.Copied != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected first migrate result: %+v", result)
	}
	if cursor, _ := f.st.GetCursor(ctx, cursorName); cursor != "" {
		t.Fatalf("cursor moved past an object not yet migrated: %q", cursor)
	}

	if result, err := sweeper.SweepTemp(ctx); err != nil || result.Copied != 1 {
		t.Fatalf("promote: %+v err=%v", result, err)
	}

	result, err = sweeper.SweepMigrate(ctx)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if result.Scanned != 2 || result.Copied != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected second migrate result: %+v", result)
	}
	data, found, err := remote.Read(ctx, draft.ID)
	if err != nil || !found || string(data) != "draft" {
		t.Fatalf("expected promoted object in remote, got %q found=%v err=%v", data, found, err)
	}
	if cursor, _ := f.st.GetCursor(ctx, cursorName); cursor != final.ID {
		t.Fatalf("expected cursor at %s, got %q", final.ID, cursor)
	}

	result, err = sweeper.SweepMigrate(ctx)
	if err != nil {
		t.Fatalf("third migrate: %v", err)
	}
	if result.Scanned != 0 {
		t.Fatalf("expected nothing left to migrate, got %+v", result)
	}
}

func TestSweepMigrateRecopiesReplacedBody(t *testing.T) {
	remote := newRemote(t)
	f := newFixture(t, fixtureOptions{extra: []backend.Backend{remote}})
	ctx := context.Background()
	sweeper := NewSweeper(f.svc, SweepOptions{MigrateFrom: "primary", MigrateTo: "remote"}, nil)

	obj, err := f.svc.Store(ctx, strings.NewReader("alpha"), StoreInput{})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if result, err := sweeper.SweepMigrate(ctx); err != nil || result.Copied != 1 {
		t.Fatalf("migrate: %+v err=%v", result, err)
	}

	if _, err := f.svc.ReplaceBody(ctx, obj.ID, strings.NewReader("omega")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if cursor, _ := f.st.GetCursor(ctx, migrateCursorName("primary", "remote")); cursor != "" {
		t.Fatalf("expected replacement to rewind the cursor, got %q", cursor)
	}

	result, err := sweeper.SweepMigrate(ctx)
	if err != nil {
		t.Fatalf("migrate after replace: %v", err)
	}
	if result.Scanned != 1 || result.Copied != 1 {
		t.Fatalf("expected replaced body copied again, got %+v", result)
	}
	data, found, err := remote.Read(ctx, obj.ID)
	if err != nil || !found || string(data) != "omega" {
		t.Fatalf("expected replaced body in remote, got %q found=%v err=%v", data, found, err)
	}
}

func TestSweepMigrateHoldsCursorOnStaleSource(t *testing.T) {
	remote := newRemote(t)
	f := newFixture(t, fixtureOptions{extra: []backend.Backend{remote}})
	ctx := context.Background()
	sweeper := NewSweeper(f.svc, SweepOptions{MigrateFrom: "primary", MigrateTo: "remote"}, nil)

	obj, err := f.svc.Store(ctx, strings.NewReader("recorded"), StoreInput{})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := f.primary.Write(ctx, obj.ID, strings.NewReader("tampered")); err != nil {
		t.Fatalf("overwrite primary: %v", err)
	}

	result, err := sweeper.SweepMigrate(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if result.Skipped != 1 || result.Copied != 0 {
		t.Fatalf("expected stale source skipped, got %+v", result)
	}
	if ok, _ := remote.Exists(ctx, obj.ID); ok {
		t.Fatalf("stale source body was migrated")
	}
	if cursor, _ := f.st.GetCursor(ctx, migrateCursorName("primary", "remote")); cursor != "" {
		t.Fatalf("cursor moved past stale object: %q", cursor)
	}
}

func TestSweepMigrateDisabled(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	result, err := NewSweeper(f.svc, SweepOptions{}, nil).SweepMigrate(context.Background())
	if err != nil || result.Scanned != 0 {
		t.Fatalf("expected no-op, got %+v err=%v", result, err)
	}

	_, err = NewSweeper(f.svc, SweepOptions{MigrateFrom: "primary", MigrateTo: "nowhere"}, nil).SweepMigrate(context.Background())
	if err == nil {
		t.Fatalf("expected unknown backend to fail")
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, fixtureOptions{tempCapacity: 1 << 20})
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := NewSweeper(f.svc, SweepOptions{}, nil)

	obj, err := f.svc.Store(ctx, strings.NewReader("later"), StoreInput{Temp: true})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx, 10*time.Millisecond) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := f.svc.Get(context.Background(), obj.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !got.IsTemp {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("object was not promoted by the background sweep")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}

	if err := sweeper.Run(context.Background(), 0); err == nil {
		t.Fatalf("expected zero interval to be rejected")
	}
}
