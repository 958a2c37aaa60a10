package objects

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"filevault/internal/backend"
	"filevault/internal/chunk"
	"filevault/internal/config"
)

// SweepOptions configures a Sweeper.
type SweepOptions struct {
	BatchSize   int
	MigrateFrom string
	MigrateTo   string
}

// SweepOptionsFromConfig extracts sweep options from cfg.
func SweepOptionsFromConfig(cfg config.Config) SweepOptions {
	return SweepOptions{
		BatchSize:   cfg.Sweeper.BatchSize,
		MigrateFrom: cfg.Sweeper.MigrateFrom,
		MigrateTo:   cfg.Sweeper.MigrateTo,
	}
}

// SweepResult counts the outcome of one sweep.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (r *SweepResult) add(o outcome) {
	r.Scanned++
	switch o {
	case outcomeCopied:
		r.Copied++
	case outcomeSkipped, outcomePending:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
	}
}

type outcome int

const (
	outcomeCopied outcome = iota
	outcomeSkipped
	// outcomePending is a skip that a later sweep must retry.
	outcomePending
	outcomeFailed
)

const migrateCursorPrefix = "migrate:"

// Sweeper promotes temp objects into permanent storage and copies objects
// between backends during a migration window.
type Sweeper struct {
	svc    *Service
	opts   SweepOptions
	logger *slog.Logger
}

// NewSweeper creates a sweeper over svc.
func NewSweeper(svc *Service, opts SweepOptions, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = config.DefaultSweepBatchSize
	}
	return &Sweeper{svc: svc, opts: opts, logger: logger.With("component", "sweeper")}
}

// PromoteIDs promotes the listed objects, typically right after a
// referencing record was saved. Unknown and already permanent ids are
// skipped.
func (sw *Sweeper) PromoteIDs(ctx context.Context, ids []string) (SweepResult, error) {
	var result SweepResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := validateID(id); err != nil {
			result.add(outcomeSkipped)
			continue
		}
		result.add(sw.promote(ctx, id))
	}
	sw.logResult("promote ids", result)
	return result, nil
}

// SweepTemp promotes every temp-flagged object, in id order.
func (sw *Sweeper) SweepTemp(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	after := ""
	for {
		batch, err := sw.svc.store.ListTempObjects(ctx, after, sw.opts.BatchSize)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}
		for _, obj := range batch {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.add(sw.promote(ctx, obj.ID))
		}
		after = batch[len(batch)-1].ID
	}
	sw.logResult("promote sweep", result)
	return result, nil
}

// promote copies one temp body into the permanent chain and clears the
// temp flag. The flag only flips if the body version is unchanged and the
// bytes read back match the recorded digest; otherwise the object is left
// for the next sweep.
func (sw *Sweeper) promote(ctx context.Context, id string) outcome {
	unlock := sw.svc.locks.Lock(id)
	defer unlock()

	obj, err := sw.svc.store.GetObject(ctx, id)
	if err != nil {
		sw.logger.Warn("promote lookup failed", "id", id, "error", err)
		return outcomeFailed
	}
	if obj == nil || !obj.IsTemp {
		return outcomeSkipped
	}
	version := obj.BodyVersion

	data, from, err := sw.svc.backends.Temp().ReadFirstHit(ctx, id)
	if err != nil {
		sw.logger.Warn("promote read failed", "id", id, "error", err)
		return outcomeFailed
	}
	if sum := chunk.Sum(data); sum.MD5 != obj.MD5 || sum.Length != obj.Length {
		sw.logger.Warn("promote digest mismatch", "id", id, "backend", from, "expected_md5", obj.MD5, "md5", sum.MD5)
		return outcomeSkipped
	}

	// A permanent writer may hold an earlier body from before a replacement;
	// only copies matching the record count as present.
	_, err = sw.svc.backends.Permanent().WriteMissing(ctx, id, bytes.NewReader(data), recordedDigest(obj))
	if err != nil {
		sw.logger.Warn("promote write failed", "id", id, "error", err)
		return outcomeFailed
	}

	ok, err := sw.svc.store.MarkPromoted(ctx, id, version)
	if err != nil {
		sw.logger.Warn("promote flag failed", "id", id, "error", err)
		return outcomeFailed
	}
	if !ok {
		sw.logger.Info("promote raced with body replacement", "id", id, "version", version)
		return outcomeSkipped
	}
	sw.logger.Debug("object promoted", "id", id, "from", from)
	return outcomeCopied
}

// SweepMigrate copies objects from the configured source backend to the
// target backend in id order, resuming from the stored cursor. Objects the
// target already holds a matching copy of are skipped. The cursor never
// moves past an object that failed or whose source copy was not ready, so
// the next sweep starts again from the first of them.
func (sw *Sweeper) SweepMigrate(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	if sw.opts.MigrateFrom == "" || sw.opts.MigrateTo == "" {
		return result, nil
	}
	from, err := sw.svc.backends.Get(sw.opts.MigrateFrom)
	if err != nil {
		return result, err
	}
	to, err := sw.svc.backends.Get(sw.opts.MigrateTo)
	if err != nil {
		return result, err
	}

	cursorName := migrateCursorName(sw.opts.MigrateFrom, sw.opts.MigrateTo)
	after, err := sw.svc.store.GetCursor(ctx, cursorName)
	if err != nil {
		return result, err
	}
	resume, held := after, false
	for {
		batch, err := sw.svc.store.ListObjectsAfter(ctx, after, sw.opts.BatchSize)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}
		for _, obj := range batch {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			o := sw.migrate(ctx, obj.ID, from, to)
			result.add(o)
			if o == outcomePending || o == outcomeFailed {
				held = true
			}
			if !held {
				resume = obj.ID
			}
		}
		after = batch[len(batch)-1].ID
		if err := sw.svc.store.SetCursor(ctx, cursorName, resume); err != nil {
			return result, err
		}
	}
	sw.logResult("migrate sweep", result, "from", sw.opts.MigrateFrom, "to", sw.opts.MigrateTo, "cursor", resume)
	return result, nil
}

func (sw *Sweeper) migrate(ctx context.Context, id string, from, to backend.Backend) outcome {
	unlock := sw.svc.locks.Lock(id)
	defer unlock()

	obj, err := sw.svc.store.GetObject(ctx, id)
	if err != nil {
		sw.logger.Warn("migrate lookup failed", "id", id, "error", err)
		return outcomeFailed
	}
	if obj == nil {
		return outcomeSkipped
	}
	want := recordedDigest(obj)

	current, err := backend.Holds(ctx, to, id, want)
	if err != nil {
		sw.logger.Warn("migrate exists check failed", "id", id, "backend", to.Name(), "error", err)
		return outcomeFailed
	}
	if current {
		return outcomeSkipped
	}
	data, found, err := from.Read(ctx, id)
	if err != nil {
		sw.logger.Warn("migrate read failed", "id", id, "backend", from.Name(), "error", err)
		return outcomeFailed
	}
	if !found {
		sw.logger.Debug("migrate source not ready", "id", id, "backend", from.Name(), "temp", obj.IsTemp)
		return outcomePending
	}
	if sum := chunk.Sum(data); sum.MD5 != obj.MD5 || sum.Length != obj.Length {
		sw.logger.Debug("migrate source copy is stale", "id", id, "backend", from.Name(), "expected_md5", obj.MD5, "md5", sum.MD5)
		return outcomePending
	}
	if _, err := to.Write(ctx, id, bytes.NewReader(data)); err != nil {
		sw.logger.Warn("migrate write failed", "id", id, "backend", to.Name(), "error", err)
		return outcomeFailed
	}
	return outcomeCopied
}

// RunOnce runs a promotion sweep followed by a migration sweep.
func (sw *Sweeper) RunOnce(ctx context.Context) (promoted, migrated SweepResult, err error) {
	promoted, err = sw.SweepTemp(ctx)
	if err != nil {
		return promoted, migrated, fmt.Errorf("promote sweep: %w", err)
	}
	migrated, err = sw.SweepMigrate(ctx)
	if err != nil {
		return promoted, migrated, fmt.Errorf("migrate sweep: %w", err)
	}
	return promoted, migrated, nil
}

// Run sweeps every interval until ctx is done.
func (sw *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, _, err := sw.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			sw.logger.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (sw *Sweeper) logResult(msg string, result SweepResult, extra ...any) {
	if result.Scanned == 0 {
		return
	}
	fields := append([]any{"scanned", result.Scanned, "copied", result.Copied, "skipped", result.Skipped, "failed", result.Failed}, extra...)
	sw.logger.Info(msg, fields...)
}

func migrateCursorName(from, to string) string {
	return migrateCursorPrefix + from + ":" + to
}
