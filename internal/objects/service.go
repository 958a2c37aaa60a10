// Package objects stores and serves file and image objects on top of the
// metadata store, the backend chains and the image pipeline.
package objects

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"filevault/internal/backend"
	"filevault/internal/config"
	"filevault/internal/imageproc"
	"filevault/internal/models"
	"filevault/internal/store"
)

// Options configures a Service.
type Options struct {
	ChunkSize         int
	ServeDeleted      bool
	AllowedMediaTypes []string
}

// OptionsFromConfig extracts service options from cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ChunkSize:         cfg.Storage.ChunkSize,
		ServeDeleted:      cfg.ServeDeleted,
		AllowedMediaTypes: cfg.Uploads.AllowedMediaTypes,
	}
}

// Service is the object store: it assigns ids, routes bytes through the
// permanent or temporary chain and keeps records in step with them.
type Service struct {
	store    store.ObjectStore
	backends *backend.Registry
	images   *imageproc.Processor
	opts     Options
	allowed  map[string]struct{}
	locks    *keyedMutex
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates an object service.
func NewService(st store.ObjectStore, backends *backend.Registry, images *imageproc.Processor, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := map[string]struct{}{}
	for _, raw := range opts.AllowedMediaTypes {
		if mediaType := normalizeMediaType(raw); mediaType != "" {
			allowed[mediaType] = struct{}{}
		}
	}
	return &Service{
		store:    st,
		backends: backends,
		images:   images,
		opts:     opts,
		allowed:  allowed,
		locks:    newKeyedMutex(),
		logger:   logger.With("component", "objects"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Backends returns the configured backend chains.
func (s *Service) Backends() *backend.Registry { return s.backends }

// StoreInput carries the hints for a new object. Filename and ContentType
// are guesses only; length and md5 always come from the stored bytes.
type StoreInput struct {
	Filename    string
	ContentType string
	Description string
	OwnerType   string
	OwnerID     string
	Temp        bool
	NoWatermark bool
}

// Store writes r as a new object. Temp objects go to the temporary chain;
// when that chain cannot take the body it is written to the permanent
// chain instead and the record is not flagged temp.
func (s *Service) Store(ctx context.Context, r io.Reader, in StoreInput) (models.Object, error) {
	if r == nil {
		return models.Object{}, fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}
	src, err := spool(r)
	if err != nil {
		return models.Object{}, err
	}
	defer src.Close()

	id, err := store.GenerateID(s.store.ObjectExists)
	if err != nil {
		return models.Object{}, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	body, err := s.prepare(src, id, in.Filename, in.ContentType, nil)
	if err != nil {
		return models.Object{}, err
	}

	report, isTemp, err := s.write(ctx, id, body.data, in.Temp)
	if err != nil {
		return models.Object{}, err
	}

	now := s.now()
	obj := models.Object{
		ID:          id,
		Kind:        body.kind,
		Filename:    body.filename,
		ContentType: body.contentType,
		Length:      report.Result.Length,
		MD5:         report.Result.MD5,
		ChunkSize:   s.opts.ChunkSize,
		Description: strings.TrimSpace(in.Description),
		OwnerType:   strings.TrimSpace(in.OwnerType),
		OwnerID:     strings.TrimSpace(in.OwnerID),
		IsTemp:      isTemp,
		BodyVersion: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if body.kind == models.KindImage {
		obj.Image = &models.ImageInfo{Width: body.width, Height: body.height, NoWatermark: in.NoWatermark}
	}
	if err := s.store.CreateObject(ctx, &obj); err != nil {
		return models.Object{}, err
	}
	s.logger.Debug("object stored", "id", id, "kind", obj.Kind, "length", obj.Length, "temp", obj.IsTemp, "backends", report.Written)
	return obj, nil
}

// BatchItem is one upload in a batch store.
type BatchItem struct {
	Reader io.Reader
	Input  StoreInput
}

// BatchResult reports one item of a batch store. Exactly one of Object
// and Err is set.
type BatchResult struct {
	Index  int
	Object *models.Object
	Err    error
}

// StoreBatch stores every item independently. A failing item does not
// affect the items before or after it.
func (s *Service) StoreBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			results = append(results, BatchResult{Index: i, Err: err})
			continue
		}
		obj, err := s.Store(ctx, item.Reader, item.Input)
		if err != nil {
			s.logger.Warn("batch item failed", "index", i, "filename", item.Input.Filename, "error", err)
			results = append(results, BatchResult{Index: i, Err: err})
			continue
		}
		results = append(results, BatchResult{Index: i, Object: &obj})
	}
	return results
}

// ReplaceBody swaps the bytes of an existing object. The record keeps its
// id, kind, filename and content type; length, md5 and image size are
// recomputed and the body version advances.
func (s *Service) ReplaceBody(ctx context.Context, id string, r io.Reader) (models.Object, error) {
	if err := validateID(id); err != nil {
		return models.Object{}, err
	}
	src, err := spool(r)
	if err != nil {
		return models.Object{}, err
	}
	defer src.Close()

	unlock := s.locks.Lock(id)
	defer unlock()

	obj, err := s.lookup(ctx, id, true)
	if err != nil {
		return models.Object{}, err
	}
	kind := obj.Kind
	body, err := s.prepare(src, id, obj.Filename, obj.ContentType, &kind)
	if err != nil {
		return models.Object{}, err
	}

	report, isTemp, err := s.write(ctx, id, body.data, obj.IsTemp)
	if err != nil {
		return models.Object{}, err
	}
	if len(report.Failed) > 0 {
		failed := make([]string, 0, len(report.Failed))
		for name := range report.Failed {
			failed = append(failed, name)
		}
		s.logger.Warn("replacement missed backends, their copies will not be served", "id", id, "failed", failed, "written", report.Written)
	}
	if _, err := s.store.ReplaceBody(ctx, id, store.BodyUpdate{
		Length:    report.Result.Length,
		MD5:       report.Result.MD5,
		ChunkSize: s.opts.ChunkSize,
		IsTemp:    isTemp,
		Width:     body.width,
		Height:    body.height,
		UpdatedAt: s.now(),
	}); err != nil {
		return models.Object{}, err
	}
	if err := s.store.RewindCursors(ctx, migrateCursorPrefix, id); err != nil {
		s.logger.Warn("rewind migrate cursors failed", "id", id, "error", err)
	}
	return s.Get(ctx, id)
}

// write sends the body through the temp or permanent chain and reports
// whether it ended up temp.
func (s *Service) write(ctx context.Context, id string, data io.ReadSeeker, temp bool) (backend.WriteReport, bool, error) {
	if temp {
		report, err := s.backends.Temp().WriteAll(ctx, id, data)
		if err == nil {
			return report, true, nil
		}
		if ctx.Err() != nil {
			return backend.WriteReport{}, false, ctx.Err()
		}
		s.logger.Warn("temp write failed, storing permanently", "id", id, "error", err)
	}
	report, err := s.backends.Permanent().WriteAll(ctx, id, data)
	if err != nil {
		return backend.WriteReport{}, false, err
	}
	return report, false, nil
}

// preparedBody is an upload after sniffing and, for images, ingest.
type preparedBody struct {
	data        io.ReadSeeker
	kind        models.Kind
	filename    string
	contentType string
	width       int
	height      int
}

// prepare sniffs src and runs images through ingest. When kind is given
// the body must match it.
func (s *Service) prepare(src spooled, id, filenameHint, contentTypeHint string, kind *models.Kind) (preparedBody, error) {
	detected, err := sniff(src)
	if err != nil {
		return preparedBody{}, err
	}
	sniffedType := normalizeMediaType(detected.String())
	contentType := resolveContentType(contentTypeHint, detected, filenameHint)
	if err := s.checkAllowed(contentType); err != nil {
		return preparedBody{}, err
	}

	bodyKind := models.KindFile
	if isImageType(sniffedType) {
		bodyKind = models.KindImage
	}
	if kind != nil {
		if *kind == models.KindImage && bodyKind != models.KindImage {
			return preparedBody{}, fmt.Errorf("%w: replacement body is %s", ErrNotImage, sniffedType)
		}
		bodyKind = *kind
	}

	body := preparedBody{
		data:        src,
		kind:        bodyKind,
		filename:    resolveFilename(filenameHint, id, detected),
		contentType: contentType,
	}
	if bodyKind != models.KindImage {
		return body, nil
	}

	raw, err := io.ReadAll(src)
	if err != nil {
		return preparedBody{}, fmt.Errorf("read image: %w", err)
	}
	ingested, err := s.images.Ingest(raw)
	if err != nil {
		return preparedBody{}, err
	}
	body.data = bytes.NewReader(ingested.Data)
	body.contentType = ingested.ContentType
	body.width = ingested.Width
	body.height = ingested.Height
	return body, nil
}

func (s *Service) checkAllowed(contentType string) error {
	if len(s.allowed) == 0 {
		return nil
	}
	if _, ok := s.allowed[contentType]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMediaTypeNotAllowed, contentType)
}

// Get returns the record for id, including soft-deleted ones.
func (s *Service) Get(ctx context.Context, id string) (models.Object, error) {
	if err := validateID(id); err != nil {
		return models.Object{}, err
	}
	obj, err := s.lookup(ctx, id, true)
	if err != nil {
		return models.Object{}, err
	}
	return *obj, nil
}

// Content is a fetched body with what a caller needs to serve it.
type Content struct {
	Object      models.Object
	Data        []byte
	ContentType string
	Filename    string
	Backend     string
}

// Fetch returns the full body of id.
func (s *Service) Fetch(ctx context.Context, id string) (Content, error) {
	if err := validateID(id); err != nil {
		return Content{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	obj, err := s.lookup(ctx, id, s.opts.ServeDeleted)
	if err != nil {
		return Content{}, err
	}
	data, from, err := s.chainFor(obj).ReadVerified(ctx, id, recordedDigest(obj))
	if err != nil {
		return Content{}, err
	}
	return Content{
		Object:      *obj,
		Data:        data,
		ContentType: obj.ContentType,
		Filename:    obj.Filename,
		Backend:     from,
	}, nil
}

// FetchRange returns up to length bytes of id starting at offset.
func (s *Service) FetchRange(ctx context.Context, id string, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("%w: %d+%d", ErrInvalidRange, offset, length)
	}
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	obj, err := s.lookup(ctx, id, s.opts.ServeDeleted)
	if err != nil {
		return nil, err
	}
	return s.chainFor(obj).ReadRange(ctx, id, offset, length, recordedDigest(obj))
}

// recordedDigest is what a backend copy must match to be served. Copies
// left behind by a replacement that missed a writer fail it.
func recordedDigest(obj *models.Object) backend.WriteResult {
	return backend.WriteResult{Length: obj.Length, MD5: obj.MD5}
}

// VariantRequest describes an image rendition. Box is "WxH" or empty.
// NoWatermark asks for the bypass; Entitled says the caller may have it.
type VariantRequest struct {
	Box         string
	Crop        bool
	Quality     int
	NoWatermark bool
	Entitled    bool
}

// FetchImageVariant returns a rendition of image id. Bad or oversized boxes
// fail as not found, the same as an unknown id.
func (s *Service) FetchImageVariant(ctx context.Context, id string, req VariantRequest) (Content, error) {
	if req.NoWatermark && !req.Entitled {
		return Content{}, fmt.Errorf("%w: watermark bypass requires entitlement", ErrForbidden)
	}

	var box models.Box
	if raw := strings.TrimSpace(req.Box); raw != "" {
		parsed, err := models.ParseBox(raw)
		if err != nil {
			return Content{}, fmt.Errorf("%w: %w: %v", ErrNotFound, imageproc.ErrDimensionsOutOfRange, err)
		}
		if err := s.images.CheckBox(parsed); err != nil {
			return Content{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		box = parsed
	}

	src, err := s.Fetch(ctx, id)
	if err != nil {
		return Content{}, err
	}
	if !src.Object.IsImage() {
		return Content{}, fmt.Errorf("%w: %w", ErrNotFound, ErrNotImage)
	}

	variant, err := s.images.Variant(imageproc.VariantRequest{
		Source:      src.Data,
		Box:         box,
		Crop:        req.Crop,
		Quality:     req.Quality,
		NoWatermark: src.Object.Image.NoWatermark || (req.NoWatermark && req.Entitled),
	})
	if err != nil {
		if errors.Is(err, imageproc.ErrDimensionsOutOfRange) {
			return Content{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return Content{}, err
	}
	return Content{
		Object:      src.Object,
		Data:        variant.Data,
		ContentType: variant.ContentType,
		Filename:    src.Filename,
		Backend:     src.Backend,
	}, nil
}

// MetadataPatch lists the fields UpdateMetadata may change. Nil fields
// are left alone.
type MetadataPatch struct {
	Filename    *string
	ContentType *string
	Description *string
	OwnerType   *string
	OwnerID     *string
	NoWatermark *bool
}

// UpdateMetadata changes record fields without touching the body.
func (s *Service) UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) (models.Object, error) {
	if err := validateID(id); err != nil {
		return models.Object{}, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	obj, err := s.lookup(ctx, id, true)
	if err != nil {
		return models.Object{}, err
	}

	update := store.ObjectUpdate{
		Description: patch.Description,
		OwnerType:   patch.OwnerType,
		OwnerID:     patch.OwnerID,
		UpdatedAt:   s.now(),
	}
	if patch.Filename != nil {
		name := strings.TrimSpace(*patch.Filename)
		if name == "" {
			return models.Object{}, fmt.Errorf("%w: filename must not be empty", ErrInvalidArgument)
		}
		update.Filename = &name
	}
	if patch.ContentType != nil {
		mediaType := normalizeMediaType(*patch.ContentType)
		if mediaType == "" {
			return models.Object{}, fmt.Errorf("%w: content type %q", ErrInvalidArgument, *patch.ContentType)
		}
		update.ContentType = &mediaType
	}
	if patch.NoWatermark != nil {
		if !obj.IsImage() {
			return models.Object{}, fmt.Errorf("%w: no_watermark applies to images only", ErrNotImage)
		}
		update.NoWatermark = patch.NoWatermark
	}

	if err := s.store.UpdateObject(ctx, id, update); err != nil {
		return models.Object{}, err
	}
	return s.Get(ctx, id)
}

// SoftDelete flags id as deleted. Bytes and metadata stay in place.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.lookup(ctx, id, true); err != nil {
		return err
	}
	return s.store.MarkDeleted(ctx, id, s.now())
}

// ListByOwner returns the live objects attached to one owner.
func (s *Service) ListByOwner(ctx context.Context, ownerType, ownerID string) ([]models.Object, error) {
	ownerType, ownerID = strings.TrimSpace(ownerType), strings.TrimSpace(ownerID)
	if ownerType == "" || ownerID == "" {
		return nil, fmt.Errorf("%w: owner type and id are required", ErrInvalidArgument)
	}
	all, err := s.store.ListByOwner(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	live := make([]models.Object, 0, len(all))
	for _, obj := range all {
		if !obj.IsDeleted {
			live = append(live, obj)
		}
	}
	return live, nil
}

// DataURI returns the body of id as a base64 data URI.
func (s *Service) DataURI(ctx context.Context, id string) (string, error) {
	content, err := s.Fetch(ctx, id)
	if err != nil {
		return "", err
	}
	return "data:" + content.ContentType + ";base64," + base64.StdEncoding.EncodeToString(content.Data), nil
}

// ResizedDimensions predicts the size FetchImageVariant would produce for
// box from the stored image size, without touching pixels.
func (s *Service) ResizedDimensions(ctx context.Context, id, box string, crop bool) (models.Box, error) {
	if err := validateID(id); err != nil {
		return models.Box{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	obj, err := s.lookup(ctx, id, s.opts.ServeDeleted)
	if err != nil {
		return models.Box{}, err
	}
	if !obj.IsImage() {
		return models.Box{}, fmt.Errorf("%w: %w", ErrNotFound, ErrNotImage)
	}
	natural := obj.Image.Dimensions()
	if strings.TrimSpace(box) == "" {
		return natural, nil
	}
	parsed, err := models.ParseBox(box)
	if err != nil {
		return models.Box{}, fmt.Errorf("%w: %w: %v", ErrNotFound, imageproc.ErrDimensionsOutOfRange, err)
	}
	if err := s.images.CheckBox(parsed); err != nil {
		return models.Box{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return imageproc.PlanDimensions(natural, parsed, crop, false)
}

func (s *Service) lookup(ctx context.Context, id string, includeDeleted bool) (*models.Object, error) {
	obj, err := s.store.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj == nil || (obj.IsDeleted && !includeDeleted) {
		return nil, fmt.Errorf("%w: object %s", ErrNotFound, id)
	}
	return obj, nil
}

func (s *Service) chainFor(obj *models.Object) *backend.Chain {
	if obj.IsTemp {
		return s.backends.Temp()
	}
	return s.backends.Permanent()
}

func validateID(id string) error {
	if err := store.ValidateID(id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return nil
}
