package backend

import (
	"fmt"
	"log/slog"

	"filevault/internal/blobstore"
	"filevault/internal/config"
	"filevault/internal/store"
)

// Registry holds the configured backends and the permanent and temporary
// chains built from them. It is read-only after construction.
type Registry struct {
	byName    map[string]Backend
	permanent *Chain
	temp      *Chain
	remote    *RemoteBackend
}

// NewRegistry builds backends and chains from cfg. The remote backend is
// only constructed when some chain or sweep names it.
func NewRegistry(cfg config.Config, st *store.Store, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{byName: map[string]Backend{}}

	r.byName[config.BackendPrimary] = NewChunked(config.BackendPrimary, st.Chunks(), cfg.Storage.ChunkSize)
	r.byName[config.BackendTemp] = NewChunked(config.BackendTemp, st.TempChunks(cfg.Storage.TempCapacityBytes), cfg.Storage.ChunkSize)

	if cfg.UsesBackend(config.BackendRemote) {
		client, err := newObjectClient(cfg.Remote)
		if err != nil {
			return nil, err
		}
		remote, err := NewRemote(config.BackendRemote, client, cfg.Remote.Compression == "zstd")
		if err != nil {
			return nil, err
		}
		r.remote = remote
		r.byName[config.BackendRemote] = remote
	}

	var err error
	if r.permanent, err = r.chain("permanent", cfg.Backends.PermanentRead, cfg.Backends.PermanentWrite, logger); err != nil {
		return nil, err
	}
	if r.temp, err = r.chain("temp", cfg.Backends.TempRead, cfg.Backends.TempWrite, logger); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRegistryFromChains wraps prebuilt chains, for callers that assemble
// backends themselves.
func NewRegistryFromChains(permanent, temp *Chain, extra ...Backend) *Registry {
	r := &Registry{byName: map[string]Backend{}, permanent: permanent, temp: temp}
	for _, chain := range []*Chain{permanent, temp} {
		if chain == nil {
			continue
		}
		for _, b := range append(append([]Backend{}, chain.Readers()...), chain.Writers()...) {
			r.byName[b.Name()] = b
		}
	}
	for _, b := range extra {
		r.byName[b.Name()] = b
	}
	return r
}

func (r *Registry) chain(name string, readNames, writeNames []string, logger *slog.Logger) (*Chain, error) {
	readers, err := r.lookupAll(readNames)
	if err != nil {
		return nil, fmt.Errorf("%s read chain: %w", name, err)
	}
	writers, err := r.lookupAll(writeNames)
	if err != nil {
		return nil, fmt.Errorf("%s write chain: %w", name, err)
	}
	return NewChain(name, readers, writers, logger), nil
}

func (r *Registry) lookupAll(names []string) ([]Backend, error) {
	out := make([]Backend, 0, len(names))
	for _, name := range names {
		b, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Get returns the backend registered under name.
func (r *Registry) Get(name string) (Backend, error) {
	b, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("backend %q is not configured", name)
	}
	return b, nil
}

// Permanent returns the chain for promoted objects.
func (r *Registry) Permanent() *Chain { return r.permanent }

// Temp returns the chain for objects awaiting promotion.
func (r *Registry) Temp() *Chain { return r.temp }

// Close releases backend resources.
func (r *Registry) Close() error {
	if r.remote != nil {
		return r.remote.Close()
	}
	return nil
}

func newObjectClient(cfg config.RemoteConfig) (blobstore.ObjectClient, error) {
	switch cfg.Driver {
	case "s3":
		return blobstore.NewS3(blobstore.S3Options{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	case "dir", "":
		return blobstore.NewLocalDir(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown remote driver %q", cfg.Driver)
	}
}
