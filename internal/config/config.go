package config

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7474"
	DefaultDBFileName = ".filevault.db"
	DefaultLogLevel   = "info"

	DefaultChunkSize               = 4 * 1024 * 1024
	DefaultTempCapacityBytes int64 = 256 * 1024 * 1024

	DefaultMaxCropWidth      = 2000
	DefaultMaxCropHeight     = 2000
	DefaultIngestJPEGQuality = 92

	DefaultWatermarkMinWidth      = 300
	DefaultWatermarkMinHeight     = 300
	DefaultWatermarkRelativeWidth = 0.2
	DefaultWatermarkMinSize       = 50
	DefaultWatermarkMargin        = 20

	DefaultRemoteDriver      = "dir"
	DefaultRemoteCompression = "none"

	DefaultSweepInterval  = "1m"
	DefaultSweepBatchSize = 100

	DefaultUploadMaxBytes        int64 = 100 * 1024 * 1024
	DefaultUploadMultipartMemory int64 = 8 * 1024 * 1024

	BackendPrimary = "primary"
	BackendTemp    = "temp"
	BackendRemote  = "remote"

	configFileName = ".filevault.toml"

	configDirEnvKey          = "FILEVAULT_CONFIG_DIR"
	trustProjectConfigEnvKey = "FILEVAULT_TRUST_PROJECT_CONFIG"
	apiURLEnvKey             = "FILEVAULT_API_URL"
	dbPathEnvKey             = "FILEVAULT_DB"
	s3AccessKeyEnvKey        = "FILEVAULT_S3_ACCESS_KEY"
	s3SecretKeyEnvKey        = "FILEVAULT_S3_SECRET_KEY"
	uploadAllowedTypesEnvKey = "FILEVAULT_UPLOAD_ALLOWED_MEDIA_TYPES"
)

// StorageConfig controls chunking and the capped temp store.
type StorageConfig struct {
	ChunkSize         int   `toml:"chunk_size"`
	TempCapacityBytes int64 `toml:"temp_capacity_bytes"`
}

// BackendsConfig names the ordered read and write chains for permanent and
// temporary objects.
type BackendsConfig struct {
	PermanentRead  []string `toml:"permanent_read"`
	PermanentWrite []string `toml:"permanent_write"`
	TempRead       []string `toml:"temp_read"`
	TempWrite      []string `toml:"temp_write"`
}

// ImagesConfig controls ingest-time processing and serve-time limits.
type ImagesConfig struct {
	RotateEXIF        bool `toml:"rotate_exif"`
	StripEXIF         bool `toml:"strip_exif"`
	MaxWidth          int  `toml:"max_width"`
	MaxHeight         int  `toml:"max_height"`
	MaxCropWidth      int  `toml:"max_crop_width"`
	MaxCropHeight     int  `toml:"max_crop_height"`
	IngestJPEGQuality int  `toml:"ingest_jpeg_quality"`
}

// WatermarkConfig controls the default watermark overlay.
type WatermarkConfig struct {
	Path          string  `toml:"path"`
	MinWidth      int     `toml:"min_width"`
	MinHeight     int     `toml:"min_height"`
	RelativeWidth float64 `toml:"relative_width"`
	MinSize       int     `toml:"min_size"`
	Margin        int     `toml:"margin"`
}

// RemoteConfig configures the whole-object remote backend.
type RemoteConfig struct {
	Driver      string `toml:"driver"`
	Root        string `toml:"root"`
	Endpoint    string `toml:"endpoint"`
	Bucket      string `toml:"bucket"`
	Region      string `toml:"region"`
	UseSSL      bool   `toml:"use_ssl"`
	AccessKey   string `toml:"access_key"`
	SecretKey   string `toml:"secret_key"`
	Compression string `toml:"compression"`
}

// SweeperConfig controls promotion and backend migration sweeps.
type SweeperConfig struct {
	Interval    string `toml:"interval"`
	BatchSize   int    `toml:"batch_size"`
	MigrateFrom string `toml:"migrate_from"`
	MigrateTo   string `toml:"migrate_to"`
}

// UploadConfig bounds HTTP uploads.
type UploadConfig struct {
	MaxUploadBytes     int64    `toml:"max_upload_bytes"`
	MultipartMaxMemory int64    `toml:"multipart_max_memory"`
	AllowedMediaTypes  []string `toml:"allowed_media_types"`
}

// Config defines runtime configuration for filevault. It is built once at
// startup and passed by value into component constructors.
type Config struct {
	APIURL                   string          `toml:"api_url"`
	DBPath                   string          `toml:"db_path"`
	LogLevel                 string          `toml:"log_level"`
	ServeDeleted             bool            `toml:"serve_deleted"`
	AdminTokenHash           string          `toml:"admin_token_hash"`
	Storage                  StorageConfig   `toml:"storage"`
	Backends                 BackendsConfig  `toml:"backends"`
	Images                   ImagesConfig    `toml:"images"`
	Watermark                WatermarkConfig `toml:"watermark"`
	Remote                   RemoteConfig    `toml:"remote"`
	Sweeper                  SweeperConfig   `toml:"sweeper"`
	Uploads                  UploadConfig    `toml:"uploads"`
	TrustedProjectConfigPath string          `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:       DefaultAPIURL,
		DBPath:       "",
		LogLevel:     DefaultLogLevel,
		ServeDeleted: true,
		Storage: StorageConfig{
			ChunkSize:         DefaultChunkSize,
			TempCapacityBytes: DefaultTempCapacityBytes,
		},
		Backends: BackendsConfig{
			PermanentRead:  []string{BackendPrimary},
			PermanentWrite: []string{BackendPrimary},
			TempRead:       []string{BackendTemp, BackendPrimary},
			TempWrite:      []string{BackendTemp},
		},
		Images: ImagesConfig{
			RotateEXIF:        true,
			StripEXIF:         true,
			MaxCropWidth:      DefaultMaxCropWidth,
			MaxCropHeight:     DefaultMaxCropHeight,
			IngestJPEGQuality: DefaultIngestJPEGQuality,
		},
		Watermark: WatermarkConfig{
			MinWidth:      DefaultWatermarkMinWidth,
			MinHeight:     DefaultWatermarkMinHeight,
			RelativeWidth: DefaultWatermarkRelativeWidth,
			MinSize:       DefaultWatermarkMinSize,
			Margin:        DefaultWatermarkMargin,
		},
		Remote: RemoteConfig{
			Driver:      DefaultRemoteDriver,
			Compression: DefaultRemoteCompression,
		},
		Sweeper: SweeperConfig{
			Interval:  DefaultSweepInterval,
			BatchSize: DefaultSweepBatchSize,
		},
		Uploads: UploadConfig{
			MaxUploadBytes:     DefaultUploadMaxBytes,
			MultipartMaxMemory: DefaultUploadMultipartMemory,
		},
	}
}

// SweepInterval returns the parsed sweeper interval.
func (c *Config) SweepInterval() time.Duration {
	d, err := time.ParseDuration(c.Sweeper.Interval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultSweepInterval)
	}
	return d
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindInt
	kindInt64
	kindFloat
	kindList
	kindDuration
	kindBackendList
	kindBackendName
)

var keyKinds = map[string]keyKind{
	"api_url":                      kindString,
	"db_path":                      kindString,
	"log_level":                    kindString,
	"serve_deleted":                kindBool,
	"admin_token_hash":             kindString,
	"storage.chunk_size":           kindInt,
	"storage.temp_capacity_bytes":  kindInt64,
	"backends.permanent_read":      kindBackendList,
	"backends.permanent_write":     kindBackendList,
	"backends.temp_read":           kindBackendList,
	"backends.temp_write":          kindBackendList,
	"images.rotate_exif":           kindBool,
	"images.strip_exif":            kindBool,
	"images.max_width":             kindInt,
	"images.max_height":            kindInt,
	"images.max_crop_width":        kindInt,
	"images.max_crop_height":       kindInt,
	"images.ingest_jpeg_quality":   kindInt,
	"watermark.path":               kindString,
	"watermark.min_width":          kindInt,
	"watermark.min_height":         kindInt,
	"watermark.relative_width":     kindFloat,
	"watermark.min_size":           kindInt,
	"watermark.margin":             kindInt,
	"remote.driver":                kindString,
	"remote.root":                  kindString,
	"remote.endpoint":              kindString,
	"remote.bucket":                kindString,
	"remote.region":                kindString,
	"remote.use_ssl":               kindBool,
	"remote.compression":           kindString,
	"sweeper.interval":             kindDuration,
	"sweeper.batch_size":           kindInt,
	"sweeper.migrate_from":         kindBackendName,
	"sweeper.migrate_to":           kindBackendName,
	"uploads.max_upload_bytes":     kindInt64,
	"uploads.multipart_max_memory": kindInt64,
	"uploads.allowed_media_types":  kindList,
}

// Secrets are only read from files or env; they are never listed or set via CLI.
var allowedKeys = func() []string {
	keys := make([]string, 0, len(keyKinds))
	for key := range keyKinds {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}()

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	_, ok := keyKinds[key]
	return ok
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "serve_deleted":
		return strconv.FormatBool(c.ServeDeleted), nil
	case "admin_token_hash":
		return c.AdminTokenHash, nil
	case "storage.chunk_size":
		return strconv.Itoa(c.Storage.ChunkSize), nil
	case "storage.temp_capacity_bytes":
		return strconv.FormatInt(c.Storage.TempCapacityBytes, 10), nil
	case "backends.permanent_read":
		return strings.Join(c.Backends.PermanentRead, ","), nil
	case "backends.permanent_write":
		return strings.Join(c.Backends.PermanentWrite, ","), nil
	case "backends.temp_read":
		return strings.Join(c.Backends.TempRead, ","), nil
	case "backends.temp_write":
		return strings.Join(c.Backends.TempWrite, ","), nil
	case "images.rotate_exif":
		return strconv.FormatBool(c.Images.RotateEXIF), nil
	case "images.strip_exif":
		return strconv.FormatBool(c.Images.StripEXIF), nil
	case "images.max_width":
		return strconv.Itoa(c.Images.MaxWidth), nil
	case "images.max_height":
		return strconv.Itoa(c.Images.MaxHeight), nil
	case "images.max_crop_width":
		return strconv.Itoa(c.Images.MaxCropWidth), nil
	case "images.max_crop_height":
		return strconv.Itoa(c.Images.MaxCropHeight), nil
	case "images.ingest_jpeg_quality":
		return strconv.Itoa(c.Images.IngestJPEGQuality), nil
	case "watermark.path":
		return c.Watermark.Path, nil
	case "watermark.min_width":
		return strconv.Itoa(c.Watermark.MinWidth), nil
	case "watermark.min_height":
		return strconv.Itoa(c.Watermark.MinHeight), nil
	case "watermark.relative_width":
		return strconv.FormatFloat(c.Watermark.RelativeWidth, 'f', -1, 64), nil
	case "watermark.min_size":
		return strconv.Itoa(c.Watermark.MinSize), nil
	case "watermark.margin":
		return strconv.Itoa(c.Watermark.Margin), nil
	case "remote.driver":
		return c.Remote.Driver, nil
	case "remote.root":
		return c.Remote.Root, nil
	case "remote.endpoint":
		return c.Remote.Endpoint, nil
	case "remote.bucket":
		return c.Remote.Bucket, nil
	case "remote.region":
		return c.Remote.Region, nil
	case "remote.use_ssl":
		return strconv.FormatBool(c.Remote.UseSSL), nil
	case "remote.compression":
		return c.Remote.Compression, nil
	case "sweeper.interval":
		return c.Sweeper.Interval, nil
	case "sweeper.batch_size":
		return strconv.Itoa(c.Sweeper.BatchSize), nil
	case "sweeper.migrate_from":
		return c.Sweeper.MigrateFrom, nil
	case "sweeper.migrate_to":
		return c.Sweeper.MigrateTo, nil
	case "uploads.max_upload_bytes":
		return strconv.FormatInt(c.Uploads.MaxUploadBytes, 10), nil
	case "uploads.multipart_max_memory":
		return strconv.FormatInt(c.Uploads.MultipartMaxMemory, 10), nil
	case "uploads.allowed_media_types":
		return strings.Join(c.Uploads.AllowedMediaTypes, ","), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if key := os.Getenv(s3AccessKeyEnvKey); key != "" {
		cfg.Remote.AccessKey = key
	}
	if secret := os.Getenv(s3SecretKeyEnvKey); secret != "" {
		cfg.Remote.SecretKey = secret
	}
	if raw := strings.TrimSpace(os.Getenv(uploadAllowedTypesEnvKey)); raw != "" {
		cfg.Uploads.AllowedMediaTypes = splitCSV(raw)
	}

	cfg.normalizeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that defaults cannot repair.
func (c *Config) Validate() error {
	chains := map[string][]string{
		"backends.permanent_read":  c.Backends.PermanentRead,
		"backends.permanent_write": c.Backends.PermanentWrite,
		"backends.temp_read":       c.Backends.TempRead,
		"backends.temp_write":      c.Backends.TempWrite,
	}
	for key, names := range chains {
		for _, name := range names {
			if !isBackendName(name) {
				return fmt.Errorf("%s: unknown backend %q", key, name)
			}
		}
	}
	if c.Sweeper.MigrateFrom != "" || c.Sweeper.MigrateTo != "" {
		if !isBackendName(c.Sweeper.MigrateFrom) || !isBackendName(c.Sweeper.MigrateTo) {
			return fmt.Errorf("sweeper.migrate_from and sweeper.migrate_to must both name backends")
		}
		if c.Sweeper.MigrateFrom == c.Sweeper.MigrateTo {
			return fmt.Errorf("sweeper.migrate_from and sweeper.migrate_to must differ")
		}
	}
	switch c.Remote.Driver {
	case "dir", "s3":
	default:
		return fmt.Errorf("remote.driver must be dir or s3, got %q", c.Remote.Driver)
	}
	switch c.Remote.Compression {
	case "none", "zstd":
	default:
		return fmt.Errorf("remote.compression must be none or zstd, got %q", c.Remote.Compression)
	}
	return nil
}

// UsesBackend reports whether any chain or sweep names the backend.
func (c *Config) UsesBackend(name string) bool {
	for _, chain := range [][]string{c.Backends.PermanentRead, c.Backends.PermanentWrite, c.Backends.TempRead, c.Backends.TempWrite} {
		for _, n := range chain {
			if n == name {
				return true
			}
		}
	}
	return c.Sweeper.MigrateFrom == name || c.Sweeper.MigrateTo == name
}

func isBackendName(name string) bool {
	switch name {
	case BackendPrimary, BackendTemp, BackendRemote:
		return true
	default:
		return false
	}
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch keyKinds[key] {
	case kindInt:
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return parsed, nil
	case kindInt64:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case kindFloat:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			return nil, fmt.Errorf("%s must be a number in (0, 1]", key)
		}
		return parsed, nil
	case kindBool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case kindList:
		return splitCSV(value), nil
	case kindDuration:
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration", key)
		}
		return value, nil
	case kindBackendList:
		names := splitCSV(value)
		if len(names) == 0 {
			return nil, fmt.Errorf("%s must name at least one backend", key)
		}
		for _, name := range names {
			if !isBackendName(name) {
				return nil, fmt.Errorf("%s: unknown backend %q", key, name)
			}
		}
		return names, nil
	case kindBackendName:
		if value != "" && !isBackendName(value) {
			return nil, fmt.Errorf("%s: unknown backend %q", key, value)
		}
		return value, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalizeDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Storage.ChunkSize <= 0 {
		c.Storage.ChunkSize = DefaultChunkSize
	}
	if c.Storage.TempCapacityBytes <= 0 {
		c.Storage.TempCapacityBytes = DefaultTempCapacityBytes
	}
	if len(c.Backends.PermanentRead) == 0 {
		c.Backends.PermanentRead = []string{BackendPrimary}
	}
	if len(c.Backends.PermanentWrite) == 0 {
		c.Backends.PermanentWrite = []string{BackendPrimary}
	}
	if len(c.Backends.TempRead) == 0 {
		c.Backends.TempRead = []string{BackendTemp, BackendPrimary}
	}
	if len(c.Backends.TempWrite) == 0 {
		c.Backends.TempWrite = []string{BackendTemp}
	}
	if c.Images.MaxCropWidth <= 0 {
		c.Images.MaxCropWidth = DefaultMaxCropWidth
	}
	if c.Images.MaxCropHeight <= 0 {
		c.Images.MaxCropHeight = DefaultMaxCropHeight
	}
	if c.Images.IngestJPEGQuality <= 0 || c.Images.IngestJPEGQuality > 100 {
		c.Images.IngestJPEGQuality = DefaultIngestJPEGQuality
	}
	if c.Watermark.MinWidth <= 0 {
		c.Watermark.MinWidth = DefaultWatermarkMinWidth
	}
	if c.Watermark.MinHeight <= 0 {
		c.Watermark.MinHeight = DefaultWatermarkMinHeight
	}
	if c.Watermark.RelativeWidth <= 0 || c.Watermark.RelativeWidth > 1 {
		c.Watermark.RelativeWidth = DefaultWatermarkRelativeWidth
	}
	if c.Watermark.MinSize <= 0 {
		c.Watermark.MinSize = DefaultWatermarkMinSize
	}
	if c.Watermark.Margin < 0 {
		c.Watermark.Margin = DefaultWatermarkMargin
	}
	c.Remote.Driver = strings.ToLower(strings.TrimSpace(c.Remote.Driver))
	if c.Remote.Driver == "" {
		c.Remote.Driver = DefaultRemoteDriver
	}
	c.Remote.Compression = strings.ToLower(strings.TrimSpace(c.Remote.Compression))
	if c.Remote.Compression == "" {
		c.Remote.Compression = DefaultRemoteCompression
	}
	if strings.TrimSpace(c.Sweeper.Interval) == "" {
		c.Sweeper.Interval = DefaultSweepInterval
	}
	if c.Sweeper.BatchSize <= 0 {
		c.Sweeper.BatchSize = DefaultSweepBatchSize
	}
	if c.Uploads.MaxUploadBytes <= 0 {
		c.Uploads.MaxUploadBytes = DefaultUploadMaxBytes
	}
	if c.Uploads.MultipartMaxMemory <= 0 {
		c.Uploads.MultipartMaxMemory = DefaultUploadMultipartMemory
	}
	c.Uploads.AllowedMediaTypes = normalizeConfiguredMediaTypes(c.Uploads.AllowedMediaTypes)
}

func normalizeConfiguredMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, _, err := mime.ParseMediaType(raw)
		if err != nil {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(parsed))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
