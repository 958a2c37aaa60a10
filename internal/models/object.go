package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind tags which variant of object a record is. It is chosen once at
// creation from the content type and never changes afterwards.
type Kind string

const (
	KindFile  Kind = "file"
	KindImage Kind = "image"
)

// KindForContentType returns the record kind for a MIME content type.
func KindForContentType(contentType string) Kind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return KindImage
	}
	return KindFile
}

// ParseKind validates a stored kind value.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindFile:
		return KindFile, nil
	case KindImage:
		return KindImage, nil
	default:
		return "", fmt.Errorf("invalid object kind: %s", raw)
	}
}

// ImageInfo holds the fields only image records carry.
type ImageInfo struct {
	Width       int  `json:"width"`
	Height      int  `json:"height"`
	NoWatermark bool `json:"no_watermark"`
}

// Dimensions returns the stored size as a box.
func (i ImageInfo) Dimensions() Box {
	return Box{Width: i.Width, Height: i.Height}
}

// Object is the metadata envelope of one stored file. Bytes live in the
// backends; the record only points at them by id.
type Object struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	Length      int64      `json:"length"`
	MD5         string     `json:"md5"`
	ChunkSize   int        `json:"chunk_size"`
	Description string     `json:"description,omitempty"`
	OwnerType   string     `json:"owner_type,omitempty"`
	OwnerID     string     `json:"owner_id,omitempty"`
	IsTemp      bool       `json:"is_temp"`
	IsDeleted   bool       `json:"is_deleted"`
	Image       *ImageInfo `json:"image,omitempty"`
	BodyVersion int64      `json:"body_version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsImage reports whether the record is of image kind.
func (o *Object) IsImage() bool {
	return o != nil && o.Kind == KindImage
}

// Box is a width/height pair, written "WxH".
type Box struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (b Box) String() string {
	return fmt.Sprintf("%dx%d", b.Width, b.Height)
}

// IsZero reports whether no box was given.
func (b Box) IsZero() bool {
	return b.Width == 0 && b.Height == 0
}

// ParseBox parses a "WxH" string. Both sides must be positive integers.
func ParseBox(raw string) (Box, error) {
	raw = strings.TrimSpace(raw)
	w, h, ok := strings.Cut(strings.ToLower(raw), "x")
	if !ok {
		return Box{}, fmt.Errorf("invalid box %q: expected WxH", raw)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return Box{}, fmt.Errorf("invalid box %q: bad width", raw)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return Box{}, fmt.Errorf("invalid box %q: bad height", raw)
	}
	return Box{Width: width, Height: height}, nil
}
