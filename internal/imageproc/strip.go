package imageproc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// JPEG markers carrying EXIF, ICC, IPTC and comments.
var strippedJPEGMarkers = map[byte]bool{
	0xE1: true,
	0xE2: true,
	0xED: true,
	0xFE: true,
}

var strippedPNGChunks = map[string]bool{
	"eXIf": true,
	"iCCP": true,
	"tEXt": true,
	"zTXt": true,
	"iTXt": true,
	"tIME": true,
}

// StripMetadata removes auxiliary metadata from JPEG and PNG bytes without
// re-encoding pixels. GIF data is returned as is.
func StripMetadata(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJPEG:
		return stripJPEG(data)
	case FormatPNG:
		return stripPNG(data)
	default:
		return data, nil
	}
}

func stripJPEG(data []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, fmt.Errorf("%w: missing jpeg start marker", ErrCorruptImage)
	}
	out := bytes.NewBuffer(make([]byte, 0, len(data)))
	out.Write(data[:2])

	pos := 2
	for pos < len(data) {
		if data[pos] != 0xFF {
			return nil, fmt.Errorf("%w: expected marker at offset %d", ErrCorruptImage, pos)
		}
		// Fill bytes may precede a marker.
		for pos+1 < len(data) && data[pos+1] == 0xFF {
			pos++
		}
		if pos+1 >= len(data) {
			return nil, fmt.Errorf("%w: truncated marker", ErrCorruptImage)
		}
		marker := data[pos+1]
		switch {
		case marker == 0xD9:
			out.Write(data[pos : pos+2])
			return out.Bytes(), nil
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			out.Write(data[pos : pos+2])
			pos += 2
			continue
		}

		if pos+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated segment header", ErrCorruptImage)
		}
		size := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		end := pos + 2 + size
		if size < 2 || end > len(data) {
			return nil, fmt.Errorf("%w: segment length %d at offset %d", ErrCorruptImage, size, pos)
		}
		if marker == 0xDA {
			// Start of scan: the entropy coded data runs to the end.
			out.Write(data[pos:])
			return out.Bytes(), nil
		}
		if !strippedJPEGMarkers[marker] {
			out.Write(data[pos:end])
		}
		pos = end
	}
	return out.Bytes(), nil
}

func stripPNG(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, fmt.Errorf("%w: missing png signature", ErrCorruptImage)
	}
	out := bytes.NewBuffer(make([]byte, 0, len(data)))
	out.Write(pngSignature)

	pos := len(pngSignature)
	for pos < len(data) {
		if pos+8 > len(data) {
			return nil, fmt.Errorf("%w: truncated chunk header", ErrCorruptImage)
		}
		size := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		kind := string(data[pos+4 : pos+8])
		end := pos + 12 + size
		if size < 0 || end > len(data) {
			return nil, fmt.Errorf("%w: chunk %q overruns data", ErrCorruptImage, kind)
		}
		if !strippedPNGChunks[kind] {
			out.Write(data[pos:end])
		}
		pos = end
		if kind == "IEND" {
			break
		}
	}
	return out.Bytes(), nil
}
