package mediamodule

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/chai2010/webp" // registers webp with image.DecodeConfig
	"github.com/dhowden/tag"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true,
	".m4v": true, ".wmv": true, ".flv": true, ".ts": true, ".mpg": true, ".mpeg": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".m4a": true, ".aac": true, ".ogg": true, ".wav": true, ".wma": true,
}

// ClassifyPath maps a vault path to a media kind. Returns false for files the
// catalog should not index (audio, sidecars, unknown extensions).
func ClassifyPath(path string) (MediaKind, bool) {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case videoExtensions[ext]:
		return KindVideo, true
	case ext == ".gif":
		return KindGif, true
	case imageExtensions[ext]:
		return KindImage, true
	default:
		return "", false
	}
}

// IsAudioFile reports whether a path holds an audio file. Extension check
// first; content sniff for containers shared with video (.m4a vs .m4v misnames
// happen in practice).
func IsAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if audioExtensions[ext] {
		return true
	}
	if !videoExtensions[ext] {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return false
	}

	switch meta.FileType() {
	case tag.MP3, tag.FLAC, tag.OGG, tag.M4A, tag.ALAC:
		return true
	}
	return false
}

// ProbeImageDims reads image dimensions without decoding pixel data.
// Supports jpeg, png, gif, bmp-as-unknown and webp (chai2010 decoder).
func ProbeImageDims(path string) (width, height int, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
