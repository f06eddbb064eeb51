package audio

import (
	"path/filepath"
	"strings"
)

const (
	// UnknownArtist is used when the filename carries no "Artist - Title" separator.
	UnknownArtist = "Unknown Artist"
	// UnknownFormat is reported when the filename has no extension.
	UnknownFormat = "UNKNOWN"

	titleSeparator = " - "
)

// Guess is a filename-derived title/artist suggestion the user may override.
type Guess struct {
	Title  string
	Artist string
}

// GuessFromFilename 从文件名推断标题与艺术家：
// "Artist - Title.flac" 取前两段，否则整段作为标题。
func GuessFromFilename(name string) Guess {
	stem := stemOf(name)

	parts := strings.Split(stem, titleSeparator)
	if len(parts) >= 2 {
		return Guess{
			Artist: strings.TrimSpace(parts[0]),
			Title:  strings.TrimSpace(parts[1]),
		}
	}
	return Guess{
		Title:  strings.TrimSpace(stem),
		Artist: UnknownArtist,
	}
}

// FormatFromFilename returns the upper-cased extension, or UnknownFormat.
func FormatFromFilename(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(filepath.Base(name)), ".")
	if ext == "" {
		return UnknownFormat
	}
	return strings.ToUpper(ext)
}

// AcceptsAudio reports whether a selected file may enter analysis.
func AcceptsAudio(name, contentType string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "audio/") {
		return true
	}
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".flac") || strings.HasSuffix(lower, ".mp3") || strings.HasSuffix(lower, ".wav")
}

// AcceptsCover reports whether a file may be used as cover art.
func AcceptsCover(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

func stemOf(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
