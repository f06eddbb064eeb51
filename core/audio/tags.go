package audio

import (
	"bytes"
	"strings"

	"github.com/dhowden/tag"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// Artwork describes cover art embedded in the audio file. It is only reported;
// the session cover is always chosen explicitly.
type Artwork struct {
	MIMEType string `json:"mimeType"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Size     int    `json:"size"`
}

type tagHints struct {
	Album   string
	Lyrics  string
	Artwork *Artwork
}

// readTagHints pulls album, lyrics and artwork out of embedded tags. FLAC
// streams are read through their Vorbis comment and PICTURE blocks, everything
// else through ID3/MP4 tags. Absent or unreadable tags yield zero hints.
func readTagHints(data []byte) tagHints {
	if hasFLACMarker(data) {
		if hints, ok := readFLACHints(data); ok {
			return hints
		}
	}

	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return tagHints{}
	}
	hints := tagHints{
		Album:  strings.TrimSpace(m.Album()),
		Lyrics: strings.TrimSpace(m.Lyrics()),
	}
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		hints.Artwork = &Artwork{MIMEType: pic.MIMEType, Size: len(pic.Data)}
	}
	return hints
}

func hasFLACMarker(data []byte) bool {
	skip := id3v2Size(data)
	return len(data) >= skip+4 && string(data[skip:skip+4]) == "fLaC"
}

func readFLACHints(data []byte) (tagHints, bool) {
	f, err := flac.ParseBytes(bytes.NewReader(data[id3v2Size(data):]))
	if err != nil {
		return tagHints{}, false
	}

	var hints tagHints
	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment:
			cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				continue
			}
			hints.Album = firstComment(cmt, flacvorbis.FIELD_ALBUM)
			hints.Lyrics = firstComment(cmt, "LYRICS", "UNSYNCEDLYRICS")
		case flac.Picture:
			if hints.Artwork != nil {
				continue
			}
			pic, err := flacpicture.ParseFromMetaDataBlock(*block)
			if err != nil || len(pic.ImageData) == 0 {
				continue
			}
			hints.Artwork = &Artwork{
				MIMEType: pic.MIME,
				Width:    int(pic.Width),
				Height:   int(pic.Height),
				Size:     len(pic.ImageData),
			}
		}
	}
	return hints, true
}

// firstComment returns the first non-blank value among the given field names.
func firstComment(cmt *flacvorbis.MetaDataBlockVorbisComment, fields ...string) string {
	for _, field := range fields {
		values, err := cmt.Get(field)
		if err != nil {
			continue
		}
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
