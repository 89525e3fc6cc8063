package gateway

import (
	"path/filepath"
	"strings"
)

// audioMIMETypes maps the accepted upload extensions to the MIME type
// sent with the remote file upload.
var audioMIMETypes = map[string]string{
	".mp3":  "audio/mpeg",
	".mpga": "audio/mpeg",
	".mpeg": "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/aac",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".mp4":  "audio/mp4",
	".aiff": "audio/aiff",
}

// AllowedFile reports whether the filename carries an accepted audio
// extension.
func AllowedFile(name string) bool {
	_, ok := audioMIMETypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// MIMETypeFor returns the upload MIME type for the given path.
func MIMETypeFor(path string) (string, bool) {
	mime, ok := audioMIMETypes[strings.ToLower(filepath.Ext(path))]
	return mime, ok
}
