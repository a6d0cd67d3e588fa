package handlers

import (
	"io/fs"
	"net/http"
	"strings"
)

// NewPublicFilesHandler serves stored attachments from publicDir under urlPrefix.
// Directory listings are not served.
func NewPublicFilesHandler(publicDir, urlPrefix string) http.Handler {
	prefix := "/" + strings.Trim(urlPrefix, "/")
	return http.StripPrefix(prefix, http.FileServer(filesOnlyFS{http.Dir(publicDir)}))
}

// filesOnlyFS hides directories so that http.FileServer answers 404 instead of a listing
type filesOnlyFS struct {
	fs http.FileSystem
}

func (f filesOnlyFS) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
