package validators

import (
	"fmt"
	"io"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const MaxUploadBytes = 5 << 20

// ParseMultipartFiles reads every file sent under field, capping each at MaxUploadBytes and
// the count at maxFiles. Content type checks happen in the storage layer.
func ParseMultipartFiles(r *http.Request, field string, maxFiles int) ([][]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, int64(maxFiles+1)*MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	headers := r.MultipartForm.File[field]
	if len(headers) > maxFiles {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d files allowed", maxFiles)).
			WithDetails(map[string]any{"field": field})
	}

	files := make([][]byte, 0, len(headers))
	for _, header := range headers {
		if header.Size > MaxUploadBytes {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "file too large").
				WithDetails(map[string]any{"field": field, "filename": header.Filename})
		}
		f, err := header.Open()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open upload")
		}
		data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
		f.Close()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
		}
		files = append(files, data)
	}
	return files, nil
}
