package validators

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
)

// AllowedPhotoTypes lists the image formats accepted for price photos.
var AllowedPhotoTypes = []string{"image/jpeg", "image/png", "image/webp", "image/heic"}

// Upload is a validated file read fully into memory.
type Upload struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Reader returns a fresh reader over the upload.
func (u *Upload) Reader() io.Reader {
	return bytes.NewReader(u.Data)
}

// ParseMultipart parses a multipart form bounded by maxBytes.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.New(pkgerrors.CodeValidation, "upload exceeds the size limit").
				WithDetails(map[string]any{"max_bytes": maxBytes})
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	return nil
}

// FormValue returns the trimmed value of key.
func FormValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

// FormInt64 returns nil for an absent or empty field.
func FormInt64(r *http.Request, key string) (*int64, error) {
	raw := FormValue(r, key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, key+" must be an integer").
			WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

// FormInt returns nil for an absent or empty field.
func FormInt(r *http.Request, key string) (*int, error) {
	v, err := FormInt64(r, key)
	if err != nil || v == nil {
		return nil, err
	}
	out := int(*v)
	return &out, nil
}

// FormPhoto reads an optional image file and checks its sniffed type.
func FormPhoto(r *http.Request, key string) (*Upload, error) {
	file, _, err := r.FormFile(key)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key+" upload")
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading "+key+" upload")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, key+" upload is empty")
	}

	detected := mimetype.Detect(data)
	if !mimetype.EqualsAny(detected.String(), AllowedPhotoTypes...) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, key+" must be an image").
			WithDetails(map[string]any{"detected": detected.String(), "allowed": AllowedPhotoTypes})
	}
	return &Upload{Data: data, ContentType: detected.String(), Extension: detected.Extension()}, nil
}
