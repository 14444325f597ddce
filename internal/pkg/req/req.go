/*
Package req provides helper functions for building outbound HTTP request bodies.

Bodies are encoded once into memory so the API client can replay the exact same payload
when a request is re-issued after a token refresh. It covers JSON bodies and the
multipart forms used for image uploads.
*/
package req

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"

	"gymbro/internal/pkg/errs"
)

const (
	// MaxRequestFileSize defines the maximum allowed size (20 MB) of an encoded multipart body.
	MaxRequestFileSize int64 = 20 << 20 // 20 MB

	// ContentTypeJSON is the content type of JSON request bodies.
	ContentTypeJSON = "application/json"
)

// Body is an encoded request body that can be sent any number of times.
type Body struct {
	Bytes       []byte
	ContentType string
}

// Reader returns a fresh reader over the encoded bytes.
func (b *Body) Reader() io.Reader {
	if b == nil {
		return nil
	}
	return bytes.NewReader(b.Bytes)
}

// File is one file part of a multipart body.
type File struct {
	// Field is the form field name (e.g. "image", "profilePicture").
	Field string

	// Name is the file name sent to the server.
	Name string

	// Reader supplies the file content.
	Reader io.Reader
}

// JSON encodes v as a JSON request body.
func JSON(v any) (*Body, *errs.CustomError) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidRequest, err)
	}

	return &Body{Bytes: data, ContentType: ContentTypeJSON}, nil
}

// Multipart encodes the given form fields and files as a multipart/form-data body.
// Empty field values are skipped. Files with a nil Reader are skipped.
func Multipart(fields map[string]string, files ...File) (*Body, *errs.CustomError) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, errs.Wrap(errs.ErrInvalidRequest, err)
		}
	}

	for _, f := range files {
		if f.Reader == nil {
			continue
		}

		part, err := writer.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidRequest, err)
		}

		limited := io.LimitReader(f.Reader, MaxRequestFileSize+1)
		if _, err := io.Copy(part, limited); err != nil {
			return nil, errs.Wrap(errs.ErrInvalidRequest, err)
		}

		if int64(buf.Len()) > MaxRequestFileSize {
			return nil, errs.NewError(errs.ErrRequestEntityTooLarge)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidRequest, err)
	}

	if int64(buf.Len()) > MaxRequestFileSize {
		return nil, errs.NewError(errs.ErrRequestEntityTooLarge)
	}

	return &Body{Bytes: buf.Bytes(), ContentType: writer.FormDataContentType()}, nil
}
