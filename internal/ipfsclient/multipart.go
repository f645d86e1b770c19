package ipfsclient

import (
	"bytes"
	"io"
	"mime/multipart"
)

// multipartJSON wraps the single-file multipart body the gateway's
// /api/v0/add endpoint expects, plus the content type header carrying the
// boundary.
type multipartJSON struct {
	contentType string
}

// newMultipartJSON writes payload as a single multipart file part named
// name into buf and returns the content-type header to send alongside it.
func newMultipartJSON(buf *bytes.Buffer, name string, payload []byte) *multipartJSON {
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("file", name)
	if err == nil {
		_, _ = io.Copy(part, bytes.NewReader(payload))
	}
	_ = w.Close()
	return &multipartJSON{contentType: w.FormDataContentType()}
}
