package test

import (
	"bytes"
	"io"
	"mime/multipart"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Redis starts an in-memory redis server for the duration of the test.
func Redis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return m, rdb
}

// FilePart is a file field of a multipart form.
type FilePart struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Multipart encodes fields and files as a multipart form, returning the body and its content type.
func Multipart(t *testing.T, fields map[string]string, files ...FilePart) (io.Reader, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		var (
			w   io.Writer
			err error
		)
		if f.ContentType != "" {
			h := make(map[string][]string)
			h["Content-Disposition"] = []string{`form-data; name="` + f.Field + `"; filename="` + f.Name + `"`}
			h["Content-Type"] = []string{f.ContentType}
			w, err = mw.CreatePart(h)
		} else {
			w, err = mw.CreateFormFile(f.Field, f.Name)
		}
		require.NoError(t, err)
		_, err = w.Write(f.Data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}
