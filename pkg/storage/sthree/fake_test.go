package sthree

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fakeS3 serves the subset of the S3 API used by the store, with path-style addressing
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	puts    int
}

func newFakeS3(bucket string) (*fakeS3, *httptest.Server) {
	f := &fakeS3{bucket: bucket, objects: make(map[string][]byte)}
	return f, httptest.NewServer(f)
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (f *fakeS3) fail(w http.ResponseWriter, r *http.Request, code int, s3code string) {
	w.WriteHeader(code)
	if r.Method == http.MethodHead {
		return
	}
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><Resource>%s</Resource></Error>`, s3code, s3code, r.URL.Path)
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != f.bucket {
		f.fail(w, r, http.StatusNotFound, "NoSuchBucket")
		return
	}
	w.Header().Set("Content-Type", "application/xml")

	switch r.Method {
	case http.MethodHead, http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			f.fail(w, r, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("ETag", etag(data))
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}

	case http.MethodPut:
		if _, exists := f.objects[key]; exists && r.Header.Get("If-None-Match") == "*" {
			f.fail(w, r, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		data, err := readBody(r)
		if err != nil {
			f.fail(w, r, http.StatusBadRequest, "IncompleteBody")
			return
		}
		f.objects[key] = data
		f.puts++
		w.Header().Set("ETag", etag(data))
		w.WriteHeader(http.StatusOK)

	default:
		f.fail(w, r, http.StatusMethodNotAllowed, "MethodNotAllowed")
	}
}

// readBody reads a request payload, decoding aws-chunked streaming uploads
func readBody(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return io.ReadAll(r.Body)
	}
	var out bytes.Buffer
	br := bufio.NewReader(r.Body)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err = io.CopyN(&out, br, size); err != nil {
			return nil, err
		}
		if _, err = br.ReadString('\n'); err != nil {
			return nil, err
		}
	}
}
