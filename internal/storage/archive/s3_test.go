package archive

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Storage = (*S3Storage)(nil)

// fakeS3 serves a single path-style bucket from memory.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

type listResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Name        string   `xml:"Name"`
	Prefix      string   `xml:"Prefix"`
	KeyCount    int      `xml:"KeyCount"`
	IsTruncated bool     `xml:"IsTruncated"`
	Contents    []struct {
		Key  string `xml:"Key"`
		Size int    `xml:"Size"`
	} `xml:"Contents"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/"+f.bucket), "/")
	switch {
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		f.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Write(data)
	case r.Method == http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		io.Copy(io.Discard, r.Body)
		f.objects[key] = []byte("stored")
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	res := listResult{Name: f.bucket, Prefix: prefix, KeyCount: len(keys)}
	for _, k := range keys {
		res.Contents = append(res.Contents, struct {
			Key  string `xml:"Key"`
			Size int    `xml:"Size"`
		}{Key: k, Size: len(f.objects[k])})
	}
	w.Header().Set("Content-Type", "application/xml")
	xml.NewEncoder(w).Encode(res)
}

func newFakeS3(t *testing.T, prefix string, objects map[string][]byte) *S3Storage {
	t.Helper()

	srv := httptest.NewServer(&fakeS3{bucket: "algotrade", objects: objects})
	t.Cleanup(srv.Close)

	s, err := NewS3(S3Config{
		Bucket:    "algotrade",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		Prefix:    prefix,
	})
	require.NoError(t, err)
	return s
}

func TestNewS3(t *testing.T) {
	_, err := NewS3(S3Config{Region: "us-east-1"})
	assert.Error(t, err, "bucket is required")

	s, err := NewS3(S3Config{Bucket: "algotrade", Endpoint: "http://localhost:9000", Prefix: "/cache/"})
	require.NoError(t, err)
	assert.Equal(t, "cache", s.prefix)
}

func TestS3Storage_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "prices/SPY_1d.json", "prices/SPY_1d.json"},
		{"cache", "prices/SPY_1d.json", "cache/prices/SPY_1d.json"},
	}

	for _, tt := range tests {
		s := &S3Storage{prefix: tt.prefix}
		assert.Equal(t, tt.want, s.key(tt.path))
	}

	s := &S3Storage{prefix: "cache"}
	_, err := s.objectKey("../other-tenant/x")
	assert.Error(t, err)
}

func TestS3Storage_ReadAndExists(t *testing.T) {
	s := newFakeS3(t, "cache", map[string][]byte{
		"cache/prices/SPY_1d.json": []byte(`{"symbol":"SPY"}`),
	})
	ctx := context.Background()

	got, err := s.Read(ctx, "prices/SPY_1d.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"SPY"}`, string(got))

	_, err = s.Read(ctx, "prices/QQQ_1d.json")
	assert.True(t, errors.Is(err, ErrNotExist), "got %v", err)

	ok, err := s.Exists(ctx, "prices/SPY_1d.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "prices/QQQ_1d.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3Storage_ListStripsPrefix(t *testing.T) {
	s := newFakeS3(t, "cache", map[string][]byte{
		"cache/prices/AAPL_1d.json": []byte("a"),
		"cache/prices/SPY_1d.json":  []byte("b"),
		"other/prices/SPY_1d.json":  []byte("c"),
	})

	paths, err := s.List(context.Background(), "prices")
	require.NoError(t, err)
	assert.Equal(t, []string{"prices/AAPL_1d.json", "prices/SPY_1d.json"}, paths)
}

func TestS3Storage_WriteDelete(t *testing.T) {
	objects := map[string][]byte{}
	s := newFakeS3(t, "", objects)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "prices/SPY_1d.json", []byte(`{}`)))
	ok, err := s.Exists(ctx, "prices/SPY_1d.json")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "prices/SPY_1d.json"))
	ok, err = s.Exists(ctx, "prices/SPY_1d.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("a/b.json"))
	assert.Equal(t, "text/csv", contentType("a/b.csv"))
	assert.Equal(t, "application/octet-stream", contentType("a/b.bin"))
}
