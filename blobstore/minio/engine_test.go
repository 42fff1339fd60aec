package minio

import (
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	assert.False(t, isNotFound(nil))
	assert.False(t, isNotFound(errors.New("boom")))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound", StatusCode: http.StatusNotFound}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}))
}

func TestStoreKey(t *testing.T) {
	e := NewEngine(nil, "bucket", WithPrefix("/cache/"))
	assert.Equal(t, "cache/FilesCache/.store", e.storeKey("FilesCache", storeMarker))
	assert.Equal(t, "cache/FilesCache/files/.collection", e.storeKey("FilesCache", "files", collectionMarker))

	e = NewEngine(nil, "bucket")
	assert.Equal(t, "FilesCache/.store", e.storeKey("FilesCache", storeMarker))
}

func TestObjectKey(t *testing.T) {
	e := NewEngine(nil, "bucket", WithPrefix("cache"))
	h := &handle{engine: e, store: "FilesCache", collections: map[string]bool{"files": true}}

	key, err := h.objectKey("files", "dir/file 1")
	assert.NoError(t, err)
	assert.Equal(t, "cache/FilesCache/files/dir%2Ffile%201", key)

	_, err = h.objectKey("other", "k")
	assert.Error(t, err)

	h.closed = true
	_, err = h.objectKey("files", "k")
	assert.Error(t, err)
}
