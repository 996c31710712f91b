package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonathan/campaign-studio/internal/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quotedVersions reports versions the way S3 does, already quoted.
type quotedVersions struct {
	blob.Store
}

func (q quotedVersions) Get(ctx context.Context, key string) (*blob.Object, error) {
	obj, err := q.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	obj.Version = `"` + obj.Version + `"`
	return obj, nil
}

func TestFiles_QuotedVersionIsNotQuotedAgain(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Blobs = quotedVersions{d.Blobs} })
	_, err := f.blobs.Put(context.Background(), "examples/images/a.png", pngBytes, "image/png", blob.Unconditional)
	require.NoError(t, err)

	w := f.do(httptest.NewRequest(http.MethodGet, "/files/examples/images/a.png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	assert.Equal(t, `"1"`, etag)

	req := httptest.NewRequest(http.MethodGet, "/files/examples/images/a.png", nil)
	req.Header.Set("If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, f.do(req).Code)
}

func TestEntityTag(t *testing.T) {
	assert.Equal(t, `"42"`, entityTag("42"))
	assert.Equal(t, `"9b2cf535f27731c974343645a3985328"`, entityTag(`"9b2cf535f27731c974343645a3985328"`))
	assert.Equal(t, `W/"abc"`, entityTag(`W/"abc"`))
	assert.Equal(t, `"sha256-abc"`, entityTag("sha256-abc"))
}
