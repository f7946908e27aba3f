package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/contactbook/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

func TestStorage_UploadOpenDelete(t *testing.T) {
	s := New("http://localhost:8000/avatars/")
	ctx := context.Background()

	res, err := s.Upload(ctx, &storage.UploadInput{
		Key:         "Web16/john@x.com",
		ContentType: "image/png",
		Data:        strings.NewReader("png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/avatars/Web16/john@x.com", res.URL)

	url, err := s.GetURL(ctx, "Web16/john@x.com")
	require.NoError(t, err)
	assert.Equal(t, res.URL, url)

	r, ct, ok := s.Open("Web16/john@x.com")
	require.True(t, ok)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "image/png", ct)

	require.NoError(t, s.Delete(ctx, "Web16/john@x.com"))
	_, err = s.GetURL(ctx, "Web16/john@x.com")
	assert.Error(t, err)
	assert.Error(t, s.Delete(ctx, "Web16/john@x.com"))
}

func TestStorage_UploadReplaces(t *testing.T) {
	s := New("http://cdn")
	ctx := context.Background()

	for _, body := range []string{"first", "second"} {
		_, err := s.Upload(ctx, &storage.UploadInput{Key: "k", Data: strings.NewReader(body)})
		require.NoError(t, err)
	}

	r, _, ok := s.Open("k")
	require.True(t, ok)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "second", string(data))
}
