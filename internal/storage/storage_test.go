package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"charts/u/a.png", true},
		{"charts/u/a_thumb.jpg", true},
		{"", false},
		{"/etc/passwd", false},
		{"charts/../secrets", false},
		{"..", false},
		{"charts//a.png", false},
		{"charts/./a.png", false},
		{"charts/a.png/", false},
		{`charts\..\a.png`, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidKey)
			}
		})
	}
}

func TestChartKeys(t *testing.T) {
	user := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	analysis := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	assert.Equal(t, "charts/11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222.png",
		ChartKey(user, analysis, "image/png"))
	assert.Equal(t, "charts/11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222.jpg",
		ChartKey(user, analysis, "image/jpeg; charset=binary"))
	assert.Equal(t, "charts/11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222_thumb.jpg",
		ChartThumbnailKey(user, analysis))
	assert.NoError(t, ValidateKey(ChartKey(user, analysis, "image/webp")))
}

func TestDetectContentType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")

	assert.Equal(t, "image/png", DetectContentType("IMAGE/PNG; q=1", "x.bin", nil))
	assert.Equal(t, "image/jpeg", DetectContentType("", "chart.jpg", nil))
	assert.Equal(t, "image/png", DetectContentType("", "chart", png))
	assert.Equal(t, "application/octet-stream", DetectContentType("", "chart", nil))
	assert.Equal(t, "image/png", SniffContentType(png))
}

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir(), BaseURL: "http://localhost:8080/files/"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	key := "charts/u1/a1.png"

	require.NoError(t, s.Put(ctx, key, strings.NewReader("chart-bytes"), PutOptions{ContentType: "image/png"}))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, info, err := s.Get(ctx, key)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "chart-bytes", string(body))
	assert.Equal(t, int64(11), info.Size)
	assert.Equal(t, "image/png", info.ContentType)

	url, err := s.URL(ctx, key, 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/charts/u1/a1.png", url)

	err = s.Put(ctx, key, strings.NewReader("again"), PutOptions{})
	assert.ErrorIs(t, err, ErrKeyExists)

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))

	_, _, err = s.Get(ctx, key)
	assert.True(t, IsNotFound(err))
}

func TestLocalStorage_MaxSizeLeavesNothingBehind(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	key := "charts/u1/big.png"

	err := s.Put(ctx, key, bytes.NewReader(make([]byte, 64)), PutOptions{MaxSize: 32})
	assert.ErrorIs(t, err, ErrTooLarge)

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(filepath.Join(s.BasePath(), "charts", "u1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s := newLocal(t)

	err := s.Put(context.Background(), "../escape.png", strings.NewReader("x"), PutOptions{})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStorage_GetDirectoryIsNotFound(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "charts/u1/a1.png", strings.NewReader("x"), PutOptions{}))

	for _, key := range []string{"charts", "charts/u1"} {
		_, _, err := s.Get(ctx, key)
		assert.True(t, IsNotFound(err), key)
	}
}

func TestChartOwnedBy(t *testing.T) {
	owner := uuid.MustParse("74609370-5a6b-4f0e-8d2c-1f3e5a7b9c0d")
	other := uuid.MustParse("0f1e2d3c-4b5a-4968-8776-a5b4c3d2e1f0")
	analysisID := uuid.MustParse("77fe594d-1c2b-4a3d-9e8f-0a1b2c3d4e5f")

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"own chart", ChartKey(owner, analysisID, "image/png"), true},
		{"own thumbnail", ChartThumbnailKey(owner, analysisID), true},
		{"someone else's chart", ChartKey(other, analysisID, "image/png"), false},
		{"charts root", "charts", false},
		{"own directory", "charts/" + owner.String(), false},
		{"nested below own prefix", "charts/" + owner.String() + "/x/y.png", false},
		{"traversal out of own prefix", "charts/" + owner.String() + "/../" + other.String() + "/a.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChartOwnedBy(tt.key, owner))
		})
	}
}
