package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"intent-broker/internal/common/config"
	apperrors "intent-broker/internal/common/errors"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) PutObject(ctx context.Context, input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *MockObjectAPI) DeleteObject(ctx context.Context, input *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

// ==========================
// S3
// ==========================

func TestS3Storage_PutUsesPrefixedKey(t *testing.T) {
	api := &MockObjectAPI{}
	var captured *s3.PutObjectInput
	api.On("PutObject", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*s3.PutObjectInput) }).
		Return(&s3.PutObjectOutput{}, nil)

	st := NewS3Storage(api, config.StorageConfig{Bucket: "docs", Prefix: "/deal-rooms/"})
	u, err := st.Put(context.Background(), "room-1/nda.pdf", "application/pdf", []byte("%PDF"))

	require.NoError(t, err)
	assert.Equal(t, "s3://docs/deal-rooms/room-1/nda.pdf", u)
	require.NotNil(t, captured)
	assert.Equal(t, "docs", *captured.Bucket)
	assert.Equal(t, "deal-rooms/room-1/nda.pdf", *captured.Key)
	assert.Equal(t, "application/pdf", *captured.ContentType)
	body, err := io.ReadAll(captured.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body))
}

func TestS3Storage_PublicBaseURL(t *testing.T) {
	api := &MockObjectAPI{}
	api.On("PutObject", mock.Anything, mock.Anything).Return(&s3.PutObjectOutput{}, nil)

	st := NewS3Storage(api, config.StorageConfig{Bucket: "docs", PublicBaseURL: "https://cdn.example.com/"})
	u, err := st.Put(context.Background(), "room-1/nda.pdf", "application/pdf", []byte("x"))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/room-1/nda.pdf", u)
}

func TestS3Storage_ErrorsAreStorageErrors(t *testing.T) {
	api := &MockObjectAPI{}
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))
	api.On("DeleteObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	st := NewS3Storage(api, config.StorageConfig{Bucket: "docs"})

	_, err := st.Put(context.Background(), "k", "text/plain", nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeStorageFailed))
	assert.True(t, apperrors.Is(st.Delete(context.Background(), "k"), apperrors.ErrCodeStorageFailed))
}

// ==========================
// Local
// ==========================

func TestLocalStorage_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocalStorage(config.StorageConfig{LocalDir: dir, Prefix: "deal-rooms"})
	require.NoError(t, err)

	u, err := st.Put(context.Background(), "room-1/nda.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file://"))

	p := filepath.Join(dir, "deal-rooms", "room-1", "nda.pdf")
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))

	require.NoError(t, st.Delete(context.Background(), "room-1/nda.pdf"))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, st.Delete(context.Background(), "room-1/nda.pdf"))
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	st, err := NewLocalStorage(config.StorageConfig{LocalDir: t.TempDir()})
	require.NoError(t, err)

	for _, key := range []string{"../outside.pdf", "/etc/passwd", ""} {
		_, err := st.Put(context.Background(), key, "application/pdf", []byte("x"))
		assert.True(t, apperrors.Is(err, apperrors.ErrCodeStorageFailed), "key %q", key)
	}
}
