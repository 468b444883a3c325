package dataset

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	assert.Equal(t, "interactions_cochlea_properties.csv", PropertiesName("cochlea"))
	assert.Equal(t, "interactions_cochlea.csv", InteractionsName("cochlea"))
}

func TestValidateTissue(t *testing.T) {
	for _, ok := range []string{"cochlea", "inner_ear", "Liver-2"} {
		assert.NoError(t, ValidateTissue(ok), ok)
	}
	for _, bad := range []string{"", "../etc", "a/b", "_x", "a b"} {
		assert.ErrorIs(t, ValidateTissue(bad), ErrInvalidTissue, bad)
	}
}

func TestFSSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "interactions_x.csv"), []byte("data"), 0o600))

	src, err := NewSource(context.Background(), Config{Driver: DriverFilesystem, Dir: dir})
	require.NoError(t, err)

	rc, err := src.Open(context.Background(), "interactions_x.csv")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))

	_, err = src.Open(context.Background(), "missing.csv")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, filepath.Join(dir, "missing.csv"), src.Location("missing.csv"))
}

type fakeS3 struct {
	objects map[string]string
	lastKey string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastKey = aws.ToString(in.Key)
	body, ok := f.objects[f.lastKey]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"datasets/interactions_x.csv": "rows"}}
	src := &S3Source{Client: client, Bucket: "bio", Prefix: "datasets"}

	rc, err := src.Open(context.Background(), "interactions_x.csv")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "rows", string(b))
	assert.Equal(t, "datasets/interactions_x.csv", client.lastKey)
	assert.Equal(t, "s3://bio/datasets/interactions_x.csv", src.Location("interactions_x.csv"))

	_, err = src.Open(context.Background(), "other.csv")
	assert.Error(t, err)
}

func TestNewSource_Errors(t *testing.T) {
	_, err := NewSource(context.Background(), Config{Driver: "ftp"})
	assert.ErrorContains(t, err, "unknown dataset driver")

	_, err = NewSource(context.Background(), Config{Driver: DriverS3})
	assert.ErrorContains(t, err, "bucket required")
}
