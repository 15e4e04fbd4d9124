package drivers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/FairForge/pollstore/internal/config"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestS3Driver_ObjectKey(t *testing.T) {
	d := &S3Driver{}
	assert.Equal(t, "upload/a.ts", d.objectKey("upload/a.ts"))

	d.prefix = "blobs/"
	assert.Equal(t, "blobs/upload/a.ts", d.objectKey("upload/a.ts"))

	d.prefix = "blobs"
	assert.Equal(t, "blobs/upload/a.ts", d.objectKey("upload/a.ts"))
}

func TestIsS3NotFound(t *testing.T) {
	assert.True(t, isS3NotFound(&types.NoSuchKey{}))
	assert.True(t, isS3NotFound(fmt.Errorf("wrapped: %w", &types.NotFound{})))
	assert.True(t, isS3NotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isS3NotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isS3NotFound(errors.New("connection refused")))
}

func TestNewS3Driver(t *testing.T) {
	d, err := NewS3Driver(context.Background(), config.S3Config{
		Endpoint:     "http://127.0.0.1:9999",
		Region:       "us-east-1",
		Bucket:       "pollstore",
		AccessKey:    "test",
		SecretKey:    "test",
		UsePathStyle: true,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "s3", d.Name())
	assert.Equal(t, "pollstore", d.bucket)
}
