package minio

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pribylovaa/siveal/internal/config"
	"github.com/pribylovaa/siveal/internal/storage"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Integration tests start a real MinIO through testcontainers-go:
//
//	GO_TEST_INTEGRATION=1 go test ./internal/storage/minio -v -count=1

func startMinio(t *testing.T, createBucket bool) (*ImagesStorage, error) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	const (
		image        = "docker.io/minio/minio:latest"
		rootUser     = "root"
		rootPassword = "rootpass"
		bucket       = "siveal"
	)

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image: image,
			Env: map[string]string{
				"MINIO_ROOT_USER":     rootUser,
				"MINIO_ROOT_PASSWORD": rootPassword,
			},
			Cmd:          []string{"server", "/data"},
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "9000/tcp")

	if createBucket {
		admin, err := mclient.New(host+":"+port.Port(), &mclient.Options{
			Creds: credentials.NewStaticV4(rootUser, rootPassword, ""),
		})
		require.NoError(t, err)
		require.NoError(t, admin.MakeBucket(ctx, bucket, mclient.MakeBucketOptions{Region: "us-east-1"}))
	}

	cfg := &config.Config{
		S3: config.S3Config{
			Endpoint:      fmt.Sprintf("http://%s:%s", host, port.Port()),
			RootUser:      rootUser,
			RootPassword:  rootPassword,
			Bucket:        bucket,
			PresignTTL:    2 * time.Minute,
			PublicBaseURL: "http://cdn.local/",
		},
		Images: config.ImagesConfig{
			MaxSizeBytes:        1 << 20,
			AllowedContentTypes: []string{"image/png", "image/jpeg"},
		},
	}

	return New(ctx, cfg)
}

func put(t *testing.T, url, contentType string, body []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(body))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Less(t, resp.StatusCode, 300, "PUT must succeed")
}

func TestKeyFromID(t *testing.T) {
	t.Parallel()

	id := uuid.NewString()

	key, err := keyFromID(id + ".png")
	require.NoError(t, err)
	require.Equal(t, "images/"+id+".png", key)

	_, err = keyFromID("../secret")
	require.ErrorIs(t, err, storage.ErrInvalidArgument)

	_, err = keyFromID("not-a-uuid.png")
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestPublicURL(t *testing.T) {
	t.Parallel()

	s := &ImagesStorage{}
	require.Empty(t, s.publicURL("images/x.png"))

	s.s3.PublicBaseURL = "https://cdn.example/"
	require.Equal(t, "https://cdn.example/images/x.png", s.publicURL("images/x.png"))
}

func TestIntegration_New_BucketMustExist(t *testing.T) {
	_, err := startMinio(t, false)
	require.Error(t, err)
}

func TestIntegration_UploadInfoListDelete(t *testing.T) {
	st, err := startMinio(t, true)
	require.NoError(t, err)
	ctx := context.Background()

	const size = 5
	ui, err := st.ImageUploadURL(ctx, "image/png", size)
	require.NoError(t, err)
	require.NotEmpty(t, ui.UploadURL)
	require.Equal(t, "images/"+ui.ImageID, ui.Key)
	require.Equal(t, "http://cdn.local/"+ui.Key, ui.PublicURL)
	require.Equal(t, "image/png", ui.RequiredHeader["Content-Type"])
	require.Equal(t, strconv.Itoa(size), ui.RequiredHeader["Content-Length"])

	put(t, ui.UploadURL, "image/png", bytes.Repeat([]byte{0x42}, size))

	info, err := st.ImageInfo(ctx, ui.ImageID)
	require.NoError(t, err)
	require.EqualValues(t, size, info.Size)
	require.Equal(t, ui.ImageID, info.ID)

	list, err := st.ListImages(ctx, 100)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, st.DeleteImage(ctx, ui.ImageID))
	require.ErrorIs(t, st.DeleteImage(ctx, ui.ImageID), storage.ErrNotFound)

	_, err = st.ImageInfo(ctx, ui.ImageID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_ImageUploadURL_InvalidArgs(t *testing.T) {
	st, err := startMinio(t, true)
	require.NoError(t, err)

	_, err = st.ImageUploadURL(context.Background(), "image/gif", 10)
	require.ErrorIs(t, err, storage.ErrInvalidArgument)

	_, err = st.ImageUploadURL(context.Background(), "image/png", -1)
	require.ErrorIs(t, err, storage.ErrInvalidArgument)

	_, err = st.ImageUploadURL(context.Background(), "image/png", 2<<20)
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
}
