package storage

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"cacoblog/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	tests := []struct {
		name        string
		fileName    string
		detectedExt string
		suffix      string
	}{
		{name: "Расширение сохраняется", fileName: "photo.PNG", detectedExt: ".png", suffix: ".png"},
		{name: "Без расширения", fileName: "photo", suffix: ".jpg"},
		{name: "Без расширения, тип определен", fileName: "photo", detectedExt: ".gif", suffix: ".gif"},
		{name: "Путь в имени файла", fileName: "dir/cat.webp", suffix: ".webp"},
		{name: "Спецсимволы в расширении", fileName: "cat.<x>?y", detectedExt: ".png", suffix: ".png"},
		{name: "Кириллица в расширении", fileName: "cat.жпг", detectedExt: ".jpg", suffix: ".jpg"},
		{name: "Небезопасное расширение без типа", fileName: "cat.p%2fng", suffix: ".jpg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := ObjectPath("user-1", tc.fileName, tc.detectedExt, now)

			assert.Regexp(t, regexp.MustCompile(`^user-1/1700000000123-[0-9a-v]{20}`+regexp.QuoteMeta(tc.suffix)+`$`), path)
		})
	}

	t.Run("Пути не совпадают", func(t *testing.T) {
		assert.NotEqual(t, ObjectPath("u", "a.jpg", "", now), ObjectPath("u", "a.jpg", "", now))
	})
}

func TestMinIOClient_PublicURL(t *testing.T) {
	cfg := &config.Config{MinIO: config.MinIO{
		Endpoint:   "localhost:9000",
		AccessKey:  "minioadmin",
		SecretKey:  "minioadmin",
		BucketName: "blog-images",
		PublicURL:  "http://cdn.local/",
	}}

	client, err := NewMinIOClient(cfg)
	require.NoError(t, err)

	assert.Equal(t, "http://cdn.local/blog-images/u1/1-abc.png", client.PublicURL("u1/1-abc.png"))
	assert.Equal(t, "http://cdn.local/blog-images/u1/x.png", client.PublicURL("/u1/x.png"))
}

func TestPublicReadPolicy(t *testing.T) {
	var policy struct {
		Statement []struct {
			Effect   string
			Action   []string
			Resource []string
		}
	}

	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("blog-images")), &policy))
	require.Len(t, policy.Statement, 1)
	assert.Equal(t, "Allow", policy.Statement[0].Effect)
	assert.Equal(t, []string{"s3:GetObject"}, policy.Statement[0].Action)
	assert.Equal(t, []string{"arn:aws:s3:::blog-images/*"}, policy.Statement[0].Resource)
}
