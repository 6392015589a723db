package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pai-policy-qa/internal/config"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "uploads/doc-1/handbook.pdf", ObjectName("doc-1", "handbook.pdf"))
	assert.Equal(t, "uploads/doc-1/passwd", ObjectName("doc-1", "../../etc/passwd"))
}

func TestNewArchive_DisabledWithoutEndpoint(t *testing.T) {
	a, err := NewArchive(context.Background(), config.MinIOConfig{BucketName: "policy-uploads"})
	require.NoError(t, err)
	assert.IsType(t, NopArchive{}, a)
	assert.NoError(t, a.Put(context.Background(), "d", "f.txt", []byte("x")))
}
