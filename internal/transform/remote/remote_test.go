package remote

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Upload itself requires a live (or fake-server-backed) storage.Client, so
// it's exercised end-to-end via internal/backupmgr's fakes rather than here;
// mergedMetadata is the one pure piece worth covering in isolation.
func TestMergedMetadataPrefixesTagsAndKeepsMetadata(t *testing.T) {
	tags := map[string]string{"dataset": "tank/data"}
	metadata := map[string]string{"split_index": "3"}

	got := mergedMetadata(tags, metadata)

	require.Equal(t, map[string]string{
		"tag-dataset": "tank/data",
		"split_index": "3",
	}, got)
}

func TestMergedMetadataHandlesEmptyInputs(t *testing.T) {
	got := mergedMetadata(nil, nil)
	require.Empty(t, got)
}
