package db

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureList(t *testing.T) {
	assert.Equal(t, []Feature{FeatureFetch, FeatureScan}, FeatureList(FeatureFetch|FeatureScan))
	assert.Empty(t, FeatureList(0))
	assert.Len(t, FeatureList(FeatureFetch|FeatureExists|FeatureStore|FeatureDelete|FeatureScan|FeatureSync), 6)
}

func TestFeatureJSON(t *testing.T) {
	data, err := json.Marshal(DatabaseInfo{
		DbType:            ImplBolt,
		SupportedFeatures: []Feature{FeatureStore, FeatureSync},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"supported_features":["Store","Sync"]`)
	assert.Contains(t, string(data), `"db_type":"db/bolt"`)
	assert.Equal(t, "Unknown", Feature(1<<40).String())
}
