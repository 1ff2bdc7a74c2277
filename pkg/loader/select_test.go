package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/qafilter/pkg/config"
)

func TestFromConfig(t *testing.T) {
	ld, err := FromConfig(config.DatasetConfig{File: "rows.jsonl", Name: "ignored"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileLoader{}, ld)

	ld, err = FromConfig(config.DatasetConfig{Name: "community-datasets/yahoo_answers_topics", Config: "yahoo_answers_topics"}, nil)
	require.NoError(t, err)
	hub, ok := ld.(*HubLoader)
	require.True(t, ok)
	assert.Equal(t, "yahoo_answers_topics", hub.config.Config)
	assert.Equal(t, "train", hub.config.Split)

	_, err = FromConfig(config.DatasetConfig{}, nil)
	assert.Error(t, err)
}
