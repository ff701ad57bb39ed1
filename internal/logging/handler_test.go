// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/necrotome/necrotome/internal/logging"
)

func TestSetup_StampsServiceMetadata(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup(logging.Options{
		Service: "necrotome",
		Version: "test",
		Writer:  &buf,
	})

	logger.Info("hello", "key", "value")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "necrotome", record["service"])
	assert.Equal(t, "test", record["version"])
	assert.Equal(t, "value", record["key"])
}

func TestSetup_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup(logging.Options{
		Service: "necrotome",
		Level:   "warn",
		Writer:  &buf,
	})

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup(logging.Options{
		Service: "necrotome",
		Format:  "text",
		Writer:  &buf,
	})

	logger.Info("hello")
	assert.Contains(t, buf.String(), "service=necrotome")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup(logging.Options{Service: "necrotome", Writer: &buf})

	logging.Component(logger, "store").Info("connected")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "store", record["component"])
}
