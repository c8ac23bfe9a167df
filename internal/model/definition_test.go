package model

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpush/modelpush/internal/workspace"
)

func TestBuildDefinition_CollectsAndEncodesParts(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, ".platform", testPlatformJSON)
	writeModelFile(t, dir, "definition/model.tmdl", "model Sales\n")
	writeModelFile(t, dir, "definition/tables/orders.tmdl", "table Orders\n")
	writeModelFile(t, dir, "diagramLayout.json", `{"version":"1.0"}`)
	writeModelFile(t, dir, "README.md", "docs stay local\n")

	def, err := BuildDefinition(context.Background(), dir, testLogger())
	require.NoError(t, err)

	paths := make([]string, len(def.Parts))
	for i, part := range def.Parts {
		paths[i] = part.Path
		assert.Equal(t, workspace.PayloadTypeInlineBase64, part.PayloadType)
	}

	assert.Equal(t, []string{
		".platform",
		"definition/model.tmdl",
		"definition/tables/orders.tmdl",
		"diagramLayout.json",
	}, paths)

	decoded, err := base64.StdEncoding.DecodeString(def.Parts[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, "model Sales\n", string(decoded))
}

func TestBuildDefinition_SkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, "definition/model.tmdl", "model Sales\n")
	writeModelFile(t, dir, "definition/cache.json", "\x00\x01\x02 compiled blob")

	def, err := BuildDefinition(context.Background(), dir, testLogger())
	require.NoError(t, err)

	require.Len(t, def.Parts, 1)
	assert.Equal(t, "definition/model.tmdl", def.Parts[0].Path)
}

func TestBuildDefinition_SkipsDotDirectoriesAndDotFiles(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, ".platform", testPlatformJSON)
	writeModelFile(t, dir, ".pbi/localSettings.json", `{"local":true}`)
	writeModelFile(t, dir, ".hidden.json", `{"hidden":true}`)
	writeModelFile(t, dir, "definition/model.tmdl", "model Sales\n")

	def, err := BuildDefinition(context.Background(), dir, testLogger())
	require.NoError(t, err)

	paths := make([]string, len(def.Parts))
	for i, part := range def.Parts {
		paths[i] = part.Path
	}

	assert.Equal(t, []string{".platform", "definition/model.tmdl"}, paths)
}

func TestBuildDefinition_NoDefinitionFiles(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, "README.md", "nothing deployable here\n")

	_, err := BuildDefinition(context.Background(), dir, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no definition files")
}

func TestBuildDefinition_EveryFileBinary(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, "definition/model.tmdl", "\x00 not text")

	_, err := BuildDefinition(context.Background(), dir, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary")
}

func TestBuildDefinition_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, "definition/model.tmdl", "model Sales\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildDefinition(ctx, dir, testLogger())
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "empty", data: nil, want: false},
		{name: "plain text", data: []byte("model Sales\n"), want: false},
		{name: "nul at start", data: []byte("\x00rest"), want: true},
		{name: "nul mid file", data: []byte("text\x00more"), want: true},
		{
			name: "nul beyond probe window",
			data: append([]byte(strings.Repeat("a", binaryProbeSize)), 0),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isBinary(tt.data))
		})
	}
}

func TestPartPath_NormalizesToNFC(t *testing.T) {
	// "café" with a combining accent (NFD) must come out precomposed.
	got := partPath("definition/café.tmdl")
	assert.Equal(t, "definition/café.tmdl", got)
}
