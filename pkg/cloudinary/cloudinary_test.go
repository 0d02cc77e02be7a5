package cloudinary

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo", APIKey: "key"}, zerolog.Nop())
	require.Error(t, err)

	_, err = New(Config{}, zerolog.Nop())
	require.Error(t, err)
}

func TestBuildPublicIDSanitizesFileName(t *testing.T) {
	id := buildPublicID("My Essay (final).pdf")
	require.True(t, strings.HasPrefix(id, "My-Essay--final-"), "got %s", id)
	require.NotContains(t, id, " ")
	require.NotContains(t, id, "(")
	require.NotContains(t, id, ".pdf")
}

func TestBuildPublicIDNeverCollides(t *testing.T) {
	first := buildPublicID("essay.pdf")
	second := buildPublicID("essay.pdf")
	require.NotEqual(t, first, second)
}

func TestBuildPublicIDHandlesUnusableName(t *testing.T) {
	id := buildPublicID("___.png")
	require.True(t, strings.HasPrefix(id, "part-"), "got %s", id)
}
