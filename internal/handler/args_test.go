package handler

import (
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/imagebroker/internal/domain"
)

func TestSplitCommand(t *testing.T) {
	cmd, rest := splitCommand("/generate@imagebot  a red fox ")
	assert.Equal(t, "/generate", cmd)
	assert.Equal(t, "a red fox", rest)

	cmd, rest = splitCommand("/history")
	assert.Equal(t, "/history", cmd)
	assert.Empty(t, rest)
}

func TestParseImageArgs(t *testing.T) {
	args := parseImageArgs("--history --search 16:9 a castle at 5:4 dusk")
	assert.True(t, args.UseHistory)
	assert.True(t, args.UseSearch)
	assert.Equal(t, "16:9", args.Ratio)
	assert.Equal(t, "a castle at 5:4 dusk", args.Rest)

	args = parseImageArgs("a castle")
	assert.False(t, args.UseHistory)
	assert.Empty(t, args.Ratio)
	assert.Equal(t, "a castle", args.Rest)

	args = parseImageArgs("1:1 4:3 a castle")
	assert.Equal(t, "1:1", args.Ratio)
	assert.Equal(t, "4:3 a castle", args.Rest)

	assert.Empty(t, parseImageArgs("").Rest)
}

func TestParseEditArgs(t *testing.T) {
	args, ref, instruction, err := parseEditArgs("--search 9:16 last make the sky purple")
	require.NoError(t, err)
	assert.True(t, args.UseSearch)
	assert.Equal(t, "9:16", args.Ratio)
	assert.Equal(t, "last", ref)
	assert.Equal(t, "make the sky purple", instruction)

	_, _, _, err = parseEditArgs("last")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, _, _, err = parseEditArgs("")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestIsImageDocument(t *testing.T) {
	assert.True(t, isImageDocument(&models.Document{MimeType: "image/png"}))
	assert.False(t, isImageDocument(&models.Document{MimeType: "application/pdf"}))
	assert.False(t, isImageDocument(nil))
}
