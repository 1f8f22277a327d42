package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Dataset {
	return Dataset{
		Title:   "Reviews",
		Headers: []string{"review_id", "rating", "comment"},
		Rows: []map[string]string{
			{"review_id": "rev-1", "rating": "5", "comment": "Great, thanks"},
			{"review_id": "rev-2", "rating": "3", "comment": strings.Repeat("long ", 80)},
		},
	}
}

func TestRenderCSV(t *testing.T) {
	out, err := Render(FormatCSV, sample())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "review_id,rating,comment", lines[0])
	assert.Equal(t, `rev-1,5,"Great, thanks"`, lines[1])
}

func TestRenderPDF(t *testing.T) {
	out, err := Render(FormatPDF, sample())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
}

func TestRenderRejectsBadInput(t *testing.T) {
	_, err := Render(FormatCSV, Dataset{})
	assert.Error(t, err)
	_, err = Render(Format("xlsx"), sample())
	assert.Error(t, err)
}
