package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Grade 7A",
		Headers: []string{"Day", "Start", "End", "Subject", "Teacher"},
		Rows: [][]string{
			{"Monday", "07:00", "08:00", "Math", "Ana Lee"},
			{"Monday", "08:00", "09:00", "Khmer", "Bo Chan"},
			{"Tuesday", "07:00", "08:00", "Science", "Ana Lee"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	f, err = ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestCSVRenderer(t *testing.T) {
	out, err := CSVRenderer{}.Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Day,Start,End,Subject,Teacher\nMonday,07:00,08:00,Math,Ana Lee\nMonday,08:00,09:00,Khmer,Bo Chan\nTuesday,07:00,08:00,Science,Ana Lee\n", string(out))
}

func TestPDFRenderer(t *testing.T) {
	r, err := RendererFor(FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", r.ContentType())

	out, err := r.Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRejectsRaggedRows(t *testing.T) {
	data := sampleDataset()
	data.Rows = append(data.Rows, []string{"Friday"})

	_, err := CSVRenderer{}.Render(data)
	assert.Error(t, err)
	_, err = PDFRenderer{}.Render(Dataset{})
	assert.Error(t, err)
}
