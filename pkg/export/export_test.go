package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Asistencia diaria",
		Headers: []string{"Grupo", "Presentes", "Comieron"},
		Rows: []map[string]string{
			{"Grupo": "3A", "Presentes": "20", "Comieron": "15"},
			{"Grupo": "4B", "Presentes": "18"},
		},
		Totals: map[string]string{"Grupo": "Total", "Presentes": "38", "Comieron": "15"},
	}
}

func TestCSVRenderIncludesTotals(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Grupo,Presentes,Comieron\n3A,20,15\n4B,18,\nTotal,38,15\n", string(out))
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
