package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebeliceyang/lazymy/internal/models"
)

func sample() *models.ResultSet {
	return &models.ResultSet{
		Columns: []string{"id", "note"},
		Rows: [][]models.Cell{
			{{Value: "1"}, {Value: `has "quotes", commas`}},
			{{Value: "2"}, models.NullCell},
		},
	}
}

func TestToCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ToCSV(&buf, sample()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "note"},
		{"1", `has "quotes", commas`},
		{"2", ""},
	}, records)
}

func TestToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ToJSON(&buf, sample()))

	var records []map[string]*string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "1", *records[0]["id"])
	assert.Nil(t, records[1]["note"])
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "rows.JSON")
	require.NoError(t, ToFile(jsonPath, sample()))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	csvPath := filepath.Join(dir, "rows.csv")
	require.NoError(t, ToFile(csvPath, sample()))
	data, err = os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "id,note\n")

	assert.Error(t, ToFile(filepath.Join(dir, "none.csv"), nil))
	assert.Error(t, ToFile(filepath.Join(dir, "missing", "x.csv"), sample()))
}
