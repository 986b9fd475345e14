package xlsxparser

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheets map[string][][]interface{}, order []string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	path := filepath.Join(t.TempDir(), "feed.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParseFirstSheet(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"Combined": {
			{"Invoice Number", " Column B ", "Percentage of Total (%)"},
			{"INV100", "DHL", "60"},
			{},
			{"INV100", "FEDEX"},
		},
		"Other": {{"x"}},
	}, []string{"Combined", "Other"})

	data, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Invoice Number", "Column B", "Percentage of Total (%)"}, data.Headers)
	require.Equal(t, 2, data.Len())
	assert.Equal(t, "60", data.Rows[0]["Percentage of Total (%)"])
	assert.Equal(t, "", data.Rows[1]["Percentage of Total (%)"])
	assert.Equal(t, []int{2, 4}, data.RowNumbers)
	assert.Equal(t, path, data.SourceFile)
}

func TestParseNamedSheet(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"ILS":  {{"Customer Id"}, {"1001"}},
		"SHIP": {{"Customer Id"}, {"2002"}, {"2003"}},
	}, []string{"ILS", "SHIP"})

	names, err := SheetNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ILS", "SHIP"}, names)

	data, err := ParseSheet(path, "SHIP")
	require.NoError(t, err)
	assert.Equal(t, 2, data.Len())
	assert.Equal(t, "2003", data.Rows[1]["Customer Id"])

	_, err = ParseSheet(path, "Missing")
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "none.xlsx"))
	assert.Error(t, err)

	path := writeWorkbook(t, map[string][][]interface{}{"Empty": {}}, []string{"Empty"})
	_, err = Parse(path)
	assert.Error(t, err)
}
