package sheet

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestXLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.xlsx")
	header := []string{"职位代码", "招录机关", "招录人数"}
	rows := [][]any{
		{"14230001", "武汉市江汉区人社局", 2},
		{"14230002", "省人大常委会办公厅", 1},
	}
	require.NoError(t, WriteXLSX(path, "职位表", header, rows))

	tbl, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, header, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "14230001", tbl.Cell(0, 0))
	assert.Equal(t, "2", tbl.Cell(0, 2))
	assert.Equal(t, "省人大常委会办公厅", tbl.Cell(1, 1))
	assert.Equal(t, "", tbl.Cell(5, 0))
}

func TestReadCSVStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("职位代码,报名人数\n1001,12\n\n1002,3\n")...)
	tbl, err := ReadCSV(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"职位代码", "报名人数"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "1002", tbl.Cell(1, 0))
}

func TestReadCSVDecodesGBK(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("职位代码,报名人数,审核通过人数\n1001,12,4\n")
	require.NoError(t, err)

	tbl, err := ReadCSV(strings.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, []string{"职位代码", "报名人数", "审核通过人数"}, tbl.Header)
	assert.Equal(t, "4", tbl.Cell(0, 2))
}

func TestNewTablePadsAndSkipsBlankLead(t *testing.T) {
	tbl, err := NewTable([][]string{
		{"", " "},
		{"a", "b", "c"},
		{"1"},
		{"1", "2", "3", "4"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", ""}, tbl.Header)
	assert.Len(t, tbl.Rows[0], 4)
	assert.Equal(t, "", tbl.Cell(0, 2))
}

func TestPromoteFirstRow(t *testing.T) {
	tbl, err := NewTable([][]string{
		{"湖北省2026年度考试录用公务员报名人数统计表"},
		{"职位代码", "报名人数"},
		{"1001", "9"},
	})
	require.NoError(t, err)
	require.NoError(t, tbl.PromoteFirstRow())
	assert.Equal(t, []string{"职位代码", "报名人数"}, tbl.Header)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "9", tbl.Cell(0, 1))
}

func TestEmptyAndUnsupported(t *testing.T) {
	_, err := NewTable(nil)
	require.ErrorIs(t, err, ErrEmptyTable)

	_, err = DetectFormat("report.xls")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	f, err := DetectFormat("2026-10-18.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
}
