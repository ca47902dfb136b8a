package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"shift-planner/pkg/calendar"
)

func sample(t *testing.T) Table {
	t.Helper()
	span, err := calendar.ParseSpan("2024-04-01", "2024-04-03")
	require.NoError(t, err)
	return BuildTable([]string{"张三", "李四"}, span, map[string]map[string]string{
		"2024-04-01": {"张三": "白", "李四": "中1"},
		"2024-04-03": {"李四": "夜"},
	})
}

func TestBuildTable(t *testing.T) {
	tbl := sample(t)
	assert.Equal(t, []string{"日期", "星期", "张三", "李四"}, tbl.Header)
	assert.Equal(t, [][]string{
		{"2024-04-01", "周一", "白", "中1"},
		{"2024-04-02", "周二", "", ""},
		{"2024-04-03", "周三", "", "夜"},
	}, tbl.Rows)
}

func TestFilename(t *testing.T) {
	span, err := calendar.ParseSpan("2024-04-01", "2024-04-30")
	require.NoError(t, err)
	assert.Equal(t, "排班_2024-04-01_2024-04-30", Filename(span))
}

func TestWriteCSVHasBOM(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample(t)))

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}))

	records, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "日期", records[0][0])
	assert.Equal(t, []string{"2024-04-03", "周三", "", "夜"}, records[3])
}

func TestWriteProducesReadableWorkbook(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var buf bytes.Buffer
	format, err := Write(&buf, sample(t), logger)
	require.NoError(t, err)
	assert.Equal(t, XLSX, format)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"日期", "星期", "张三", "李四"}, rows[0])
	assert.Equal(t, []string{"2024-04-01", "周一", "白", "中1"}, rows[1])
	assert.Equal(t, "周二", rows[2][1])
	assert.Equal(t, "夜", rows[3][3])
}
