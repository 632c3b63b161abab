package ingest_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mmust/marktrack/core"
	"github.com/mmust/marktrack/core/ingest"
	"github.com/mmust/marktrack/core/marks"
	"github.com/mmust/marktrack/core/scope"
	"github.com/mmust/marktrack/services/reports"
	inmemdb "github.com/mmust/marktrack/storage/database/inmem"
	"github.com/mmust/marktrack/tests"
)

type engineFixture struct {
	world   *testutil.World
	marks   marks.Repository
	metrics *testutil.Metrics
	engine  *ingest.Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	w := testutil.NewWorld(t)
	repo := inmemdb.NewMarksRepository(w.DB)
	metrics := testutil.NewMetrics()
	return &engineFixture{
		world:   w,
		marks:   repo,
		metrics: metrics,
		engine: ingest.NewEngine(
			repo,
			w.Schools,
			scope.NewResolver(w.Schools),
			reportsvc.NewMemoryStore(0),
			testutil.NopLogger{},
			metrics,
		),
	}
}

func TestEngine_LoadNominalRoll(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	csv := strings.Join([]string{
		"unit_code,reg_no,academic_year",
		"CS201,S001,2023/2024",
		"CS201,S001,2023/2024",
		",,",
		"XX999,S001,2023/2024",
		"CS201,S999,2023/2024",
		"CS201,S002,1999/2000",
		"MA101,S004,2023/2024",
		"CS201,S002,2022/2023",
		"CS305,S003,2023/2024",
	}, "\n")

	report, err := f.engine.LoadNominalRoll(ctx, f.world.Member.LecNo, "roll.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, ingest.KindNominalRoll, report.Kind)
	assert.Equal(t, "L001", report.LecNo)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 5, report.Errors)
	assert.False(t, report.Succeeded())
	assert.Empty(t, report.Message)
	require.Len(t, report.Outcomes, 8)

	assert.Equal(t, []string{"Row 2: Entry for student 'S001' in unit 'CS201' (2023/2024) already exists."},
		report.Messages(ingest.StatusWarning))
	assert.Equal(t, []string{
		"Row 4: Unit 'XX999' not found.",
		"Row 5: Student 'S999' not found.",
		"Row 6: Academic year '1999/2000' not found.",
		"Row 7: You are not assigned to unit 'MA101' for 2023/2024.",
		"Row 8: You are not assigned to unit 'CS201' for 2022/2023.",
	}, report.Messages(ingest.StatusError), "the blank row 3 still counts")

	reasons := make([]ingest.Reason, 0, len(report.Outcomes))
	for _, out := range report.Outcomes {
		reasons = append(reasons, out.Reason)
	}
	assert.Equal(t, []ingest.Reason{
		"",
		ingest.ReasonDuplicate,
		ingest.ReasonUnitNotFound,
		ingest.ReasonStudentNotFound,
		ingest.ReasonYearNotFound,
		ingest.ReasonOutOfScope,
		ingest.ReasonOutOfScope,
		"",
	}, reasons)

	rolls, err := f.marks.QueryNominalRolls(ctx, marks.RepoFilter{}, []core.DBOrdering{{Field: "reg_no", Ascending: true}})
	require.NoError(t, err)
	require.Len(t, rolls, 2)
	assert.Equal(t, marks.Key{UnitCode: "CS201", RegNo: "S001", YearID: f.world.Year2324.ID}, rolls[0].Key())
	assert.Equal(t, marks.Key{UnitCode: "CS305", RegNo: "S003", YearID: f.world.Year2324.ID}, rolls[1].Key())

	assert.Equal(t, 2, f.metrics.Rows["nominal_roll:success"])
	assert.Equal(t, 1, f.metrics.Rows["nominal_roll:warning"])
	assert.Equal(t, 5, f.metrics.Rows["nominal_roll:error"])
}

func TestEngine_LoadResults(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	csv := strings.Join([]string{
		"\ufeffreg_no,unit_code,academic_year,cat,exam,remarks",
		"S001,CS201,2023/2024,25,60,ok",
		"S002,CS201,2023/2024,45,60,",
		"S003,CS305,2023/2024,20,abc,",
		"S002,CS201,2023/2024,,70,",
		"S003,CS305,2023/2024,15.0,-1,",
		"S003,CS305,2023/2024,15.0,0,",
	}, "\n")

	report, err := f.engine.LoadResults(ctx, "L001", "results.CSV", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 0, report.Duplicates)
	assert.Equal(t, []string{
		"Row 2: Invalid CAT mark (45) for student 'S002'. Should be between 0-30.",
		"Row 3: Invalid exam mark (abc) for student 'S003'. Should be between 0-70.",
		"Row 5: Invalid exam mark (-1) for student 'S003'. Should be between 0-70.",
	}, report.Messages(ingest.StatusError))

	results, err := f.marks.QueryResults(ctx, marks.RepoFilter{}, []core.DBOrdering{{Field: "reg_no", Ascending: true}})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "S001", results[0].RegNo)
	assert.Equal(t, 85, results[0].Total())

	assert.Equal(t, "S002", results[1].RegNo)
	assert.False(t, results[1].Cat.Valid, "blank CAT is stored as null")
	assert.Equal(t, 70, results[1].Exam.Int)

	assert.Equal(t, "S003", results[2].RegNo)
	assert.Equal(t, 15, results[2].Cat.Int)
	assert.True(t, results[2].Exam.Valid)
	assert.Equal(t, 0, results[2].Exam.Int)
}

func TestEngine_AllSucceeded(t *testing.T) {
	f := newEngineFixture(t)

	csv := "unit_code,reg_no,academic_year\nCS201,S001,2023/2024\nCS201,S002,2023/2024\n"
	report, err := f.engine.LoadNominalRoll(context.Background(), "L001", "roll.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.True(t, report.Succeeded())
	assert.Equal(t, "Nominal roll loaded successfully.", report.Message)
	assert.Empty(t, report.Messages(ingest.StatusError))

	// reloading the same file only yields duplicate warnings
	report, err = f.engine.LoadNominalRoll(context.Background(), "L001", "roll.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 2, report.Duplicates)
}

func TestEngine_UnassignedLecturer(t *testing.T) {
	f := newEngineFixture(t)

	csv := "unit_code,reg_no,academic_year\nCS201,S001,2023/2024\n"
	report, err := f.engine.LoadNominalRoll(context.Background(), f.world.Unassigned.LecNo, "roll.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, []string{"Row 1: You are not assigned to unit 'CS201' for 2023/2024."}, report.Messages(ingest.StatusError))
}

func TestEngine_RejectedFiles(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.LoadResults(ctx, "L001", "results.txt", strings.NewReader("whatever"))
	assert.Equal(t, ingest.ErrInvalidFormat, err)

	_, err = f.engine.LoadResults(ctx, "L001", "results.xlsx", strings.NewReader("not a zip"))
	assert.Equal(t, ingest.ErrInvalidFormat, errors.Cause(err))

	_, err = f.engine.LoadResults(ctx, "L001", "results.csv", strings.NewReader("reg_no,unit_code,cat\nS001,CS201,20\n"))
	var mcErr *ingest.MissingColumnsError
	require.True(t, errors.As(err, &mcErr))
	assert.Equal(t, []string{"academic_year", "exam"}, mcErr.Columns)
	assert.Equal(t, "Missing required columns: academic_year, exam", err.Error())

	rolls, err := f.marks.QueryNominalRolls(ctx, marks.RepoFilter{}, nil)
	require.NoError(t, err)
	assert.Empty(t, rolls)
}

func TestEngine_LoadXLSX(t *testing.T) {
	f := newEngineFixture(t)

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]interface{}{"unit_code", "reg_no", "academic_year", "cat", "exam"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]interface{}{"CS201", "S001", "2023/2024", 12, 50}))
	require.NoError(t, wb.SetSheetRow(sheet, "A3", &[]interface{}{"CS201", "S002", "2023/2024", 31, 50}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	report, err := f.engine.LoadResults(context.Background(), "L001", "results.xlsx", buf)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, []string{"Row 2: Invalid CAT mark (31) for student 'S002'. Should be between 0-30."},
		report.Messages(ingest.StatusError))
}

func TestEngine_Report(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	csv := "unit_code,reg_no,academic_year\nCS201,S001,2023/2024\n"
	report, err := f.engine.LoadNominalRoll(ctx, "L001", "roll.csv", strings.NewReader(csv))
	require.NoError(t, err)

	got, err := f.engine.Report(ctx, "L001", report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, got.ID)
	assert.Equal(t, report.Inserted, got.Inserted)

	_, err = f.engine.Report(ctx, "L003", report.ID)
	assert.Equal(t, ingest.ErrReportNotFound, err, "reports are private to their uploader")

	_, err = f.engine.Report(ctx, "L001", "unknown")
	assert.Equal(t, ingest.ErrReportNotFound, err)
}

func TestEngine_CanceledContext(t *testing.T) {
	f := newEngineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	csv := "unit_code,reg_no,academic_year\nCS201,S001,2023/2024\n"
	_, err := f.engine.LoadNominalRoll(ctx, "L001", "roll.csv", strings.NewReader(csv))
	assert.Equal(t, context.Canceled, errors.Cause(err))
}

func TestReadTable(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantHeader []string
		wantNums   []int
	}{
		{
			name:       "contiguous rows",
			content:    "unit_code,reg_no\nCS201,S001\nCS201,S002\n",
			wantHeader: []string{"unit_code", "reg_no"},
			wantNums:   []int{1, 2},
		},
		{
			name:       "blank record keeps file positions",
			content:    "unit_code,reg_no\nCS201,S001\n,\n , \nXX999,S001\n",
			wantHeader: []string{"unit_code", "reg_no"},
			wantNums:   []int{1, 4},
		},
		{
			name:       "blank records before the header",
			content:    ",\n\nunit_code,reg_no\nCS201,S001\n",
			wantHeader: []string{"unit_code", "reg_no"},
			wantNums:   []int{1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ingest.ReadTable("upload.csv", strings.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeader, table.Header)
			nums := make([]int, 0, len(table.Rows))
			for _, row := range table.Rows {
				nums = append(nums, row.Num)
			}
			assert.Equal(t, tt.wantNums, nums)
		})
	}
}

func TestEngine_BlankRowKeepsNumbering(t *testing.T) {
	f := newEngineFixture(t)

	csv := "unit_code,reg_no,academic_year\nCS201,S001,2023/2024\n,,\nXX999,S001,2023/2024\n"
	report, err := f.engine.LoadNominalRoll(context.Background(), "L001", "roll.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, []string{"Row 3: Unit 'XX999' not found."}, report.Messages(ingest.StatusError))
}

func TestEngine_CorruptSheet(t *testing.T) {
	f := newEngineFixture(t)

	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow(wb.GetSheetName(0), "A1", &[]interface{}{"unit_code", "reg_no", "academic_year"}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	// same workbook, truncated worksheet XML
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	corrupt := new(bytes.Buffer)
	zw := zip.NewWriter(corrupt)
	for _, zf := range zr.File {
		w, err := zw.Create(zf.Name)
		require.NoError(t, err)
		if zf.Name == "xl/worksheets/sheet1.xml" {
			_, err = w.Write([]byte(`<worksheet><sheetData><row r="1">`))
			require.NoError(t, err)
			continue
		}
		rc, err := zf.Open()
		require.NoError(t, err)
		_, err = io.Copy(w, rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
	}
	require.NoError(t, zw.Close())

	_, err = f.engine.LoadNominalRoll(context.Background(), "L001", "roll.xlsx", corrupt)
	require.Error(t, err)
	assert.Equal(t, ingest.ErrInvalidFormat, errors.Cause(err))
}
