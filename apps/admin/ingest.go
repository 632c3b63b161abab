package main

import (
	"context"
	"path/filepath"

	"github.com/mmust/marktrack/core/ingest"
)

// load ingests a local spreadsheet and prints every row that was not inserted.
func (cli *commandLine) load(ctx context.Context, kind ingest.Kind, lecNo, path string) error {
	f, err := openFileFunc(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var report ingest.Report
	if kind == ingest.KindResult {
		report, err = cli.engine.LoadResults(ctx, lecNo, filepath.Base(path), f)
	} else {
		report, err = cli.engine.LoadNominalRoll(ctx, lecNo, filepath.Base(path), f)
	}
	if err != nil {
		return err
	}

	for _, out := range report.Outcomes {
		if out.Status != ingest.StatusSuccess {
			cli.printf("row %d: %s: %s\n", out.Row, out.Status, out.Message)
		}
	}
	cli.printf("report %s: %d inserted, %d duplicates, %d errors\n", report.ID, report.Inserted, report.Duplicates, report.Errors)
	if report.Message != "" {
		cli.printf("%s\n", report.Message)
	}
	return nil
}
