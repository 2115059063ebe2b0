package journal

import (
	"database/sql"
	"errors"
	"time"
)

const runColumns = "id, command, graph_id, input_path, input_digest, edited_path, edited_digest, output_path, output_digest, status, changes, errors, warnings, error_message, started_at, finished_at"

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		graphID      sql.NullString
		inputPath    sql.NullString
		inputDigest  sql.NullString
		editedPath   sql.NullString
		editedDigest sql.NullString
		outputPath   sql.NullString
		outputDigest sql.NullString
		status       string
		errorMessage sql.NullString
		startedRaw   string
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Command,
		&graphID,
		&inputPath,
		&inputDigest,
		&editedPath,
		&editedDigest,
		&outputPath,
		&outputDigest,
		&status,
		&run.Changes,
		&run.Errors,
		&run.Warnings,
		&errorMessage,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	run.GraphID = graphID.String
	run.InputPath = inputPath.String
	run.InputDigest = inputDigest.String
	run.EditedPath = editedPath.String
	run.EditedDigest = editedDigest.String
	run.OutputPath = outputPath.String
	run.OutputDigest = outputDigest.String
	run.Status = Status(status)
	run.ErrorMessage = errorMessage.String
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = finished
		}
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return formatTime(value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
