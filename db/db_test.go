package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"

	"civicwatch/report"
)

var (
	dbc  *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	dbc, mock, _ = sqlmock.New()
}

func tearDown() {
	dbc.Close()
}

var it = beforeeach.Create(setUp, tearDown)

const testReportID = "6c1a1f0e-9b9f-4c3e-8d57-2f3a0c6a1111"

var testCreatedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

var reportCols = []string{
	"id", "issue_type", "custom_issue", "description", "location_name",
	"latitude", "longitude", "image_key", "status", "created_at", "updated_at",
}

func TestCastVote(t *testing.T) {
	it(func() {
		testCases := []struct {
			name       string
			reportRows []string
			hasVoted   bool
			voters     []string

			expectCount int
			expectError error
		}{
			{
				name:        "First vote",
				reportRows:  []string{testReportID},
				hasVoted:    false,
				voters:      []string{"10.0.0.1"},
				expectCount: 1,
			},
			{
				name:        "Third distinct voter",
				reportRows:  []string{testReportID},
				hasVoted:    false,
				voters:      []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
				expectCount: 3,
			},
			{
				name:        "Duplicate vote",
				reportRows:  []string{testReportID},
				hasVoted:    true,
				expectError: report.ErrAlreadyVoted,
			},
			{
				name:        "Missing report",
				reportRows:  nil,
				expectError: report.ErrNotFound,
			},
		}

		for _, tc := range testCases {
			setUp()
			mock.ExpectBegin()
			lockRows := sqlmock.NewRows([]string{"id"})
			for _, id := range tc.reportRows {
				lockRows.AddRow(id)
			}
			mock.ExpectQuery("SELECT id FROM reports WHERE id = (.+) FOR UPDATE").
				WithArgs(testReportID).
				WillReturnRows(lockRows)

			if len(tc.reportRows) > 0 {
				mock.ExpectQuery("SELECT EXISTS").
					WithArgs(testReportID, "resolved", "10.0.0.1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tc.hasVoted))
			}
			if len(tc.reportRows) > 0 && !tc.hasVoted {
				mock.ExpectExec("INSERT INTO report_votes").
					WithArgs(testReportID, "resolved", "10.0.0.1", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
				voterRows := sqlmock.NewRows([]string{"identity"})
				for _, v := range tc.voters {
					voterRows.AddRow(v)
				}
				mock.ExpectQuery("SELECT identity FROM report_votes WHERE report_id = (.+) AND kind = (.+)").
					WithArgs(testReportID, "resolved").
					WillReturnRows(voterRows)
				mock.ExpectExec("UPDATE reports SET updated_at = (.+) WHERE id = (.+)").
					WithArgs(sqlmock.AnyArg(), testReportID).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			store := NewStore(dbc)
			tally, err := store.CastVote(context.Background(), testReportID, report.VoteResolved, "10.0.0.1")

			if tc.expectError != nil {
				if !errors.Is(err, tc.expectError) {
					t.Errorf("%s: expected error %v, got %v", tc.name, tc.expectError, err)
				}
				continue
			}
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.name, err)
				continue
			}
			if tally.Count != tc.expectCount {
				t.Errorf("%s: expected count %d, got %d", tc.name, tc.expectCount, tally.Count)
			}
			if tally.Count != len(tally.Voters) {
				t.Errorf("%s: tally count %d diverges from voter set size %d", tc.name, tally.Count, len(tally.Voters))
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("%s: unmet expectations: %v", tc.name, err)
			}
		}
	})
}

func TestGetLegacyZeroTally(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT (.+) FROM reports WHERE id = (.+)").
			WithArgs(testReportID).
			WillReturnRows(sqlmock.NewRows(reportCols).AddRow(
				testReportID, "flooding", nil, "knee deep after rain", "Espana Blvd",
				14.6091, 120.9898, nil, "pending",
				testCreatedAt, testCreatedAt))
		mock.ExpectQuery("SELECT report_id, kind, identity FROM report_votes WHERE report_id IN").
			WithArgs(testReportID).
			WillReturnRows(sqlmock.NewRows([]string{"report_id", "kind", "identity"}))

		store := NewStore(dbc)
		r, err := store.Get(context.Background(), testReportID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Sightings.Count != 0 || len(r.Sightings.Voters) != 0 {
			t.Errorf("legacy record must read back with a zero sightings tally, got %+v", r.Sightings)
		}
		if r.Resolved.Count != 0 || len(r.Resolved.Voters) != 0 {
			t.Errorf("legacy record must read back with a zero resolved tally, got %+v", r.Resolved)
		}
		if r.Sightings.Voters == nil || r.Resolved.Voters == nil {
			t.Errorf("tally voter sets must be usable, not nil")
		}
	})
}

func TestGetNotFound(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT (.+) FROM reports WHERE id = (.+)").
			WithArgs(testReportID).
			WillReturnRows(sqlmock.NewRows(reportCols))

		store := NewStore(dbc)
		_, err := store.Get(context.Background(), testReportID)
		if !errors.Is(err, report.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestGetMergesLedger(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT (.+) FROM reports WHERE id = (.+)").
			WithArgs(testReportID).
			WillReturnRows(sqlmock.NewRows(reportCols).AddRow(
				testReportID, "custom", "abandoned fridge", "", "Quiapo underpass",
				14.5995, 120.9842, "images/e3b0c442.png", "in_progress",
				testCreatedAt, testCreatedAt.Add(24*time.Hour)))
		mock.ExpectQuery("SELECT report_id, kind, identity FROM report_votes WHERE report_id IN").
			WithArgs(testReportID).
			WillReturnRows(sqlmock.NewRows([]string{"report_id", "kind", "identity"}).
				AddRow(testReportID, "sighting", "10.0.0.1").
				AddRow(testReportID, "sighting", "10.0.0.2").
				AddRow(testReportID, "resolved", "10.0.0.2"))

		store := NewStore(dbc)
		r, err := store.Get(context.Background(), testReportID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Sightings.Count != 2 {
			t.Errorf("expected 2 sightings, got %d", r.Sightings.Count)
		}
		if r.Resolved.Count != 1 {
			t.Errorf("expected 1 resolved vote, got %d", r.Resolved.Count)
		}
		if !r.Sightings.Has("10.0.0.2") || !r.Resolved.Has("10.0.0.2") {
			t.Errorf("voter membership not read back correctly: %+v %+v", r.Sightings, r.Resolved)
		}
		if r.CustomIssue != "abandoned fridge" {
			t.Errorf("custom_issue not read back, got %q", r.CustomIssue)
		}
	})
}

func TestDelete(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT image_key FROM reports WHERE id = (.+) FOR UPDATE").
			WithArgs(testReportID).
			WillReturnRows(sqlmock.NewRows([]string{"image_key"}).AddRow("images/e3b0c442.png"))
		mock.ExpectExec("DELETE FROM report_votes WHERE report_id = (.+)").
			WithArgs(testReportID).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec("DELETE FROM reports WHERE id = (.+)").
			WithArgs(testReportID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		store := NewStore(dbc)
		imageKey, err := store.Delete(context.Background(), testReportID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if imageKey != "images/e3b0c442.png" {
			t.Errorf("expected the removed image key back, got %q", imageKey)
		}
	})
}

func TestDeleteNotFound(t *testing.T) {
	it(func() {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT image_key FROM reports WHERE id = (.+) FOR UPDATE").
			WithArgs(testReportID).
			WillReturnRows(sqlmock.NewRows([]string{"image_key"}))
		mock.ExpectRollback()

		store := NewStore(dbc)
		_, err := store.Delete(context.Background(), testReportID)
		if !errors.Is(err, report.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSetStatus(t *testing.T) {
	it(func() {
		testCases := []struct {
			name         string
			rowsAffected int64
			expectError  error
		}{
			{name: "Existing report", rowsAffected: 1},
			{name: "Missing report", rowsAffected: 0, expectError: report.ErrNotFound},
		}
		for _, tc := range testCases {
			setUp()
			mock.ExpectExec("UPDATE reports SET status = (.+), updated_at = (.+) WHERE id = (.+)").
				WithArgs("in_progress", sqlmock.AnyArg(), testReportID).
				WillReturnResult(sqlmock.NewResult(0, tc.rowsAffected))

			store := NewStore(dbc)
			err := store.SetStatus(context.Background(), testReportID, report.StatusInProgress)
			if !errors.Is(err, tc.expectError) {
				t.Errorf("%s: expected error %v, got %v", tc.name, tc.expectError, err)
			}
		}
	})
}

func TestHasVoted(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(testReportID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT kind FROM report_votes WHERE report_id = (.+) AND identity = (.+)").
			WithArgs(testReportID, "10.0.0.1").
			WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("sighting"))

		store := NewStore(dbc)
		sighted, resolved, err := store.HasVoted(context.Background(), testReportID, "10.0.0.1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !sighted || resolved {
			t.Errorf("expected sighted=true resolved=false, got %v %v", sighted, resolved)
		}
	})
}
