package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"

	"civicwatch/common"
	"civicwatch/report"
)

// Store is the MySQL-backed report store and vote ledger.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) Insert(ctx context.Context, r *report.Report) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	r.CreatedAt = now
	r.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `INSERT
	  INTO reports (id, issue_type, custom_issue, description, location_name, latitude, longitude, image_key, status, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.IssueType, nullable(r.CustomIssue), r.Description, r.LocationName,
		r.Latitude, r.Longitude, nullable(r.ImageKey), string(r.Status), r.CreatedAt, r.UpdatedAt)
	common.LogResult("insertReport", result, err, true)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

func scanReport(scan func(dest ...any) error) (*report.Report, error) {
	r := &report.Report{
		Sightings: report.NewVoteTally(),
		Resolved:  report.NewVoteTally(),
	}
	var customIssue, imageKey sql.NullString
	var status string
	if err := scan(&r.ID, &r.IssueType, &customIssue, &r.Description, &r.LocationName,
		&r.Latitude, &r.Longitude, &imageKey, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.CustomIssue = customIssue.String
	r.ImageKey = imageKey.String
	r.Status = report.Status(status)
	return r, nil
}

const reportColumns = `id, issue_type, custom_issue, description, location_name, latitude, longitude, image_key, status, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id string) (*report.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row.Scan)
	if err == sql.ErrNoRows {
		return nil, report.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", id, err)
	}
	if err := s.loadVotes(ctx, map[string]*report.Report{r.ID: r}); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) List(ctx context.Context) ([]*report.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var out []*report.Report
	byID := map[string]*report.Report{}
	for rows.Next() {
		r, err := scanReport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		out = append(out, r)
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadVotes(ctx, byID); err != nil {
		return nil, err
	}
	return out, nil
}

// loadVotes fills the tallies of the given reports from the ledger. Reports
// with no ledger rows keep their zero tallies, which is also how records
// predating the ledger read back.
func (s *Store) loadVotes(ctx context.Context, reports map[string]*report.Report) error {
	if len(reports) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(reports))
	ids := make([]any, 0, len(reports))
	for id := range reports {
		placeholders = append(placeholders, "?")
		ids = append(ids, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT report_id, kind, identity FROM report_votes WHERE report_id IN (`+strings.Join(placeholders, ", ")+`)`,
		ids...)
	if err != nil {
		return fmt.Errorf("loading vote ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reportID, kind, identity string
		if err := rows.Scan(&reportID, &kind, &identity); err != nil {
			return err
		}
		r, ok := reports[reportID]
		if !ok {
			continue
		}
		switch report.VoteKind(kind) {
		case report.VoteResolved:
			r.Resolved.Voters[identity] = struct{}{}
			r.Resolved.Count = len(r.Resolved.Voters)
		case report.VoteSighting:
			r.Sightings.Voters[identity] = struct{}{}
			r.Sightings.Count = len(r.Sightings.Voters)
		}
	}
	return rows.Err()
}

func (s *Store) SetStatus(ctx context.Context, id string, status report.Status) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	common.LogResult("setReportStatus", result, err, true)
	if err != nil {
		return fmt.Errorf("updating report status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return report.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting delete transaction: %w", err)
	}
	defer tx.Rollback()

	var imageKey sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT image_key FROM reports WHERE id = ? FOR UPDATE`, id).Scan(&imageKey)
	if err == sql.ErrNoRows {
		return "", report.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading report %s for delete: %w", id, err)
	}

	// Ledger rows go with the report (ON DELETE CASCADE backs this up).
	if _, err := tx.ExecContext(ctx, `DELETE FROM report_votes WHERE report_id = ?`, id); err != nil {
		return "", fmt.Errorf("deleting vote ledger for %s: %w", id, err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	common.LogResult("deleteReport", result, err, true)
	if err != nil {
		return "", fmt.Errorf("deleting report %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return imageKey.String, nil
}

// CastVote inserts one ledger row for (id, kind, identity). The duplicate
// check and the insert run under a row lock on the report so concurrent
// votes for the same report serialize.
func (s *Store) CastVote(ctx context.Context, id string, kind report.VoteKind, identity string) (report.VoteTally, error) {
	tally := report.NewVoteTally()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return tally, fmt.Errorf("starting vote transaction: %w", err)
	}
	defer tx.Rollback()

	var lockedID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM reports WHERE id = ? FOR UPDATE`, id).Scan(&lockedID)
	if err == sql.ErrNoRows {
		return tally, report.ErrNotFound
	}
	if err != nil {
		return tally, fmt.Errorf("locking report %s: %w", id, err)
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM report_votes WHERE report_id = ? AND kind = ? AND identity = ?)`,
		id, string(kind), identity).Scan(&exists)
	if err != nil {
		return tally, fmt.Errorf("checking vote ledger: %w", err)
	}
	if exists {
		return tally, report.ErrAlreadyVoted
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO report_votes (report_id, kind, identity, created_at) VALUES (?, ?, ?, ?)`,
		id, string(kind), identity, time.Now().UTC()); err != nil {
		return tally, fmt.Errorf("inserting vote: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT identity FROM report_votes WHERE report_id = ? AND kind = ?`, id, string(kind))
	if err != nil {
		return tally, fmt.Errorf("reading tally: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var voter string
		if err := rows.Scan(&voter); err != nil {
			return tally, err
		}
		tally.Voters[voter] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return tally, err
	}
	tally.Count = len(tally.Voters)

	if _, err := tx.ExecContext(ctx,
		`UPDATE reports SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return tally, fmt.Errorf("touching report %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return tally, fmt.Errorf("committing vote: %w", err)
	}
	log.Debugf("Vote %s/%s by %s -> count %d", id, kind, identity, tally.Count)
	return tally, nil
}

func (s *Store) HasVoted(ctx context.Context, id, identity string) (sighted, resolved bool, err error) {
	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reports WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, false, fmt.Errorf("checking report %s: %w", id, err)
	}
	if !exists {
		return false, false, report.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind FROM report_votes WHERE report_id = ? AND identity = ?`, id, identity)
	if err != nil {
		return false, false, fmt.Errorf("reading votes for %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return false, false, err
		}
		switch report.VoteKind(kind) {
		case report.VoteSighting:
			sighted = true
		case report.VoteResolved:
			resolved = true
		}
	}
	return sighted, resolved, rows.Err()
}
