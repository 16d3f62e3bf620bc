package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/provider"
)

// Directory serves the menu's collaborators from the school tables. A phone
// number matches a student when it is either of the parent numbers on file.
type Directory struct {
	db  executor
	now func() time.Time
}

var _ provider.Directory = (*Directory)(nil)

// NewDirectory returns a Directory over db.
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db, now: time.Now}
}

// callerSchools selects the schools a phone number belongs to.
const callerSchools = `SELECT school_id FROM ussd_contacts WHERE phone1 = $1 OR phone2 = $1`

func (d *Directory) ResolveAccount(ctx context.Context, phone string) (*model.Account, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT name, category, school_id, school_name, adm
		FROM ussd_contacts
		WHERE phone1 = $1 OR phone2 = $1
		ORDER BY adm
		LIMIT 1`, phone)

	a := &model.Account{PhoneNumber: phone}
	err := row.Scan(&a.Name, &a.Category, &a.OrganizationID, &a.Organization, &a.AdmissionNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, provider.ErrUnregistered
	}
	if err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}
	return a, nil
}

func (d *Directory) Balances(ctx context.Context, phone string) ([]*model.BalanceRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT c.adm, c.student_name, b.balance, b.class, b.posted_at
		FROM fee_balances b
		JOIN student_contacts c ON c.school_id = b.school_id AND c.adm = b.adm
		WHERE c.parent_phone1 = $1 OR c.parent_phone2 = $1
		ORDER BY c.adm`, phone)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var out []*model.BalanceRecord
	for rows.Next() {
		var r model.BalanceRecord
		if err := rows.Scan(&r.AdmissionNumber, &r.StudentName, &r.Balance, &r.Class, &r.PostedAt); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Results returns the most recent exam of each student.
func (d *Directory) Results(ctx context.Context, phone string) ([]*model.ResultRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT ON (c.adm)
			c.adm, c.student_name, r.exam_name, r.results, r.class, r.posted_at,
			r.mean_grade, r.position, r.total_students
		FROM exam_results r
		JOIN student_contacts c ON c.school_id = r.school_id AND c.adm = r.adm
		WHERE c.parent_phone1 = $1 OR c.parent_phone2 = $1
		ORDER BY c.adm, r.posted_at DESC`, phone)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []*model.ResultRecord
	for rows.Next() {
		var r model.ResultRecord
		err := rows.Scan(&r.AdmissionNumber, &r.StudentName, &r.ExamName, &r.Results, &r.Class, &r.PostedAt,
			&r.MeanGrade, &r.Position, &r.TotalStudents)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Subjects = model.ParseSubjectScores(r.Results)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Upcoming returns events starting today or later, soonest first.
func (d *Directory) Upcoming(ctx context.Context, phone string) ([]*model.EventRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT e.name, e.details, e.start_date, e.end_date, sc.name
		FROM upcoming_events e
		JOIN schools sc ON sc.id = e.school_id
		WHERE e.school_id IN (`+callerSchools+`)
		  AND e.start_date >= $2
		ORDER BY e.start_date, e.id`, phone, startOfDay(d.now()))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*model.EventRecord
	for rows.Next() {
		var e model.EventRecord
		if err := rows.Scan(&e.Name, &e.Details, &e.StartDate, &e.EndDate, &e.Organization); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (d *Directory) FeeStructure(ctx context.Context, phone, class string) (*model.FeeStructure, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT f.class, f.term1, f.term2, f.term3, f.total, sc.name, f.posted_at
		FROM fee_structures f
		JOIN schools sc ON sc.id = f.school_id
		WHERE f.school_id IN (`+callerSchools+`)
		  AND lower(f.class) = lower($2)
		ORDER BY f.posted_at DESC
		LIMIT 1`, phone, class)

	var fs model.FeeStructure
	err := row.Scan(&fs.Class, &fs.Term1, &fs.Term2, &fs.Term3, &fs.Total, &fs.Organization, &fs.PostedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fee structure: %w", err)
	}
	return &fs, nil
}

func (d *Directory) PaymentInstructions(ctx context.Context, phone string) (*model.PaymentInstructions, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT p.description, sc.name
		FROM payment_instructions p
		JOIN schools sc ON sc.id = p.school_id
		WHERE p.school_id IN (`+callerSchools+`)
		LIMIT 1`, phone)

	var p model.PaymentInstructions
	err := row.Scan(&p.Description, &p.Organization)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment instructions: %w", err)
	}
	return &p, nil
}
