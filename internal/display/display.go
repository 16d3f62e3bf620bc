// Package display renders provider records as feature-phone screen text.
//
// Every function here is pure: it takes records and returns the body of a
// screen without the CON/END marker. Navigation footers are appended by the
// caller.
package display

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

const (
	// BackFooter returns the caller to the main menu.
	BackFooter     = "0:Back"
	MainMenuFooter = "0:Main menu"

	// MaxDetailLen is the longest event description shown before truncation.
	MaxDetailLen = 50

	dateLayout = "02/01/2006"
)

// Money formats an amount in whole shillings, e.g. "Ksh.12,500".
func Money(amount int64) string {
	return message.NewPrinter(language.English).Sprintf("Ksh.%d", amount)
}

// Date formats t as dd/mm/yyyy.
func Date(t time.Time) string {
	return t.Format(dateLayout)
}

// Truncate shortens s to max runes, replacing the tail with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// Balance renders one student's fee balance.
func Balance(r *model.BalanceRecord) string {
	return fmt.Sprintf("Fee Balance for %s as at %s is %s", r.StudentName, Date(r.PostedAt), Money(r.Balance))
}

// BalanceOption renders the 1-based index line for a balance in a picker.
func BalanceOption(index int, r *model.BalanceRecord) string {
	return option(index, r.StudentName, r.AdmissionNumber)
}

// Result renders one student's latest exam result.
func Result(r *model.ResultRecord) string {
	body := r.Results
	if len(r.Subjects) > 0 {
		body = gradedResults(r)
	}
	return fmt.Sprintf("Results for %s for %s as at %s\n\n%s", r.StudentName, r.ExamName, Date(r.PostedAt), body)
}

// gradedResults lists one "SUBJ score grade" line per subject, then the
// mean grade and class position when the school posted them.
func gradedResults(r *model.ResultRecord) string {
	lines := make([]string, 0, len(r.Subjects)+2)
	for _, s := range r.Subjects {
		lines = append(lines, fmt.Sprintf("%s %d %s", s.Subject, s.Score, s.Grade))
	}
	if r.MeanGrade != "" {
		lines = append(lines, "Mean grade: "+r.MeanGrade)
	}
	if r.Position != "" && r.TotalStudents > 0 {
		lines = append(lines, fmt.Sprintf("Position: %s/%d", r.Position, r.TotalStudents))
	}
	return strings.Join(lines, "\n")
}

// ResultOption renders the 1-based index line for a result in a picker.
func ResultOption(index int, r *model.ResultRecord) string {
	return option(index, r.StudentName, r.AdmissionNumber)
}

func option(index int, name, adm string) string {
	return fmt.Sprintf("%d. %s (%s)", index, name, adm)
}

// Events renders the upcoming events list.
func Events(events []*model.EventRecord) string {
	if len(events) == 0 {
		return "No upcoming events at the moment"
	}
	var b strings.Builder
	b.WriteString("Upcoming Events\n")
	for i, e := range events {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e.Name)
		fmt.Fprintf(&b, "Date: %s\n", Date(e.StartDate))
		if e.Details != "" {
			b.WriteString(Truncate(e.Details, MaxDetailLen))
			b.WriteString("\n")
		}
		if i < len(events)-1 {
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FeeStructure renders a class fee schedule. A nil structure yields the
// not-available text.
func FeeStructure(fs *model.FeeStructure) string {
	if fs == nil {
		return "Fee Structure not available at the moment"
	}
	return fmt.Sprintf("Fee Structure\n%s\nTerm 1: %s\nTerm 2: %s\nTerm 3: %s\nTotal: %s",
		fs.Organization, Money(fs.Term1), Money(fs.Term2), Money(fs.Term3), Money(fs.Total))
}

// PaymentInstructions renders how to pay fees.
func PaymentInstructions(p *model.PaymentInstructions) string {
	if p == nil {
		return "Payment details not available at the moment"
	}
	if p.Organization == "" {
		return p.Description
	}
	return p.Organization + "\n" + p.Description
}
