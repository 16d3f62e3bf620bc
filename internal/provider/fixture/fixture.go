// Package fixture is a provider.Directory backed by static demo data. It is
// selected with SL_PROVIDER=fixture and lets the menu be exercised end to end
// without a database.
package fixture

import (
	"context"
	"slices"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/provider"
)

const (
	SchoolID   = 35609104
	SchoolName = "SIGALAME BOYS' SENIOR SCHOOL"
	shortName  = "Sigalame Boys"

	AdminPhone = "+254748944951"
)

// Directory serves the demo school. The zero value is not usable; call New.
type Directory struct {
	accounts map[string]*model.Account
	// phones that see student records, and the subset that also see school
	// wide data (events, fee structure, payment details).
	recordPhones []string
	schoolPhones []string
}

var _ provider.Directory = (*Directory)(nil)

// New returns the demo directory.
func New() *Directory {
	d := &Directory{accounts: make(map[string]*model.Account)}
	for _, a := range demoAccounts {
		acct := a
		acct.OrganizationID = SchoolID
		acct.Organization = SchoolName
		d.accounts[acct.PhoneNumber] = &acct
	}
	d.schoolPhones = []string{"+254724027217", "+254728986084", "+254715648891", "+254714732457", "+254123456789"}
	d.recordPhones = append(slices.Clone(d.schoolPhones), AdminPhone)
	return d
}

// Phones returns every registered demo number, sorted.
func (d *Directory) Phones() []string {
	out := make([]string, 0, len(d.accounts))
	for p := range d.accounts {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (d *Directory) ResolveAccount(_ context.Context, phone string) (*model.Account, error) {
	a, ok := d.accounts[phone]
	if !ok {
		return nil, provider.ErrUnregistered
	}
	cp := *a
	return &cp, nil
}

func (d *Directory) Balances(_ context.Context, phone string) ([]*model.BalanceRecord, error) {
	if !slices.Contains(d.recordPhones, phone) {
		return nil, nil
	}
	posted := date(2026, time.February, 1)
	return []*model.BalanceRecord{
		{AdmissionNumber: "58641", StudentName: "MARTIN WAMALWA", Balance: 12500, Class: "FORM 2", PostedAt: posted},
		{AdmissionNumber: "58642", StudentName: "KEVIN OMONDI", Balance: 8750, Class: "FORM 3", PostedAt: posted},
	}, nil
}

func (d *Directory) Results(_ context.Context, phone string) ([]*model.ResultRecord, error) {
	if !slices.Contains(d.recordPhones, phone) {
		return nil, nil
	}
	posted := date(2026, time.January, 15)
	martin := "ENG:78KIS:72MAT:85BIO:68PHY:82CHEM:79CRE:75AGR:71"
	kevin := "ENG:82KIS:79MAT:88BIO:85PHY:90CHEM:87GEO:76COMP:84"
	return []*model.ResultRecord{
		{
			AdmissionNumber: "58641", StudentName: "MARTIN WAMALWA", ExamName: "End of Term 1 Exams",
			Results: martin, Class: "FORM 2", PostedAt: posted, Subjects: model.ParseSubjectScores(martin),
			MeanGrade: "B+", Position: "3", TotalStudents: 49,
		},
		{
			AdmissionNumber: "58642", StudentName: "KEVIN OMONDI", ExamName: "End of Term 1 Exams",
			Results: kevin, Class: "FORM 3", PostedAt: posted, Subjects: model.ParseSubjectScores(kevin),
			MeanGrade: "A-", Position: "2", TotalStudents: 52,
		},
	}, nil
}

func (d *Directory) Upcoming(_ context.Context, phone string) ([]*model.EventRecord, error) {
	if !slices.Contains(d.schoolPhones, phone) {
		return nil, nil
	}
	day := date(2026, time.April, 12)
	return []*model.EventRecord{
		{Name: "CAT 1 Exams", Details: "Beginning of CAT 1 Exams", StartDate: day, EndDate: day, Organization: shortName},
		{Name: "Opening Date", Details: "Students to resume learning", StartDate: day, EndDate: day, Organization: shortName},
		{Name: "End year Exams", Details: "Beginning of End Term exams F1-F3", StartDate: day, EndDate: day, Organization: shortName},
	}, nil
}

func (d *Directory) FeeStructure(_ context.Context, phone, class string) (*model.FeeStructure, error) {
	if !slices.Contains(d.schoolPhones, phone) {
		return nil, nil
	}
	return &model.FeeStructure{
		Class:        class,
		Term1:        22194,
		Term2:        14063,
		Term3:        9244,
		Total:        45501,
		Organization: shortName,
		PostedAt:     date(2017, time.August, 20),
	}, nil
}

func (d *Directory) PaymentInstructions(_ context.Context, phone string) (*model.PaymentInstructions, error) {
	if !slices.Contains(d.schoolPhones, phone) {
		return nil, nil
	}
	return &model.PaymentInstructions{
		Description: "Parents are asked to pay fees by bankers cheque, money order payable to Sigalame Boys " +
			"or deposit in the school account No. 010210365017-00 National Bank of Kenya",
		Organization: shortName,
	}, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var demoAccounts = []model.Account{
	{PhoneNumber: "+254724027217", AdmissionNumber: "58641", Name: "Martin Wamalwa (Parent)", Category: "Parent"},
	{PhoneNumber: "+254728986084", AdmissionNumber: "58642", Name: "Kevin Omondi (Parent)", Category: "Parent"},
	{PhoneNumber: "+254715648891", AdmissionNumber: "58643", Name: "MR WERE", Category: "Principal"},
	{PhoneNumber: "+254714732457", AdmissionNumber: "58644", Name: "JAMES KAMAU", Category: "Admin"},
	{PhoneNumber: "+254123456789", AdmissionNumber: "58645", Name: "Demo User", Category: "Parent"},
	{PhoneNumber: AdminPhone, Name: "School Administrator", Category: "Admin"},
	{PhoneNumber: "+254720613991", Name: "Didimo Mukati (Principal)", Category: "Principal"},
	{PhoneNumber: "+254742218359", Name: "Wandera Mofati (Admin)", Category: "Admin"},
	{PhoneNumber: "+254701234567", AdmissionNumber: "12077", Name: "Xavier Kelvin (Parent)", Category: "Parent"},
	{PhoneNumber: "+254702345678", AdmissionNumber: "11586", Name: "David Bwire (Parent)", Category: "Parent"},
	{PhoneNumber: "+254703456789", AdmissionNumber: "12047", Name: "Dybal Angoya (Parent)", Category: "Parent"},
	{PhoneNumber: "+254704567890", AdmissionNumber: "12668", Name: "Raymond Mandoli (Parent)", Category: "Parent"},
	{PhoneNumber: "+254705678901", AdmissionNumber: "11569", Name: "Willingtone Ojambo (Parent)", Category: "Parent"},
	{PhoneNumber: "+254706789012", AdmissionNumber: "12643", Name: "Allan Sembu (Parent)", Category: "Parent"},
	{PhoneNumber: "+254707890123", AdmissionNumber: "12701", Name: "Deogracious Wando (Parent)", Category: "Parent"},
	{PhoneNumber: "+254708901234", AdmissionNumber: "11831", Name: "Aine Wesonga (Parent)", Category: "Parent"},
	{PhoneNumber: "+254709012345", AdmissionNumber: "11168", Name: "Vincent Owen (Parent)", Category: "Parent"},
	{PhoneNumber: "+254710123456", AdmissionNumber: "11789", Name: "Prince Joel (Parent)", Category: "Parent"},
}
