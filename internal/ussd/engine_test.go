package ussd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/events"
	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/provider"
	"github.com/alfredjeanlab/schoolline/internal/store/memory"
)

const (
	parentPhone = "+254724027217"
	schoolName  = "SIGALAME BOYS' SENIOR SCHOOL"
	mainMenu    = "CON Welcome to SIGALAME BOYS' SENIOR SCHOOL\nChoose option.\n1. Fee Balance\n2. Exam Results\n3. News and Events\n4. Fee Structure\n5. Payment Details"
)

var posted = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

// fakeDirectory is a provider.Directory whose answers are set per test.
type fakeDirectory struct {
	mu    sync.Mutex
	calls map[string]int

	accounts    map[string]*model.Account
	identityErr error

	balances    []*model.BalanceRecord
	balancesErr error
	results     []*model.ResultRecord
	events      []*model.EventRecord
	fee         *model.FeeStructure
	feeClass    string
	payment     *model.PaymentInstructions

	// panicOn names a method that panics; hangOn names one that sleeps
	// without watching its context.
	panicOn string
	hangOn  string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		calls: make(map[string]int),
		accounts: map[string]*model.Account{
			parentPhone: {PhoneNumber: parentPhone, Name: "Martin Wamalwa (Parent)", Category: "Parent", Organization: schoolName},
		},
	}
}

func (f *fakeDirectory) enter(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
	if f.panicOn == method {
		panic(method + " exploded")
	}
	if f.hangOn == method {
		time.Sleep(500 * time.Millisecond)
	}
}

func (f *fakeDirectory) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeDirectory) ResolveAccount(_ context.Context, phone string) (*model.Account, error) {
	f.enter("ResolveAccount")
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	a, ok := f.accounts[phone]
	if !ok {
		return nil, provider.ErrUnregistered
	}
	return a, nil
}

func (f *fakeDirectory) Balances(context.Context, string) ([]*model.BalanceRecord, error) {
	f.enter("Balances")
	return f.balances, f.balancesErr
}

func (f *fakeDirectory) Results(context.Context, string) ([]*model.ResultRecord, error) {
	f.enter("Results")
	return f.results, nil
}

func (f *fakeDirectory) Upcoming(context.Context, string) ([]*model.EventRecord, error) {
	f.enter("Upcoming")
	return f.events, nil
}

func (f *fakeDirectory) FeeStructure(_ context.Context, _, class string) (*model.FeeStructure, error) {
	f.enter("FeeStructure")
	f.mu.Lock()
	f.feeClass = class
	f.mu.Unlock()
	return f.fee, nil
}

func (f *fakeDirectory) PaymentInstructions(context.Context, string) (*model.PaymentInstructions, error) {
	f.enter("PaymentInstructions")
	return f.payment, nil
}

// recordingPublisher captures published topics.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) has(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.topics {
		if t == topic {
			return true
		}
	}
	return false
}

type harness struct {
	engine *Engine
	store  *memory.Store
	dir    *fakeDirectory
	pub    *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: memory.New(memory.Options{}),
		dir:   newFakeDirectory(),
		pub:   &recordingPublisher{},
	}
	e, err := New(Options{
		Sessions:            h.store,
		Turns:               h.store,
		Providers:           provider.FromDirectory(h.dir),
		Publisher:           h.pub,
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		CollaboratorTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.engine = e
	return h
}

// at places session id at level, as if earlier turns had run.
func (h *harness) at(t *testing.T, id string, level model.Level) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.store.GetOrCreate(ctx, id, parentPhone); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := h.store.SetLevel(ctx, id, level); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if err := h.store.SetOrganization(ctx, id, schoolName); err != nil {
		t.Fatalf("SetOrganization: %v", err)
	}
}

func (h *harness) dial(id, text string) string {
	return h.engine.Handle(context.Background(), model.InboundTurn{
		SessionID:   id,
		ServiceCode: "*384*123#",
		PhoneNumber: parentPhone,
		Text:        text,
	})
}

func (h *harness) level(t *testing.T, id string) model.Level {
	t.Helper()
	s, err := h.store.GetOrCreate(context.Background(), id, parentPhone)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return s.Level
}

func twoBalances() []*model.BalanceRecord {
	return []*model.BalanceRecord{
		{AdmissionNumber: "58641", StudentName: "MARTIN WAMALWA", Balance: 12500, PostedAt: posted},
		{AdmissionNumber: "58642", StudentName: "KEVIN OMONDI", Balance: 8750, PostedAt: posted},
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Options{Providers: provider.FromDirectory(newFakeDirectory())}); err == nil {
		t.Error("expected error without a session store")
	}
	if _, err := New(Options{Sessions: memory.New(memory.Options{})}); err == nil {
		t.Error("expected error without providers")
	}
}

func TestInitialTurn_Registered(t *testing.T) {
	h := newHarness(t)

	got := h.dial("s1", "")
	if got != mainMenu {
		t.Fatalf("got\n%q\nwant\n%q", got, mainMenu)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelMainMenu {
		t.Errorf("level = %v, want MAIN_MENU", lvl)
	}
	if !h.pub.has(events.TopicSessionStarted) {
		t.Error("expected a session started event")
	}
}

func TestInitialTurn_NationalFormatPhone(t *testing.T) {
	h := newHarness(t)
	got := h.engine.Handle(context.Background(), model.InboundTurn{SessionID: "s1", PhoneNumber: "0724 027 217"})
	if got != mainMenu {
		t.Fatalf("got %q", got)
	}
}

func TestInitialTurn_Unregistered(t *testing.T) {
	h := newHarness(t)
	h.dir.accounts = nil

	got := h.dial("s1", "")
	if got != "END Sorry, phone number is not registered in the system." {
		t.Fatalf("got %q", got)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelInitial {
		t.Errorf("level = %v, want INITIAL", lvl)
	}
	if !h.pub.has(events.TopicCallerUnregistered) {
		t.Error("expected a caller unregistered event")
	}
}

func TestInitialTurn_IdentityUnavailable(t *testing.T) {
	h := newHarness(t)
	h.dir.identityErr = errors.New("connection refused")

	got := h.dial("s1", "")
	if got != "END Service temporarily unavailable. Please try again later." {
		t.Fatalf("got %q", got)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelInitial {
		t.Errorf("level = %v, want INITIAL", lvl)
	}
	if !h.pub.has(events.TopicCollaboratorFailed) {
		t.Error("expected a collaborator failed event")
	}
}

func TestRetryAfterUnregisteredReresolves(t *testing.T) {
	h := newHarness(t)
	h.dir.accounts = nil
	h.dial("s1", "")

	h.dir.accounts = newFakeDirectory().accounts
	if got := h.dial("s1", ""); got != mainMenu {
		t.Fatalf("retry got %q", got)
	}
	if n := h.dir.count("ResolveAccount"); n != 2 {
		t.Errorf("ResolveAccount called %d times, want 2", n)
	}
}

func TestNonInitialTurnAtInitialRunsIdentityGate(t *testing.T) {
	h := newHarness(t)
	h.dir.balances = twoBalances()

	// The session row was lost mid-dial; the caller pressed 1.
	got := h.dial("s1", "1")
	if got != mainMenu {
		t.Fatalf("got %q", got)
	}
	if h.dir.count("Balances") != 0 {
		t.Error("balances fetched before identity was resolved")
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelMainMenu {
		t.Errorf("level = %v", lvl)
	}
}

func TestMalformedTurn(t *testing.T) {
	tests := []struct {
		name string
		turn model.InboundTurn
	}{
		{"missing session", model.InboundTurn{PhoneNumber: parentPhone}},
		{"missing phone", model.InboundTurn{SessionID: "s1"}},
		{"phone without digits", model.InboundTurn{SessionID: "s1", PhoneNumber: "unknown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			got := h.engine.Handle(context.Background(), tt.turn)
			if got != "END Service error. Please try again later." {
				t.Fatalf("got %q", got)
			}
			if h.store.Len() != 0 {
				t.Errorf("malformed turn touched the session store")
			}
			turns, _ := h.store.ListTurns(context.Background(), time.Time{}, 0)
			if len(turns) != 1 || turns[0].Outcome != model.OutcomeMalformed {
				t.Errorf("turn log = %+v", turns)
			}
		})
	}
}

func TestFeeStructurePicker(t *testing.T) {
	h := newHarness(t)
	h.at(t, "s1", model.LevelMainMenu)

	got := h.dial("s1", "4")
	want := "CON Choose Class\n1. Form 1\n2. Form 2\n3. Form 3\n4. Form 4\n0:Back"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelFeeStructureMenu {
		t.Errorf("level = %v, want FEE_STRUCTURE_MENU", lvl)
	}
}

func TestFeeStructureChoice(t *testing.T) {
	h := newHarness(t)
	h.dir.fee = &model.FeeStructure{Organization: "Sigalame Boys", Term1: 22194, Term2: 14063, Term3: 9244, Total: 45501}
	h.at(t, "s1", model.LevelFeeStructureMenu)

	got := h.dial("s1", "4*2")
	if !strings.HasPrefix(got, "END ") {
		t.Fatalf("fee structure should end the dial: %q", got)
	}
	for _, want := range []string{"Ksh.22,194", "Ksh.14,063", "Ksh.9,244", "Total: Ksh.45,501"} {
		if !strings.Contains(got, want) {
			t.Errorf("response missing %q: %q", want, got)
		}
	}
	if h.dir.feeClass != "Form 2" {
		t.Errorf("class = %q, want Form 2", h.dir.feeClass)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelMainMenu {
		t.Errorf("level = %v, want MAIN_MENU", lvl)
	}
}

func TestFeeStructureChoice_Missing(t *testing.T) {
	h := newHarness(t)
	h.at(t, "s1", model.LevelFeeStructureMenu)

	got := h.dial("s1", "4*1")
	if got != "END Fee Structure not available at the moment" {
		t.Fatalf("got %q", got)
	}
}

func TestFeeStructureChoice_InvalidRedisplaysPicker(t *testing.T) {
	h := newHarness(t)
	h.at(t, "s1", model.LevelFeeStructureMenu)

	got := h.dial("s1", "4*7")
	if !strings.HasPrefix(got, "CON Choose Class") {
		t.Fatalf("got %q", got)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelFeeStructureMenu {
		t.Errorf("level = %v", lvl)
	}
	if h.dir.count("FeeStructure") != 0 {
		t.Error("fee structure fetched for an invalid class")
	}
}

func TestUniversalBack(t *testing.T) {
	levels := []model.Level{
		model.LevelMainMenu,
		model.LevelSelectBillingRecord,
		model.LevelSelectAcademicRecord,
		model.LevelFeeStructureMenu,
	}
	for _, lvl := range levels {
		t.Run(lvl.String(), func(t *testing.T) {
			h := newHarness(t)
			h.at(t, "s1", lvl)

			if got := h.dial("s1", "1*0"); got != mainMenu {
				t.Fatalf("got %q", got)
			}
			if got := h.level(t, "s1"); got != model.LevelMainMenu {
				t.Errorf("level = %v, want MAIN_MENU", got)
			}
			if h.dir.count("Balances")+h.dir.count("Results") != 0 {
				t.Error("back navigation called a collaborator")
			}
		})
	}
}

func TestCollaboratorFailureLeavesLevel(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeDirectory)
	}{
		{"error", func(f *fakeDirectory) { f.balancesErr = errors.New("db down") }},
		{"panic", func(f *fakeDirectory) { f.panicOn = "Balances" }},
		{"timeout", func(f *fakeDirectory) { f.hangOn = "Balances" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h.dir)
			h.at(t, "s1", model.LevelMainMenu)

			start := time.Now()
			got := h.dial("s1", "1")
			if got != "END Fee Balance service temporarily unavailable." {
				t.Fatalf("got %q", got)
			}
			if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
				t.Errorf("turn took %v, collaborator timeout not enforced", elapsed)
			}
			if lvl := h.level(t, "s1"); lvl != model.LevelMainMenu {
				t.Errorf("level = %v, want MAIN_MENU", lvl)
			}
			if !h.pub.has(events.TopicCollaboratorFailed) {
				t.Error("expected a collaborator failed event")
			}
			if n := h.dir.count("Balances"); n != 1 {
				t.Errorf("Balances called %d times, want 1 (no retries)", n)
			}
		})
	}
}

func TestSelectionFailureLeavesSelectionLevel(t *testing.T) {
	h := newHarness(t)
	h.dir.balancesErr = errors.New("db down")
	h.at(t, "s1", model.LevelSelectBillingRecord)

	if got := h.dial("s1", "1*2"); got != "END Fee Balance service temporarily unavailable." {
		t.Fatalf("got %q", got)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelSelectBillingRecord {
		t.Errorf("level = %v", lvl)
	}
}

func TestBalance_SingleRecordSkipsPicker(t *testing.T) {
	h := newHarness(t)
	h.dir.balances = twoBalances()[:1]
	h.at(t, "s1", model.LevelMainMenu)

	got := h.dial("s1", "1")
	want := "CON Fee Balance for MARTIN WAMALWA as at 01/02/2026 is Ksh.12,500\n0:Back"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelMainMenu {
		t.Errorf("level = %v, want MAIN_MENU", lvl)
	}
}

func TestBalance_NoRecords(t *testing.T) {
	h := newHarness(t)
	h.at(t, "s1", model.LevelMainMenu)

	if got := h.dial("s1", "1"); got != "END Fee Balance not available at the moment." {
		t.Fatalf("got %q", got)
	}
	if got := h.dial("s1", "2"); got != "END Exam Results not available at the moment." {
		t.Fatalf("got %q", got)
	}
}

func TestBalance_SelectionFlow(t *testing.T) {
	h := newHarness(t)
	h.dir.balances = twoBalances()
	h.at(t, "s1", model.LevelMainMenu)

	picker := "CON Select Student for Fee Balance\n1. MARTIN WAMALWA (58641)\n2. KEVIN OMONDI (58642)\n0:Back"
	if got := h.dial("s1", "1"); got != picker {
		t.Fatalf("got %q, want %q", got, picker)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelSelectBillingRecord {
		t.Fatalf("level = %v, want SELECT_BILLING_RECORD", lvl)
	}

	for _, bad := range []string{"1*3", "1*x", "1*-1"} {
		if got := h.dial("s1", bad); got != picker {
			t.Errorf("input %q: got %q, want the same picker", bad, got)
		}
		if lvl := h.level(t, "s1"); lvl != model.LevelSelectBillingRecord {
			t.Errorf("input %q moved the session to %v", bad, lvl)
		}
	}

	got := h.dial("s1", "1*2")
	want := "CON Fee Balance for KEVIN OMONDI as at 01/02/2026 is Ksh.8,750\n0:Back"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelMainMenu {
		t.Errorf("level = %v, want MAIN_MENU", lvl)
	}
}

func TestBalance_ListEmptiedBetweenTurns(t *testing.T) {
	h := newHarness(t)
	h.at(t, "s1", model.LevelSelectBillingRecord)

	if got := h.dial("s1", "1*1"); got != "END Fee Balance not available at the moment." {
		t.Fatalf("got %q", got)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelMainMenu {
		t.Errorf("level = %v, want MAIN_MENU", lvl)
	}
}

func TestResults_SelectionFlow(t *testing.T) {
	h := newHarness(t)
	exam := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	h.dir.results = []*model.ResultRecord{
		{AdmissionNumber: "58641", StudentName: "MARTIN WAMALWA", ExamName: "End of Term 1 Exams", Results: "ENG:78", PostedAt: exam},
		{AdmissionNumber: "58642", StudentName: "KEVIN OMONDI", ExamName: "End of Term 1 Exams", Results: "ENG:82", PostedAt: exam},
	}
	h.at(t, "s1", model.LevelMainMenu)

	got := h.dial("s1", "2")
	if !strings.HasPrefix(got, "CON Select Student for Exam Results\n1. MARTIN WAMALWA (58641)") {
		t.Fatalf("got %q", got)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelSelectAcademicRecord {
		t.Fatalf("level = %v", lvl)
	}

	got = h.dial("s1", "2*1")
	want := "CON Results for MARTIN WAMALWA for End of Term 1 Exams as at 15/01/2026\n\nENG:78\n0:Main menu"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if h.dir.count("Results") != 2 {
		t.Errorf("results fetched %d times, want a fresh fetch per turn", h.dir.count("Results"))
	}
}

func TestResults_GradedSubjects(t *testing.T) {
	h := newHarness(t)
	raw := "ENG:78KIS:72"
	h.dir.results = []*model.ResultRecord{{
		AdmissionNumber: "58641", StudentName: "MARTIN WAMALWA", ExamName: "End of Term 1 Exams",
		Results: raw, Subjects: model.ParseSubjectScores(raw), MeanGrade: "B+",
		PostedAt: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}}
	h.at(t, "s1", model.LevelMainMenu)

	got := h.dial("s1", "2")
	if !strings.Contains(got, "\n\nENG 78 A-\nKIS 72 B+\nMean grade: B+") {
		t.Fatalf("got %q, want graded subject lines", got)
	}
}

func TestEventsAndPayment(t *testing.T) {
	h := newHarness(t)
	day := time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC)
	h.dir.events = []*model.EventRecord{{Name: "CAT 1 Exams", Details: "Beginning of CAT 1 Exams", StartDate: day}}
	h.dir.payment = &model.PaymentInstructions{Organization: "Sigalame Boys", Description: "Pay at the bursar"}
	h.at(t, "s1", model.LevelMainMenu)

	got := h.dial("s1", "3")
	want := "CON Upcoming Events\n1. CAT 1 Exams\nDate: 12/04/2026\nBeginning of CAT 1 Exams\n0:Back"
	if got != want {
		t.Errorf("events got %q, want %q", got, want)
	}

	got = h.dial("s1", "5")
	if got != "CON Sigalame Boys\nPay at the bursar\n0:Back" {
		t.Errorf("payment got %q", got)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelMainMenu {
		t.Errorf("leaf screens changed the level to %v", lvl)
	}
}

func TestMainMenu_UnknownOptionRedisplays(t *testing.T) {
	h := newHarness(t)
	h.at(t, "s1", model.LevelMainMenu)

	if got := h.dial("s1", "9"); got != mainMenu {
		t.Fatalf("got %q", got)
	}
	if lvl := h.level(t, "s1"); lvl != model.LevelMainMenu {
		t.Errorf("level = %v", lvl)
	}
}

func TestMainMenu_DefaultOrganization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.GetOrCreate(ctx, "s1", parentPhone)
	h.store.SetLevel(ctx, "s1", model.LevelFeeStructureMenu)

	got := h.dial("s1", "4*0")
	if !strings.HasPrefix(got, "CON Welcome to School\n") {
		t.Fatalf("got %q", got)
	}
}

func TestEveryResponseHasMarker(t *testing.T) {
	h := newHarness(t)
	h.dir.balances = twoBalances()
	inputs := []string{"", "1", "1*1", "2", "3", "4", "4*3", "5", "0", "*", "1**2", "abc"}
	for _, in := range inputs {
		got := h.dial("s1", in)
		if !strings.HasPrefix(got, "CON ") && !strings.HasPrefix(got, "END ") {
			t.Errorf("input %q: response %q lacks a CON/END marker", in, got)
		}
	}
}

func TestTurnLogged(t *testing.T) {
	h := newHarness(t)
	h.dial("s1", "")
	h.dial("s1", "4")

	turns, err := h.store.ListTurns(context.Background(), time.Time{}, 0)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	latest := turns[0]
	if latest.LevelBefore != model.LevelMainMenu || latest.LevelAfter != model.LevelFeeStructureMenu {
		t.Errorf("levels = %v -> %v", latest.LevelBefore, latest.LevelAfter)
	}
	if !strings.HasPrefix(latest.ID, "turn-") || latest.PhoneNumber != parentPhone || latest.Input != "4" {
		t.Errorf("unexpected record %+v", latest)
	}
	if !h.pub.has(events.TopicTurnCompleted) {
		t.Error("expected turn completed events")
	}
}

// failingSessions wraps a store and fails SetLevel.
type failingSessions struct {
	*memory.Store
}

func (failingSessions) SetLevel(context.Context, string, model.Level) error {
	return errors.New("write failed")
}

func TestPersistFailure(t *testing.T) {
	dir := newFakeDirectory()
	e, err := New(Options{
		Sessions:  failingSessions{memory.New(memory.Options{})},
		Providers: provider.FromDirectory(dir),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := e.Handle(context.Background(), model.InboundTurn{SessionID: "s1", PhoneNumber: parentPhone})
	if got != "END Service error. Please try again later." {
		t.Fatalf("got %q", got)
	}
}
