package ussd

import (
	"context"
	"strconv"

	"github.com/alfredjeanlab/schoolline/internal/display"
	"github.com/alfredjeanlab/schoolline/internal/model"
)

// Main menu keystrokes.
const (
	optFeeBalance   = "1"
	optExamResults  = "2"
	optEvents       = "3"
	optFeeStructure = "4"
	optPayment      = "5"
	optBack         = "0"
)

// transition picks the next screen and level. Precedence: identity gate,
// universal back, the current level's own options, then a reset to the main
// menu.
func (e *Engine) transition(ctx context.Context, s *model.DialSession, in Input, phone string) outcome {
	if in.Initial {
		return e.identityGate(ctx, s, phone)
	}
	if in.Latest == optBack && s.Level != model.LevelInitial {
		return e.mainMenu(s)
	}

	switch s.Level {
	case model.LevelInitial:
		// The caller never passed the gate on this session, or the row
		// expired mid-dial.
		return e.identityGate(ctx, s, phone)
	case model.LevelMainMenu:
		return e.mainMenuChoice(ctx, s, in.Latest, phone)
	case model.LevelSelectBillingRecord:
		return billingSelection.choose(ctx, e, in.Latest, phone)
	case model.LevelSelectAcademicRecord:
		return academicSelection.choose(ctx, e, in.Latest, phone)
	case model.LevelFeeStructureMenu:
		return e.feeStructureChoice(ctx, in.Latest, phone)
	}
	return e.mainMenu(s)
}

func (e *Engine) identityGate(ctx context.Context, s *model.DialSession, phone string) outcome {
	acct, err := call(ctx, e.timeout, FeatureIdentity, func(ctx context.Context) (*model.Account, error) {
		return e.providers.Identity.ResolveAccount(ctx, phone)
	})
	if err == nil && acct == nil {
		err = &Error{Kind: KindUnregistered, Feature: FeatureIdentity}
	}
	if err != nil {
		if KindOf(err) == KindUnregistered {
			return outcome{screen: unregisteredScreen(), kind: model.OutcomeUnregistered, err: err}
		}
		return outcome{screen: unavailableScreen(FeatureIdentity), kind: model.OutcomeUnavailable, err: err}
	}

	org := acct.Organization
	if org == "" {
		org = e.organization(s)
	}
	return outcome{
		screen:       mainMenuScreen(org),
		next:         model.LevelMainMenu,
		persist:      true,
		kind:         model.OutcomeMenu,
		account:      acct,
		organization: org,
	}
}

func (e *Engine) mainMenu(s *model.DialSession) outcome {
	return outcome{
		screen:  mainMenuScreen(e.organization(s)),
		next:    model.LevelMainMenu,
		persist: true,
		kind:    model.OutcomeMenu,
	}
}

func (e *Engine) mainMenuChoice(ctx context.Context, s *model.DialSession, latest, phone string) outcome {
	switch latest {
	case optFeeBalance:
		return billingSelection.open(ctx, e, phone)
	case optExamResults:
		return academicSelection.open(ctx, e, phone)
	case optEvents:
		return e.upcomingEvents(ctx, phone)
	case optFeeStructure:
		return outcome{screen: feePickerScreen(), next: model.LevelFeeStructureMenu, persist: true, kind: model.OutcomeMenu}
	case optPayment:
		return e.paymentInstructions(ctx, phone)
	}
	return outcome{screen: mainMenuScreen(e.organization(s)), kind: model.OutcomeMenu}
}

func (e *Engine) upcomingEvents(ctx context.Context, phone string) outcome {
	evs, err := call(ctx, e.timeout, FeatureEvents, func(ctx context.Context) ([]*model.EventRecord, error) {
		return e.providers.Events.Upcoming(ctx, phone)
	})
	if err != nil {
		return failed(FeatureEvents, err)
	}
	kind := model.OutcomeDetail
	if len(evs) == 0 {
		kind = model.OutcomeNotAvailable
	}
	return outcome{screen: detailScreen(display.Events(evs), display.BackFooter), kind: kind}
}

func (e *Engine) paymentInstructions(ctx context.Context, phone string) outcome {
	p, err := call(ctx, e.timeout, FeaturePayment, func(ctx context.Context) (*model.PaymentInstructions, error) {
		return e.providers.Billing.PaymentInstructions(ctx, phone)
	})
	if err != nil {
		return failed(FeaturePayment, err)
	}
	kind := model.OutcomeDetail
	if p == nil {
		kind = model.OutcomeNotAvailable
	}
	return outcome{screen: detailScreen(display.PaymentInstructions(p), display.BackFooter), kind: kind}
}

// feeStructureChoice resolves the class picker. The fee structure is the
// last screen of its branch, so it ends the dial.
func (e *Engine) feeStructureChoice(ctx context.Context, latest, phone string) outcome {
	class, ok := feeClasses[latest]
	if !ok {
		return outcome{screen: feePickerScreen(), kind: model.OutcomeMenu}
	}
	fs, err := call(ctx, e.timeout, FeatureFeeStructure, func(ctx context.Context) (*model.FeeStructure, error) {
		return e.providers.Billing.FeeStructure(ctx, phone, class)
	})
	if err != nil {
		return failed(FeatureFeeStructure, err)
	}
	kind := model.OutcomeDetail
	if fs == nil {
		kind = model.OutcomeNotAvailable
	}
	return outcome{screen: End(display.FeeStructure(fs)), next: model.LevelMainMenu, persist: true, kind: kind}
}

// failed leaves the level untouched so the next dial starts clean.
func failed(feature string, err error) outcome {
	return outcome{screen: unavailableScreen(feature), kind: model.OutcomeUnavailable, err: err}
}

// selection is a feature whose records may need a per-student picker.
type selection[R any] struct {
	feature string
	level   model.Level
	title   string
	footer  string
	fetch   func(ctx context.Context, e *Engine, phone string) ([]R, error)
	detail  func(R) string
	option  func(index int, r R) string
}

var billingSelection = selection[*model.BalanceRecord]{
	feature: FeatureFeeBalance,
	level:   model.LevelSelectBillingRecord,
	title:   "Select Student for Fee Balance",
	footer:  display.BackFooter,
	fetch: func(ctx context.Context, e *Engine, phone string) ([]*model.BalanceRecord, error) {
		return e.providers.Billing.Balances(ctx, phone)
	},
	detail: display.Balance,
	option: display.BalanceOption,
}

var academicSelection = selection[*model.ResultRecord]{
	feature: FeatureExamResults,
	level:   model.LevelSelectAcademicRecord,
	title:   "Select Student for Exam Results",
	footer:  display.MainMenuFooter,
	fetch: func(ctx context.Context, e *Engine, phone string) ([]*model.ResultRecord, error) {
		return e.providers.Academic.Results(ctx, phone)
	},
	detail: display.Result,
	option: display.ResultOption,
}

func (sel selection[R]) load(ctx context.Context, e *Engine, phone string) ([]R, error) {
	return call(ctx, e.timeout, sel.feature, func(ctx context.Context) ([]R, error) {
		return sel.fetch(ctx, e, phone)
	})
}

// open handles the main-menu option. A single record skips the picker.
func (sel selection[R]) open(ctx context.Context, e *Engine, phone string) outcome {
	recs, err := sel.load(ctx, e, phone)
	if err != nil {
		return failed(sel.feature, err)
	}
	switch len(recs) {
	case 0:
		return outcome{screen: notAvailableScreen(sel.feature), kind: model.OutcomeNotAvailable}
	case 1:
		return outcome{screen: detailScreen(sel.detail(recs[0]), sel.footer), kind: model.OutcomeDetail}
	}
	return outcome{screen: sel.picker(recs), next: sel.level, persist: true, kind: model.OutcomeSelection}
}

// choose resolves a 1-based pick against a freshly fetched list.
func (sel selection[R]) choose(ctx context.Context, e *Engine, latest, phone string) outcome {
	recs, err := sel.load(ctx, e, phone)
	if err != nil {
		return failed(sel.feature, err)
	}
	if len(recs) == 0 {
		return outcome{screen: notAvailableScreen(sel.feature), next: model.LevelMainMenu, persist: true, kind: model.OutcomeNotAvailable}
	}
	idx, err := strconv.Atoi(latest)
	if err != nil || idx < 1 || idx > len(recs) {
		return outcome{screen: sel.picker(recs), kind: model.OutcomeSelection}
	}
	return outcome{
		screen:  detailScreen(sel.detail(recs[idx-1]), sel.footer),
		next:    model.LevelMainMenu,
		persist: true,
		kind:    model.OutcomeDetail,
	}
}

func (sel selection[R]) picker(recs []R) Screen {
	opts := make([]string, len(recs))
	for i, r := range recs {
		opts[i] = sel.option(i+1, r)
	}
	return selectionScreen(sel.title, opts)
}
