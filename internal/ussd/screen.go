package ussd

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alfredjeanlab/schoolline/internal/display"
)

const (
	prefixContinue = "CON "
	prefixEnd      = "END "

	// SoftLimit is the screen length most feature phones show without
	// scrolling. Longer screens are logged, not cut.
	SoftLimit = 160
)

// Menu features, as named on the main menu and in unavailable screens.
const (
	FeatureFeeBalance   = "Fee Balance"
	FeatureExamResults  = "Exam Results"
	FeatureEvents       = "Events"
	FeatureFeeStructure = "Fee Structure"
	FeaturePayment      = "Payment Details"
	FeatureIdentity     = "Identity"
)

// Screen is one rendered menu page.
type Screen struct {
	Text     string
	Terminal bool
}

// Continue returns a screen that expects more input.
func Continue(text string) Screen { return Screen{Text: text} }

// End returns a screen that closes the dial session.
func End(text string) Screen { return Screen{Text: text, Terminal: true} }

// Render returns the wire form of the screen.
func (s Screen) Render() string {
	if s.Terminal {
		return prefixEnd + s.Text
	}
	return prefixContinue + s.Text
}

// OverBudget reports whether the rendered screen exceeds SoftLimit.
func (s Screen) OverBudget() bool {
	return utf8.RuneCountInString(s.Render()) > SoftLimit
}

var mainMenuOptions = []string{
	FeatureFeeBalance,
	FeatureExamResults,
	"News and Events",
	FeatureFeeStructure,
	FeaturePayment,
}

func mainMenuScreen(organization string) Screen {
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome to %s\nChoose option.", organization)
	for i, opt := range mainMenuOptions {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
	}
	return Continue(b.String())
}

// feeClasses maps picker keystrokes to class labels.
var feeClasses = map[string]string{
	"1": "Form 1",
	"2": "Form 2",
	"3": "Form 3",
	"4": "Form 4",
}

func feePickerScreen() Screen {
	return Continue("Choose Class\n1. Form 1\n2. Form 2\n3. Form 3\n4. Form 4\n" + display.BackFooter)
}

func selectionScreen(title string, options []string) Screen {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for _, o := range options {
		b.WriteString(o)
		b.WriteString("\n")
	}
	b.WriteString(display.BackFooter)
	return Continue(b.String())
}

// detailScreen shows collaborator data with a footer back to the menu.
func detailScreen(body, footer string) Screen {
	return Continue(body + "\n" + footer)
}

func unregisteredScreen() Screen {
	return End("Sorry, phone number is not registered in the system.")
}

func notAvailableScreen(feature string) Screen {
	return End(feature + " not available at the moment.")
}

func unavailableScreen(feature string) Screen {
	if feature == FeatureIdentity {
		return serviceUnavailableScreen()
	}
	return End(feature + " service temporarily unavailable.")
}

func serviceUnavailableScreen() Screen {
	return End("Service temporarily unavailable. Please try again later.")
}

func serviceErrorScreen() Screen {
	return End("Service error. Please try again later.")
}
