package reminder

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders amounts, dates and fee labels for one locale
type Formatter struct {
	tag      language.Tag
	currency string
}

// NewFormatter creates a formatter. An unparseable locale falls back to English.
func NewFormatter(locale, currencyLabel string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{tag: tag, currency: strings.TrimSpace(currencyLabel)}
}

// Amount formats an integer amount with locale digit grouping
func (f *Formatter) Amount(n int64) string {
	s := message.NewPrinter(f.tag).Sprintf("%d", n)
	if f.currency == "" {
		return s
	}
	return f.currency + " " + s
}

// Date formats a calendar date
func (f *Formatter) Date(t time.Time) string {
	return t.Format("02 Jan 2006")
}

// Label title-cases a free-form fee label ("lab_fee" becomes "Lab Fee")
func (f *Formatter) Label(label string) string {
	label = strings.Join(strings.Fields(strings.ReplaceAll(label, "_", " ")), " ")
	return cases.Title(f.tag).String(label)
}
