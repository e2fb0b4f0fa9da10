package chartconfig

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders numbers for display. It never changes the values
// carried in series data.
type Formatter struct {
	printer     *message.Printer
	maxFraction int
}

// NewFormatter creates a formatter for the given locale.
func NewFormatter(tag language.Tag) Formatter {
	return Formatter{printer: message.NewPrinter(tag), maxFraction: 2}
}

// DefaultFormatter formats with US English grouping.
func DefaultFormatter() Formatter { return NewFormatter(language.AmericanEnglish) }

// Number formats v with thousands separators and at most two decimals.
func (f Formatter) Number(v float64) string {
	if f.printer == nil {
		f = DefaultFormatter()
	}
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(f.maxFraction)))
}

// WithUnit formats v and appends unit.
func (f Formatter) WithUnit(v float64, unit string) string {
	return f.Number(v) + unit
}
