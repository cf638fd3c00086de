package reminder

import (
	"fmt"
	"strings"

	"github.com/schoolfees/backend/internal/domain/fees"
	"github.com/schoolfees/backend/internal/domain/student"
)

type content struct {
	title string
	text  string
}

func (f *Formatter) feeReminder(st *student.Student, l *fees.FeeLedger) content {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", st.Name)
	fmt.Fprintf(&b, "This is a reminder about the fees for academic year %s.\n\n", l.AcademicYear)

	heads := []struct {
		label string
		value *int64
	}{
		{"Admission Fees", l.AdmissionFees},
		{"Uniform Fees", l.UniformFees},
		{"Book Fees", l.BookFees},
		{"Tuition Fees", l.TuitionFees},
	}
	for _, h := range heads {
		if h.value != nil {
			fmt.Fprintf(&b, "  %s: %s\n", h.label, f.Amount(*h.value))
		}
	}
	for _, label := range l.AdditionalFees.Labels() {
		fmt.Fprintf(&b, "  %s: %s\n", f.Label(label), f.Amount(l.AdditionalFees[label]))
	}

	fmt.Fprintf(&b, "\nTotal fees: %s\n", f.Amount(l.TotalFees()))
	fmt.Fprintf(&b, "Paid so far: %s (%s%%)\n", f.Amount(l.TotalPaidAmount()), l.PaidPercentage().StringFixed(2))
	fmt.Fprintf(&b, "Remaining: %s\n", f.Amount(l.RemainingFees()))
	if next := l.NextUnpaidInstallment(); next != nil {
		fmt.Fprintf(&b, "\nNext installment: %s due on %s.\n", f.Amount(next.DueAmount()), f.Date(*next.DueDate))
	}

	return content{
		title: fmt.Sprintf("Fee reminder for %s", l.AcademicYear),
		text:  b.String(),
	}
}

func (f *Formatter) overdueReminder(st *student.Student, l *fees.FeeLedger, a fees.DueAssessment) content {
	days := "days"
	if a.DaysOverdue == 1 {
		days = "day"
	}
	text := fmt.Sprintf(
		"Dear %s,\n\nInstallment %d of %s for academic year %s was due on %s and is %d %s overdue.\n"+
			"A late fee of %s has accrued. Total due now: %s.\n",
		st.Name, a.Sequence, f.Amount(a.DueAmount), l.AcademicYear, f.Date(a.DueDate),
		a.DaysOverdue, days, f.Amount(a.LateFee), f.Amount(a.TotalDueNow),
	)
	return content{
		title: fmt.Sprintf("Installment %d is overdue", a.Sequence),
		text:  text,
	}
}

func (f *Formatter) dueTodayReminder(st *student.Student, l *fees.FeeLedger, a fees.DueAssessment) content {
	text := fmt.Sprintf(
		"Dear %s,\n\nInstallment %d of %s for academic year %s is due today (%s).\n"+
			"Paying today avoids a late fee.\n",
		st.Name, a.Sequence, f.Amount(a.DueAmount), l.AcademicYear, f.Date(a.DueDate),
	)
	return content{
		title: fmt.Sprintf("Installment %d is due today", a.Sequence),
		text:  text,
	}
}

func (f *Formatter) paymentConfirmation(st *student.Student, l *fees.FeeLedger, p PaymentConfirmation) content {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", st.Name)
	fmt.Fprintf(&b, "We received a payment of %s", f.Amount(p.Amount))
	if p.TransactionReference != "" {
		fmt.Fprintf(&b, " (reference %s)", p.TransactionReference)
	}
	fmt.Fprintf(&b, " for academic year %s.\n", l.AcademicYear)
	if p.LateFee > 0 {
		fmt.Fprintf(&b, "A late fee of %s was assessed on this installment.\n", f.Amount(p.LateFee))
	}
	fmt.Fprintf(&b, "Remaining balance: %s.\n", f.Amount(l.RemainingFees()))
	if next := l.NextUnpaidInstallment(); next != nil {
		fmt.Fprintf(&b, "Next installment of %s is due on %s.\n", f.Amount(next.DueAmount()), f.Date(*next.DueDate))
	}
	return content{
		title: "Payment received",
		text:  b.String(),
	}
}
