package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentTypeCC   PaymentType = "CC"
	PaymentTypePC   PaymentType = "PC"
	PaymentTypeINV  PaymentType = "INV"
	PaymentTypePROJ PaymentType = "PROJ"
)

// NormalizePaymentType maps a raw PO-log type column to a payment type.
// "CRD" is the credit-card marker in the source system; anything that is not
// a card or petty-cash row is treated as invoiced.
func NormalizePaymentType(raw string) PaymentType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CRD", "CC":
		return PaymentTypeCC
	case "PC":
		return PaymentTypePC
	case "PROJ":
		return PaymentTypePROJ
	default:
		return PaymentTypeINV
	}
}

type DetailItemState string

const (
	DetailItemStatePending    DetailItemState = "PENDING"
	DetailItemStateSubmitted  DetailItemState = "SUBMITTED"
	DetailItemStateReviewed   DetailItemState = "REVIEWED"
	DetailItemStateRTP        DetailItemState = "RTP"
	DetailItemStatePOMismatch DetailItemState = "PO MISMATCH"
	DetailItemStateOverdue    DetailItemState = "OVERDUE"
	DetailItemStateIssue      DetailItemState = "ISSUE"

	// Terminal states. Once a detail item reaches one of these the state
	// machine never moves it again, except for the final-amount audit.
	DetailItemStatePaid       DetailItemState = "PAID"
	DetailItemStateReconciled DetailItemState = "RECONCILED"
	DetailItemStateAuthorized DetailItemState = "AUTHORIZED"
	DetailItemStateApproved   DetailItemState = "APPROVED"
)

func (s DetailItemState) IsTerminal() bool {
	switch DetailItemState(NormalizeState(string(s))) {
	case DetailItemStatePaid, DetailItemStateReconciled, DetailItemStateAuthorized, DetailItemStateApproved:
		return true
	}
	return false
}

// NormalizeState is applied before every state comparison. State values
// arrive from files, humans and two databases; case is not trustworthy.
func NormalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

type SpendMoneyState string

const (
	SpendMoneyStateDraft      SpendMoneyState = "DRAFT"
	SpendMoneyStateAuthorized SpendMoneyState = "AUTHORIZED"
	SpendMoneyStateReconciled SpendMoneyState = "RECONCILED"
)

type BillState string

const (
	BillStateDraft      BillState = "DRAFT"
	BillStateApproved   BillState = "APPROVED"
	BillStateAuthorized BillState = "AUTHORIZED"
	BillStatePaid       BillState = "PAID"
	BillStateReconciled BillState = "RECONCILED"
)

type ReceiptStatus string

const (
	ReceiptStatusPending  ReceiptStatus = "PENDING"
	ReceiptStatusVerified ReceiptStatus = "VERIFIED"
	ReceiptStatusRejected ReceiptStatus = "REJECTED"
)

type InvoiceStatus string

const (
	InvoiceStatusPending  InvoiceStatus = "PENDING"
	InvoiceStatusVerified InvoiceStatus = "VERIFIED"
	InvoiceStatusRejected InvoiceStatus = "REJECTED"
)

type BatchStatus string

const (
	BatchStatusStarted   BatchStatus = "STARTED"
	BatchStatusCompleted BatchStatus = "COMPLETED"
)

// AmountEpsilon is the tolerance for all money comparisons. The bound is
// exclusive: a difference of exactly 0.0001 is NOT a match.
var AmountEpsilon = decimal.RequireFromString("0.0001")

func AmountsMatch(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(AmountEpsilon) < 0
}
