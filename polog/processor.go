package polog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lumenpictures/budget_backend/models"
	"github.com/lumenpictures/budget_backend/utils"
)

// The PO log is a tab-delimited export with 11 logical columns per row:
//
//	0 transaction date   (M/D/YY)
//	1 raw payment type   (CRD / PC / anything else -> invoiced)
//	2 pay status         (RTP, NET30, PAID, PC envelope ids, ...)
//	3 account code
//	4 raw item id
//	5 vendor
//	6 description
//	7 po number
//	8 factors            ("12 hrs x 50 + 100 OT")
//	9 subtotal
//	10 fringes
const logColumnCount = 11

const (
	colTransactionDate = iota
	colPaymentType
	colPayStatus
	colAccountCode
	colItemID
	colVendor
	colDescription
	colPONumber
	colFactors
	colSubTotal
	colFringes
)

const logDateLayout = "1/2/06"

// dueDateNetDays is the fallback payment window for invoiced rows with no
// recognized pay status.
const dueDateNetDays = 30

var (
	// project number is the first 4-digit group after the PO_LOG_ prefix.
	filenamePattern = regexp.MustCompile(`^PO_LOG_(\d{4})`)

	// "12 hrs x 50" -> quantity 12, rate 50. The unit word between the
	// numbers is free text and ignored.
	quantityRatePattern = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*[a-z]*\s*x\s*(-?\d+(?:\.\d+)?)`)

	// "+ 100 OT" / "+ $25 Misc" additive component.
	additivePattern = regexp.MustCompile(`(?i)\+\s*\$?(-?\d+(?:\.\d+)?)\s*(?:ot|misc)?`)

	netTermsPattern = regexp.MustCompile(`(?i)^NET(\d+)$`)
)

// MainItem is one purchase order accumulated from the log, first-seen row
// wins for descriptive fields; Amount is filled after all rows are read.
type MainItem struct {
	ProjectNumber int                `json:"project_number" validate:"required"`
	PONumber      int                `json:"po_number" validate:"required"`
	VendorName    string             `json:"vendor_name"`
	Description   string             `json:"description"`
	POType        models.PaymentType `json:"po_type"`
	Status        string             `json:"status"`
	Amount        decimal.Decimal    `json:"amount"`
}

// DetailLine is one parsed transaction line.
type DetailLine struct {
	ProjectNumber   int                    `json:"project_number" validate:"required"`
	PONumber        int                    `json:"po_number" validate:"required"`
	DetailNumber    int                    `json:"detail_number" validate:"min=0"`
	LineNumber      int                    `json:"line_number" validate:"min=1"`
	VendorName      string                 `json:"vendor_name"`
	PaymentType     models.PaymentType     `json:"payment_type" validate:"required"`
	State           models.DetailItemState `json:"state" validate:"required"`
	AccountCode     string                 `json:"account_code"`
	Description     string                 `json:"description"`
	TransactionDate time.Time              `json:"transaction_date"`
	DueDate         time.Time              `json:"due_date"`
	Quantity        decimal.Decimal        `json:"quantity"`
	Rate            decimal.Decimal        `json:"rate"`
	OT              decimal.Decimal        `json:"ot"`
	Fringes         decimal.Decimal        `json:"fringes"`
	SubTotal        decimal.Decimal        `json:"sub_total"`
}

// ContactStub is a vendor-name candidate; dedup against stored contacts
// happens downstream, never here.
type ContactStub struct {
	Name          string `json:"name"`
	ProjectNumber int    `json:"project_number"`
	PONumber      int    `json:"po_number"`
}

type Result struct {
	ProjectNumber int
	MainItems     []*MainItem
	DetailLines   []*DetailLine
	Contacts      []*ContactStub
}

type Processor struct {
	Logger *logrus.Logger

	// now is swappable so due-date derivation is deterministic under test.
	now func() time.Time
}

func NewProcessor(logger *logrus.Logger) *Processor {
	return &Processor{Logger: logger, now: time.Now}
}

// ProjectNumberFromFilename extracts the 4-digit project number embedded in
// a PO log filename ("PO_LOG_2416_2024-06-01_12-00-00.txt" -> 2416).
// Returns 0 when the name does not carry one.
func ProjectNumberFromFilename(path string) int {
	m := filenamePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// ParseFile parses the PO log at path. The project number comes from the
// filename; a file without one is rejected since every record key needs it.
func (p *Processor) ParseFile(path string) (*Result, error) {
	projectNumber := ProjectNumberFromFilename(path)
	if projectNumber == 0 {
		return nil, fmt.Errorf("no project number in filename %q", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return p.Parse(f, projectNumber)
}

// Parse reads tab-delimited rows and produces main items, detail lines and
// contact candidates in file order. Row-level problems degrade to defaults
// with a warning; only an unreadable stream fails the parse.
func (p *Processor) Parse(r io.Reader, projectNumber int) (*Result, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	result := &Result{ProjectNumber: projectNumber}
	mainByPO := map[int]*MainItem{}

	// line numbers auto-increment per (po, detail) pair in file order.
	lineCounter := map[[2]int]int{}

	rowIndex := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read po log row %d: %w", rowIndex, err)
		}
		rowIndex++

		if isBlankRow(row) || isHeaderRow(row) {
			continue
		}
		row = padRow(row, logColumnCount)

		line, ok := p.parseRow(row, projectNumber, rowIndex, lineCounter)
		if !ok {
			continue
		}
		result.DetailLines = append(result.DetailLines, line)

		if main, seen := mainByPO[line.PONumber]; !seen {
			mainByPO[line.PONumber] = &MainItem{
				ProjectNumber: projectNumber,
				PONumber:      line.PONumber,
				VendorName:    line.VendorName,
				Description:   line.Description,
				POType:        line.PaymentType,
				Status:        string(line.State),
			}
			result.MainItems = append(result.MainItems, mainByPO[line.PONumber])
		} else if main.Description == "" && line.Description != "" {
			// first-seen row had no description; backfill from a later line.
			main.Description = line.Description
		}

		result.Contacts = append(result.Contacts, &ContactStub{
			Name:          contactNameFor(line.PaymentType, line.VendorName, strings.TrimSpace(row[colPayStatus])),
			ProjectNumber: projectNumber,
			PONumber:      line.PONumber,
		})
	}

	// PO amounts are the sum of their detail subtotals, known only after
	// the whole file is read.
	for _, line := range result.DetailLines {
		if main := mainByPO[line.PONumber]; main != nil {
			main.Amount = main.Amount.Add(line.SubTotal)
		}
	}

	return result, nil
}

func (p *Processor) parseRow(row []string, projectNumber, rowIndex int, lineCounter map[[2]int]int) (*DetailLine, bool) {
	logger := p.Logger

	rawDate := strings.TrimSpace(row[colTransactionDate])
	rawType := strings.TrimSpace(row[colPaymentType])
	payStatus := strings.TrimSpace(row[colPayStatus])
	if rawDate == "" || rawType == "" {
		logger.WithFields(logrus.Fields{
			"project": projectNumber,
			"row":     rowIndex,
		}).Warn("po log row missing date or payment type; skipping")
		return nil, false
	}

	paymentType := models.NormalizePaymentType(rawType)

	poNumber, ok := parsePONumber(row[colPONumber], paymentType)
	if !ok {
		logger.WithFields(logrus.Fields{
			"project": projectNumber,
			"row":     rowIndex,
			"po":      row[colPONumber],
		}).Warn("po log row has no usable po number; skipping")
		return nil, false
	}

	transactionDate, err := time.Parse(logDateLayout, rawDate)
	if err != nil {
		transactionDate = p.today()
		logger.WithFields(logrus.Fields{
			"project": projectNumber,
			"row":     rowIndex,
			"date":    rawDate,
		}).Warn("unparseable transaction date; defaulting to today")
	}

	state, dueDate := deriveStatus(payStatus, paymentType, transactionDate, p.today())

	subTotal := p.parseAmount(row[colSubTotal], projectNumber, rowIndex, "subtotal")
	fringes := p.parseAmount(row[colFringes], projectNumber, rowIndex, "fringes")
	quantity, rate, ot := parseFactors(row[colFactors], subTotal)

	detailNumber, lineNumber := assignNumbers(row, paymentType, payStatus, poNumber, lineCounter)

	return &DetailLine{
		ProjectNumber:   projectNumber,
		PONumber:        poNumber,
		DetailNumber:    detailNumber,
		LineNumber:      lineNumber,
		VendorName:      strings.TrimSpace(row[colVendor]),
		PaymentType:     paymentType,
		State:           state,
		AccountCode:     utils.StripLeadingZeros(row[colAccountCode]),
		Description:     strings.TrimSpace(row[colDescription]),
		TransactionDate: transactionDate,
		DueDate:         dueDate,
		Quantity:        quantity,
		Rate:            rate,
		OT:              ot,
		Fringes:         fringes,
		SubTotal:        subTotal,
	}, true
}

func (p *Processor) today() time.Time {
	now := p.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (p *Processor) parseAmount(raw string, projectNumber, rowIndex int, field string) decimal.Decimal {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	cleaned = strings.TrimPrefix(cleaned, "$")
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		p.Logger.WithFields(logrus.Fields{
			"project": projectNumber,
			"row":     rowIndex,
			"field":   field,
			"value":   raw,
		}).Warn("unparseable amount; defaulting to 0")
		return decimal.Zero
	}
	return d
}

// deriveStatus applies the pay-status rule table. Rules are ordered; the
// first hit wins.
func deriveStatus(payStatus string, paymentType models.PaymentType, transactionDate, today time.Time) (models.DetailItemState, time.Time) {
	status := models.NormalizeState(payStatus)
	invoiced := paymentType == models.PaymentTypeINV || paymentType == models.PaymentTypePROJ

	switch {
	case paymentType == models.PaymentTypeCC || paymentType == models.PaymentTypePC:
		return models.DetailItemStateSubmitted, transactionDate
	case status == "RTP" && invoiced:
		return models.DetailItemStateRTP, today
	case status == "NET0" && invoiced:
		return models.DetailItemStateRTP, transactionDate
	case invoiced && netTermsPattern.MatchString(status):
		days, _ := strconv.Atoi(netTermsPattern.FindStringSubmatch(status)[1])
		return models.DetailItemStateRTP, transactionDate.AddDate(0, 0, days)
	case status == "PAID" && invoiced:
		return models.DetailItemStatePaid, today
	case invoiced:
		return models.DetailItemStatePending, transactionDate.AddDate(0, 0, dueDateNetDays)
	default:
		return models.DetailItemStatePending, transactionDate
	}
}

// parseFactors pulls quantity/rate and the additive OT component out of the
// free-text factors column. Absent pieces default to quantity=1,
// rate=subtotal, ot=0.
func parseFactors(raw string, subTotal decimal.Decimal) (quantity, rate, ot decimal.Decimal) {
	quantity = decimal.NewFromInt(1)
	rate = subTotal
	ot = decimal.Zero

	cleaned := strings.Join(strings.Fields(strings.ReplaceAll(raw, ",", "")), " ")
	if cleaned == "" {
		return quantity, rate, ot
	}

	if m := quantityRatePattern.FindStringSubmatch(cleaned); m != nil {
		if q, err := decimal.NewFromString(m[1]); err == nil {
			quantity = q
		}
		if r, err := decimal.NewFromString(m[2]); err == nil {
			rate = r
		}
	}
	if m := additivePattern.FindStringSubmatch(cleaned); m != nil {
		if o, err := decimal.NewFromString(m[1]); err == nil {
			ot = o
		}
	}
	return quantity, rate, ot
}

// parsePONumber cleans the po-number column. Petty-cash rows all live under
// the project's envelope PO and are forced to po 1.
func parsePONumber(raw string, paymentType models.PaymentType) (int, bool) {
	if paymentType == models.PaymentTypePC {
		return 1, true
	}
	cleaned := utils.StripLeadingZeros(raw)
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// assignNumbers derives (detail_number, line_number) for a row.
//
// PC rows: the detail number is the envelope number hidden in the last
// underscore segment of the pay status ("PC_0412_0003" -> 3), and the line
// number is the raw item id (no auto-increment). Everything else: the detail
// number is the raw item id and line numbers count up per (po, detail) pair
// in file order.
func assignNumbers(row []string, paymentType models.PaymentType, payStatus string, poNumber int, lineCounter map[[2]int]int) (int, int) {
	if paymentType == models.PaymentTypePC {
		detail := envelopeNumber(payStatus)
		line := 1
		if n, err := strconv.Atoi(utils.StripLeadingZeros(row[colItemID])); err == nil && n > 0 {
			line = n
		}
		return detail, line
	}

	detail := 1
	if n, err := strconv.Atoi(utils.StripLeadingZeros(row[colItemID])); err == nil && n > 0 {
		detail = n
	}
	key := [2]int{poNumber, detail}
	lineCounter[key]++
	return detail, lineCounter[key]
}

func envelopeNumber(payStatus string) int {
	parts := strings.Split(payStatus, "_")
	if len(parts) < 2 {
		return 0
	}
	n, err := strconv.Atoi(utils.StripLeadingZeros(parts[len(parts)-1]))
	if err != nil {
		return 0
	}
	return n
}

func contactNameFor(paymentType models.PaymentType, vendor, payStatus string) string {
	switch paymentType {
	case models.PaymentTypePC:
		return "PETTY CASH"
	case models.PaymentTypeCC:
		return "Credit Card " + payStatus
	default:
		return vendor
	}
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func isHeaderRow(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "DATE")
}

func padRow(row []string, n int) []string {
	if len(row) >= n {
		return row[:n]
	}
	padded := make([]string, n)
	copy(padded, row)
	return padded
}
