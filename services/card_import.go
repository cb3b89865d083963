package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"market-cards-scoring/models"
	"market-cards-scoring/scoring"

	"github.com/gosimple/unidecode"
	"github.com/shopspring/decimal"
)

// Deck files carry one card per row:
//
//	card_number, title, card_text, equity, debt, gold, cash
//
// Comma, semicolon and tab separated text are accepted; a header row is optional.
const cardColumns = 7

var rateColumns = []models.Asset{models.AssetEquity, models.AssetDebt, models.AssetGold, models.AssetCash}

var headerNames = map[string]bool{
	"card_number": true,
	"card number": true,
	"cardnumber":  true,
	"card no":     true,
	"card":        true,
	"number":      true,
	"id":          true,
}

// cardRow is one parsed deck row before it becomes a ColorCard or BlackCard.
type cardRow struct {
	Line       int
	CardNumber string
	Phase      models.Phase
	Title      string
	CardText   string
	Rates      models.AssetRates
}

// parseCardRows parses a whole deck and stops at the first malformed row.
// Phase detection only applies to color cards.
func parseCardRows(text string, kind models.CardKind) ([]cardRow, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Line: 1, Reason: "no card rows"}
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows []cardRow
	seen := map[string]int{}
	first := true

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.Line, Reason: csvErr.Err.Error()}
			}
			return nil, &ParseError{Line: 0, Reason: err.Error()}
		}
		line, _ := r.FieldPos(0)

		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}
		if isBlank(record) {
			continue
		}

		row, perr := parseCardRow(record, line, kind)
		if perr != nil {
			return nil, perr
		}
		key := strings.ToUpper(row.CardNumber)
		if prev, dup := seen[key]; dup {
			return nil, &ParseError{
				Line:   line,
				Field:  "card_number",
				Reason: fmt.Sprintf("duplicate card number %s (first seen on line %d)", row.CardNumber, prev),
			}
		}
		seen[key] = line
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, &ParseError{Line: 1, Reason: "no card rows"}
	}
	return rows, nil
}

func parseCardRow(record []string, line int, kind models.CardKind) (cardRow, *ParseError) {
	if len(record) < cardColumns {
		return cardRow{}, &ParseError{Line: line, Reason: fmt.Sprintf("expected %d columns, got %d", cardColumns, len(record))}
	}

	number := normalizeCardNumber(record[0])
	if number == "" {
		return cardRow{}, &ParseError{Line: line, Field: "card_number", Reason: "missing"}
	}

	row := cardRow{
		Line:       line,
		CardNumber: number,
		Title:      strings.TrimSpace(record[1]),
		CardText:   strings.TrimSpace(record[2]),
	}

	if kind == models.CardKindColor {
		phase, ok := models.PhaseForPrefix(number[0])
		if !ok {
			return cardRow{}, &ParseError{
				Line:   line,
				Field:  "card_number",
				Reason: fmt.Sprintf("cannot detect phase from prefix %q (want G, B, O or R)", number[:1]),
			}
		}
		row.Phase = phase
	}

	values := make([]decimal.Decimal, len(rateColumns))
	for i, asset := range rateColumns {
		d, err := parseRate(record[3+i])
		if err != nil {
			return cardRow{}, &ParseError{Line: line, Field: string(asset), Reason: err.Error()}
		}
		values[i] = d
	}
	row.Rates = models.AssetRates{Equity: values[0], Debt: values[1], Gold: values[2], Cash: values[3]}
	return row, nil
}

// parseRate reads a percentage such as "15", "-3.5" or "2.25%".
func parseRate(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(unidecode.Unidecode(raw))
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return decimal.Zero, fmt.Errorf("missing value")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", strings.TrimSpace(raw))
	}
	return scoring.RoundNAV(d), nil
}

// normalizeCardNumber transliterates spreadsheet artefacts (full-width
// letters, typographic dashes) to ASCII.
func normalizeCardNumber(raw string) string {
	return strings.ToUpper(strings.TrimSpace(unidecode.Unidecode(strings.TrimSpace(raw))))
}

func sniffDelimiter(text string) rune {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	switch {
	case strings.Contains(firstLine, "\t"):
		return '\t'
	case strings.Contains(firstLine, ";") && !strings.Contains(firstLine, ","):
		return ';'
	}
	return ','
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	return headerNames[strings.ToLower(strings.TrimSpace(record[0]))]
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
