package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"payments-engine/domain"
	"payments-engine/shared"
)

// ErrInvalidInput is matched by every decode failure. A log that fails to
// decode anywhere cannot be trusted, so callers abort the whole run.
var ErrInvalidInput = errors.New("invalid input")

// Amount range accepted by the decoder, in decimal digits. Exponent
// notation is never accepted.
const (
	MaxIntegerDigits  = 34
	MaxFractionDigits = 28
)

type DecodeError struct {
	Line   int
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Record is one decoded row: a command routed to a client.
type Record struct {
	Line    int
	Client  shared.ClientID
	Command domain.Command
}

// Reader decodes a header-led CSV transaction log with the columns
// type, client, tx, amount. The amount column may be left off entirely on
// rows that do not carry one.
type Reader struct {
	csv  *csv.Reader
	line int
}

// NewReader consumes the header row. An empty input yields a Reader that
// returns io.EOF straight away.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	rd := &Reader{csv: cr}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return rd, nil
	}
	if err != nil {
		return nil, &DecodeError{Line: 1, Reason: "unreadable header", Err: err}
	}
	rd.line, _ = cr.FieldPos(0)
	if n := len(header); n < 3 || n > 4 {
		return nil, &DecodeError{Line: rd.line, Reason: fmt.Sprintf("header has %d columns, expected 3 or 4", n)}
	}
	return rd, nil
}

// Next returns the next record in file order, or io.EOF once the input is
// exhausted. Any other error is a *DecodeError.
func (r *Reader) Next() (Record, error) {
	fields, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return Record{}, io.EOF
	}
	if err != nil {
		var parseErr *csv.ParseError
		line := r.line + 1
		if errors.As(err, &parseErr) {
			line = parseErr.Line
		}
		return Record{}, &DecodeError{Line: line, Reason: "malformed row", Err: err}
	}
	r.line, _ = r.csv.FieldPos(0)

	rec, err := decodeRow(fields)
	if err != nil {
		return Record{}, &DecodeError{Line: r.line, Reason: "invalid row", Err: err}
	}
	rec.Line = r.line
	return rec, nil
}

// ReadAll decodes every remaining record, stopping at the first failure.
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

func decodeRow(fields []string) (Record, error) {
	if n := len(fields); n < 3 || n > 4 {
		return Record{}, fmt.Errorf("expected 3 or 4 fields, got %d", n)
	}

	kind := domain.CommandKind(strings.TrimSpace(fields[0]))

	client, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 16)
	if err != nil {
		return Record{}, fmt.Errorf("client %q: %w", fields[1], err)
	}
	tx, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("tx %q: %w", fields[2], err)
	}

	var amountText string
	if len(fields) == 4 {
		amountText = strings.TrimSpace(fields[3])
	}

	cmd, err := decodeCommand(kind, shared.TxID(tx), amountText)
	if err != nil {
		return Record{}, err
	}
	return Record{Client: shared.ClientID(client), Command: cmd}, nil
}

func decodeCommand(kind domain.CommandKind, tx shared.TxID, amountText string) (domain.Command, error) {
	switch kind {
	case domain.DepositKind, domain.WithdrawalKind:
		if amountText == "" {
			return nil, fmt.Errorf("%s of tx %s has no amount", kind, tx)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, fmt.Errorf("amount %q: %w", amountText, err)
		}
		if err := checkAmountRange(amountText, amount); err != nil {
			return nil, err
		}
		if kind == domain.DepositKind {
			return domain.Deposit{Tx: tx, Amount: amount}, nil
		}
		return domain.Withdrawal{Tx: tx, Amount: amount}, nil
	case domain.DisputeKind, domain.ResolveKind, domain.ChargebackKind:
		if amountText != "" {
			return nil, fmt.Errorf("%s of tx %s must not carry an amount, got %q", kind, tx, amountText)
		}
		switch kind {
		case domain.DisputeKind:
			return domain.Dispute{Tx: tx}, nil
		case domain.ResolveKind:
			return domain.Resolve{Tx: tx}, nil
		default:
			return domain.Chargeback{Tx: tx}, nil
		}
	default:
		return nil, fmt.Errorf("unknown transaction type %q", kind)
	}
}

func checkAmountRange(amountText string, amount decimal.Decimal) error {
	if strings.ContainsAny(amountText, "eE") {
		return fmt.Errorf("amount %q: exponent notation is not accepted", amountText)
	}
	if scale := -amount.Exponent(); scale > MaxFractionDigits {
		return fmt.Errorf("amount %q: %d fractional digits, at most %d allowed", amountText, scale, MaxFractionDigits)
	}
	if digits := amount.Abs().Truncate(0).NumDigits(); digits > MaxIntegerDigits {
		return fmt.Errorf("amount %q: %d integer digits, at most %d allowed", amountText, digits, MaxIntegerDigits)
	}
	return nil
}
