package account

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

// Persisted position/trade-history blobs are schema-checked on load. A blob
// that does not match fails closed rather than being coerced to defaults.

const positionSchemaVersion = 1

var ErrCorruptState = errors.New("corrupt persisted state")

const positionSchemaJSON = `{
  "type": "object",
  "required": ["schema_version", "has_position", "buy_price", "shares", "amount", "current_profit_rate", "max_profit_rate"],
  "additionalProperties": false,
  "properties": {
    "schema_version":      {"type": "integer", "minimum": 1},
    "has_position":        {"type": "boolean"},
    "buy_price":           {"type": ["string", "number"]},
    "shares":              {"type": "integer", "minimum": 0},
    "amount":              {"type": ["string", "number"]},
    "current_profit_rate": {"type": ["string", "number"]},
    "max_profit_rate":     {"type": ["string", "number"]}
  }
}`

const tradeHistorySchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["date", "type", "price", "shares"],
    "additionalProperties": false,
    "properties": {
      "date":   {"type": "string"},
      "type":   {"type": "string", "enum": ["buy", "sell"]},
      "price":  {"type": ["string", "number"]},
      "shares": {"type": "integer", "minimum": 1},
      "profit": {"type": ["string", "number"]}
    }
  }
}`

var (
	positionSchema     = mustCompile("position.json", positionSchemaJSON)
	tradeHistorySchema = mustCompile("trade_history.json", tradeHistorySchemaJSON)
)

func mustCompile(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}

func validateAgainst(schema *jsonschema.Schema, raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return nil
}

type positionDoc struct {
	SchemaVersion     int             `json:"schema_version"`
	HasPosition       bool            `json:"has_position"`
	BuyPrice          decimal.Decimal `json:"buy_price"`
	Shares            int64           `json:"shares"`
	Amount            decimal.Decimal `json:"amount"`
	CurrentProfitRate decimal.Decimal `json:"current_profit_rate"`
	MaxProfitRate     decimal.Decimal `json:"max_profit_rate"`
}

// EncodePosition serializes the snapshot with its schema version.
func EncodePosition(p Position) ([]byte, error) {
	return json.Marshal(positionDoc{
		SchemaVersion:     positionSchemaVersion,
		HasPosition:       p.HasPosition,
		BuyPrice:          p.BuyPrice,
		Shares:            p.Shares,
		Amount:            p.Amount,
		CurrentProfitRate: p.CurrentProfitRate,
		MaxProfitRate:     p.MaxProfitRate,
	})
}

// DecodePosition validates shape first, then decodes and re-checks the
// structural invariants.
func DecodePosition(raw []byte) (Position, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return FlatPosition(), nil
	}
	if err := validateAgainst(positionSchema, raw); err != nil {
		return Position{}, err
	}
	var doc positionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if doc.SchemaVersion > positionSchemaVersion {
		return Position{}, fmt.Errorf("%w: position schema version %d not supported", ErrCorruptState, doc.SchemaVersion)
	}
	p := Position{
		HasPosition:       doc.HasPosition,
		BuyPrice:          doc.BuyPrice,
		Shares:            doc.Shares,
		Amount:            doc.Amount,
		CurrentProfitRate: doc.CurrentProfitRate,
		MaxProfitRate:     doc.MaxProfitRate,
	}
	if err := p.Validate(); err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return p, nil
}

// EncodeTradeLog serializes history as a plain JSON array.
func EncodeTradeLog(l TradeLog) ([]byte, error) {
	return json.Marshal(l.records)
}

// DecodeTradeLog validates then replays the records so ordering and
// per-record rules hold for whatever storage returned.
func DecodeTradeLog(raw []byte) (TradeLog, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return TradeLog{}, nil
	}
	if err := validateAgainst(tradeHistorySchema, raw); err != nil {
		return TradeLog{}, err
	}
	var records []TradeRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return TradeLog{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	log, err := replay(records)
	if err != nil {
		return TradeLog{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return log, nil
}
