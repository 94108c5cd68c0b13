package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/facturaIA/invoice-extraction-service/internal/parser"
	"github.com/facturaIA/invoice-extraction-service/internal/reconcile"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNoJSON is returned when a reply contains no complete JSON object.
var ErrNoJSON = errors.New("no JSON object in model reply")

// replySchemaJSON accepts numbers as numbers or strings; string amounts are
// coerced afterwards.
const replySchemaJSON = `{
  "type": "object",
  "properties": {
    "invoiceNumber": {"type": ["string", "number", "null"]},
    "date":          {"type": ["string", "null"]},
    "dueDate":       {"type": ["string", "null"]},
    "vendor":        {"type": ["string", "null"]},
    "customer":      {"type": ["string", "null"]},
    "items": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "description": {"type": ["string", "null"]},
          "quantity":    {"type": ["number", "string", "null"]},
          "unitPrice":   {"type": ["number", "string", "null"]},
          "amount":      {"type": ["number", "string", "null"]}
        }
      }
    },
    "subtotal": {"type": ["number", "string", "null"]},
    "tax":      {"type": ["number", "string", "null"]},
    "total":    {"type": ["number", "string", "null"]}
  }
}`

var replySchema = mustCompileReplySchema()

func mustCompileReplySchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("reply.json", strings.NewReader(replySchemaJSON)); err != nil {
		panic(fmt.Sprintf("add reply schema: %v", err))
	}
	schema, err := compiler.Compile("reply.json")
	if err != nil {
		panic(fmt.Sprintf("compile reply schema: %v", err))
	}
	return schema
}

type rawItem struct {
	Description string      `json:"description"`
	Quantity    interface{} `json:"quantity"`
	UnitPrice   interface{} `json:"unitPrice"`
	Amount      interface{} `json:"amount"`
}

type rawInvoice struct {
	InvoiceNumber interface{} `json:"invoiceNumber"`
	Date          string      `json:"date"`
	DueDate       string      `json:"dueDate"`
	Vendor        string      `json:"vendor"`
	Customer      string      `json:"customer"`
	Items         []rawItem   `json:"items"`
	Subtotal      interface{} `json:"subtotal"`
	Tax           interface{} `json:"tax"`
	Total         interface{} `json:"total"`
}

// ParseReply turns a model reply into a normalized invoice. Markdown fences
// and prose around the first JSON object are ignored.
func ParseReply(reply string) (models.ExtractedInvoice, error) {
	block, err := extractJSONBlock(reply)
	if err != nil {
		return models.ExtractedInvoice{}, err
	}

	dec := json.NewDecoder(strings.NewReader(block))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return models.ExtractedInvoice{}, fmt.Errorf("JSON parse error: %w", err)
	}
	if err := replySchema.Validate(doc); err != nil {
		return models.ExtractedInvoice{}, fmt.Errorf("reply does not match schema: %w", err)
	}

	var raw rawInvoice
	dec = json.NewDecoder(bytes.NewReader([]byte(block)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return models.ExtractedInvoice{}, fmt.Errorf("JSON parse error: %w", err)
	}
	return raw.toInvoice(), nil
}

func (raw rawInvoice) toInvoice() models.ExtractedInvoice {
	inv := models.ExtractedInvoice{
		InvoiceNumber: invoiceNumber(raw.InvoiceNumber),
		Date:          isoDate(raw.Date),
		DueDate:       isoDate(raw.DueDate),
		Vendor:        strings.TrimSpace(raw.Vendor),
		Customer:      strings.TrimSpace(raw.Customer),
		Subtotal:      reconcile.Coerce(raw.Subtotal),
		Tax:           reconcile.Coerce(raw.Tax),
		Total:         reconcile.Coerce(raw.Total),
	}

	for _, it := range raw.Items {
		item := models.LineItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    reconcile.Coerce(it.Quantity),
			UnitPrice:   reconcile.Coerce(it.UnitPrice),
			Amount:      reconcile.Coerce(it.Amount),
		}
		if item.Description == "" {
			if item.Amount.IsZero() && item.UnitPrice.IsZero() {
				continue
			}
			item.Description = fmt.Sprintf("Item %d", len(inv.Items)+1)
		}
		inv.Items = append(inv.Items, item)
	}

	inv.FillDefaults()
	return reconcile.Reconcile(inv)
}

func invoiceNumber(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

func isoDate(s string) string {
	if iso, ok := parser.NormalizeDate(s); ok {
		return iso
	}
	return ""
}

// extractJSONBlock returns the first balanced {...} object in s.
func extractJSONBlock(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}
