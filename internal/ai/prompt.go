package ai

import (
	"fmt"
	"time"
)

const jsonContract = `{
  "invoiceNumber": "string",
  "date": "MM/DD/YYYY",
  "dueDate": "MM/DD/YYYY",
  "vendor": "string",
  "customer": "string",
  "items": [
    {"description": "string", "quantity": 1, "unitPrice": 0.00, "amount": 0.00}
  ],
  "subtotal": 0.00,
  "tax": 0.00,
  "total": 0.00
}`

// buildPromptVision creates the prompt sent along with an invoice image.
func buildPromptVision(now time.Time) string {
	return fmt.Sprintf(`You are an expert at reading invoices. READ CAREFULLY every character in the attached document.

## HOW TO READ

STEP 1 - EXAMINE THE WHOLE DOCUMENT:
- The header (logo, company name, address) identifies the VENDOR who issued the invoice
- "Bill To", "Sold To" or "Customer" identifies the CUSTOMER
- The table in the middle holds the line items
- The bottom holds subtotal, tax and total

STEP 2 - EXTRACT THE FIELDS:
- invoiceNumber: the invoice or reference number exactly as printed
- date: the issue date
- dueDate: the payment due date; leave empty if not printed
- items: one entry per line item with description, quantity, unit price and line amount
- subtotal, tax, total: the amounts printed on the document

## RULES
- Return ONLY a JSON object, no markdown, no explanations
- Dates in MM/DD/YYYY format. If the year is missing, assume %d
- Amounts are numbers without currency symbols or thousands separators
- If a field cannot be read, return an empty string or 0
- Do NOT invent items that are not printed

## RESPONSE FORMAT
%s`, now.Year(), jsonContract)
}

// buildPromptText creates the prompt for text already extracted from the document.
func buildPromptText(text string, now time.Time) string {
	return fmt.Sprintf(`You are an expert at reading invoices. Below is the text content of an invoice. Extract the invoice data.

## RULES
- The VENDOR is the company that issued the invoice, usually at the top
- The CUSTOMER appears after "Bill To", "Sold To" or "Customer"
- Dates in MM/DD/YYYY format. If the year is missing, assume %d
- Amounts are numbers without currency symbols or thousands separators
- If a field is not present, return an empty string or 0
- Return ONLY a JSON object, no markdown, no explanations

## RESPONSE FORMAT
%s

## INVOICE TEXT
%s`, now.Year(), jsonContract, text)
}
