// Package testutils provides shared fixtures and test doubles for the
// evaluation packages.
package testutils

import "github.com/ahrav/docgavel/internal/domain"

// InvoiceClass is the document class used by the invoice fixtures.
const InvoiceClass = "invoice"

// InvoiceConfigYAML is an evaluation config describing InvoiceAttributes.
const InvoiceConfigYAML = `version: "1.0.0"
defaults:
  method: EXACT
  threshold: 0.8
semantic:
  model_id: test-model
  temperature: 0
  top_k: 5
classes:
  - name: invoice
    description: Supplier invoice
    attributes:
      - name: invoice_number
        method: EXACT
      - name: invoice_date
      - name: total_amount
        method: NUMERIC_EXACT
      - name: vendor
        type: group
        children:
          - name: name
            method: FUZZY
            threshold: 0.8
          - name: address
            description: Postal address of the vendor
            method: SEMANTIC
            threshold: 0.7
      - name: line_items
        type: list
        list_strategy: index
        items:
          - name: description
            method: FUZZY
            threshold: 0.8
          - name: amount
            method: NUMERIC_EXACT
      - name: tags
        type: list
        list_strategy: set
      - name: po_number
      - name: notes
`

// InvoiceAttributes returns the attribute tree of InvoiceConfigYAML.
func InvoiceAttributes() []domain.AttributeSpec {
	fuzzy := 0.8
	semantic := 0.7
	return []domain.AttributeSpec{
		{Name: "invoice_number", Method: "EXACT"},
		{Name: "invoice_date"},
		{Name: "total_amount", Method: "NUMERIC_EXACT"},
		{
			Name: "vendor",
			Type: domain.AttributeGroup,
			Children: []domain.AttributeSpec{
				{Name: "name", Method: "FUZZY", Threshold: &fuzzy},
				{Name: "address", Description: "Postal address of the vendor", Method: "SEMANTIC", Threshold: &semantic},
			},
		},
		{
			Name:         "line_items",
			Type:         domain.AttributeList,
			ListStrategy: domain.ListIndex,
			Items: []domain.AttributeSpec{
				{Name: "description", Method: "FUZZY", Threshold: &fuzzy},
				{Name: "amount", Method: "NUMERIC_EXACT"},
			},
		},
		{Name: "tags", Type: domain.AttributeList, ListStrategy: domain.ListSet},
		{Name: "po_number"},
		{Name: "notes"},
	}
}

// InvoiceExpected is the ground truth for the invoice fixture.
func InvoiceExpected() map[string]any {
	return map[string]any{
		"invoice_number": "INV-2024-001",
		"invoice_date":   "2024-03-15",
		"total_amount":   "$1,250.00",
		"vendor": map[string]any{
			"name":    "Acme Corporation",
			"address": "12 Main Street, Springfield",
		},
		"line_items": []any{
			map[string]any{"description": "Widget A", "amount": 500},
			map[string]any{"description": "Service fee", "amount": 750},
		},
		"tags": []any{"urgent", "paid"},
	}
}

// InvoiceActual is an extraction of the invoice with one wrong date, one
// wrong line amount, an extra tag and a spurious note.
//
// Against InvoiceExpected with a judge that approves the address it yields
// 7 true positives, 3 false negatives, 2 false positives and 1 true
// negative. Without a judge the address becomes a false negative.
func InvoiceActual() map[string]any {
	return map[string]any{
		"invoice_number": "inv 2024 001",
		"invoice_date":   "2024-03-16",
		"total_amount":   1250.0,
		"vendor": map[string]any{
			"name":    "Acme Corporation",
			"address": "12 Main St, Springfield",
		},
		"line_items": []any{
			map[string]any{"description": "Widget A", "amount": "500.00"},
			map[string]any{"description": "Service fee", "amount": 700},
		},
		"tags":  []any{"paid", "urgent", "late"},
		"notes": "handwritten",
	}
}
