package canonical

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/andrey/invoice-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvoice() *domain.Invoice {
	created := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	qty, _ := domain.ParseDecimal("2.5000", 4)
	price, _ := domain.ParseDecimal("10.00", 2)
	total, _ := domain.ParseDecimal("25.00", 2)
	zero, _ := domain.ParseDecimal("0.00", 2)
	return &domain.Invoice{
		ID:            42,
		InvoiceNumber: "INV-0001",
		FormNumber:    "01GTKT",
		Serial:        "AA/24E",
		Seller:        domain.Party{Name: "Acme Co", TaxID: "TAX-1"},
		Customer:      domain.Party{Name: "Customer Co", TaxID: "TAX-2"},
		SubTotal:      total,
		TaxAmount:     zero,
		Discount:      zero,
		Total:         total,
		Currency:      "USD",
		IssuedDate:    created,
		CreatedAt:     created,
		Lines: []domain.InvoiceLine{
			{LineNumber: 2, Description: "Widget B", Unit: "pcs", Quantity: qty, UnitPrice: price, LineTotal: total},
			{LineNumber: 1, Description: "Widget A", Unit: "pcs", Quantity: qty, UnitPrice: price, LineTotal: total},
		},
	}
}

func TestCanonicalize_Deterministic(t *testing.T) {
	inv1 := sampleInvoice()
	inv2 := sampleInvoice()

	b1 := Canonicalize(inv1)
	b2 := Canonicalize(inv2)
	assert.Equal(t, b1, b2)
	assert.Equal(t, ImmutableHash(inv1), ImmutableHash(inv2))
}

func TestCanonicalize_LinesSortedByLineNumber(t *testing.T) {
	inv := sampleInvoice()
	b := Canonicalize(inv)
	require.Contains(t, string(b), `"lineNumber":1`)

	first := indexOf(string(b), `"lineNumber":1`)
	second := indexOf(string(b), `"lineNumber":2`)
	require.True(t, first < second, "line 1 must be serialized before line 2")
}

func TestCanonicalize_IsValidJSON(t *testing.T) {
	b := Canonicalize(sampleInvoice())
	require.True(t, json.Valid(b), "canonical output must be valid JSON: %s", b)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Contains(t, decoded, "identity")
	require.Contains(t, decoded, "sellerInfo")
	require.Contains(t, decoded, "customerInfo")
	require.Contains(t, decoded, "invoiceDetails")
	require.Contains(t, decoded, "lines")
	require.Contains(t, decoded, "metadata")

	details, ok := decoded["invoiceDetails"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, details, "currency")

	lines, ok := decoded["lines"].([]any)
	require.True(t, ok)
	require.Len(t, lines, 2)
	for _, raw := range lines {
		line, ok := raw.(map[string]any)
		require.True(t, ok)
		require.Contains(t, line, "description")
	}

	metadata, ok := decoded["metadata"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, metadata, "version")
}

func TestCanonicalize_GoldenBytes(t *testing.T) {
	b := Canonicalize(sampleInvoice())
	const want = `{"identity":{"id":42,"invoiceNumber":"INV-0001","formNumber":"01GTKT","serial":"AA/24E"},` +
		`"sellerInfo":{"name":"Acme Co","taxId":"TAX-1","address":"","email":"","phone":""},` +
		`"customerInfo":{"name":"Customer Co","taxId":"TAX-2","address":"","email":"","phone":""},` +
		`"invoiceDetails":{"issuedDate":"2026-01-15T10:30:00.000Z","subTotal":25.00,"taxAmount":0.00,"discount":0.00,"total":25.00,"currency":"USD","note":""},` +
		`"lines":[` +
		`{"lineNumber":1,"description":"Widget A","unit":"pcs","quantity":2.5000,"unitPrice":10.00,"discount":0,"taxRate":0,"taxAmount":0,"lineTotal":25.00},` +
		`{"lineNumber":2,"description":"Widget B","unit":"pcs","quantity":2.5000,"unitPrice":10.00,"discount":0,"taxRate":0,"taxAmount":0,"lineTotal":25.00}` +
		`],` +
		`"metadata":{"createdAt":"2026-01-15T10:30:00.000Z","version":"1.0"}}`
	assert.Equal(t, want, string(b))
}

func TestImmutableHash_IsHex64(t *testing.T) {
	h := ImmutableHash(sampleInvoice())
	assert.Len(t, h, 64)
}

func TestCIDHash(t *testing.T) {
	h1 := CIDHash("QmAbC")
	h2 := CIDHash("QmAbC")
	h3 := CIDHash("QmXyZ")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
