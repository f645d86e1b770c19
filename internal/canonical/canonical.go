// Package canonical implements the deterministic canonical-JSON encoding
// of an Invoice and the SHA-256 content hashes derived from it.
// encoding/json's map-key ordering is explicitly unspecified, so the
// encoder below writes bytes by hand in a fixed key order and fixed
// decimal scale instead of depending on struct-tag-driven marshaling.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/andrey/invoice-pipeline/internal/domain"
)

const schemaVersion = "1.0"

// Canonicalize renders an invoice to its canonical byte representation.
// Two calls on semantically equal invoices always produce identical bytes.
func Canonicalize(inv *domain.Invoice) []byte {
	var b strings.Builder
	b.WriteByte('{')

	writeKey(&b, "identity")
	writeIdentity(&b, inv)
	b.WriteByte(',')

	writeKey(&b, "sellerInfo")
	writeParty(&b, inv.Seller)
	b.WriteByte(',')

	writeKey(&b, "customerInfo")
	writeParty(&b, inv.Customer)
	b.WriteByte(',')

	writeKey(&b, "invoiceDetails")
	writeInvoiceDetails(&b, inv)
	b.WriteByte(',')

	writeKey(&b, "lines")
	writeLines(&b, inv.Lines)
	b.WriteByte(',')

	writeKey(&b, "metadata")
	writeMetadata(&b, inv)

	b.WriteByte('}')
	return []byte(b.String())
}

// ImmutableHash returns the lowercase-hex SHA-256 of an invoice's
// canonical bytes.
func ImmutableHash(inv *domain.Invoice) string {
	sum := sha256.Sum256(Canonicalize(inv))
	return hex.EncodeToString(sum[:])
}

// CIDHash returns the lowercase-hex SHA-256 of an IPFS CID string. This is
// an auditing aid distinct from the Keccak-256 hash the Merkle tree uses.
func CIDHash(cid string) string {
	sum := sha256.Sum256([]byte(cid))
	return hex.EncodeToString(sum[:])
}

func writeKey(b *strings.Builder, key string) {
	b.WriteByte('"')
	b.WriteString(key)
	b.WriteString(`":`)
}

func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

// writeDecimal writes a Decimal's fixed-scale text as a bare JSON number
// literal (not a quoted string) — its digit-and-dot form is always valid
// JSON number syntax.
func writeDecimal(b *strings.Builder, key string, d domain.Decimal) {
	b.WriteByte('"')
	b.WriteString(key)
	b.WriteString(`":`)
	b.WriteString(d.String())
}

func writeObjectField(b *strings.Builder, key, value string, first bool) {
	if !first {
		b.WriteByte(',')
	}
	writeKey(b, key)
	writeString(b, value)
}

func writeIdentity(b *strings.Builder, inv *domain.Invoice) {
	b.WriteByte('{')
	b.WriteString(`"id":`)
	b.WriteString(strconv.FormatInt(inv.ID, 10))
	writeObjectField(b, "invoiceNumber", inv.InvoiceNumber, false)
	writeObjectField(b, "formNumber", inv.FormNumber, false)
	writeObjectField(b, "serial", inv.Serial, false)
	b.WriteByte('}')
}

func writeParty(b *strings.Builder, p domain.Party) {
	b.WriteByte('{')
	writeObjectField(b, "name", p.Name, true)
	writeObjectField(b, "taxId", p.TaxID, false)
	writeObjectField(b, "address", p.Address, false)
	writeObjectField(b, "email", p.Email, false)
	writeObjectField(b, "phone", p.Phone, false)
	b.WriteByte('}')
}

func writeInvoiceDetails(b *strings.Builder, inv *domain.Invoice) {
	b.WriteByte('{')
	b.WriteString(`"issuedDate":`)
	writeString(b, formatTimestamp(inv.IssuedDate))
	b.WriteByte(',')
	writeDecimal(b, "subTotal", inv.SubTotal)
	b.WriteByte(',')
	writeDecimal(b, "taxAmount", inv.TaxAmount)
	b.WriteByte(',')
	writeDecimal(b, "discount", inv.Discount)
	b.WriteByte(',')
	writeDecimal(b, "total", inv.Total)
	writeObjectField(b, "currency", inv.Currency, false)
	writeObjectField(b, "note", inv.Note, false)
	b.WriteByte('}')
}

func writeLines(b *strings.Builder, lines []domain.InvoiceLine) {
	sorted := make([]domain.InvoiceLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LineNumber < sorted[j].LineNumber })

	b.WriteByte('[')
	for i, l := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('{')
		b.WriteString(`"lineNumber":`)
		b.WriteString(strconv.Itoa(l.LineNumber))
		writeObjectField(b, "description", l.Description, false)
		writeObjectField(b, "unit", l.Unit, false)
		b.WriteByte(',')
		writeDecimal(b, "quantity", l.Quantity)
		b.WriteByte(',')
		writeDecimal(b, "unitPrice", l.UnitPrice)
		b.WriteByte(',')
		writeDecimal(b, "discount", l.Discount)
		b.WriteByte(',')
		writeDecimal(b, "taxRate", l.TaxRate)
		b.WriteByte(',')
		writeDecimal(b, "taxAmount", l.TaxAmount)
		b.WriteByte(',')
		writeDecimal(b, "lineTotal", l.LineTotal)
		b.WriteByte('}')
	}
	b.WriteByte(']')
}

func writeMetadata(b *strings.Builder, inv *domain.Invoice) {
	b.WriteByte('{')
	b.WriteString(`"createdAt":`)
	writeString(b, formatTimestamp(inv.CreatedAt))
	writeObjectField(b, "version", schemaVersion, false)
	b.WriteByte('}')
}

// formatTimestamp renders a timestamp as YYYY-MM-DDTHH:MM:SS.sssZ in UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
