package domain

import (
	"time"
)

// InvoiceLine is a single line item of an Invoice. LineNumber is unique
// within its parent invoice.
type InvoiceLine struct {
	LineNumber  int
	Description string
	Unit        string
	Quantity    Decimal
	UnitPrice   Decimal
	Discount    Decimal
	TaxRate     Decimal
	TaxAmount   Decimal
	LineTotal   Decimal
}

// Party holds the seller/customer contact and tax-id attributes shared by
// both sides of an invoice.
type Party struct {
	Name    string
	TaxID   string
	Address string
	Email   string
	Phone   string
}

// Invoice is the business document the pipeline moves through IPFS
// publication, Merkle batching, and on-chain anchoring. It is created
// externally and is only ever mutated by the kernel's state transitions.
type Invoice struct {
	ID            int64
	InvoiceNumber string
	FormNumber    string
	Serial        string
	TenantOrgID   string
	IssuedByUser  string

	Seller   Party
	Customer Party

	SubTotal  Decimal
	TaxAmount Decimal
	Discount  Decimal
	Total     Decimal
	Currency  string
	Note      string

	IssuedDate time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Status InvoiceStatus

	CID            *string
	CIDHash        *string
	ImmutableHash  *string
	BatchID        *int64
	MerkleProof    []string

	Lines []InvoiceLine
}

// InvoiceBatch aggregates 1..N invoices sharing one Merkle root, anchored
// on-chain in a single transaction.
type InvoiceBatch struct {
	ID          int64
	BatchID     string
	Count       int
	MerkleRoot  *string
	BatchCID    *string
	Status      BatchStatus
	TxHash      *string
	BlockNumber *int64
	ConfirmedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
