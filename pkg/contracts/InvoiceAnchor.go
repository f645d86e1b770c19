// Hand-maintained in the shape abigen v2 emits (MetaData, Pack*/Unpack*,
// Instance), since no code-generation build step runs in this repo.

package contracts

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Reference imports to suppress errors if they are not otherwise used.
var (
	_ = bytes.Equal
	_ = errors.New
	_ = big.NewInt
	_ = common.Big1
	_ = types.BloomLookup
	_ = abi.ConvertType
)

// InvoiceAnchorMetaData contains all meta data concerning the InvoiceAnchor contract.
var InvoiceAnchorMetaData = bind.MetaData{
	ABI: "[{\"type\":\"function\",\"name\":\"anchorBatch\",\"inputs\":[{\"name\":\"merkleRoot\",\"type\":\"bytes32\",\"internalType\":\"bytes32\"},{\"name\":\"batchSize\",\"type\":\"uint256\",\"internalType\":\"uint256\"},{\"name\":\"metadataURI\",\"type\":\"string\",\"internalType\":\"string\"}],\"outputs\":[],\"stateMutability\":\"nonpayable\"},{\"type\":\"function\",\"name\":\"verifyInvoiceByCID\",\"inputs\":[{\"name\":\"merkleRoot\",\"type\":\"bytes32\",\"internalType\":\"bytes32\"},{\"name\":\"cid\",\"type\":\"string\",\"internalType\":\"string\"},{\"name\":\"proof\",\"type\":\"bytes32[]\",\"internalType\":\"bytes32[]\"}],\"outputs\":[{\"name\":\"\",\"type\":\"bool\",\"internalType\":\"bool\"}],\"stateMutability\":\"view\"},{\"type\":\"function\",\"name\":\"registerIndividualInvoice\",\"inputs\":[{\"name\":\"merkleRoot\",\"type\":\"bytes32\",\"internalType\":\"bytes32\"},{\"name\":\"invoiceId\",\"type\":\"string\",\"internalType\":\"string\"},{\"name\":\"cid\",\"type\":\"string\",\"internalType\":\"string\"},{\"name\":\"invoiceHash\",\"type\":\"bytes32\",\"internalType\":\"bytes32\"}],\"outputs\":[],\"stateMutability\":\"nonpayable\"},{\"type\":\"function\",\"name\":\"getBatch\",\"inputs\":[{\"name\":\"merkleRoot\",\"type\":\"bytes32\",\"internalType\":\"bytes32\"}],\"outputs\":[{\"name\":\"\",\"type\":\"tuple\",\"internalType\":\"struct InvoiceAnchor.Batch\",\"components\":[{\"name\":\"merkleRoot\",\"type\":\"bytes32\",\"internalType\":\"bytes32\"},{\"name\":\"batchSize\",\"type\":\"uint256\",\"internalType\":\"uint256\"},{\"name\":\"issuer\",\"type\":\"address\",\"internalType\":\"address\"},{\"name\":\"metadataURI\",\"type\":\"string\",\"internalType\":\"string\"},{\"name\":\"timestamp\",\"type\":\"uint256\",\"internalType\":\"uint256\"}]}],\"stateMutability\":\"view\"},{\"type\":\"event\",\"name\":\"BatchAnchored\",\"inputs\":[{\"name\":\"merkleRoot\",\"type\":\"bytes32\",\"indexed\":true,\"internalType\":\"bytes32\"},{\"name\":\"issuer\",\"type\":\"address\",\"indexed\":true,\"internalType\":\"address\"},{\"name\":\"batchSize\",\"type\":\"uint256\",\"indexed\":false,\"internalType\":\"uint256\"},{\"name\":\"metadataURI\",\"type\":\"string\",\"indexed\":false,\"internalType\":\"string\"},{\"name\":\"timestamp\",\"type\":\"uint256\",\"indexed\":false,\"internalType\":\"uint256\"}],\"anonymous\":false},{\"type\":\"error\",\"name\":\"InvoiceAnchor__BatchAlreadyAnchored\",\"inputs\":[{\"name\":\"merkleRoot\",\"type\":\"bytes32\",\"internalType\":\"bytes32\"}]},{\"type\":\"error\",\"name\":\"InvoiceAnchor__BatchNotFound\",\"inputs\":[{\"name\":\"merkleRoot\",\"type\":\"bytes32\",\"internalType\":\"bytes32\"}]},{\"type\":\"error\",\"name\":\"InvoiceAnchor__Unauthorized\",\"inputs\":[]}]",
	ID:  "InvoiceAnchor",
}

// InvoiceAnchorBatch is the Go struct matching the Batch tuple returned by getBatch.
type InvoiceAnchorBatch struct {
	MerkleRoot  [32]byte
	BatchSize   *big.Int
	Issuer      common.Address
	MetadataURI string
	Timestamp   *big.Int
}

// InvoiceAnchorBatchAnchored is the Go struct matching the BatchAnchored event.
type InvoiceAnchorBatchAnchored struct {
	MerkleRoot  [32]byte
	Issuer      common.Address
	BatchSize   *big.Int
	MetadataURI string
	Timestamp   *big.Int
	Raw         types.Log
}

// InvoiceAnchor is an auto generated Go binding around an Ethereum contract.
type InvoiceAnchor struct {
	abi abi.ABI
}

// NewInvoiceAnchor creates a new instance of InvoiceAnchor.
func NewInvoiceAnchor() *InvoiceAnchor {
	parsed, err := InvoiceAnchorMetaData.ParseABI()
	if err != nil {
		panic(errors.New("invalid ABI: " + err.Error()))
	}
	return &InvoiceAnchor{abi: *parsed}
}

// Instance creates a wrapper for a deployed contract instance at the given address.
func (c *InvoiceAnchor) Instance(backend bind.ContractBackend, addr common.Address) *bind.BoundContract {
	return bind.NewBoundContract(addr, c.abi, backend, backend, backend)
}

// PackAnchorBatch is the Go binding used to pack the parameters required for calling
// the contract method anchorBatch.
//
// Solidity: function anchorBatch(bytes32 merkleRoot, uint256 batchSize, string metadataURI) returns()
func (ia *InvoiceAnchor) PackAnchorBatch(merkleRoot [32]byte, batchSize *big.Int, metadataURI string) []byte {
	enc, err := ia.abi.Pack("anchorBatch", merkleRoot, batchSize, metadataURI)
	if err != nil {
		panic(err)
	}
	return enc
}

// PackVerifyInvoiceByCID is the Go binding used to pack the parameters required for calling
// the contract method verifyInvoiceByCID.
//
// Solidity: function verifyInvoiceByCID(bytes32 merkleRoot, string cid, bytes32[] proof) view returns(bool)
func (ia *InvoiceAnchor) PackVerifyInvoiceByCID(merkleRoot [32]byte, cid string, proof [][32]byte) []byte {
	enc, err := ia.abi.Pack("verifyInvoiceByCID", merkleRoot, cid, proof)
	if err != nil {
		panic(err)
	}
	return enc
}

// UnpackVerifyInvoiceByCID is the Go binding that unpacks the parameters returned
// from invoking the contract method verifyInvoiceByCID.
func (ia *InvoiceAnchor) UnpackVerifyInvoiceByCID(data []byte) (bool, error) {
	out, err := ia.abi.Unpack("verifyInvoiceByCID", data)
	if err != nil {
		return false, err
	}
	out0 := *abi.ConvertType(out[0], new(bool)).(*bool)
	return out0, nil
}

// PackRegisterIndividualInvoice is the Go binding used to pack the parameters required for calling
// the contract method registerIndividualInvoice.
//
// Solidity: function registerIndividualInvoice(bytes32 merkleRoot, string invoiceId, string cid, bytes32 invoiceHash) returns()
func (ia *InvoiceAnchor) PackRegisterIndividualInvoice(merkleRoot [32]byte, invoiceID string, cid string, invoiceHash [32]byte) []byte {
	enc, err := ia.abi.Pack("registerIndividualInvoice", merkleRoot, invoiceID, cid, invoiceHash)
	if err != nil {
		panic(err)
	}
	return enc
}

// PackGetBatch is the Go binding used to pack the parameters required for calling
// the contract method getBatch.
//
// Solidity: function getBatch(bytes32 merkleRoot) view returns((bytes32,uint256,address,string,uint256))
func (ia *InvoiceAnchor) PackGetBatch(merkleRoot [32]byte) []byte {
	enc, err := ia.abi.Pack("getBatch", merkleRoot)
	if err != nil {
		panic(err)
	}
	return enc
}

// UnpackGetBatch is the Go binding that unpacks the parameters returned
// from invoking the contract method getBatch.
func (ia *InvoiceAnchor) UnpackGetBatch(data []byte) (InvoiceAnchorBatch, error) {
	out, err := ia.abi.Unpack("getBatch", data)
	if err != nil {
		return InvoiceAnchorBatch{}, err
	}
	unpacked := *abi.ConvertType(out[0], new(InvoiceAnchorBatch)).(*InvoiceAnchorBatch)
	return unpacked, nil
}

// UnpackBatchAnchoredEvent unpacks a raw log into a InvoiceAnchorBatchAnchored event.
func (ia *InvoiceAnchor) UnpackBatchAnchoredEvent(log *types.Log) (*InvoiceAnchorBatchAnchored, error) {
	event := new(InvoiceAnchorBatchAnchored)
	if err := ia.abi.UnpackIntoInterface(event, "BatchAnchored", log.Data); err != nil {
		return nil, err
	}
	var indexed abi.Arguments
	for _, arg := range ia.abi.Events["BatchAnchored"].Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopics(event, indexed, log.Topics[1:]); err != nil {
		return nil, err
	}
	event.Raw = *log
	return event, nil
}
