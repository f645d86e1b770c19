// Package chainclient sends the anchorBatch transaction, handles
// read-only verification/lookup calls, and tracks confirmation against
// an EVM chain. It dials via ethclient/bind/v2, signs with a keyed
// transactor, and adds gas-headroom estimation with a max-gas-price
// clamp on top of the raw RawTransact/Call calls.
package chainclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	bindv2 "github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-pkgz/lgr"

	"github.com/andrey/invoice-pipeline/internal/retry"
	"github.com/andrey/invoice-pipeline/pkg/contracts"
)

// Config holds RPC, signing, contract address, and gas policy settings.
type Config struct {
	RPCURL          string
	PrivateKey      string // hex, optional. Empty means read-only: write ops return ErrNoSigner.
	ContractAddress string
	MaxGasPrice     *big.Int // clamp applied after SuggestGasPrice; nil disables the clamp.
	GasHeadroomPct  int      // e.g. 20 for 20% headroom over the raw estimate; 0 falls back to 20.
	RetryBase       time.Duration
	MaxRetries      int
}

// BatchView mirrors the on-chain Batch tuple returned by getBatch.
type BatchView struct {
	MerkleRoot  [32]byte
	BatchSize   *big.Int
	Issuer      common.Address
	MetadataURI string
	Timestamp   *big.Int
}

// Client is the chain client. Read-only operations work without a
// signer; write operations (AnchorBatch, RegisterIndividualInvoice)
// return ErrNoSigner when none is configured.
type Client struct {
	cfg        Config
	log        lgr.L
	eth        *ethclient.Client
	privateKey *ecdsa.PrivateKey
	anchor     *contracts.InvoiceAnchor
	addr       common.Address
	backoff    *retry.Policy
}

// New dials the RPC endpoint and, if cfg.PrivateKey is set, parses the
// signing key.
func New(ctx context.Context, cfg Config, log lgr.L) (*Client, error) {
	if log == nil {
		log = lgr.NoOp
	}
	if cfg.ContractAddress == "" {
		return nil, fmt.Errorf("chainclient: contract address is required")
	}
	if cfg.GasHeadroomPct == 0 {
		cfg.GasHeadroomPct = 20
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}

	ethClient, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chainclient: dial rpc: %w", err)
	}

	c := &Client{
		cfg:     cfg,
		log:     log,
		eth:     ethClient,
		anchor:  contracts.NewInvoiceAnchor(),
		addr:    common.HexToAddress(cfg.ContractAddress),
		backoff: retry.NewPolicy(cfg.RetryBase, cfg.MaxRetries),
	}

	if cfg.PrivateKey != "" {
		hexKey := cfg.PrivateKey
		if len(hexKey) > 2 && hexKey[:2] == "0x" {
			hexKey = hexKey[2:]
		}
		pk, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return nil, fmt.Errorf("chainclient: parse private key: %w", err)
		}
		c.privateKey = pk
	}

	return c, nil
}

func (c *Client) instance() *bindv2.BoundContract {
	return c.anchor.Instance(c.eth, c.addr)
}

// transactOpts builds keyed transact options with the current chain ID,
// applying the gas-price clamp. Returns ErrNoSigner if no key is configured.
func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.privateKey == nil {
		return nil, ErrNoSigner
	}
	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %v", ErrRetryable, err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("chainclient: transactor: %w", err)
	}
	opts.Context = ctx

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: suggest gas price: %v", ErrRetryable, err)
	}
	opts.GasPrice = clampGasPrice(gasPrice, c.cfg.MaxGasPrice)
	return opts, nil
}

// clampGasPrice caps suggested at max when max is configured and exceeded.
func clampGasPrice(suggested, max *big.Int) *big.Int {
	if max != nil && suggested.Cmp(max) > 0 {
		return new(big.Int).Set(max)
	}
	return suggested
}

// estimateGasWithHeadroom estimates gas for a call and applies the
// configured headroom percentage.
func (c *Client) estimateGasWithHeadroom(ctx context.Context, data []byte) (uint64, error) {
	msg := ethereum.CallMsg{
		From: crypto.PubkeyToAddress(c.privateKey.PublicKey),
		To:   &c.addr,
		Data: data,
	}
	estimate, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("%w: estimate gas: %v", ErrRetryable, err)
	}
	return applyHeadroom(estimate, c.cfg.GasHeadroomPct), nil
}

// applyHeadroom adds pct percent on top of a raw EstimateGas result.
func applyHeadroom(estimate uint64, pct int) uint64 {
	return estimate + estimate*uint64(pct)/100
}

// AnchorBatch sends the anchorBatch transaction: estimates gas, applies
// headroom, reads and clamps gas price, and sends exactly once per call.
// Retries never re-sign a new transaction for the same logical
// operation — the retry policy here only covers the pre-send RPC calls,
// not resubmission of a broadcast tx.
func (c *Client) AnchorBatch(ctx context.Context, merkleRoot [32]byte, batchSize uint64, metadataURI string) (string, error) {
	if c.privateKey == nil {
		return "", ErrNoSigner
	}

	data := c.anchor.PackAnchorBatch(merkleRoot, new(big.Int).SetUint64(batchSize), metadataURI)

	var opts *bind.TransactOpts
	err := c.backoff.Do(ctx, func(ctx context.Context) error {
		o, err := c.transactOpts(ctx)
		if err != nil {
			return err
		}
		gasLimit, err := c.estimateGasWithHeadroom(ctx, data)
		if err != nil {
			return err
		}
		o.GasLimit = gasLimit
		opts = o
		return nil
	})
	if err != nil {
		return "", err
	}

	tx, err := c.instance().RawTransact(opts, data)
	if err != nil {
		return "", classifyRPCError(err)
	}
	txHash := tx.Hash().Hex()

	c.log.Logf("INFO chainclient: anchorBatch sent tx %s for root %x", txHash, merkleRoot)
	return txHash, nil
}

// VerifyInvoiceByCID is a read-only call; used by the verification endpoint.
func (c *Client) VerifyInvoiceByCID(ctx context.Context, merkleRoot [32]byte, cid string, proof [][32]byte) (bool, error) {
	data := c.anchor.PackVerifyInvoiceByCID(merkleRoot, cid, proof)
	var out []byte
	err := c.backoff.Do(ctx, func(ctx context.Context) error {
		result, err := c.callContract(ctx, data)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	if err != nil {
		return false, err
	}
	return c.anchor.UnpackVerifyInvoiceByCID(out)
}

// RegisterIndividualInvoice is an optional indexing write. Failures are
// returned to the caller; no pipeline job calls it.
func (c *Client) RegisterIndividualInvoice(ctx context.Context, merkleRoot [32]byte, invoiceID, cid string, invoiceHash [32]byte) error {
	if c.privateKey == nil {
		return ErrNoSigner
	}
	data := c.anchor.PackRegisterIndividualInvoice(merkleRoot, invoiceID, cid, invoiceHash)

	return c.backoff.Do(ctx, func(ctx context.Context) error {
		opts, err := c.transactOpts(ctx)
		if err != nil {
			return err
		}
		gasLimit, err := c.estimateGasWithHeadroom(ctx, data)
		if err != nil {
			return err
		}
		opts.GasLimit = gasLimit

		tx, err := c.instance().RawTransact(opts, data)
		if err != nil {
			return classifyRPCError(err)
		}
		c.log.Logf("INFO chainclient: registerIndividualInvoice sent tx %s for invoice %s", tx.Hash().Hex(), invoiceID)
		return nil
	})
}

// GetBatch reads the anchored batch tuple for merkleRoot.
func (c *Client) GetBatch(ctx context.Context, merkleRoot [32]byte) (*BatchView, error) {
	data := c.anchor.PackGetBatch(merkleRoot)
	var out []byte
	err := c.backoff.Do(ctx, func(ctx context.Context) error {
		result, err := c.callContract(ctx, data)
		if err != nil {
			return err
		}
		out = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	batch, err := c.anchor.UnpackGetBatch(out)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	if batch.Timestamp == nil || batch.Timestamp.Sign() == 0 {
		return nil, nil
	}
	return &BatchView{
		MerkleRoot:  batch.MerkleRoot,
		BatchSize:   batch.BatchSize,
		Issuer:      batch.Issuer,
		MetadataURI: batch.MetadataURI,
		Timestamp:   batch.Timestamp,
	}, nil
}

// GetTransactionReceipt returns (nil, nil) when the receipt is not yet
// available (transaction still pending).
func (c *Client) GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if err == ethereum.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRetryable, err)
	}
	return receipt, nil
}

// GetCurrentBlock returns the latest block number.
func (c *Client) GetCurrentBlock(ctx context.Context) (uint64, error) {
	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRetryable, err)
	}
	return head, nil
}

// IsConfirmed reports whether txHash has a successful receipt with at
// least requiredConfirmations confirmations.
func (c *Client) IsConfirmed(ctx context.Context, txHash string, requiredConfirmations uint64) (bool, error) {
	receipt, err := c.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return false, err
	}
	if receipt == nil || receipt.Status == types.ReceiptStatusFailed {
		return false, nil
	}
	current, err := c.GetCurrentBlock(ctx)
	if err != nil {
		return false, err
	}
	confirmations := current - receipt.BlockNumber.Uint64() + 1
	return confirmations >= requiredConfirmations, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) callContract(ctx context.Context, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &c.addr, Data: data}
	out, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, classifyRPCError(err)
	}
	return out, nil
}

// classifyRPCError maps a go-ethereum RPC error to the retryable/permanent
// taxonomy: transport and timeout errors are retried, contract reverts
// and invalid-argument errors are not.
func classifyRPCError(err error) error {
	if err == nil {
		return nil
	}
	if revert, ok := err.(rpcErrorWithCode); ok && revert.ErrorCode() != 0 {
		return retry.Permanent(fmt.Errorf("%w: %v", ErrPermanent, err))
	}
	return fmt.Errorf("%w: %v", ErrRetryable, err)
}

// rpcErrorWithCode matches go-ethereum's rpc.Error interface without
// importing the internal rpc package directly.
type rpcErrorWithCode interface {
	Error() string
	ErrorCode() int
}
