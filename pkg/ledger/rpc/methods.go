package rpc

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
	"github.com/code-payments/donation-ledger/pkg/ledger/runtime"
	"github.com/code-payments/donation-ledger/pkg/solana"
)

const (
	encodingBase58 = "base58"
	encodingBase64 = "base64"
)

type contextResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value interface{} `json:"value"`
}

func (s *Server) withContext(value interface{}) *contextResult {
	res := &contextResult{Value: value}
	res.Context.Slot = s.bank.Slot()
	return res
}

type accountConfig struct {
	Commitment string `json:"commitment"`
	Encoding   string `json:"encoding"`
}

type encodedAccount struct {
	Lamports   uint64        `json:"lamports"`
	Owner      string        `json:"owner"`
	Data       []interface{} `json:"data"`
	Executable bool          `json:"executable"`
	RentEpoch  uint64        `json:"rentEpoch"`
	Space      int           `json:"space"`
}

func encodeAccount(record *account.Record, encoding string) (*encodedAccount, error) {
	var data string
	switch encoding {
	case "", encodingBase64:
		encoding = encodingBase64
		data = base64.StdEncoding.EncodeToString(record.Data)
	case encodingBase58:
		data = base58.Encode(record.Data)
	default:
		return nil, invalidParams("unsupported encoding: %s", encoding)
	}

	return &encodedAccount{
		Lamports:   record.Lamports,
		Owner:      base58.Encode(record.Owner),
		Data:       []interface{}{data, encoding},
		Executable: record.Executable,
		Space:      len(record.Data),
	}, nil
}

func decodeKey(encoded, name string) (ed25519.PublicKey, error) {
	key, err := base58.Decode(encoded)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return nil, invalidParams("invalid %s: %s", name, encoded)
	}
	return key, nil
}

func (c *call) key(i int, name string) (ed25519.PublicKey, error) {
	var encoded string
	if err := c.params.required(i, name, &encoded); err != nil {
		return nil, err
	}
	return decodeKey(encoded, name)
}

func (s *Server) getAccountInfo(ctx context.Context, c *call) (interface{}, error) {
	address, err := c.key(0, "address")
	if err != nil {
		return nil, err
	}

	var config accountConfig
	if err := c.params.optional(1, "config", &config); err != nil {
		return nil, err
	}

	record, err := s.bank.GetAccount(ctx, address)
	if err == account.ErrAccountNotFound {
		return s.withContext(nil), nil
	} else if err != nil {
		return nil, err
	}

	encoded, err := encodeAccount(record, config.Encoding)
	if err != nil {
		return nil, err
	}
	return s.withContext(encoded), nil
}

func (s *Server) getBalance(ctx context.Context, c *call) (interface{}, error) {
	address, err := c.key(0, "address")
	if err != nil {
		return nil, err
	}

	balance, err := s.bank.GetBalance(ctx, address)
	if err != nil {
		return nil, err
	}
	return s.withContext(balance), nil
}

func (s *Server) getHealth(_ context.Context, _ *call) (interface{}, error) {
	return "ok", nil
}

func (s *Server) getLatestBlockhash(ctx context.Context, _ *call) (interface{}, error) {
	blockhash, lastValid := s.bank.LatestBlockhash(ctx)

	return s.withContext(struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	}{
		Blockhash:            base58.Encode(blockhash[:]),
		LastValidBlockHeight: lastValid,
	}), nil
}

func (s *Server) getMinimumBalanceForRentExemption(_ context.Context, c *call) (interface{}, error) {
	var size uint64
	if err := c.params.required(0, "data size", &size); err != nil {
		return nil, err
	}
	return s.bank.MinimumBalanceForRentExemption(size), nil
}

func (s *Server) getSlot(_ context.Context, _ *call) (interface{}, error) {
	return s.bank.Slot(), nil
}

type programAccountsConfig struct {
	Encoding string `json:"encoding"`
	Filters  []struct {
		Memcmp *struct {
			Offset uint64 `json:"offset"`
			Bytes  string `json:"bytes"`
		} `json:"memcmp"`
		DataSize *uint64 `json:"dataSize"`
	} `json:"filters"`
	WithContext bool `json:"withContext"`
}

type accountFilter func(record *account.Record) bool

func (config *programAccountsConfig) filters() ([]accountFilter, error) {
	var filters []accountFilter
	for _, f := range config.Filters {
		switch {
		case f.Memcmp != nil:
			expected, err := base58.Decode(f.Memcmp.Bytes)
			if err != nil {
				return nil, invalidParams("invalid memcmp bytes: %s", f.Memcmp.Bytes)
			}

			offset := f.Memcmp.Offset
			filters = append(filters, func(record *account.Record) bool {
				if offset > uint64(len(record.Data)) {
					return false
				}
				return bytes.HasPrefix(record.Data[offset:], expected)
			})
		case f.DataSize != nil:
			size := *f.DataSize
			filters = append(filters, func(record *account.Record) bool {
				return uint64(len(record.Data)) == size
			})
		default:
			return nil, invalidParams("unsupported filter")
		}
	}
	return filters, nil
}

func (s *Server) getProgramAccounts(ctx context.Context, c *call) (interface{}, error) {
	program, err := c.key(0, "program id")
	if err != nil {
		return nil, err
	}

	var config programAccountsConfig
	if err := c.params.optional(1, "config", &config); err != nil {
		return nil, err
	}

	filters, err := config.filters()
	if err != nil {
		return nil, err
	}

	records, err := s.bank.GetProgramAccounts(ctx, program)
	if err != nil {
		return nil, err
	}

	type keyedAccount struct {
		PubKey  string          `json:"pubkey"`
		Account *encodedAccount `json:"account"`
	}

	res := make([]keyedAccount, 0, len(records))
	for _, record := range records {
		matches := true
		for _, filter := range filters {
			if !filter(record) {
				matches = false
				break
			}
		}
		if !matches {
			continue
		}

		encoded, err := encodeAccount(record, config.Encoding)
		if err != nil {
			return nil, err
		}
		res = append(res, keyedAccount{
			PubKey:  base58.Encode(record.Address),
			Account: encoded,
		})
	}

	if config.WithContext {
		return s.withContext(res), nil
	}
	return res, nil
}

type signatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *int        `json:"confirmations"`
	ConfirmationStatus string      `json:"confirmationStatus"`
	Err                interface{} `json:"err"`
}

func (s *Server) getSignatureStatuses(_ context.Context, c *call) (interface{}, error) {
	var encoded []string
	if err := c.params.required(0, "signatures", &encoded); err != nil {
		return nil, err
	}
	if len(encoded) > 256 {
		return nil, invalidParams("too many signatures: %d", len(encoded))
	}

	sigs := make([]solana.Signature, len(encoded))
	for i, e := range encoded {
		raw, err := base58.Decode(e)
		if err != nil || len(raw) != len(sigs[i]) {
			return nil, invalidParams("invalid signature: %s", e)
		}
		copy(sigs[i][:], raw)
	}

	statuses := s.bank.GetSignatureStatuses(sigs...)

	res := make([]*signatureStatus, len(statuses))
	for i, status := range statuses {
		if status == nil {
			continue
		}

		res[i] = &signatureStatus{
			Slot:               status.Slot,
			Confirmations:      status.Confirmations,
			ConfirmationStatus: status.ConfirmationStatus,
		}
		if status.Err != nil {
			res[i].Err = status.Err.Raw()
		}
	}

	return s.withContext(res), nil
}

func (s *Server) requestAirdrop(ctx context.Context, c *call) (interface{}, error) {
	to, err := c.key(0, "address")
	if err != nil {
		return nil, err
	}

	var lamports uint64
	if err := c.params.required(1, "lamports", &lamports); err != nil {
		return nil, err
	}

	if allowed, _ := s.airdropLimiter.Allow(c.remote); !allowed {
		return nil, newError(CodeRateLimited, "Too many requests for a specific RPC call, contact your app developer or support@rpcpool.com.")
	}

	sig, err := s.bank.Airdrop(ctx, to, lamports)
	switch err {
	case nil:
		return sig.String(), nil
	case runtime.ErrAirdropDisabled:
		return nil, newError(CodeInvalidRequest, "airdrops are disabled")
	case runtime.ErrAirdropTooLarge:
		return nil, invalidParams("airdrop request exceeds the faucet limit")
	}

	var txErr *solana.TransactionError
	if errors.As(err, &txErr) {
		return nil, newError(CodeInternalError, "airdrop failed: %s", txErr.Error())
	}
	return nil, err
}

type sendTransactionConfig struct {
	SkipPreflight       bool   `json:"skipPreflight"`
	PreflightCommitment string `json:"preflightCommitment"`
	Encoding            string `json:"encoding"`
}

func (c *call) transaction(encoding string) (solana.Transaction, error) {
	var txn solana.Transaction

	var encoded string
	if err := c.params.required(0, "transaction", &encoded); err != nil {
		return txn, err
	}

	var raw []byte
	var err error
	switch encoding {
	case "", encodingBase58:
		raw, err = base58.Decode(encoded)
	case encodingBase64:
		raw, err = base64.StdEncoding.DecodeString(encoded)
	default:
		return txn, invalidParams("unsupported encoding: %s", encoding)
	}
	if err != nil {
		return txn, invalidParams("invalid %s encoded transaction", encoding)
	}

	if err := txn.Unmarshal(raw); err != nil {
		return txn, invalidParams("failed to deserialize transaction: %v", err)
	}
	return txn, nil
}

func (s *Server) sendTransaction(ctx context.Context, c *call) (interface{}, error) {
	var config sendTransactionConfig
	if err := c.params.optional(1, "config", &config); err != nil {
		return nil, err
	}

	txn, err := c.transaction(config.Encoding)
	if err != nil {
		return nil, err
	}

	if allowed, _ := s.sendLimiter.Allow(c.remote); !allowed {
		transactionsTotal.WithLabelValues("rejected").Inc()
		return nil, newError(CodeRateLimited, "Too many requests for a specific RPC call, contact your app developer or support@rpcpool.com.")
	}

	if !config.SkipPreflight {
		simulated, err := s.bank.SimulateTransaction(ctx, txn, true)
		if err != nil {
			return nil, s.rejected(err)
		}
		if simulated.Err != nil {
			transactionsTotal.WithLabelValues("preflight_failed").Inc()
			return nil, preflightFailure(simulated.Err, simulated.Logs, simulated.UnitsConsumed)
		}
	}

	result, err := s.bank.ProcessTransaction(ctx, txn)
	if err != nil {
		return nil, s.rejected(err)
	}

	if result.Err != nil {
		transactionsTotal.WithLabelValues("failed").Inc()
		if !config.SkipPreflight {
			return nil, preflightFailure(result.Err, result.Logs, result.UnitsConsumed)
		}
	} else {
		transactionsTotal.WithLabelValues("success").Inc()
	}

	return result.Signature.String(), nil
}

// rejected maps transactions rejected before execution to client errors
func (s *Server) rejected(err error) error {
	transactionsTotal.WithLabelValues("rejected").Inc()

	if err == runtime.ErrRateLimited {
		return newError(CodeRateLimited, "Too many transactions from the fee payer")
	}

	var txErr *solana.TransactionError
	if errors.As(err, &txErr) {
		return preflightFailure(txErr, nil, 0)
	}
	return err
}

func preflightFailure(txErr *solana.TransactionError, logs []string, units uint64) *Error {
	if logs == nil {
		logs = []string{}
	}

	return &Error{
		Code:    CodeSendTransactionPreflightFailure,
		Message: fmt.Sprintf("Transaction simulation failed: %s", txErr.Error()),
		Data: map[string]interface{}{
			"err":           txErr.Raw(),
			"logs":          logs,
			"accounts":      nil,
			"unitsConsumed": units,
		},
	}
}

type simulateTransactionConfig struct {
	SigVerify  bool   `json:"sigVerify"`
	Encoding   string `json:"encoding"`
	Commitment string `json:"commitment"`
}

func (s *Server) simulateTransaction(ctx context.Context, c *call) (interface{}, error) {
	var config simulateTransactionConfig
	if err := c.params.optional(1, "config", &config); err != nil {
		return nil, err
	}

	txn, err := c.transaction(config.Encoding)
	if err != nil {
		return nil, err
	}

	type simulation struct {
		Err           interface{} `json:"err"`
		Logs          []string    `json:"logs"`
		Accounts      interface{} `json:"accounts"`
		UnitsConsumed uint64      `json:"unitsConsumed"`
	}

	result, err := s.bank.SimulateTransaction(ctx, txn, config.SigVerify)
	if err != nil {
		var txErr *solana.TransactionError
		if !errors.As(err, &txErr) {
			return nil, err
		}
		return s.withContext(&simulation{Err: txErr.Raw()}), nil
	}

	res := &simulation{
		Logs:          result.Logs,
		UnitsConsumed: result.UnitsConsumed,
	}
	if result.Err != nil {
		res.Err = result.Err.Raw()
	}
	return s.withContext(res), nil
}
