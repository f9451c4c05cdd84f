package abci

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightninglabs/xswap/chain"
	"github.com/lightninglabs/xswap/pingpong"
)

const (
	// AppVersion is the application protocol version reported to
	// CometBFT.
	AppVersion = 1

	// queryPathContract queries a contract: /contract/<address>, with the
	// query message as data.
	queryPathContract = "/contract/"

	// queryPathBank queries a balance: /bank/<address>/<denom>.
	queryPathBank = "/bank/"

	// queryPathContracts lists all contract instances.
	queryPathContracts = "/contracts"

	// queryPathPing answers with pong.
	queryPathPing = "/ping"
)

// Config holds the settings of the application.
type Config struct {
	// ChainID is the id of the chain. If empty, it is taken from
	// InitChain.
	ChainID string

	// Genesis is used by InitChain if the genesis file carries no app
	// state.
	Genesis *GenesisState

	// Version is reported in Info.
	Version string
}

// Application is the CometBFT application hosting the swap contracts. Every
// transaction commits on its own; the block height and app hash are stored
// at the end of FinalizeBlock.
type Application struct {
	host *chain.Chain
	cfg  *Config

	mu sync.Mutex

	// lastBlock is the block of the last FinalizeBlock, used as context
	// for queries.
	lastBlock chain.Block

	// pendingHeight is the height finalized but not yet committed.
	pendingHeight int64
}

// A compile-time flag to ensure that Application implements the
// abcitypes.Application interface.
var _ abcitypes.Application = (*Application)(nil)

// NewApplication creates an application on top of the host.
func NewApplication(host *chain.Chain, cfg *Config) *Application {
	return &Application{
		host: host,
		cfg:  cfg,
	}
}

// Info implements the ABCI Info method.
func (app *Application) Info(ctx context.Context,
	_ *abcitypes.InfoRequest) (*abcitypes.InfoResponse, error) {

	app.mu.Lock()
	defer app.mu.Unlock()

	height, appHash, err := app.host.LastBlock(ctx)
	if err != nil {
		return nil, err
	}

	log.Infof("Info: last block height %d, app hash %x", height, appHash)

	return &abcitypes.InfoResponse{
		Data:             "xswap",
		Version:          app.cfg.Version,
		AppVersion:       AppVersion,
		LastBlockHeight:  height,
		LastBlockAppHash: appHash,
	}, nil
}

// Query implements the ABCI Query method.
func (app *Application) Query(ctx context.Context,
	req *abcitypes.QueryRequest) (*abcitypes.QueryResponse, error) {

	app.mu.Lock()
	defer app.mu.Unlock()

	value, err := app.query(ctx, req.Path, req.Data)
	if err != nil {
		log.Debugf("Query %v failed: %v", req.Path, err)

		return &abcitypes.QueryResponse{
			Code:      errorCode(err),
			Log:       err.Error(),
			Codespace: Codespace,
			Height:    app.lastBlock.Height,
		}, nil
	}

	return &abcitypes.QueryResponse{
		Code:   CodeOK,
		Key:    req.Data,
		Value:  value,
		Height: app.lastBlock.Height,
	}, nil
}

// query answers a query path.
func (app *Application) query(ctx context.Context, path string,
	data []byte) ([]byte, error) {

	switch {
	case path == queryPathPing:
		return []byte(pingpong.Pong), nil

	case path == queryPathContracts:
		infos, err := app.host.Contracts(ctx)
		if err != nil {
			return nil, err
		}

		return json.Marshal(infos)

	case strings.HasPrefix(path, queryPathContract):
		address := strings.TrimPrefix(path, queryPathContract)

		return app.host.Query(ctx, app.lastBlock, address, data)

	case strings.HasPrefix(path, queryPathBank):
		parts := strings.Split(
			strings.TrimPrefix(path, queryPathBank), "/",
		)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: expected %s<address>/"+
				"<denom>", chain.ErrInvalidMessage,
				queryPathBank)
		}

		balance, err := app.host.Balance(ctx, parts[0], parts[1])
		if err != nil {
			return nil, err
		}

		return []byte(strconv.FormatUint(balance, 10)), nil

	default:
		return nil, fmt.Errorf("%w: unknown query path %q",
			chain.ErrInvalidMessage, path)
	}
}

// CheckTx implements the ABCI CheckTx method. The envelope, its signature
// and its sequence are checked, contract messages are validated when the
// transaction runs. Sequences ahead of the account are accepted so that a
// sender can queue several transactions.
func (app *Application) CheckTx(ctx context.Context,
	req *abcitypes.CheckTxRequest) (*abcitypes.CheckTxResponse, error) {

	err := app.checkTx(ctx, req.Tx)
	if err != nil {
		return &abcitypes.CheckTxResponse{
			Code:      errorCode(err),
			Log:       err.Error(),
			Codespace: Codespace,
		}, nil
	}

	return &abcitypes.CheckTxResponse{Code: CodeOK}, nil
}

func (app *Application) checkTx(ctx context.Context, raw []byte) error {
	tx, err := app.decodeSigned(raw)
	if err != nil {
		return err
	}

	seq, err := app.host.Sequence(ctx, tx.Sender)
	if err != nil {
		return err
	}
	if tx.Sequence < seq {
		return fmt.Errorf("%w: account %v is at %d, got %d",
			chain.ErrInvalidSequence, tx.Sender, seq, tx.Sequence)
	}

	return nil
}

// decodeSigned decodes a transaction and verifies its signature.
func (app *Application) decodeSigned(raw []byte) (*Tx, error) {
	tx, err := DecodeTx(raw)
	if err != nil {
		return nil, err
	}

	err = tx.Verify(app.cfg.ChainID, app.host.Bech32HRP())
	if err != nil {
		return nil, err
	}

	return tx, nil
}

// InitChain implements the ABCI InitChain method. It funds the genesis
// accounts and instantiates the genesis contracts.
func (app *Application) InitChain(ctx context.Context,
	req *abcitypes.InitChainRequest) (*abcitypes.InitChainResponse, error) {

	app.mu.Lock()
	defer app.mu.Unlock()

	if app.cfg.ChainID == "" {
		app.cfg.ChainID = req.ChainId
	}

	genesis, err := ParseGenesisState(req.AppStateBytes)
	if err != nil {
		return nil, err
	}
	if genesis.IsEmpty() && app.cfg.Genesis != nil {
		genesis = app.cfg.Genesis
	}

	block := chain.Block{
		Height:  req.InitialHeight,
		Time:    req.Time,
		ChainID: app.cfg.ChainID,
	}

	addresses, err := genesis.apply(ctx, app.host, block)
	if err != nil {
		return nil, err
	}

	for i, address := range addresses {
		log.Infof("Genesis contract %q at %v",
			genesis.Contracts[i].Label, address)
	}

	app.lastBlock = block

	return &abcitypes.InitChainResponse{}, nil
}

// PrepareProposal implements the ABCI PrepareProposal method. Transactions
// are included in mempool order up to the size limit.
func (app *Application) PrepareProposal(_ context.Context,
	req *abcitypes.PrepareProposalRequest) (
	*abcitypes.PrepareProposalResponse, error) {

	txs := make([][]byte, 0, len(req.Txs))

	var size int64
	for _, tx := range req.Txs {
		size += int64(len(tx))
		if req.MaxTxBytes > 0 && size > req.MaxTxBytes {
			break
		}

		txs = append(txs, tx)
	}

	return &abcitypes.PrepareProposalResponse{Txs: txs}, nil
}

// ProcessProposal implements the ABCI ProcessProposal method. A proposal is
// rejected if any of its transactions has an invalid envelope or signature.
func (app *Application) ProcessProposal(_ context.Context,
	req *abcitypes.ProcessProposalRequest) (
	*abcitypes.ProcessProposalResponse, error) {

	for _, raw := range req.Txs {
		if _, err := app.decodeSigned(raw); err != nil {
			log.Warnf("Rejecting proposal at height %d: %v",
				req.Height, err)

			return &abcitypes.ProcessProposalResponse{
				Status: abcitypes.PROCESS_PROPOSAL_STATUS_REJECT,
			}, nil
		}
	}

	return &abcitypes.ProcessProposalResponse{
		Status: abcitypes.PROCESS_PROPOSAL_STATUS_ACCEPT,
	}, nil
}

// FinalizeBlock implements the ABCI FinalizeBlock method. A failing
// transaction only affects its own result.
func (app *Application) FinalizeBlock(ctx context.Context,
	req *abcitypes.FinalizeBlockRequest) (
	*abcitypes.FinalizeBlockResponse, error) {

	app.mu.Lock()
	defer app.mu.Unlock()

	_, prevAppHash, err := app.host.LastBlock(ctx)
	if err != nil {
		return nil, err
	}

	block := chain.Block{
		Height:  req.Height,
		Time:    req.Time,
		ChainID: app.cfg.ChainID,
	}

	txResults := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, raw := range req.Txs {
		txResults[i] = app.deliverTx(ctx, block, raw)
	}

	appHash := calculateAppHash(prevAppHash, txResults)

	if err := app.host.CommitBlock(ctx, req.Height, appHash); err != nil {
		return nil, err
	}

	app.lastBlock = block
	app.pendingHeight = req.Height

	log.Debugf("Finalized block %d with %d txs, app hash %x", req.Height,
		len(req.Txs), appHash)

	return &abcitypes.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   appHash,
	}, nil
}

// deliverTx runs a single transaction of a block. The sequence of a signed
// transaction is consumed even if the contract call fails.
func (app *Application) deliverTx(ctx context.Context, block chain.Block,
	raw []byte) *abcitypes.ExecTxResult {

	tx, err := app.decodeSigned(raw)
	if err == nil {
		err = app.host.IncrementSequence(ctx, tx.Sender, tx.Sequence)
	}
	if err != nil {
		return &abcitypes.ExecTxResult{
			Code:      errorCode(err),
			Log:       err.Error(),
			Codespace: Codespace,
		}
	}

	log.Tracef("Delivering tx at height %d: %v", block.Height,
		spew.Sdump(tx))

	result, err := Apply(ctx, app.host, block, tx)
	if err != nil {
		log.Debugf("Tx %v from %v failed at height %d: %v", tx.Type,
			tx.Sender, block.Height, err)

		return &abcitypes.ExecTxResult{
			Code:      errorCode(err),
			Log:       err.Error(),
			Codespace: Codespace,
		}
	}

	data, err := json.Marshal(result.Response)
	if err != nil {
		return &abcitypes.ExecTxResult{
			Code:      CodeExecFailed,
			Log:       err.Error(),
			Codespace: Codespace,
		}
	}

	return &abcitypes.ExecTxResult{
		Code:   CodeOK,
		Data:   data,
		Log:    result.Contract,
		Events: convertEvents(result.Events),
	}
}

// Commit implements the ABCI Commit method. The block was already stored by
// FinalizeBlock.
func (app *Application) Commit(_ context.Context,
	_ *abcitypes.CommitRequest) (*abcitypes.CommitResponse, error) {

	app.mu.Lock()
	defer app.mu.Unlock()

	log.Debugf("Committed block %d", app.pendingHeight)

	return &abcitypes.CommitResponse{}, nil
}

// ListSnapshots implements the ABCI ListSnapshots method.
func (app *Application) ListSnapshots(_ context.Context,
	_ *abcitypes.ListSnapshotsRequest) (*abcitypes.ListSnapshotsResponse,
	error) {

	return &abcitypes.ListSnapshotsResponse{}, nil
}

// OfferSnapshot implements the ABCI OfferSnapshot method.
func (app *Application) OfferSnapshot(_ context.Context,
	_ *abcitypes.OfferSnapshotRequest) (*abcitypes.OfferSnapshotResponse,
	error) {

	return &abcitypes.OfferSnapshotResponse{}, nil
}

// LoadSnapshotChunk implements the ABCI LoadSnapshotChunk method.
func (app *Application) LoadSnapshotChunk(_ context.Context,
	_ *abcitypes.LoadSnapshotChunkRequest) (
	*abcitypes.LoadSnapshotChunkResponse, error) {

	return &abcitypes.LoadSnapshotChunkResponse{}, nil
}

// ApplySnapshotChunk implements the ABCI ApplySnapshotChunk method.
func (app *Application) ApplySnapshotChunk(_ context.Context,
	_ *abcitypes.ApplySnapshotChunkRequest) (
	*abcitypes.ApplySnapshotChunkResponse, error) {

	return &abcitypes.ApplySnapshotChunkResponse{
		Result: abcitypes.APPLY_SNAPSHOT_CHUNK_RESULT_ACCEPT,
	}, nil
}

// ExtendVote implements the ABCI ExtendVote method.
func (app *Application) ExtendVote(_ context.Context,
	_ *abcitypes.ExtendVoteRequest) (*abcitypes.ExtendVoteResponse, error) {

	return &abcitypes.ExtendVoteResponse{}, nil
}

// VerifyVoteExtension implements the ABCI VerifyVoteExtension method.
func (app *Application) VerifyVoteExtension(_ context.Context,
	_ *abcitypes.VerifyVoteExtensionRequest) (
	*abcitypes.VerifyVoteExtensionResponse, error) {

	return &abcitypes.VerifyVoteExtensionResponse{
		Status: abcitypes.VERIFY_VOTE_EXTENSION_STATUS_ACCEPT,
	}, nil
}

// convertEvents maps host events to ABCI events. All attributes are
// indexed.
func convertEvents(events []chain.Event) []abcitypes.Event {
	converted := make([]abcitypes.Event, 0, len(events))
	for _, event := range events {
		attrs := make(
			[]abcitypes.EventAttribute, 0, len(event.Attributes),
		)
		for _, attr := range event.Attributes {
			attrs = append(attrs, abcitypes.EventAttribute{
				Key:   attr.Key,
				Value: attr.Value,
				Index: true,
			})
		}

		converted = append(converted, abcitypes.Event{
			Type:       event.Type,
			Attributes: attrs,
		})
	}

	return converted
}

// calculateAppHash chains the previous app hash with the code and data of
// every result of the block.
func calculateAppHash(prev []byte,
	txResults []*abcitypes.ExecTxResult) []byte {

	h := sha256.New()
	h.Write(prev)

	var code [4]byte
	for _, result := range txResults {
		binary.BigEndian.PutUint32(code[:], result.Code)
		h.Write(code[:])
		h.Write(result.Data)
	}

	return h.Sum(nil)
}
