package escrow

import (
	"github.com/lightninglabs/xswap/chain"
)

// InstantiateMsg is the instantiation message of the escrow contract.
type InstantiateMsg struct {
	Owner string `json:"owner"`
}

// ExecuteMsg is one of CreateEscrowMsg, ClaimMsg or RefundMsg.
type ExecuteMsg interface {
	executeTag() string
}

// CreateEscrowMsg creates a new escrow.
type CreateEscrowMsg struct {
	Escrow Escrow `json:"escrow"`
}

func (m *CreateEscrowMsg) executeTag() string { return "create_escrow" }

// ClaimMsg claims an escrow for the taker.
type ClaimMsg struct {
	OrderHash string `json:"order_hash"`
	Preimage  string `json:"preimage"`
}

func (m *ClaimMsg) executeTag() string { return "claim" }

// RefundMsg returns an expired escrow to the maker.
type RefundMsg struct {
	OrderHash string `json:"order_hash"`
}

func (m *RefundMsg) executeTag() string { return "refund" }

// QueryMsg is one of GetEscrowQuery or ListEscrowsQuery.
type QueryMsg interface {
	queryTag() string
}

// GetEscrowQuery returns a single escrow.
type GetEscrowQuery struct {
	OrderHash string `json:"order_hash"`
}

func (q *GetEscrowQuery) queryTag() string { return "get_escrow" }

// ListEscrowsQuery returns a page of escrows in order hash order.
type ListEscrowsQuery struct {
	StartAfter *string `json:"start_after,omitempty"`
	Limit      *uint32 `json:"limit,omitempty"`
}

func (q *ListEscrowsQuery) queryTag() string { return "list_escrows" }

// EncodeExecuteMsg encodes a command as externally tagged JSON.
func EncodeExecuteMsg(msg ExecuteMsg) ([]byte, error) {
	return chain.EncodeTagged(msg.executeTag(), msg)
}

// DecodeExecuteMsg decodes an externally tagged command.
func DecodeExecuteMsg(raw []byte) (ExecuteMsg, error) {
	tag, body, err := chain.DecodeTagged(raw)
	if err != nil {
		return nil, err
	}

	var msg ExecuteMsg
	switch tag {
	case "create_escrow":
		msg = &CreateEscrowMsg{}

	case "claim":
		msg = &ClaimMsg{}

	case "refund":
		msg = &RefundMsg{}

	default:
		return nil, chain.UnknownVariant(tag)
	}

	if err := chain.DecodeStrict(body, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// EncodeQueryMsg encodes a query as externally tagged JSON.
func EncodeQueryMsg(msg QueryMsg) ([]byte, error) {
	return chain.EncodeTagged(msg.queryTag(), msg)
}

// DecodeQueryMsg decodes an externally tagged query.
func DecodeQueryMsg(raw []byte) (QueryMsg, error) {
	tag, body, err := chain.DecodeTagged(raw)
	if err != nil {
		return nil, err
	}

	var msg QueryMsg
	switch tag {
	case "get_escrow":
		msg = &GetEscrowQuery{}

	case "list_escrows":
		msg = &ListEscrowsQuery{}

	default:
		return nil, chain.UnknownVariant(tag)
	}

	if err := chain.DecodeStrict(body, msg); err != nil {
		return nil, err
	}

	return msg, nil
}
