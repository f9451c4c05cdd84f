package resolver

import (
	"encoding/json"

	"github.com/lightninglabs/xswap/chain"
)

// InstantiateMsg is the instantiation message of the resolver contract.
type InstantiateMsg struct {
	ResolverAddress string `json:"resolver_address"`
}

// ExecuteMsg is one of DeploySrcEscrowMsg, DeployDstEscrowMsg, WithdrawMsg,
// CancelMsg or UpdateOwnershipMsg.
type ExecuteMsg interface {
	executeTag() string
}

// DeploySrcEscrowMsg records the order of the source leg.
type DeploySrcEscrowMsg struct {
	Order Order `json:"order"`
}

func (m *DeploySrcEscrowMsg) executeTag() string { return "deploy_src_escrow" }

// DeployDstEscrowMsg records the order of the destination leg.
type DeployDstEscrowMsg struct {
	Order Order `json:"order"`
}

func (m *DeployDstEscrowMsg) executeTag() string { return "deploy_dst_escrow" }

// WithdrawMsg claims an escrow with the swap secret.
type WithdrawMsg struct {
	Side          string `json:"side"`
	EscrowAddress string `json:"escrow_address"`
	Secret        string `json:"secret"`
	Immutables    string `json:"immutables"`
}

func (m *WithdrawMsg) executeTag() string { return "withdraw" }

// CancelMsg refunds an expired escrow.
type CancelMsg struct {
	Side          string `json:"side"`
	EscrowAddress string `json:"escrow_address"`
	Immutables    string `json:"immutables"`
}

func (m *CancelMsg) executeTag() string { return "cancel" }

// UpdateOwnershipMsg carries an ownership action. Its body is a bare JSON
// string.
type UpdateOwnershipMsg struct {
	Action string
}

func (m *UpdateOwnershipMsg) executeTag() string { return "update_ownership" }

// MarshalJSON encodes the action as JSON string.
func (m UpdateOwnershipMsg) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Action)
}

// UnmarshalJSON decodes the action from a JSON string.
func (m *UpdateOwnershipMsg) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &m.Action)
}

// QueryMsg is one of GetOrderQuery, OwnershipQuery or ConfigQuery.
type QueryMsg interface {
	queryTag() string
}

// GetOrderQuery returns a single order.
type GetOrderQuery struct {
	OrderHash string `json:"order_hash"`
}

func (q *GetOrderQuery) queryTag() string { return "get_order" }

// OwnershipQuery returns the owner of the resolver.
type OwnershipQuery struct{}

func (q *OwnershipQuery) queryTag() string { return "ownership" }

// ConfigQuery returns the resolver config.
type ConfigQuery struct{}

func (q *ConfigQuery) queryTag() string { return "config" }

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
	case "deploy_src_escrow":
		msg = &DeploySrcEscrowMsg{}

	case "deploy_dst_escrow":
		msg = &DeployDstEscrowMsg{}

	case "withdraw":
		msg = &WithdrawMsg{}

	case "cancel":
		msg = &CancelMsg{}

	case "update_ownership":
		msg = &UpdateOwnershipMsg{}

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
	case "get_order":
		msg = &GetOrderQuery{}

	case "ownership":
		msg = &OwnershipQuery{}

	case "config":
		msg = &ConfigQuery{}

	default:
		return nil, chain.UnknownVariant(tag)
	}

	if err := chain.DecodeStrict(body, msg); err != nil {
		return nil, err
	}

	return msg, nil
}
