package escrow

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/lightninglabs/xswap/chain"
	"github.com/stretchr/testify/require"
)

// TestDecodeExecuteMsg tests decoding of the command union.
func TestDecodeExecuteMsg(t *testing.T) {
	hashlock := HashPreimage(secret)

	msg, err := DecodeExecuteMsg([]byte(`{"create_escrow":{"escrow":{
		"order_hash":"abc","maker":"m","taker":"t","token":"utoken",
		"amount":"1000","hashlock":"` + hashlock.String() + `",
		"timelock":1700003600,"is_active":false,"is_claimed":false,
		"is_refunded":false}}}`))
	require.NoError(t, err)
	require.Equal(t, &CreateEscrowMsg{Escrow: Escrow{
		OrderHash: "abc",
		Maker:     "m",
		Taker:     "t",
		Token:     "utoken",
		Amount:    1000,
		Hashlock:  hashlock,
		Timelock:  1700003600,
	}}, msg)

	msg, err = DecodeExecuteMsg(
		[]byte(`{"claim":{"order_hash":"abc","preimage":"secret"}}`),
	)
	require.NoError(t, err)
	require.Equal(t, &ClaimMsg{OrderHash: "abc", Preimage: secret}, msg)

	msg, err = DecodeExecuteMsg([]byte(`{"refund":{"order_hash":"abc"}}`))
	require.NoError(t, err)
	require.Equal(t, &RefundMsg{OrderHash: "abc"}, msg)

	_, err = DecodeExecuteMsg([]byte(`{"get_escrow":{"order_hash":"a"}}`))
	require.ErrorIs(t, err, chain.ErrInvalidMessage)

	raw, err := EncodeExecuteMsg(&RefundMsg{OrderHash: "abc"})
	require.NoError(t, err)
	require.JSONEq(t, `{"refund":{"order_hash":"abc"}}`, string(raw))
}

// TestDecodeQueryMsg tests decoding of the query union.
func TestDecodeQueryMsg(t *testing.T) {
	msg, err := DecodeQueryMsg([]byte(`{"list_escrows":{}}`))
	require.NoError(t, err)
	require.Equal(t, &ListEscrowsQuery{}, msg)

	msg, err = DecodeQueryMsg(
		[]byte(`{"list_escrows":{"start_after":"a","limit":5}}`),
	)
	require.NoError(t, err)

	list := msg.(*ListEscrowsQuery)
	require.Equal(t, "a", *list.StartAfter)
	require.EqualValues(t, 5, *list.Limit)

	_, err = DecodeQueryMsg([]byte(`{"list_escrows":{"limit":-1}}`))
	require.ErrorIs(t, err, chain.ErrInvalidMessage)
}

// TestHashlockJSON tests the accepted hashlock forms.
func TestHashlockJSON(t *testing.T) {
	hashlock := HashPreimage(secret)

	byteValues := make([]string, len(hashlock))
	for i, b := range hashlock {
		byteValues[i] = jsonUint(b)
	}

	tests := []struct {
		name string
		raw  string
		err  error
	}{
		{
			name: "hex",
			raw:  `"` + hashlock.String() + `"`,
		},
		{
			name: "byte array",
			raw:  "[" + strings.Join(byteValues, ",") + "]",
		},
		{
			name: "short hex",
			raw:  `"abcd"`,
			err:  ErrInvalidHashlock,
		},
		{
			name: "short array",
			raw:  "[1,2,3]",
			err:  ErrInvalidHashlock,
		},
		{
			name: "number",
			raw:  "42",
			err:  ErrInvalidHashlock,
		},
		{
			name: "missing",
			raw:  "null",
			err:  ErrInvalidHashlock,
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			parsed, err := ParseHashlock(json.RawMessage(tc.raw))
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, hashlock, parsed)
		})
	}
}

// jsonUint formats a byte as JSON number.
func jsonUint(b byte) string {
	raw, _ := json.Marshal(uint(b))
	return string(raw)
}

// TestEscrowJSON tests the wire form of an escrow.
func TestEscrowJSON(t *testing.T) {
	e := &Escrow{
		OrderHash: "abc",
		Maker:     maker,
		Taker:     taker,
		Token:     "utoken",
		Amount:    18446744073709551615,
		Hashlock:  HashPreimage(secret),
		Timelock:  1700003600,
		IsActive:  true,
	}

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"order_hash": "abc",
		"maker": "maker",
		"taker": "taker",
		"token": "utoken",
		"amount": "18446744073709551615",
		"hashlock": "`+e.Hashlock.String()+`",
		"timelock": 1700003600,
		"is_active": true,
		"is_claimed": false,
		"is_refunded": false
	}`, string(raw))

	var decoded Escrow
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, e, &decoded)

	_, err = ParseAmount("18446744073709551616")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseAmount("-1")
	require.ErrorIs(t, err, ErrInvalidAmount)

	err = json.Unmarshal([]byte(`{"order_hash":"a","memo":"x"}`), &decoded)
	require.Error(t, err)
}
