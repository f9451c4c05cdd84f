package escrow

import (
	"bytes"

	"github.com/lightningnetwork/lnd/tlv"
)

const (
	typeOrderHash  tlv.Type = 0
	typeMaker      tlv.Type = 1
	typeTaker      tlv.Type = 2
	typeToken      tlv.Type = 3
	typeAmount     tlv.Type = 4
	typeHashlock   tlv.Type = 5
	typeTimelock   tlv.Type = 6
	typeIsActive   tlv.Type = 7
	typeIsClaimed  tlv.Type = 8
	typeIsRefunded tlv.Type = 9
)

// escrowRecord holds the TLV representation of an escrow.
type escrowRecord struct {
	orderHash  []byte
	maker      []byte
	taker      []byte
	token      []byte
	amount     uint64
	hashlock   [32]byte
	timelock   uint64
	isActive   uint8
	isClaimed  uint8
	isRefunded uint8
}

// stream returns the TLV stream over the record fields.
func (r *escrowRecord) stream() (*tlv.Stream, error) {
	return tlv.NewStream(
		tlv.MakePrimitiveRecord(typeOrderHash, &r.orderHash),
		tlv.MakePrimitiveRecord(typeMaker, &r.maker),
		tlv.MakePrimitiveRecord(typeTaker, &r.taker),
		tlv.MakePrimitiveRecord(typeToken, &r.token),
		tlv.MakePrimitiveRecord(typeAmount, &r.amount),
		tlv.MakePrimitiveRecord(typeHashlock, &r.hashlock),
		tlv.MakePrimitiveRecord(typeTimelock, &r.timelock),
		tlv.MakePrimitiveRecord(typeIsActive, &r.isActive),
		tlv.MakePrimitiveRecord(typeIsClaimed, &r.isClaimed),
		tlv.MakePrimitiveRecord(typeIsRefunded, &r.isRefunded),
	)
}

// boolToUint8 maps a flag to its stored byte.
func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}

	return 0
}

// serializeEscrow encodes an escrow as a TLV stream.
func serializeEscrow(e *Escrow) ([]byte, error) {
	record := &escrowRecord{
		orderHash:  []byte(e.OrderHash),
		maker:      []byte(e.Maker),
		taker:      []byte(e.Taker),
		token:      []byte(e.Token),
		amount:     e.Amount,
		hashlock:   e.Hashlock,
		timelock:   e.Timelock,
		isActive:   boolToUint8(e.IsActive),
		isClaimed:  boolToUint8(e.IsClaimed),
		isRefunded: boolToUint8(e.IsRefunded),
	}

	stream, err := record.stream()
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// deserializeEscrow decodes an escrow from a TLV stream. Unknown odd types
// are skipped.
func deserializeEscrow(value []byte) (*Escrow, error) {
	record := &escrowRecord{}

	stream, err := record.stream()
	if err != nil {
		return nil, err
	}

	if err := stream.Decode(bytes.NewReader(value)); err != nil {
		return nil, err
	}

	return &Escrow{
		OrderHash:  string(record.orderHash),
		Maker:      string(record.maker),
		Taker:      string(record.taker),
		Token:      string(record.token),
		Amount:     record.amount,
		Hashlock:   record.hashlock,
		Timelock:   record.timelock,
		IsActive:   record.isActive == 1,
		IsClaimed:  record.isClaimed == 1,
		IsRefunded: record.isRefunded == 1,
	}, nil
}
