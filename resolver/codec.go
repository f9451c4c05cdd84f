package resolver

import (
	"bytes"

	"github.com/lightningnetwork/lnd/tlv"
)

const (
	typeOrderHash tlv.Type = 0
	typeMaker     tlv.Type = 1
	typeTaker     tlv.Type = 2
	typeToken     tlv.Type = 3
	typeAmount    tlv.Type = 4
	typeHashlock  tlv.Type = 5
	typeTimelock  tlv.Type = 6

	typeResolverAddress tlv.Type = 0
)

// orderRecord holds the TLV representation of an order.
type orderRecord struct {
	orderHash []byte
	maker     []byte
	taker     []byte
	token     []byte
	amount    uint64
	hashlock  []byte
	timelock  uint64
}

func (r *orderRecord) stream() (*tlv.Stream, error) {
	return tlv.NewStream(
		tlv.MakePrimitiveRecord(typeOrderHash, &r.orderHash),
		tlv.MakePrimitiveRecord(typeMaker, &r.maker),
		tlv.MakePrimitiveRecord(typeTaker, &r.taker),
		tlv.MakePrimitiveRecord(typeToken, &r.token),
		tlv.MakePrimitiveRecord(typeAmount, &r.amount),
		tlv.MakePrimitiveRecord(typeHashlock, &r.hashlock),
		tlv.MakePrimitiveRecord(typeTimelock, &r.timelock),
	)
}

func serializeOrder(o *Order) ([]byte, error) {
	record := &orderRecord{
		orderHash: []byte(o.OrderHash),
		maker:     []byte(o.Maker),
		taker:     []byte(o.Taker),
		token:     []byte(o.Token),
		amount:    o.Amount,
		hashlock:  o.Hashlock,
		timelock:  o.Timelock,
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

func deserializeOrder(value []byte) (*Order, error) {
	record := &orderRecord{}

	stream, err := record.stream()
	if err != nil {
		return nil, err
	}

	if err := stream.Decode(bytes.NewReader(value)); err != nil {
		return nil, err
	}

	return &Order{
		OrderHash: string(record.orderHash),
		Maker:     string(record.maker),
		Taker:     string(record.taker),
		Token:     string(record.token),
		Amount:    record.amount,
		Hashlock:  record.hashlock,
		Timelock:  record.timelock,
	}, nil
}

func serializeConfig(cfg *Config) ([]byte, error) {
	address := []byte(cfg.ResolverAddress)

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeResolverAddress, &address),
	)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func deserializeConfig(value []byte) (*Config, error) {
	var address []byte

	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeResolverAddress, &address),
	)
	if err != nil {
		return nil, err
	}

	if err := stream.Decode(bytes.NewReader(value)); err != nil {
		return nil, err
	}

	return &Config{
		ResolverAddress: string(address),
	}, nil
}
