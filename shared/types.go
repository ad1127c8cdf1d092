package shared

import "strconv"

// ClientID identifies an account holder. Fits in 16 bits on the wire.
type ClientID uint16

// TxID identifies a deposit or withdrawal. Disputes, resolves and
// chargebacks refer back to it.
type TxID uint32

func (c ClientID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

func (t TxID) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
