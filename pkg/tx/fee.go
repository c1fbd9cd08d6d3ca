package tx

// FeeBytesStep is the size step the minimum fee is charged per.
const FeeBytesStep = 1000

// RequiredFee returns the minimum fee for a transaction: baseFee for every
// started FeeBytesStep bytes of its serialization.
func RequiredFee(transaction *Transaction, baseFee uint64) uint64 {
	return baseFee * (1 + uint64(transaction.SerializeSize())/FeeBytesStep)
}
