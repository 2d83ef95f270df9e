package address

// IsP2WPKHWitness reports whether items have the [signature, compressed pubkey] shape
func IsP2WPKHWitness(items [][]byte) bool {
	if len(items) != 2 {
		return false
	}
	pub := items[1]
	return len(pub) == 33 && (pub[0] == 0x02 || pub[0] == 0x03)
}

// IsSingleKeyP2TRWitness reports whether items are a taproot key-path spend.
// Script-path spends always carry at least the script and control block.
func IsSingleKeyP2TRWitness(items [][]byte) bool {
	return len(items) == 1
}
