package protocol

// BinSum returns the low 16 bits of the sum of the raw bin counts. The device
// embeds this value as the histogram checksum.
func BinSum(counts []uint16) uint16 {
	var sum uint32
	for _, c := range counts {
		sum += uint32(c)
	}
	return uint16(sum & ChecksumMask)
}

// VerifyChecksum checks raw bin counts against the embedded checksum.
func VerifyChecksum(counts []uint16, checksum uint16) error {
	if sum := BinSum(counts); sum != checksum {
		return &IntegrityError{Sum: sum, Checksum: checksum}
	}
	return nil
}
