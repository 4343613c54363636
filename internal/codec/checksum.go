package codec

// Checksum returns the 8-bit sum of data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// AppendChecksum appends the checksum of data[from:] to data.
func AppendChecksum(data []byte, from int) []byte {
	if from < 0 || from > len(data) {
		from = 0
	}
	return append(data, Checksum(data[from:]))
}

// VerifyChecksum reports whether the last byte of data is the checksum of
// data[from:len-1]. Inputs too short to carry a checksum fail.
func VerifyChecksum(data []byte, from int) bool {
	n := len(data)
	if n < 1 || from < 0 || from > n-1 {
		return false
	}
	return Checksum(data[from:n-1]) == data[n-1]
}
