package flate

// Constants from RFC 1951 section 3.2.7.
const (
	maxNumLit  = 286 // literal/length alphabet size; HLIT+257 must not exceed it
	maxNumDist = 30  // distance alphabet size; HDIST+1 must not exceed it
	numClCodes = 19  // number of codes in the code-length meta-alphabet
)

// codeOrder is the scrambled order in which code-length-alphabet lengths
// are transmitted in a dynamic block header, RFC 1951 section 3.2.7.
var codeOrder = [numClCodes]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// lengthBase and lengthExtraBits give the base match length and extra bit
// count for literal/length symbols 257..285, RFC 1951 section 3.2.5.
var lengthBase = [29]int{3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258}
var lengthExtraBits = [29]uint{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}

// distBase and distExtraBits give the base match distance and extra bit
// count for distance codes 0..29, RFC 1951 section 3.2.5.
var distBase = [30]int{1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}
var distExtraBits = [30]uint{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}

// lengthBaseExtra looks up the base length and extra bit count for a
// literal/length symbol in 257..285.
func lengthBaseExtra(sym int) (base int, extra uint) {
	i := sym - 257
	return lengthBase[i], lengthExtraBits[i]
}
