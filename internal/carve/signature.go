package carve

// SignatureKind is the specific role a byte pattern plays in identifying a
// candidate file boundary.
type SignatureKind int

const (
	HeaderJPEG SignatureKind = iota
	FooterJPEG
	HeaderPNG
	FooterPNG
)

func (k SignatureKind) Format() Format {
	switch k {
	case HeaderJPEG, FooterJPEG:
		return JPEG
	default:
		return PNG
	}
}

func (k SignatureKind) IsHeader() bool {
	return k == HeaderJPEG || k == HeaderPNG
}

func (k SignatureKind) String() string {
	switch k {
	case HeaderJPEG:
		return "HeaderJPEG"
	case FooterJPEG:
		return "FooterJPEG"
	case HeaderPNG:
		return "HeaderPNG"
	case FooterPNG:
		return "FooterPNG"
	default:
		return "Unknown"
	}
}

// Signature is a compiled byte pattern the Scanner matches at every offset
// of the device. Alignment is 1 for every supported format: a match can
// start on any byte.
type Signature struct {
	Pattern []byte
	Kind    SignatureKind
}

// BuiltinSignatures returns the fixed, byte-exact signature set for JPEG and
// PNG. The set never changes at runtime.
func BuiltinSignatures() []Signature {
	return []Signature{
		{Pattern: []byte{0xFF, 0xD8, 0xFF}, Kind: HeaderJPEG},
		{Pattern: []byte{0xFF, 0xD9}, Kind: FooterJPEG},
		{Pattern: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, Kind: HeaderPNG},
		{Pattern: []byte{0x49, 0x45, 0x4E, 0x44, 0xAE, 0x42, 0x60, 0x82}, Kind: FooterPNG},
	}
}

// MaxSignatureLength returns the length of the longest pattern in sigs,
// which the Scanner uses to size chunk overlap.
func MaxSignatureLength(sigs []Signature) int {
	max := 0
	for _, s := range sigs {
		if len(s.Pattern) > max {
			max = len(s.Pattern)
		}
	}
	return max
}

// jpegMarkerBoost lists second-byte marker values that commonly follow a
// JPEG SOI, used to boost header confidence.
var jpegMarkerBoost = map[byte]bool{
	0xE0: true, 0xE1: true, 0xDB: true, 0xEE: true, 0xC0: true, 0xC4: true,
}
