package session

// Sealer transforms frames before they are written and after they are read.
// A sealed frame is always Overhead bytes larger than a plain one.
type Sealer interface {
	Overhead() int
	Seal(dst, frame []byte) ([]byte, error)
	Open(dst, wire []byte) ([]byte, error)
}

// Plain is the Sealer for unencrypted streams. It copies frames unchanged.
type Plain struct{}

func (Plain) Overhead() int { return 0 }

func (Plain) Seal(dst, frame []byte) ([]byte, error) {
	return append(dst, frame...), nil
}

func (Plain) Open(dst, wire []byte) ([]byte, error) {
	return append(dst, wire...), nil
}
