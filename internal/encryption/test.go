package encryption

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"havit-go/internal/catalog"
)

// testMagic starts every snapshot written by TestEncryptor.
var testMagic = []byte("HVTSNAP\x01")

// testMask is XORed into every byte after the magic so a sealed snapshot
// never carries the SQLite file header or any other plaintext run.
const testMask = 0xA5

// ErrNotTestSnapshot means Decrypt was given data TestEncryptor did not write.
var ErrNotTestSnapshot = errors.New("not a test-encrypted snapshot")

// TestEncryptor seals snapshots without keys so push and pull can be
// exercised in tests. Until Setup is called any passphrase unlocks; after
// it only the passphrase given to Setup does.
type TestEncryptor struct {
	passphrase string
}

var _ catalog.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a TestEncryptor that accepts any passphrase.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := mask(r, w); err != nil {
		return fmt.Errorf("sealing snapshot: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (catalog.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, fmt.Errorf("unlocking test key: wrong passphrase")
	}
	return &TestDecryptionContext{}, nil
}

// IsConfigured is always true; there are no key files.
func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext opens snapshots sealed by TestEncryptor.
type TestDecryptionContext struct{}

var _ catalog.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("%w: reading header: %w", ErrNotTestSnapshot, err)
	}
	if !bytes.Equal(header, testMagic) {
		return ErrNotTestSnapshot
	}
	if err := mask(r, w); err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	return nil
}

// mask copies r to w with every byte XORed with testMask. Applying it
// twice is the identity.
func mask(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	buf := make([]byte, 32*1024)
	for {
		n, err := br.Read(buf)
		for i := range buf[:n] {
			buf[i] ^= testMask
		}
		if _, werr := bw.Write(buf[:n]); werr != nil {
			return werr
		}
		if err == io.EOF {
			return bw.Flush()
		}
		if err != nil {
			return err
		}
	}
}
