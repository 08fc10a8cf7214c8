// Package checksum streams a completed download through the digest
// algorithm the caller expects and compares the result, replacing the
// teacher's size-only integrity check with an actual hash comparison.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"swiftget/internal"
)

const bufSize = 256 * 1024

// Verifier streams a file through a digest algorithm in bounded chunks,
// never loading the whole file into memory.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify hashes the file at path with digest.Algorithm and compares the
// result to digest.Hex, case-insensitively. A mismatch returns a
// corrupted_data DownloadError carrying both digests.
func (v *Verifier) Verify(path string, digest *internal.ExpectedDigest) error {
	h, err := newHasher(digest.Algorithm)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return internal.NewDownloadErrorWithCause(internal.ErrCorruptedData, "could not open file for verification", err).
			WithContext("path", path)
	}
	defer f.Close()

	if _, err := io.CopyBuffer(h, f, make([]byte, bufSize)); err != nil {
		return internal.NewDownloadErrorWithCause(internal.ErrCorruptedData, "read failed during verification", err).
			WithContext("path", path)
	}

	actual := fmt.Sprintf("%x", h.Sum(nil))
	expected := strings.ToLower(digest.Hex)
	if actual != expected {
		return internal.NewCorruptedDataError(path, fmt.Sprintf("%s mismatch", digest.Algorithm)).
			WithContext("expected", expected).
			WithContext("actual", actual)
	}

	return nil
}

func newHasher(alg internal.DigestAlgorithm) (hash.Hash, error) {
	switch alg {
	case internal.DigestMD5:
		return md5.New(), nil
	case internal.DigestSHA1:
		return sha1.New(), nil
	case internal.DigestSHA256:
		return sha256.New(), nil
	default:
		return nil, internal.NewDownloadError(internal.ErrUnknown, "unsupported digest algorithm")
	}
}
