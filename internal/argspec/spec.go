// Package argspec decodes the launcher's protocol flags from a raw argument
// vector and reassembles the payload chunks they carry.
package argspec

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Flag names understood by Decode.
const (
	FlagVersion   = "--spec-version"
	FlagNumChunks = "--spec-num-chunks"
	FlagChecksum  = "--spec-sha256sum"
	FlagChunk     = "--spec-chunk-"
)

var (
	ErrMissingOption      = errors.New("missing required option")
	ErrChunkCount         = errors.New("chunk count does not match declared count")
	ErrChunkIndex         = errors.New("chunk indices are not contiguous")
	ErrUnsupportedVersion = errors.New("unsupported spec version")
	ErrChecksumMismatch   = errors.New("payload checksum mismatch")
)

// Policy controls the optional parts of validation.
type Policy struct {
	RequireVersion   bool
	RequireChecksum  bool
	AcceptedVersions []uint64
}

// DefaultPolicy requires a version and accepts any value for it.
func DefaultPolicy() Policy {
	return Policy{RequireVersion: true}
}

// Spec is a fully validated set of protocol flags.
type Spec struct {
	Version   uint64
	NumChunks uint64
	SHA256Sum string
	Chunks    []string
}

// Payload returns the chunks joined in index order.
func (s *Spec) Payload() string {
	return strings.Join(s.Chunks, "")
}

// HasChecksum reports whether a checksum flag was supplied.
func (s *Spec) HasChecksum() bool {
	return s.SHA256Sum != ""
}

// VerifyChecksum compares the SHA-256 of the joined base64 text with the
// supplied checksum. A spec without a checksum always verifies.
func (s *Spec) VerifyChecksum() error {
	if !s.HasChecksum() {
		return nil
	}
	sum := sha256.Sum256([]byte(s.Payload()))
	got := hex.EncodeToString(sum[:])
	if !strings.EqualFold(got, s.SHA256Sum) {
		return fmt.Errorf("%w: want %s, got %s", ErrChecksumMismatch, strings.ToLower(s.SHA256Sum), got)
	}
	return nil
}

// Decode scans args (args[0] is the program name and is skipped) for the
// protocol flags. Arguments no matcher recognises are ignored. On any
// validation failure no Spec is returned.
func Decode(args []string, policy Policy) (*Spec, error) {
	var (
		version, numChunks uint64
		checksum           string
		chunks             []chunkRef
	)

	versionM := uintMatcher(FlagVersion, &version)
	numChunksM := uintMatcher(FlagNumChunks, &numChunks)
	checksumM := stringMatcher(FlagChecksum, &checksum)
	chunkM := chunkMatcher(FlagChunk, &chunks)
	matchers := []*matcher{versionM, numChunksM, checksumM, chunkM}

	for i := 1; i < len(args); {
		n := 0
		for _, m := range matchers {
			if n = m.consume(args, i); n > 0 {
				break
			}
		}
		if n == 0 {
			n = 1
		}
		i += n
	}

	if !numChunksM.matched {
		return nil, fmt.Errorf("%w: %s", ErrMissingOption, FlagNumChunks)
	}
	if !chunkM.matched {
		return nil, fmt.Errorf("%w: %s<N>", ErrMissingOption, FlagChunk)
	}
	if policy.RequireVersion && !versionM.matched {
		return nil, fmt.Errorf("%w: %s", ErrMissingOption, FlagVersion)
	}
	if policy.RequireChecksum && !checksumM.matched {
		return nil, fmt.Errorf("%w: %s", ErrMissingOption, FlagChecksum)
	}
	if versionM.matched && len(policy.AcceptedVersions) > 0 && !slices.Contains(policy.AcceptedVersions, version) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	ordered, err := reassemble(chunks, numChunks)
	if err != nil {
		return nil, err
	}

	return &Spec{
		Version:   version,
		NumChunks: numChunks,
		SHA256Sum: checksum,
		Chunks:    ordered,
	}, nil
}

// reassemble orders chunks by declared index and checks that the indices are
// exactly 0..want-1.
func reassemble(chunks []chunkRef, want uint64) ([]string, error) {
	if uint64(len(chunks)) != want {
		return nil, fmt.Errorf("%w: declared %d, got %d", ErrChunkCount, want, len(chunks))
	}

	sorted := slices.Clone(chunks)
	slices.SortStableFunc(sorted, func(a, b chunkRef) int {
		switch {
		case a.index < b.index:
			return -1
		case a.index > b.index:
			return 1
		default:
			return a.arrival - b.arrival
		}
	})

	out := make([]string, len(sorted))
	for i, c := range sorted {
		if c.index != uint64(i) {
			if i > 0 && c.index == sorted[i-1].index {
				return nil, fmt.Errorf("%w: duplicate index %d", ErrChunkIndex, c.index)
			}
			return nil, fmt.Errorf("%w: missing index %d", ErrChunkIndex, i)
		}
		out[i] = c.value
	}
	return out, nil
}
