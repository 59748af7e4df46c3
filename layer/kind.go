package layer

import (
	"fmt"
	"strings"
)

// Kind identifies a weight representation.
type Kind uint8

const (
	// KindDense stores the full I*O weight matrix.
	KindDense Kind = iota
	// KindPQ is row-wise product quantization: each output owns M codes.
	KindPQ
	// KindCPQ is column-wise product quantization: each input owns M codes.
	KindCPQ
	// KindRQ is residual quantization of each output's full weight column.
	KindRQ
	// KindVQ is row-wise product quantization over one shared dictionary.
	KindVQ
	// KindHashed shares a bucket array through a hash of (input, output).
	KindHashed
)

var kindNames = [...]string{
	KindDense:  "dense",
	KindPQ:     "pq",
	KindCPQ:    "cpq",
	KindRQ:     "rq",
	KindVQ:     "vq",
	KindHashed: "hashed",
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(s)
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("layer: unknown kind %q", s)
}
