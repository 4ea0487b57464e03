package expr

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"
)

// Node kind tags used in the canonical encoding. The encoding is part of
// the cache-key contract: changing it invalidates nothing semantically but
// defeats warm caches across versions, so tags are append-only.
const (
	tagConstant = 0
	tagInputRef = 1
	tagCall     = 2
)

// Encode returns the canonical byte encoding of an expression tree.
// Structurally equal trees encode to identical bytes, which makes the
// encoding usable directly as an exact cache-key component (fingerprints
// alone could collide).
func Encode(e Expression) ([]byte, error) {
	node, err := encodeNode(e)
	if err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("encode expression %s: %w", e, err)
	}
	return data, nil
}

// Fingerprint returns a 64-bit structural hash of the expression: the xxh3
// hash of its canonical encoding. Equal trees always produce equal
// fingerprints.
func Fingerprint(e Expression) (uint64, error) {
	data, err := Encode(e)
	if err != nil {
		return 0, err
	}
	return xxh3.Hash(data), nil
}

// encodeNode lowers a tree into nested msgpack-friendly arrays. Arrow
// types are encoded by their canonical string form, which is stable and
// distinguishes all types this compiler accepts.
func encodeNode(e Expression) (any, error) {
	switch e := e.(type) {
	case *Constant:
		return []any{tagConstant, e.Typ.String(), e.Value}, nil
	case *InputRef:
		return []any{tagInputRef, e.Typ.String(), e.Channel}, nil
	case *Call:
		args := make([]any, len(e.Args))
		for i, a := range e.Args {
			n, err := encodeNode(a)
			if err != nil {
				return nil, err
			}
			args[i] = n
		}
		return []any{tagCall, e.Typ.String(), e.Name, args}, nil
	default:
		return nil, fmt.Errorf("unknown expression node %T", e)
	}
}
