package chain

import (
	"encoding/binary"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/ppiankov/wikiedits/internal/model"
)

// Deduplicate sorts revisions by timestamp, keeping input order on ties, and drops every
// revision whose full field set was already seen. The position in the result is the version depth minus one.
func Deduplicate(revs []model.ChainRevision) []model.ChainRevision {
	sorted := make([]model.ChainRevision, len(revs))
	copy(sorted, revs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	seen := make(map[xxh3.Uint128]struct{}, len(sorted))
	out := sorted[:0]
	for _, r := range sorted {
		k := identity(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// identity hashes a length-prefixed encoding of every field
func identity(r model.ChainRevision) xxh3.Uint128 {
	buf := make([]byte, 0, 64+len(r.BeforeRevision)+len(r.AfterRevision))
	buf = binary.AppendVarint(buf, r.RevID)
	for _, s := range []string{r.Category, r.Timestamp, r.Title, r.BeforeRevision, r.AfterRevision} {
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	return xxh3.Hash128(buf)
}
