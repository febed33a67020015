package gateway

import (
	"fmt"

	"github.com/speps/go-hashids/v2"
)

const bankReferenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// BankReferences turns deposit ids into short references customers type into
// their bank transfer concept field.
type BankReferences struct {
	hash *hashids.HashID
}

func NewBankReferences(salt string) (*BankReferences, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 8
	hd.Alphabet = bankReferenceAlphabet
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("failed to init bank references: %w", err)
	}
	return &BankReferences{hash: h}, nil
}

func (b *BankReferences) Encode(depositID uint) (string, error) {
	return b.hash.EncodeInt64([]int64{int64(depositID)})
}

// Decode returns the deposit id for a reference.
func (b *BankReferences) Decode(ref string) (uint, error) {
	ids, err := b.hash.DecodeInt64WithError(ref)
	if err != nil {
		return 0, err
	}
	if len(ids) != 1 || ids[0] <= 0 {
		return 0, fmt.Errorf("invalid bank reference %q", ref)
	}
	return uint(ids[0]), nil
}
