package zdc

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"
)

// hashContent is the content record as it participates in the digest.
// Bookkeeping fields — identifier, lineage, timestamps, state flags,
// and the hash itself — are excluded,
// so that independently built containers with identical payloads
// produce identical digests.
func (c *Container) hashContent() Content {
	content := c.Content()
	content.UUID = ""
	content.Replaces = ""
	content.Created = Timestamp{}
	content.Modified = Timestamp{}
	content.Static = false
	content.Complete = false
	content.Hash = ""
	return content
}

// ContentHash computes the deterministic SHA2-256 digest
// of the container's full content and seals the container.
// The digest covers every qualified name in order,
// each with the length and bytes of its encoded representation
// (or the codec's digest override, for codecs without a canonical encoding).
func (c *Container) ContentHash() (string, error) {
	if err := c.Seal(); err != nil {
		return "", err
	}

	rawContent, err := c.reg.Encode("json", c.hashContent())
	if err != nil {
		return "", errors.Wrap(err, "encoding content record")
	}
	rawMeta, err := c.reg.Encode("json", c.meta)
	if err != nil {
		return "", errors.Wrap(err, "encoding meta record")
	}

	input := map[string][]byte{
		ContentName: rawContent,
		MetaName:    rawMeta,
	}
	names := []string{ContentName, MetaName}
	for name, b := range c.sealed {
		input[name] = c.reg.HashInput(Ext(name), b)
		names = append(names, name)
	}
	sortNames(names)

	h := sha256.New()
	var lenbuf [8]byte
	for _, name := range names {
		b := input[name]
		h.Write([]byte(name))
		binary.BigEndian.PutUint64(lenbuf[:], uint64(len(b)))
		h.Write(lenbuf[:])
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Freeze computes the content hash,
// marks the container static, and seals it.
// A static container can never be mutated again
// and deduplicates against identical remote datasets by its hash.
func (c *Container) Freeze() error {
	if c.content.Static {
		return errors.Wrap(ErrAlreadyStatic, c.content.UUID)
	}
	hash, err := c.ContentHash()
	if err != nil {
		return err
	}
	c.content.Static = true
	c.content.Hash = hash
	c.touch()
	return nil
}

// VerifyHash recomputes the content hash of a static container
// and checks it against the stored one.
func (c *Container) VerifyHash() (string, error) {
	hash, err := c.ContentHash()
	if err != nil {
		return "", err
	}
	if c.content.Hash != "" && c.content.Hash != hash {
		return "", errors.Wrapf(ErrSchemaViolation, "stored hash %s does not match content hash %s", c.content.Hash, hash)
	}
	return hash, nil
}
