package zdc

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bobg/zdc/codec"
)

// Container is a scientific dataset:
// a stable identifier, two attribute records,
// and a flat mapping from qualified names ("part/item.ext") to typed payloads.
//
// A container is mutable when constructed from items
// and immutable once loaded, serialized, hashed, frozen, or uploaded.
// In the immutable state every read decodes a fresh copy of the item,
// so callers never share mutable buffers with the container.
// Containers are not safe for concurrent mutation from multiple goroutines.
type Container struct {
	content  Content
	meta     Meta
	reg      *codec.Registry
	defaults Defaults

	mutable bool
	items   map[string]any    // decoded values, while mutable
	sealed  map[string][]byte // encoded entries, once immutable
}

// Option configures a Container under construction.
type Option func(*Container)

// WithRegistry sets the codec registry used for item conversion.
// The default is codec.Default.
func WithRegistry(reg *codec.Registry) Option {
	return func(c *Container) { c.reg = reg }
}

// WithDefaults supplies author identity
// for metadata records that do not name one.
func WithDefaults(d Defaults) Option {
	return func(c *Container) { c.defaults = d }
}

// New builds a mutable container from a payload of items.
// The payload must include the content descriptor under "content.json"
// (a Content record or a decoded JSON object)
// and should include the metadata record under "meta.json".
// All other keys are qualified item names.
func New(items map[string]any, opts ...Option) (*Container, error) {
	c := &Container{
		reg:     codec.Default,
		mutable: true,
		items:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	c.content, err = toContent(items[ContentName])
	if err != nil {
		return nil, err
	}
	c.meta, err = toMeta(items[MetaName])
	if err != nil {
		return nil, err
	}
	if err = validateAndDefault(&c.content, &c.meta, c.defaults); err != nil {
		return nil, err
	}

	// Populating the payload is construction, not mutation:
	// an explicitly supplied modification time survives it.
	modified := c.content.Modified
	for name, v := range items {
		if name == ContentName || name == MetaName {
			continue
		}
		if err = c.Set(name, v); err != nil {
			return nil, err
		}
	}
	c.content.Modified = modified
	return c, nil
}

// FromEntries builds an immutable container from encoded archive entries.
// The zdcfile package and the sync engine construct loaded containers this way.
func FromEntries(entries map[string][]byte, opts ...Option) (*Container, error) {
	c := &Container{
		reg:    codec.Default,
		sealed: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(c)
	}

	rawContent, ok := entries[ContentName]
	if !ok {
		return nil, errors.Wrapf(ErrCorruptArchive, "missing %s", ContentName)
	}
	rawMeta, ok := entries[MetaName]
	if !ok {
		return nil, errors.Wrapf(ErrCorruptArchive, "missing %s", MetaName)
	}

	decodedContent, err := c.reg.Decode("json", rawContent)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptArchive, "decoding %s: %s", ContentName, err)
	}
	c.content, err = toContent(decodedContent)
	if err != nil {
		return nil, err
	}
	decodedMeta, err := c.reg.Decode("json", rawMeta)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptArchive, "decoding %s: %s", MetaName, err)
	}
	c.meta, err = toMeta(decodedMeta)
	if err != nil {
		return nil, err
	}

	for name, b := range entries {
		if name == ContentName || name == MetaName {
			continue
		}
		if name == LicenseName {
			if c.meta.License == "" {
				c.meta.License = string(b)
			}
			continue
		}
		if err = checkName(name); err != nil {
			return nil, err
		}
		buf := make([]byte, len(b))
		copy(buf, b)
		c.sealed[name] = buf
	}

	if err = validateAndDefault(&c.content, &c.meta, c.defaults); err != nil {
		return nil, err
	}
	return c, nil
}

// UUID produces the container's stable identifier.
func (c *Container) UUID() string { return c.content.UUID }

// Mutable reports whether the container still accepts mutations.
func (c *Container) Mutable() bool { return c.mutable }

// Content produces a copy of the container descriptor.
func (c *Container) Content() Content {
	content := c.content
	content.UsedSoftware = append([]Software(nil), c.content.UsedSoftware...)
	return content
}

// Meta produces a copy of the metadata record.
func (c *Container) Meta() Meta {
	meta := c.meta
	meta.Keywords = append([]string(nil), c.meta.Keywords...)
	return meta
}

// Get produces the decoded value of the named item.
// The reserved names produce the attribute records.
func (c *Container) Get(name string) (any, error) {
	switch name {
	case ContentName:
		return c.Content(), nil
	case MetaName:
		return c.Meta(), nil
	}
	if c.mutable {
		if v, ok := c.items[name]; ok {
			return v, nil
		}
		return nil, errors.Wrap(ErrNotFound, name)
	}
	b, ok := c.sealed[name]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	v, err := c.reg.Decode(Ext(name), b)
	return v, errors.Wrapf(err, "decoding %s", name)
}

// Set stores an item under a qualified name.
// The reserved names are rejected;
// edit the attribute records through SetMeta and the content mutators.
func (c *Container) Set(name string, v any) error {
	if !c.mutable {
		return errors.Wrapf(ErrImmutable, "setting %s", name)
	}
	if reserved(name) {
		return errors.Wrapf(ErrInvalidName, "%s is reserved", name)
	}
	if err := checkName(name); err != nil {
		return err
	}
	c.items[name] = v
	c.touch()
	return nil
}

// Delete removes the named item.
func (c *Container) Delete(name string) error {
	if !c.mutable {
		return errors.Wrapf(ErrImmutable, "deleting %s", name)
	}
	if reserved(name) {
		return errors.Wrapf(ErrInvalidName, "%s is reserved", name)
	}
	if _, ok := c.items[name]; !ok {
		return errors.Wrap(ErrNotFound, name)
	}
	delete(c.items, name)
	c.touch()
	return nil
}

// Contains reports whether the container holds the named item.
func (c *Container) Contains(name string) bool {
	if name == ContentName || name == MetaName {
		return true
	}
	if c.mutable {
		_, ok := c.items[name]
		return ok
	}
	_, ok := c.sealed[name]
	return ok
}

// Names produces all qualified item names,
// ordered by part and then by item name.
// The reserved records sort with the other root entries.
func (c *Container) Names() []string {
	names := []string{ContentName, MetaName}
	if c.mutable {
		for name := range c.items {
			names = append(names, name)
		}
	} else {
		for name := range c.sealed {
			names = append(names, name)
		}
	}
	sortNames(names)
	return names
}

// SetMeta replaces the metadata record.
func (c *Container) SetMeta(meta Meta) error {
	if !c.mutable {
		return errors.Wrap(ErrImmutable, "setting meta")
	}
	if err := validateAndDefault(&c.content, &meta, c.defaults); err != nil {
		return err
	}
	c.meta = meta
	c.touch()
	return nil
}

// SetContainerType replaces the container type descriptor.
func (c *Container) SetContainerType(ct ContainerType) error {
	if !c.mutable {
		return errors.Wrap(ErrImmutable, "setting container type")
	}
	content := c.content
	content.ContainerType = ct
	if err := validateAndDefault(&content, &c.meta, c.defaults); err != nil {
		return err
	}
	c.content = content
	c.touch()
	return nil
}

// SetComplete marks a non-static container as complete or multi-step.
// A complete container's remote copy becomes permanent once accepted.
func (c *Container) SetComplete(complete bool) error {
	if !c.mutable {
		return errors.Wrap(ErrImmutable, "setting complete")
	}
	c.content.Complete = complete
	c.touch()
	return nil
}

// SetReplaces links this container as the successor of a predecessor dataset.
func (c *Container) SetReplaces(id string) error {
	if !c.mutable {
		return errors.Wrap(ErrImmutable, "setting replaces")
	}
	if id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return errors.Wrapf(ErrSchemaViolation, "replaces %q: %s", id, err)
		}
	}
	c.content.Replaces = id
	c.touch()
	return nil
}

// AddSoftware appends an entry to the used-software list.
func (c *Container) AddSoftware(sw Software) error {
	if !c.mutable {
		return errors.Wrap(ErrImmutable, "adding software")
	}
	content := c.content
	content.UsedSoftware = append(append([]Software(nil), c.content.UsedSoftware...), sw)
	if err := validateAndDefault(&content, &c.meta, c.defaults); err != nil {
		return err
	}
	c.content = content
	c.touch()
	return nil
}

// Touch refreshes the modification time.
// Callers retrying a multi-step upload use it to satisfy
// the strictly-increasing-timestamp rule.
func (c *Container) Touch() error {
	if !c.mutable {
		return errors.Wrap(ErrImmutable, "touching")
	}
	c.touch()
	return nil
}

func (c *Container) touch() {
	now := Now()
	if now.After(c.content.Modified.Time) {
		c.content.Modified = now
	}
}

// Seal transitions the container to the immutable state,
// encoding every item through the codec registry.
// Sealing an immutable container is a no-op.
func (c *Container) Seal() error {
	if !c.mutable {
		return nil
	}
	sealed := make(map[string][]byte, len(c.items))
	for name, v := range c.items {
		b, err := c.reg.Encode(Ext(name), v)
		if err != nil {
			return errors.Wrapf(err, "encoding %s", name)
		}
		sealed[name] = b
	}
	c.sealed = sealed
	c.items = nil
	c.mutable = false
	return nil
}

// Entries seals the container and produces its full set of archive entries:
// the attribute records, the optional license text, and every item,
// each encoded to bytes.
func (c *Container) Entries() (map[string][]byte, error) {
	if err := c.Seal(); err != nil {
		return nil, err
	}
	entries := make(map[string][]byte, len(c.sealed)+3)
	for name, b := range c.sealed {
		buf := make([]byte, len(b))
		copy(buf, b)
		entries[name] = buf
	}

	rawContent, err := c.reg.Encode("json", c.content)
	if err != nil {
		return nil, errors.Wrap(err, "encoding content record")
	}
	entries[ContentName] = rawContent

	rawMeta, err := c.reg.Encode("json", c.meta)
	if err != nil {
		return nil, errors.Wrap(err, "encoding meta record")
	}
	entries[MetaName] = rawMeta

	if c.meta.License != "" {
		entries[LicenseName] = []byte(c.meta.License)
	}
	return entries, nil
}

// Release forks a mutable container from the current content:
// a fresh identifier and lineage, with items carried over by value.
// The replaces link, timestamps, hash, and model version are cleared
// and re-defaulted; the source container is unaffected.
func (c *Container) Release() (*Container, error) {
	items, err := c.copyItems()
	if err != nil {
		return nil, err
	}

	content := c.Content()
	content.UUID = uuid.NewString()
	content.Replaces = ""
	content.Created = Timestamp{}
	content.Modified = Timestamp{}
	content.Hash = ""
	content.Static = false
	content.ModelVersion = ""

	meta := c.Meta()
	if err := validateAndDefault(&content, &meta, c.defaults); err != nil {
		return nil, err
	}

	return &Container{
		content:  content,
		meta:     meta,
		reg:      c.reg,
		defaults: c.defaults,
		mutable:  true,
		items:    items,
	}, nil
}

// copyItems produces the items as decoded values,
// decoupled from the container's own buffers
// by a round trip through the codec registry.
func (c *Container) copyItems() (map[string]any, error) {
	items := make(map[string]any)
	if c.mutable {
		for name, v := range c.items {
			b, err := c.reg.Encode(Ext(name), v)
			if err != nil {
				return nil, errors.Wrapf(err, "encoding %s", name)
			}
			copied, err := c.reg.Decode(Ext(name), b)
			if err != nil {
				return nil, errors.Wrapf(err, "decoding %s", name)
			}
			items[name] = copied
		}
		return items, nil
	}
	for name, b := range c.sealed {
		v, err := c.reg.Decode(Ext(name), b)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s", name)
		}
		items[name] = v
	}
	return items, nil
}

// Adopt replaces the container's full state with other's.
// The sync engine uses it on the static-dedup path,
// where the remote store already holds an identical dataset.
func (c *Container) Adopt(other *Container) error {
	if err := other.Seal(); err != nil {
		return err
	}
	c.content = other.Content()
	c.meta = other.Meta()
	c.mutable = false
	c.items = nil
	c.sealed = make(map[string][]byte, len(other.sealed))
	for name, b := range other.sealed {
		buf := make([]byte, len(b))
		copy(buf, b)
		c.sealed[name] = buf
	}
	return nil
}
