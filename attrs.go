package zdc

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ModelVersion is the current version of the container data model.
// It is stamped into the content record of every new container.
const ModelVersion = "1.0.1"

// ContainerType identifies the kind of dataset a container holds.
// An ID refers to a registered type definition and requires a Version.
type ContainerType struct {
	Name    string `json:"name"`
	ID      string `json:"id,omitempty"`
	Version string `json:"version,omitempty"`
}

// Software is one entry of the list of programs
// that participated in producing a container's payload.
type Software struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	ID      string `json:"id,omitempty"`
	IDType  string `json:"idType,omitempty"`
}

// Content is the container descriptor,
// stored as the reserved root item content.json.
type Content struct {
	UUID          string        `json:"uuid"`
	Replaces      string        `json:"replaces,omitempty"`
	ContainerType ContainerType `json:"containerType"`
	Created       Timestamp     `json:"created"`
	Modified      Timestamp     `json:"modified"`
	Static        bool          `json:"static"`
	Complete      bool          `json:"complete"`
	Hash          string        `json:"hash,omitempty"`
	UsedSoftware  []Software    `json:"usedSoftware,omitempty"`
	ModelVersion  string        `json:"modelVersion"`
}

// Meta is the dataset metadata record,
// stored as the reserved root item meta.json.
type Meta struct {
	Author       string   `json:"author"`
	Email        string   `json:"email"`
	Organization string   `json:"organization,omitempty"`
	Comment      string   `json:"comment,omitempty"`
	Title        string   `json:"title"`
	Keywords     []string `json:"keywords,omitempty"`
	Description  string   `json:"description,omitempty"`
	Created      string   `json:"created,omitempty"`
	DOI          string   `json:"doi,omitempty"`
	License      string   `json:"license,omitempty"`
}

// Defaults supplies author identity for containers
// whose metadata record does not name one.
// See the config package for discovering defaults
// from the environment and the user's config file.
type Defaults struct {
	Author string
	Email  string
}

// toContent converts a decoded content.json value to a Content record.
// It accepts a Content, a *Content, or a generic decoded JSON object.
func toContent(v any) (Content, error) {
	switch c := v.(type) {
	case Content:
		return c, nil
	case *Content:
		return *c, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Content{}, errors.Wrapf(ErrSchemaViolation, "content record: %s", err)
	}
	var c Content
	if err := json.Unmarshal(b, &c); err != nil {
		return Content{}, errors.Wrapf(ErrSchemaViolation, "content record: %s", err)
	}
	return c, nil
}

// toMeta converts a decoded meta.json value to a Meta record.
func toMeta(v any) (Meta, error) {
	switch m := v.(type) {
	case Meta:
		return m, nil
	case *Meta:
		return *m, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Meta{}, errors.Wrapf(ErrSchemaViolation, "meta record: %s", err)
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, errors.Wrapf(ErrSchemaViolation, "meta record: %s", err)
	}
	return m, nil
}

// validateAndDefault checks the two attribute records,
// filling automatic and defaultable fields in place.
// It runs identically for new, file-loaded, and server-loaded containers:
// already-valid records pass through unchanged
// except for the fields it is defined to fill.
func validateAndDefault(content *Content, meta *Meta, defaults Defaults) error {
	if content.UUID == "" {
		content.UUID = uuid.NewString()
	} else if _, err := uuid.Parse(content.UUID); err != nil {
		return errors.Wrapf(ErrSchemaViolation, "uuid %q: %s", content.UUID, err)
	}
	if content.ContainerType.Name == "" {
		return errors.Wrap(ErrSchemaViolation, "containerType.name is required")
	}
	if strings.ContainsAny(content.ContainerType.Name, " \t\r\n") {
		return errors.Wrapf(ErrSchemaViolation, "containerType.name %q contains whitespace", content.ContainerType.Name)
	}
	if content.ContainerType.ID != "" && content.ContainerType.Version == "" {
		return errors.Wrap(ErrSchemaViolation, "containerType.id requires containerType.version")
	}
	for _, sw := range content.UsedSoftware {
		if sw.Name == "" || sw.Version == "" {
			return errors.Wrap(ErrSchemaViolation, "usedSoftware entries require name and version")
		}
		if sw.ID != "" && sw.IDType == "" {
			return errors.Wrapf(ErrSchemaViolation, "usedSoftware %s: id requires idType", sw.Name)
		}
	}
	if content.Static && content.Hash == "" {
		return errors.Wrap(ErrSchemaViolation, "static container requires a hash")
	}
	now := Now()
	if content.Created.IsZero() {
		content.Created = now
	}
	if content.Modified.IsZero() {
		content.Modified = now
	}
	if content.ModelVersion == "" {
		content.ModelVersion = ModelVersion
	}

	if meta.Author == "" {
		meta.Author = defaults.Author
	}
	if meta.Email == "" {
		meta.Email = defaults.Email
	}
	if meta.Author == "" {
		return errors.Wrap(ErrSchemaViolation, "meta.author is required")
	}
	if meta.Email == "" {
		return errors.Wrap(ErrSchemaViolation, "meta.email is required")
	}
	if meta.Title == "" {
		return errors.Wrap(ErrSchemaViolation, "meta.title is required")
	}
	return nil
}
