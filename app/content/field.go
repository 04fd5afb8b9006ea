package content

import (
	"bytes"
	"encoding/json"
)

type presence uint8

const (
	absent presence = iota
	present
	null
)

// Field carries a value together with whether it was supplied at all.
// The zero value is unset; Set("") and Null() are both distinct from it.
type Field[T any] struct {
	value T
	state presence
}

func Set[T any](v T) Field[T] {
	return Field[T]{value: v, state: present}
}

func Null[T any]() Field[T] {
	return Field[T]{state: null}
}

// IsSet reports whether the field was supplied, including as null.
func (f Field[T]) IsSet() bool {
	return f.state != absent
}

func (f Field[T]) IsNull() bool {
	return f.state == null
}

// Get returns the value and whether a non-null value is present.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == present
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.state != present {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*f = Null[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Set(v)
	return nil
}

// PublishUpdate is a partial update of publish metadata. Only supplied fields are sent.
type PublishUpdate struct {
	Title             Field[string]          `json:"title"`
	Description       Field[string]          `json:"description"`
	ThumbnailSource   Field[ThumbnailSource] `json:"thumbnailSource"`
	ThumbnailURI      Field[string]          `json:"thumbnailUri"`
	PrimaryCategory   Field[Category]        `json:"primaryCategory"`
	SecondaryCategory Field[Category]        `json:"secondaryCategory"`
	Visible           Field[bool]            `json:"visible"`
}

type namedField struct {
	name  string
	field interface {
		IsSet() bool
		json.Marshaler
	}
}

func (u PublishUpdate) fields() []namedField {
	return []namedField{
		{"title", u.Title},
		{"description", u.Description},
		{"thumbnailSource", u.ThumbnailSource},
		{"thumbnailUri", u.ThumbnailURI},
		{"primaryCategory", u.PrimaryCategory},
		{"secondaryCategory", u.SecondaryCategory},
		{"visible", u.Visible},
	}
}

// Keys lists the names of supplied fields in a stable order.
func (u PublishUpdate) Keys() []string {
	keys := []string{}
	for _, f := range u.fields() {
		if f.field.IsSet() {
			keys = append(keys, f.name)
		}
	}
	return keys
}

func (u PublishUpdate) IsEmpty() bool {
	return len(u.Keys()) == 0
}

// WithoutVisibility returns a copy of u with visibility unset.
func (u PublishUpdate) WithoutVisibility() PublishUpdate {
	u.Visible = Field[bool]{}
	return u
}

// MarshalJSON emits only supplied fields.
func (u PublishUpdate) MarshalJSON() ([]byte, error) {
	m := map[string]json.RawMessage{}
	for _, f := range u.fields() {
		if !f.field.IsSet() {
			continue
		}
		b, err := f.field.MarshalJSON()
		if err != nil {
			return nil, err
		}
		m[f.name] = b
	}
	return json.Marshal(m)
}
