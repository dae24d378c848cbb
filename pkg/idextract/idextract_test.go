package idextract

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/acorndb/pkg/acorndberrors"
)

type withID struct {
	ID   string
	Name string
}

type withLowercaseKey struct {
	key  string
	Name string
}

type withKeyField struct {
	Key  string
	Name string
}

type selfIdentified struct {
	Slug string
	Name string
}

func (s selfIdentified) Identity() string { return s.Slug }

type noIDAtAll struct {
	Name string
}

type intID struct {
	ID   int
	Name string
}

func TestExtractFromIDField(t *testing.T) {
	id, err := Extract(withID{ID: "doc-1", Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)
}

func TestExtractFromKeyField(t *testing.T) {
	id, err := Extract(withKeyField{Key: "doc-2", Name: "b"})
	require.NoError(t, err)
	assert.Equal(t, "doc-2", id)
}

func TestExtractSkipsUnexportedField(t *testing.T) {
	_, err := Extract(withLowercaseKey{key: "hidden", Name: "c"})
	require.Error(t, err)
	kind, ok := acorndberrors.Of(err)
	require.True(t, ok)
	assert.Equal(t, acorndberrors.KindIDExtractionUnavailable, kind)
}

func TestExtractPrefersIdentifiedOverFields(t *testing.T) {
	id, err := Extract(selfIdentified{Slug: "my-slug", Name: "d"})
	require.NoError(t, err)
	assert.Equal(t, "my-slug", id)
}

func TestExtractNoRecognizedField(t *testing.T) {
	_, err := Extract(noIDAtAll{Name: "e"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, acorndberrors.IDExtractionUnavailable))
}

func TestExtractRejectsEmptyID(t *testing.T) {
	_, err := Extract(withID{ID: "", Name: "h"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, acorndberrors.InvalidID))
}

func TestExtractRejectsWhitespaceOnlyID(t *testing.T) {
	_, err := Extract(withID{ID: "  \t", Name: "i"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, acorndberrors.InvalidID))
}

func TestExtractRejectsWhitespaceOnlyIdentified(t *testing.T) {
	_, err := Extract(selfIdentified{Slug: "   ", Name: "j"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, acorndberrors.InvalidID))
}

func TestExtractIntegerID(t *testing.T) {
	id, err := Extract(intID{ID: 42, Name: "f"})
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestExtractPointerToStruct(t *testing.T) {
	id, err := Extract(&withID{ID: "doc-3", Name: "g"})
	require.NoError(t, err)
	assert.Equal(t, "doc-3", id)
}

func TestExtractNilPointer(t *testing.T) {
	var doc *withID
	_, err := Extract(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, acorndberrors.InvalidID))
}

func TestExtractCachesStrategyPerType(t *testing.T) {
	_, err := Extract(withID{ID: "doc-4"})
	require.NoError(t, err)
	_, ok := cache.Load(reflect.TypeOf(withID{}))
	assert.True(t, ok)
}
