// Package idextract derives a document's identity string without requiring
// the caller to thread an id alongside every document. A document can either
// implement Identified directly, or expose one of a small set of recognized
// struct fields; the chosen strategy is cached per reflect.Type so repeated
// Puts of the same document type pay the reflection cost once.
package idextract

import (
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/cuemby/acorndb/pkg/acorndberrors"
)

// Identified lets a document provide its own id, bypassing field lookup
// entirely.
type Identified interface {
	Identity() string
}

// fieldNames is the priority order of struct fields inspected when a
// document does not implement Identified.
var fieldNames = []string{"Id", "ID", "Key", "KEY", "id", "key"}

type strategy struct {
	// fieldIndex is the struct field index to read via reflection. Types
	// implementing Identified are resolved before any strategy lookup, so
	// no strategy is cached for them and implements is never set.
	fieldIndex int
	implements bool
}

var cache sync.Map // reflect.Type -> strategy

// Extract derives the identity string for doc. It first checks whether doc
// implements Identified, then falls back to a recognized id-like field.
func Extract(doc any) (string, error) {
	if doc == nil {
		return "", acorndberrors.New(acorndberrors.KindInvalidID, "idextract.Extract", acorndberrors.InvalidID)
	}

	if ident, ok := doc.(Identified); ok {
		id := ident.Identity()
		if strings.TrimSpace(id) == "" {
			return "", acorndberrors.New(acorndberrors.KindInvalidID, "idextract.Extract", acorndberrors.InvalidID)
		}
		return id, nil
	}

	v := reflect.ValueOf(doc)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", acorndberrors.New(acorndberrors.KindInvalidID, "idextract.Extract", acorndberrors.InvalidID)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", acorndberrors.New(acorndberrors.KindIDExtractionUnavailable, "idextract.Extract", acorndberrors.IDExtractionUnavailable)
	}

	st, ok := lookupStrategy(v.Type())
	if !ok {
		return "", acorndberrors.New(acorndberrors.KindIDExtractionUnavailable, "idextract.Extract", acorndberrors.IDExtractionUnavailable)
	}

	field := v.Field(st.fieldIndex)
	id, err := stringify(field)
	if err != nil {
		return "", acorndberrors.New(acorndberrors.KindInvalidID, "idextract.Extract", acorndberrors.InvalidID)
	}
	if strings.TrimSpace(id) == "" {
		return "", acorndberrors.New(acorndberrors.KindInvalidID, "idextract.Extract", acorndberrors.InvalidID)
	}
	return id, nil
}

func lookupStrategy(t reflect.Type) (strategy, bool) {
	if cached, ok := cache.Load(t); ok {
		return cached.(strategy), true
	}

	for _, name := range fieldNames {
		if f, ok := t.FieldByName(name); ok && f.IsExported() {
			st := strategy{fieldIndex: f.Index[0]}
			cache.Store(t, st)
			return st, true
		}
	}
	return strategy{}, false
}

func stringify(v reflect.Value) (string, error) {
	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), nil
	default:
		return "", acorndberrors.IDExtractionUnavailable
	}
}
