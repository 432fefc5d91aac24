package errors

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mapTranslator map[string]string

func (m mapTranslator) Get(key string, params map[string]string) string {
	msg, ok := m[key]
	if !ok {
		return key
	}
	if id, ok := params["id"]; ok {
		msg += " " + id
	}
	return msg
}

func TestKindsMatchSentinels(t *testing.T) {
	cases := []struct {
		err      *Error
		sentinel *Error
		status   int
	}{
		{Validation(KeyChunkNotSpecified), ErrValidation, http.StatusBadRequest},
		{NotFound(KeyChunkNotFound, "7"), ErrNotFound, http.StatusNotFound},
		{AccessDenied(), ErrAccessDenied, http.StatusForbidden},
		{Locked(KeyChunkLocked), ErrLocked, http.StatusLocked},
		{Internal(io.EOF), ErrInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Kind), func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.sentinel)
			assert.Equal(t, tc.status, tc.err.HTTPStatus())
		})
	}
	assert.NotErrorIs(t, AccessDenied(), ErrLocked)
}

func TestIsMatchesKey(t *testing.T) {
	err := NotFound(KeyChunkNotFound, "7")
	assert.ErrorIs(t, err, &Error{Kind: KindNotFound, Key: KeyChunkNotFound})
	assert.NotErrorIs(t, err, &Error{Kind: KindNotFound, Key: "tv_err_nf"})
}

func TestLocalize(t *testing.T) {
	tr := mapTranslator{KeyChunkNotFound: "Chunk not found with id:"}
	err := NotFound(KeyChunkNotFound, "42").Localize(tr)
	assert.Equal(t, "Chunk not found with id: 42", err.Error())

	unlocalized := NotFound(KeyChunkNotFound, "42")
	assert.Equal(t, "not_found: chunk_err_nfs (id=42)", unlocalized.Error())

	assert.Same(t, unlocalized, unlocalized.Localize(nil))
}

func TestInternalUnwraps(t *testing.T) {
	err := Internal(io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), io.ErrUnexpectedEOF.Error())
}

func TestAs(t *testing.T) {
	assert.Nil(t, As(nil))

	locked := Locked(KeyChunkLocked)
	assert.Same(t, locked, As(fmt.Errorf("wrap: %w", locked)))

	plain := errors.New("boom")
	got := As(plain)
	assert.Equal(t, KindInternal, got.Kind)
	assert.ErrorIs(t, got, plain)
}
