package errs

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatchingThroughWrapping(t *testing.T) {
	err := fmt.Errorf("上传失败: %w", Validation("no pairs found in %s", "faq.txt"))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrExternalService))
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "no pairs found in faq.txt")
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(KindIO, io.ErrUnexpectedEOF, "Failed to read PDF file")

	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, errors.Is(err, ErrIO))
	assert.Equal(t, "Failed to read PDF file: unexpected EOF", err.Error())
	assert.Nil(t, Wrap(KindIO, nil, "ignored"))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Validation("empty"):                   http.StatusBadRequest,
		Configuration("overlap"):              http.StatusBadRequest,
		Wrap(KindIO, io.EOF, "read"):          http.StatusBadRequest,
		NotFound("missing"):                   http.StatusNotFound,
		ExternalService("PERPLEXITY_API_KEY"): http.StatusInternalServerError,
		errors.New("boom"):                    http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
