package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-fanout-nosql/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestStruct_ReportsJSONNames(t *testing.T) {
	err := Struct(domain.CommentRecord{})

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	assert.Contains(t, err.Error(), "field 'author_id' failed 'required'")
	assert.Contains(t, err.Error(), "field 'content_ref' failed 'required'")
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(domain.PushChannelRequest{Token: "tok"}))
}

func TestStruct_Max(t *testing.T) {
	err := Struct(domain.PushChannelRequest{Token: strings.Repeat("x", 4097)})
	assert.Contains(t, err.Error(), "field 'token' failed 'max'")
}
