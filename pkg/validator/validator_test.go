package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/newslens/pkg/errors"
)

type sourceForm struct {
	Name    string  `json:"name" validate:"required,trimmed"`
	FeedURL string  `json:"feed_url" validate:"required,feedurl"`
	Weight  float64 `json:"weight" validate:"gte=0,lte=2"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(&sourceForm{Name: "Wire", FeedURL: "https://wire.example.com/rss", Weight: 1}))

	err := Struct(&sourceForm{Name: " Wire", FeedURL: "ftp://wire.example.com", Weight: 3})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNewsValidation.Code))
	assert.Contains(t, err.Error(), "name must not have leading or trailing spaces")
	assert.Contains(t, err.Error(), "feed_url must be an absolute http(s) URL")
	assert.Contains(t, err.Error(), "weight")
}

func TestStructRequired(t *testing.T) {
	err := Struct(&sourceForm{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is a required field")
	assert.Contains(t, err.Error(), "feed_url is a required field")
}

func TestStructWithLang(t *testing.T) {
	err := New().StructWithLang(&sourceForm{Name: "Wire", FeedURL: "mailto:x"}, LangZH)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed_url必须是完整的 http(s) 地址")
}
