package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	for _, f := range Fields {
		got, err := ParseField(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseField("Name")
	assert.Error(t, err)
}

func TestState_WithField(t *testing.T) {
	s := State{}.
		withField(FieldName, "Ann").
		withField(FieldEmail, "a@b.com").
		withField(FieldMessage, "Hi")

	assert.Equal(t, "Ann", s.Value(FieldName))
	assert.Equal(t, "a@b.com", s.Value(FieldEmail))
	assert.Equal(t, "Hi", s.Value(FieldMessage))
	for _, f := range Fields {
		assert.True(t, s.HasContent(f), f)
	}

	s = s.withField(FieldEmail, "")
	assert.False(t, s.HasContent(FieldEmail))
	assert.True(t, s.HasContent(FieldName))
	assert.True(t, s.HasContent(FieldMessage))
}

func TestState_WhitespaceCountsAsContent(t *testing.T) {
	s := State{}.withField(FieldMessage, " ")
	assert.True(t, s.HasContent(FieldMessage))
}

func TestState_LoadingTransitions(t *testing.T) {
	s := State{Name: "Ann"}
	assert.True(t, s.sending().IsFormLoading)
	assert.False(t, s.sending().settled().IsFormLoading)
	assert.Equal(t, "Ann", s.sending().settled().Name)
}

func TestState_Submission(t *testing.T) {
	s := State{Name: "Ann", Email: "a@b.com", Message: "Hi"}
	assert.Equal(t, Submission{Name: "Ann", Email: "a@b.com", Message: "Hi", Token: "T1"}, s.Submission("T1"))
}

func TestDecoration_UnknownField(t *testing.T) {
	var d Decoration
	d = d.set(Field("phone"), true)
	assert.Equal(t, Decoration(0), d)
	assert.False(t, d.Has(Field("phone")))
}

func TestDecorate(t *testing.T) {
	d := Decorate(FieldName, FieldMessage)
	assert.True(t, d.Has(FieldName))
	assert.False(t, d.Has(FieldEmail))
	assert.True(t, d.Has(FieldMessage))
	assert.Equal(t, State{}.withField(FieldName, "a").withField(FieldMessage, "b").Labels, d)
}
