package profanity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_CleanTextUnchanged(t *testing.T) {
	r := Validate("good morning everyone")
	assert.False(t, r.ContainsProfanity)
	assert.Equal(t, "good morning everyone", r.CleanedText)
}

func TestValidate_CensorsMatch(t *testing.T) {
	r := Validate("what the hell")
	assert.True(t, r.ContainsProfanity)
	assert.Equal(t, "what the ****", r.CleanedText)
}

func TestValidate_CaseInsensitive(t *testing.T) {
	r := Validate("HELL no")
	assert.True(t, r.ContainsProfanity)
	assert.Equal(t, "**** no", r.CleanedText)
}

func TestValidate_WholeWordOnly(t *testing.T) {
	r := Validate("hello there")
	assert.False(t, r.ContainsProfanity, "hello contains hell as a substring but isn't a match")
}
