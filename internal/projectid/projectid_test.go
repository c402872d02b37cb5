package projectid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_SanitizesBaseName(t *testing.T) {
	id := For("/home/user/My-Project!!")
	assert.Contains(t, id, "my_project")
}

func TestFor_DropsDisallowedRunes(t *testing.T) {
	id := For("/home/user/My Project!!")
	assert.Contains(t, id, "myproject")
}

func TestFor_FallsBackToHashForUnicodeOnlyBase(t *testing.T) {
	id := For("/home/user/日本語")
	assert.Regexp(t, `^h_[0-9a-f]{8}$`, id)
}

func TestFor_DifferentRootsNeverCollide(t *testing.T) {
	a := For("/work/service")
	b := For("/other/service")
	assert.NotEqual(t, a, b)
}
