package mime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeByPath(t *testing.T) {
	assert.Equal(t, "text/html", TypeByPath("/var/www/index.html"))
	assert.Equal(t, "text/html", TypeByPath("UPPER.HTML"))
	assert.Equal(t, "image/png", TypeByPath("logo.png"))
	assert.Equal(t, DefaultType, TypeByPath("binary.xyz"))
	assert.Equal(t, DefaultType, TypeByPath("noextension"))
}
