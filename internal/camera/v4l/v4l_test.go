package v4l

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vbonduro/cashreg/internal/domain"
)

func TestOpenMissingDevice(t *testing.T) {
	src, err := Open(filepath.Join(t.TempDir(), "video9"), 640, 480)
	assert.Nil(t, src)
	assert.ErrorIs(t, err, domain.ErrDevice)
}
