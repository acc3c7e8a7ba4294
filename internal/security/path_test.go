package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDescriptor(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	assert.NoError(t, ValidateDescriptor(valid))

	assert.Error(t, ValidateDescriptor(""))
	assert.Error(t, ValidateDescriptor("short"))
	assert.Error(t, ValidateDescriptor(strings.ToUpper(valid)), "uppercase hex is rejected")
	assert.Error(t, ValidateDescriptor(valid[:63]+"g"))
	assert.Error(t, ValidateDescriptor("../"+valid))
}

func TestValidateFilePath(t *testing.T) {
	assert.NoError(t, ValidateFilePath("config.json"))
	assert.NoError(t, ValidateFilePath("/etc/chatvault/config.json"))

	assert.Error(t, ValidateFilePath(""))
	assert.Error(t, ValidateFilePath("../secrets"))
	assert.Error(t, ValidateFilePath("media/../../etc/passwd"))
}

func TestValidateFilePathWithBase(t *testing.T) {
	assert.NoError(t, ValidateFilePathWithBase("photo.jpg", "/var/media"))
	assert.NoError(t, ValidateFilePathWithBase(".", "/var/media"))

	assert.Error(t, ValidateFilePathWithBase("../outside", "/var/media"))
	assert.Error(t, ValidateFilePathWithBase("", "/var/media"))
}
