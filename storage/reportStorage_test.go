package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKeyKeepsBaseNameUnderAppointment(t *testing.T) {
	key := ObjectKey("appt-1", "../../etc/blood work.pdf")
	assert.True(t, strings.HasPrefix(key, "appt-1/"))
	assert.True(t, strings.HasSuffix(key, "-blood work.pdf"))
	assert.NotContains(t, strings.TrimPrefix(key, "appt-1/"), "/")

	assert.True(t, strings.HasSuffix(ObjectKey("appt-1", `C:\scans\xray.png`), "-xray.png"))
	assert.True(t, strings.HasSuffix(ObjectKey("appt-1", ""), "-report"))
}
