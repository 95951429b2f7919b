package heartwolf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer

	var l, err = NewLogger(&buf, LogOptions{Format: "json", Level: "debug"})
	require.NoError(t, err)
	l.Debug("Lead off", "status", "00011")
	assert.Contains(t, buf.String(), `"msg":"Lead off"`)
	assert.Contains(t, buf.String(), `"status":"00011"`)

	buf.Reset()
	l, err = NewLogger(&buf, LogOptions{Format: "logfmt"})
	require.NoError(t, err)
	l.Debug("hidden")
	l.Info("Leads connected", "sample", 12)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=\"Leads connected\" sample=12")
}

func TestNewLoggerRejects(t *testing.T) {
	var _, err = NewLogger(nil, LogOptions{Level: "loud"})
	assert.Error(t, err)

	_, err = NewLogger(nil, LogOptions{Format: "xml"})
	assert.Error(t, err)
}
