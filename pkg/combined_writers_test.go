package pkg

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestCombinedWriter_Write(t *testing.T) {
	sb1 := &strings.Builder{}
	initMessage := "already-here"
	sb1.WriteString(initMessage)
	sb2 := &strings.Builder{}

	cw := NewCombinedWriter(sb1, nil, sb2)
	require.NotNil(t, cw)
	assert.Len(t, cw.Writers, 2)

	msg1 := "a message"
	msg2 := "another message here"
	n, err := cw.Write([]byte(msg1))
	require.NoError(t, err)
	assert.Equal(t, len(msg1)*len(cw.Writers), n)
	n, err = cw.Write([]byte(msg2))
	require.NoError(t, err)
	assert.Equal(t, len(msg2)*len(cw.Writers), n)

	assert.Equal(t, initMessage+msg1+msg2, sb1.String())
	assert.Equal(t, msg1+msg2, sb2.String())
}

func TestCombinedWriter_Write_WithErrors(t *testing.T) {
	sb := &strings.Builder{}
	cw := NewCombinedWriter(&faultyWriter{msg: "disk full"}, sb, &faultyWriter{msg: "closed"})

	msg := "a message"
	n, err := cw.Write([]byte(msg))
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "closed")

	// written only to string builder
	assert.Equal(t, len(msg), n)
	assert.Equal(t, msg, sb.String())
}

type faultyWriter struct {
	msg string
}

func (fw *faultyWriter) Write([]byte) (int, error) {
	return 0, errors.New(fw.msg)
}
