package sse

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Send(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWriter(bufio.NewWriter(&buf))

	require.NoError(t, writer.Send(EventAnswerStart, map[string]string{"session_id": "s1"}))
	require.NoError(t, writer.Send(EventAnswerDelta, map[string]string{"text": "hello"}))

	out := buf.String()
	assert.Equal(t, "event: answer_start\ndata: {\"session_id\":\"s1\"}\n\nevent: answer_delta\ndata: {\"text\":\"hello\"}\n\n", out)
}

func TestWriter_SendRejectsUnserializablePayload(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWriter(bufio.NewWriter(&buf))

	err := writer.Send(EventError, map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}
