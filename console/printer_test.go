package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorize(t *testing.T) {
	assert.Equal(t, "", Color())
	assert.Equal(t, "\033[31;1m", Color(FgRed, Bold))
	assert.Equal(t, "\033[32mok 1\033[0m", Colorize(FgGreen)("ok %d", 1))
}

func TestPrinter(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrinterWith(strings.NewReader(""), out, false)
	p.Info("hello %s", "world")
	p.Error("failed")
	p.Plain("%d items", 2)
	assert.Equal(t, "hello world\nfailed\n2 items\n", out.String())

	out.Reset()
	p = NewPrinterWith(strings.NewReader(""), out, true)
	p.Success("done")
	assert.Equal(t, Colorize(FgGreen)("done")+"\n", out.String())
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	p := NewPrinterWith(strings.NewReader("y\n\nno\nYES"), &bytes.Buffer{}, false)

	ok, err := p.Confirm(ctx, "approve?", false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Confirm(ctx, "approve?", true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Confirm(ctx, "approve?", true)
	require.NoError(t, err)
	assert.False(t, ok)

	// last line without a newline
	ok, err = p.Confirm(ctx, "approve?", false)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = p.Confirm(ctx, "approve?", false)
	assert.Error(t, err)
}

func TestReadLineCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := NewPrinterWith(r, &bytes.Buffer{}, false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.ReadLine(ctx, "> ")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
