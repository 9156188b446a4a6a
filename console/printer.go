package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Printer writes user-facing messages, colored when the output is a terminal
type Printer struct {
	out   io.Writer
	in    *bufio.Reader
	color bool
}

// NewPrinter returns a Printer over stdin/stdout
func NewPrinter() *Printer {
	return NewPrinterWith(os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

func NewPrinterWith(in io.Reader, out io.Writer, color bool) *Printer {
	return &Printer{
		out:   out,
		in:    bufio.NewReader(in),
		color: color,
	}
}

func (p *Printer) print(attrs []int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.color {
		msg = Colorize(attrs...)(msg)
	}
	fmt.Fprintln(p.out, msg)
}

func (p *Printer) Plain(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) Info(format string, args ...any) {
	p.print([]int{FgCyan}, format, args...)
}

func (p *Printer) Warn(format string, args ...any) {
	p.print([]int{FgYellow}, format, args...)
}

func (p *Printer) Error(format string, args ...any) {
	p.print([]int{FgRed, Bold}, format, args...)
}

func (p *Printer) Success(format string, args ...any) {
	p.print([]int{FgGreen}, format, args...)
}

func (p *Printer) Dim(format string, args ...any) {
	p.print([]int{Dim}, format, args...)
}

// ReadLine prints prompt and reads one trimmed line; ctx cancellation abandons the read
func (p *Printer) ReadLine(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		done <- result{strings.TrimSpace(line), err}
	}()
	select {
	case r := <-done:
		return r.line, r.err
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	}
}

// Confirm asks a yes/no question; an empty answer selects def
func (p *Printer) Confirm(ctx context.Context, question string, def bool) (bool, error) {
	hint := " [y/N] "
	if def {
		hint = " [Y/n] "
	}
	answer, err := p.ReadLine(ctx, question+hint)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
