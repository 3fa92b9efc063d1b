package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	errorLabel = color.New(color.FgRed, color.Bold)
	codeLabel  = color.New(color.FgWhite, color.Bold)
	keyLabel   = color.New(color.FgCyan)
	hintLabel  = color.New(color.FgCyan)
	causeLabel = color.New(color.FgHiBlack)
)

// DisableColors turns colored output off, e.g. when stderr is not a
// terminal.
func DisableColors() { color.NoColor = true }

// EnableColors turns colored output on.
func EnableColors() { color.NoColor = false }

// Format renders e for a terminal.
func (e *Error) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(errorLabel.Sprint("ERROR "))
		b.WriteString(codeLabel.Sprint(e.Code + ": "))
	} else {
		b.WriteString(errorLabel.Sprint("ERROR: "))
	}
	b.WriteString(e.Message)
	b.WriteString("\n\n")

	if e.Key != "" {
		b.WriteString("  ")
		b.WriteString(keyLabel.Sprint(e.Key))
		b.WriteString("\n\n")
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Wrapped != nil {
		b.WriteString("  ")
		b.WriteString(causeLabel.Sprint("Cause: "))
		b.WriteString(e.Wrapped.Error())
		b.WriteString("\n\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(hintLabel.Sprint("Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n\n")
	}

	return b.String()
}

// FormatCompact renders e on one line.
func (e *Error) FormatCompact() string {
	return e.Error()
}

type jsonError struct {
	Code       string   `json:"code,omitempty"`
	Category   Category `json:"category"`
	Message    string   `json:"message"`
	Detail     string   `json:"detail,omitempty"`
	Key        string   `json:"key,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Cause      string   `json:"cause,omitempty"`
}

// FormatJSON renders e as a JSON object.
func (e *Error) FormatJSON() string {
	je := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Key:        e.Key,
		Suggestion: e.Suggestion,
	}
	if e.Wrapped != nil {
		je.Cause = e.Wrapped.Error()
	}
	b, _ := json.Marshal(je)
	return string(b)
}

// Fprint writes err to w: coded errors formatted, joined errors one by
// one, anything else as a plain ERROR line.
func Fprint(w io.Writer, err error) {
	if err == nil {
		return
	}
	if e, ok := err.(*Error); ok {
		fmt.Fprint(w, e.Format())
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			Fprint(w, inner)
		}
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", errorLabel.Sprint("ERROR:"), err.Error())
}

func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
