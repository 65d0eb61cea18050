package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/lattice-dev/lattice/internal/errs"
	"github.com/muesli/termenv"
)

func init() {
	// Disable ANSI styling outright on dumb terminals/pipes, the same
	// profile check glamour and lipgloss use internally, so --json runs
	// and CI logs never end up with stray escape codes.
	if termenv.EnvColorProfile() == termenv.Ascii {
		color.NoColor = true
	}
}

// envelope is the JSON-mode response shape (spec.md §6.3).
type envelope struct {
	OK    bool            `json:"ok"`
	Data  any             `json:"data,omitempty"`
	Error *envelopeError  `json:"error,omitempty"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// printData emits a success result, either as a JSON envelope or via
// render in human mode.
func printData(data any, render func()) {
	if jsonOutput {
		env := envelope{OK: true, Data: data}
		out, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			printError(err)
			os.Exit(errs.ExitCode(err))
		}
		fmt.Println(string(out))
		return
	}
	render()
}

// printError writes err to stderr (human mode) or stdout (JSON mode,
// per spec.md §6.3's envelope contract).
func printError(err error) {
	code := errs.CodeOf(err)
	msg := err.Error()
	if jsonOutput {
		env := envelope{OK: false, Error: &envelopeError{Code: string(code), Message: msg}}
		out, _ := json.MarshalIndent(env, "", "  ")
		fmt.Println(string(out))
		return
	}
	red := color.New(color.FgRed).SprintFunc()
	if code != "" {
		fmt.Fprintf(os.Stderr, "%s %s: %s\n", red("error"), code, msg)
	} else {
		fmt.Fprintf(os.Stderr, "%s %s\n", red("error"), msg)
	}
}

// ok prints the one-word "ok" confirmation quiet mode and single-entity
// writes use (spec.md §6.3 "Quiet mode: ok on single-entity writes").
func ok() {
	if !jsonOutput {
		fmt.Println("ok")
	}
}

var bold = color.New(color.Bold).SprintFunc()
