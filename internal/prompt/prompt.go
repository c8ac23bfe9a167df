// Package prompt implements interactive terminal prompts behind the
// Prompter interfaces the engine packages accept. It is the only package
// that knows a terminal UI library exists.
package prompt

import (
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/modelpush/modelpush/internal/creds"
)

// Terminal asks questions through interactive terminal forms.
type Terminal struct{}

// Input asks for a single line of text.
func (Terminal) Input(title, placeholder string) (string, error) {
	var value string

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(title).
			Placeholder(placeholder).
			Value(&value),
	))

	if err := form.Run(); err != nil {
		return "", err
	}

	return strings.TrimSpace(value), nil
}

// Secret asks for a value without echoing it. The value is never logged.
func (Terminal) Secret(title string) (string, error) {
	var value string

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(title).
			EchoMode(huh.EchoModePassword).
			Value(&value),
	))

	if err := form.Run(); err != nil {
		return "", err
	}

	return strings.TrimSpace(value), nil
}

// Select asks to pick one of options.
func (Terminal) Select(title string, options []string) (string, error) {
	opts := make([]huh.Option[string], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, o)
	}

	var value string

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(opts...).
			Value(&value),
	))

	if err := form.Run(); err != nil {
		return "", err
	}

	return value, nil
}

var _ creds.Prompter = Terminal{}
