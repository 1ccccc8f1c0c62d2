package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/conn-castle/alpine-term/internal/install"
	"github.com/conn-castle/alpine-term/internal/messages"
)

var runFormFunc = func(form *huh.Form) error { return form.Run() }

// huhPrompter asks whether to retry a failed install or exit.
type huhPrompter struct {
	out io.Writer
}

// promptKeyMap binds both Esc and Ctrl+C to abort, which the prompt treats as exit.
func promptKeyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "exit"))
	km.Select.Filter.SetEnabled(false)
	km.Select.SetFilter.SetEnabled(false)
	km.Select.ClearFilter.SetEnabled(false)
	return km
}

// interruptToQuit maps interrupts to a normal quit so the form output is cleared.
func interruptToQuit(_ tea.Model, msg tea.Msg) tea.Msg {
	if _, ok := msg.(tea.InterruptMsg); ok {
		return tea.QuitMsg{}
	}
	return msg
}

// Recover implements install.Prompter.
func (p *huhPrompter) Recover(cause error) (install.Choice, error) {
	choice := install.ChoiceRetry
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title(messages.InstallErrorTitle).
				Description(fmt.Sprintf(messages.InstallErrorBodyFmt, cause)),
			huh.NewSelect[install.Choice]().
				Options(
					huh.NewOption(messages.InstallChoiceRetry, install.ChoiceRetry),
					huh.NewOption(messages.InstallChoiceExit, install.ChoiceAbandon),
				).
				Value(&choice),
		),
	)
	form.WithKeyMap(promptKeyMap())
	form.WithProgramOptions(
		tea.WithOutput(p.out),
		tea.WithFilter(interruptToQuit),
	)

	if err := runFormFunc(form); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return install.ChoiceAbandon, nil
		}
		return 0, err
	}
	return choice, nil
}
