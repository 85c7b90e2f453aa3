package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// form is a column of text inputs submitted together.
type form struct {
	title  string
	inputs []textinput.Model
	labels []string
	focus  int
	submit func(values []string) tea.Cmd
}

func newForm(title string, submit func([]string) tea.Cmd, labels ...string) *form {
	f := &form{title: title, labels: labels, submit: submit}
	for _, label := range labels {
		in := textinput.New()
		in.Prompt = "› "
		in.Placeholder = strings.ToLower(label)
		in.CharLimit = 128
		f.inputs = append(f.inputs, in)
	}
	if len(f.inputs) > 0 {
		f.inputs[0].Focus()
	}
	return f
}

// masked hides the input at i, for passwords.
func (f *form) masked(i int) *form {
	f.inputs[i].EchoMode = textinput.EchoPassword
	f.inputs[i].EchoCharacter = '•'
	return f
}

// with presets the value of the input at i.
func (f *form) with(i int, value string) *form {
	f.inputs[i].SetValue(value)
	return f
}

func (f *form) values() []string {
	values := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		values[i] = strings.TrimSpace(in.Value())
	}
	return values
}

func (f *form) setFocus(i int) {
	f.inputs[f.focus].Blur()
	f.focus = (i + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

// Update moves focus on tab/shift+tab, submits on enter in the last field and otherwise forwards
// the key to the focused input.
func (f *form) Update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		f.setFocus(f.focus + 1)
		return nil
	case "shift+tab", "up":
		f.setFocus(f.focus - 1)
		return nil
	case "enter":
		if f.focus < len(f.inputs)-1 {
			f.setFocus(f.focus + 1)
			return nil
		}
		return f.submit(f.values())
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *form) View() string {
	var b strings.Builder
	if f.title != "" {
		b.WriteString(styles.active.Render(f.title))
		b.WriteString("\n\n")
	}
	for i, in := range f.inputs {
		label := styles.label.Render(f.labels[i])
		if i == f.focus {
			label = styles.active.Render(f.labels[i])
		}
		fmt.Fprintf(&b, "%s\n%s\n\n", label, in.View())
	}
	return b.String()
}
