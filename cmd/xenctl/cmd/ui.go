package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3C3C3C")).
			Padding(0, 1)

	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197")).Bold(true)

	deliveredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	retryingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C00"))
)

type UI struct {
	Model tea.Model
}

func NewUI(model tea.Model) *UI {
	return &UI{
		Model: model,
	}
}

func (u *UI) Run() error {
	p := tea.NewProgram(u.Model)
	_, err := p.Run()
	return err
}
