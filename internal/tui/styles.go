package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Padding(0, 1)

	statusStyles = map[string]lipgloss.Style{
		"running":   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		"completed": lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		"failed":    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}

	activeTab   = lipgloss.NewStyle().Bold(true).Underline(true)
	inactiveTab = mutedStyle
)
