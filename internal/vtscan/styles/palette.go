package styles

import (
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/exp/charmtone"
)

// Palette styles the plain-text report.
type Palette struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Address lipgloss.Style
	Count   lipgloss.Style
	Dim     lipgloss.Style
}

// NewPalette returns the report palette. With noColor every style renders
// its input unchanged.
func NewPalette(noColor bool) Palette {
	if noColor {
		plain := lipgloss.NewStyle()
		return Palette{Title: plain, Label: plain, Address: plain, Count: plain, Dim: plain}
	}
	return Palette{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(charmtone.Zest.Hex())),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Squid.Hex())),
		Address: lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Malibu.Hex())),
		Count:   lipgloss.NewStyle().Foreground(lipgloss.Color(charmtone.Guac.Hex())),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}
