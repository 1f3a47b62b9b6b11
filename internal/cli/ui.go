package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/phylomorph/pkg/edgechange"
)

// stdout receives every status line; tests swap it for a buffer.
var stdout io.Writer = os.Stdout

var (
	colorAccent = lipgloss.Color("36")
	colorOK     = lipgloss.Color("35")
	colorWarn   = lipgloss.Color("220")
	colorFail   = lipgloss.Color("167")
	colorLink   = lipgloss.Color("75")
	colorText   = lipgloss.Color("255")
	colorMuted  = lipgloss.Color("245")
	colorFaint  = lipgloss.Color("240")

	// Edge change classes, shared by the diff table and the player.
	colorEnter   = lipgloss.Color("114")
	colorExit    = lipgloss.Color("174")
	colorReorder = lipgloss.Color("179")
	colorRetopo  = lipgloss.Color("170")
)

var (
	StyleTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	StyleLink   = lipgloss.NewStyle().Foreground(colorLink).Underline(true)
	StyleDim    = lipgloss.NewStyle().Foreground(colorFaint)
	StyleValue  = lipgloss.NewStyle().Foreground(colorText)
	StyleNumber = lipgloss.NewStyle().Foreground(colorAccent)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorOK)
	styleIconError   = lipgloss.NewStyle().Foreground(colorFail)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorWarn)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorMuted)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorAccent)
	styleKey         = lipgloss.NewStyle().Foreground(colorMuted).Width(10)
	styleCommand     = lipgloss.NewStyle().Foreground(colorLink)
	styleCached      = lipgloss.NewStyle().Foreground(colorOK)
)

// changeClass is one column of the per-transition link counts.
type changeClass struct {
	label string
	color lipgloss.Color
}

var (
	classEnter   = changeClass{"enter", colorEnter}
	classExit    = changeClass{"exit", colorExit}
	classStill   = changeClass{"still", colorMuted}
	classReorder = changeClass{"reorder", colorReorder}
	classRetopo  = changeClass{"retopo", colorRetopo}
)

// render colours n, fading zero counts.
func (c changeClass) render(n int) string {
	if n == 0 {
		return StyleDim.Render(fmt.Sprint(n))
	}
	return lipgloss.NewStyle().Foreground(c.color).Render(fmt.Sprint(n))
}

// changeLine summarises link movement in one transition.
func changeLine(entered, exited int, s edgechange.Summary) string {
	parts := []struct {
		class changeClass
		n     int
	}{
		{classEnter, entered},
		{classExit, exited},
		{classStill, s.None},
		{classReorder, s.Reorder},
		{classRetopo, s.Retopo},
	}
	items := make([]string, len(parts))
	for i, p := range parts {
		items[i] = StyleDim.Render(p.class.label+" ") + p.class.render(p.n)
	}
	return strings.Join(items, StyleDim.Render(" · "))
}

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

func printIcon(style lipgloss.Style, icon, format string, args ...any) {
	fmt.Fprintln(stdout, style.Render(icon)+" "+fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) { printIcon(styleIconSuccess, iconSuccess, format, args...) }
func printError(format string, args ...any)   { printIcon(styleIconError, iconError, format, args...) }
func printWarning(format string, args ...any) { printIcon(styleIconWarning, iconWarning, format, args...) }
func printInfo(format string, args ...any)    { printIcon(styleIconInfo, iconInfo, format, args...) }

// printDetail prints an indented, muted line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a written output path.
func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, styleKey.Render(key)+" "+StyleValue.Render(value))
}

// printNextStep suggests a follow-up command.
func printNextStep(description, cmd string) {
	fmt.Fprintln(stdout, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

// runStats is the one-line summary printed after a command.
type runStats struct {
	trees, leaves int
	frames        int
	cached        bool
}

func printStats(s runStats) {
	fmt.Fprintln(stdout, "  "+s.String())
}

func (s runStats) String() string {
	parts := []string{StyleDim.Render(plural(s.trees, "tree")), StyleDim.Render(plural(s.leaves, "leaf"))}
	if s.frames > 0 {
		parts = append(parts, StyleDim.Render(plural(s.frames, "frame")))
	}
	if s.cached {
		parts = append(parts, styleCached.Render("cached"))
	}
	return strings.Join(parts, StyleDim.Render(" · "))
}

func plural(n int, noun string) string {
	switch {
	case n == 1:
		return "1 " + noun
	case noun == "leaf":
		return fmt.Sprintf("%d leaves", n)
	case strings.HasSuffix(noun, "y"):
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(noun, "y"))
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func printNewline() { fmt.Fprintln(stdout) }
