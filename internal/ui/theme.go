package ui

import "github.com/charmbracelet/lipgloss"

// Theme bundles the lipgloss styles for one color scheme. The client ships a
// light and a dark theme and can flip between them at runtime.
type Theme struct {
	Name string

	Title        lipgloss.Style
	Header       lipgloss.Style
	MyBubble     lipgloss.Style
	OtherBubble  lipgloss.Style
	Sender       lipgloss.Style
	Timestamp    lipgloss.Style
	Edited       lipgloss.Style
	ReadTick     lipgloss.Style
	SentTick     lipgloss.Style
	Online       lipgloss.Style
	Offline      lipgloss.Style
	Error        lipgloss.Style
	Notice       lipgloss.Style
	Help         lipgloss.Style
	Banner       lipgloss.Style
	Selected     lipgloss.Style
	FileLink     lipgloss.Style
	InputPrompt  lipgloss.Style
	EmojiPalette lipgloss.Style
}

func LightTheme() Theme {
	return Theme{
		Name:         "light",
		Title:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#6200ee")),
		Header:       lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#eeeeee")).Padding(0, 1),
		MyBubble:     lipgloss.NewStyle().Background(lipgloss.Color("#DCF8C6")).Foreground(lipgloss.Color("#000000")).Padding(0, 1),
		OtherBubble:  lipgloss.NewStyle().Background(lipgloss.Color("#FFFFFF")).Foreground(lipgloss.Color("#000000")).Padding(0, 1),
		Sender:       lipgloss.NewStyle().Bold(true),
		Timestamp:    lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
		Edited:       lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Italic(true),
		ReadTick:     lipgloss.NewStyle().Foreground(lipgloss.Color("#007AFF")),
		SentTick:     lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")),
		Online:       lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		Offline:      lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Error:        lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")),
		Notice:       lipgloss.NewStyle().Foreground(lipgloss.Color("#1a4f8b")),
		Help:         lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Banner:       lipgloss.NewStyle().Background(lipgloss.Color("#03dac4")).Foreground(lipgloss.Color("#000000")).Padding(0, 1),
		Selected:     lipgloss.NewStyle().Reverse(true),
		FileLink:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6200ee")).Underline(true),
		InputPrompt:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6200ee")),
		EmojiPalette: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

func DarkTheme() Theme {
	return Theme{
		Name:         "dark",
		Title:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#BB86FC")),
		Header:       lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#383838")).Padding(0, 1),
		MyBubble:     lipgloss.NewStyle().Background(lipgloss.Color("#4CAF50")).Foreground(lipgloss.Color("#FFFFFF")).Padding(0, 1),
		OtherBubble:  lipgloss.NewStyle().Background(lipgloss.Color("#545F67")).Foreground(lipgloss.Color("#FFFFFF")).Padding(0, 1),
		Sender:       lipgloss.NewStyle().Bold(true),
		Timestamp:    lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		Edited:       lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Italic(true),
		ReadTick:     lipgloss.NewStyle().Foreground(lipgloss.Color("#03DAC6")),
		SentTick:     lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		Online:       lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		Offline:      lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Error:        lipgloss.NewStyle().Foreground(lipgloss.Color("#CF6679")),
		Notice:       lipgloss.NewStyle().Foreground(lipgloss.Color("#E0E0E0")),
		Help:         lipgloss.NewStyle().Foreground(lipgloss.Color("#777777")),
		Banner:       lipgloss.NewStyle().Background(lipgloss.Color("#03DAC6")).Foreground(lipgloss.Color("#000000")).Padding(0, 1),
		Selected:     lipgloss.NewStyle().Reverse(true),
		FileLink:     lipgloss.NewStyle().Foreground(lipgloss.Color("#BB86FC")).Underline(true),
		InputPrompt:  lipgloss.NewStyle().Foreground(lipgloss.Color("#BB86FC")),
		EmojiPalette: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}
