package styles

import (
	"github.com/charmbracelet/glamour/ansi"
)

// VS Code Dark theme colors
const (
	VSCodeForeground = "#D4D4D4"
	VSCodeInlineCode = "#EACD53" // addresses
	VSCodeComment    = "#6A9955"
	VSCodeHeading    = "#569CD6"
	VSCodeNumber     = "#B5CEA8"
	VSCodeLineNumber = "#858585"
)

// VSCodeDarkStyle renders reports in VS Code dark colors.
func VSCodeDarkStyle() ansi.StyleConfig {
	heading := func(prefix string) ansi.StyleBlock {
		return ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Prefix: prefix,
				Color:  stringPtr(VSCodeHeading),
				Bold:   boolPtr(true),
			},
		}
	}

	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr(VSCodeForeground),
			},
		},
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color:  stringPtr(VSCodeComment),
				Italic: boolPtr(true),
			},
			Indent:      uintPtr(1),
			IndentToken: stringPtr("│ "),
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				BlockSuffix: "\n",
				Color:       stringPtr(VSCodeHeading),
				Bold:        boolPtr(true),
			},
		},
		H1: heading("# "),
		H2: heading("## "),
		H3: heading("### "),
		Strong: ansi.StylePrimitive{
			Bold:  boolPtr(true),
			Color: stringPtr(VSCodeForeground),
		},
		HorizontalRule: ansi.StylePrimitive{
			Color:  stringPtr(VSCodeLineNumber),
			Format: "\n────────────────────────────────────────\n",
		},
		List: ansi.StyleList{
			LevelIndent: 2,
		},
		Item: ansi.StylePrimitive{
			BlockPrefix: "• ",
		},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr(VSCodeInlineCode),
			},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{
					Color: stringPtr(VSCodeNumber),
				},
				Margin: uintPtr(1),
			},
		},
		Table: ansi.StyleTable{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{
					Color: stringPtr(VSCodeForeground),
				},
			},
		},
		Text: ansi.StylePrimitive{
			Color: stringPtr(VSCodeForeground),
		},
	}
}
