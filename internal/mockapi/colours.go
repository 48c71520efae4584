package mockapi

import "github.com/fatih/color"

var methodColors = map[string]*color.Color{
	"GET":    color.New(color.FgGreen),
	"POST":   color.New(color.FgBlue),
	"PUT":    color.New(color.FgCyan),
	"DELETE": color.New(color.FgYellow),
	"PATCH":  color.New(color.FgMagenta),
}

var (
	defaultMethodColor = color.New(color.FgHiBlack)
	statusOKColor      = color.New(color.FgGreen)
	statusClientColor  = color.New(color.FgYellow)
	statusServerColor  = color.New(color.FgRed)
)

func methodColor(method string) *color.Color {
	if c, ok := methodColors[method]; ok {
		return c
	}
	return defaultMethodColor
}

func statusColor(status int) *color.Color {
	switch {
	case status >= 500:
		return statusServerColor
	case status >= 400:
		return statusClientColor
	default:
		return statusOKColor
	}
}
