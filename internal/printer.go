package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/cuire/npmnuke/internal/nodemodules"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// GetLocalePrinter returns a message printer for the user's locale
func GetLocalePrinter() *message.Printer {
	return message.NewPrinter(getUserLocale())
}

// PrettyPrintInt renders a count with the printer's digit grouping.
func PrettyPrintInt(printer *message.Printer, input int) string {
	return printer.Sprintf("%d", input)
}

// PrettyPrintMegabytes renders a byte count as localized binary megabytes
// with two decimals, e.g. "1,024.00 MB".
func PrettyPrintMegabytes(printer *message.Printer, bytes int64) string {
	return printer.Sprintf("%.2f MB", nodemodules.Megabytes(bytes))
}

// FormatMegabytes is the locale independent form used in plain text output.
func FormatMegabytes(bytes int64) string {
	return fmt.Sprintf("%.2f MB", nodemodules.Megabytes(bytes))
}

// PrettyPrintBytes picks the largest binary unit that keeps the value above one
func PrettyPrintBytes(bytes uint64) string {
	const unit = 1024

	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := uint64(unit), 0

	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	const suffixes = "KMGTPE"

	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), suffixes[exp])
}

func getUserLocale() language.Tag {
	locale := ""

	for _, variable := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if locale = os.Getenv(variable); locale != "" {
			break
		}
	}

	// "en_US.UTF-8" and "C" are common, only the language part parses
	locale, _, _ = strings.Cut(locale, ".")

	if locale == "" || locale == "C" || locale == "POSIX" {
		return language.English
	}

	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))

	if err != nil {
		return language.English
	}

	return tag
}
