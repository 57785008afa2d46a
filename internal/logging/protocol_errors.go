// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"frostline/cli/internal/sferr"
)

// FormatExecError formats a statement execution failure in a user-friendly
// way, keyed off the error kind. Statement text never appears in the output;
// only the masked technical detail does.
func FormatExecError(err error) string {
	if err == nil {
		return ""
	}

	var builder strings.Builder

	kind := sferr.KindOf(err)
	switch kind {
	case sferr.QueryCanceled:
		builder.WriteString(pterm.NewStyle(pterm.FgYellow, pterm.Bold).Sprint("Query Canceled"))
		builder.WriteString("\n\n")
		builder.WriteString("The query was canceled before it finished.\n")
		builder.WriteString("This happens when:\n")
		builder.WriteString("  • You interrupted the query (Ctrl+C)\n")
		builder.WriteString("  • The configured query timeout elapsed\n")

	case sferr.SessionExpired, sferr.NotLoggedIn:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Authentication Required"))
		builder.WriteString("\n\n")
		builder.WriteString("Your session with Frostline is no longer valid.\n")
		builder.WriteString("To fix this:\n")
		builder.WriteString("  • Run 'frostline connect' to open a new session\n")

	case sferr.TransportFailure:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Query Failed"))
		builder.WriteString("\n\n")
		builder.WriteString("The Frostline service rejected or failed the query.\n")
		if code := sferr.CodeOf(err); code != "" {
			builder.WriteString(fmt.Sprintf("Service error code: %s\n", code))
		}

	case sferr.StatementClosed, sferr.AlreadyRunningQuery:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Statement Unusable"))
		builder.WriteString("\n\n")
		builder.WriteString("This statement handle cannot run the query.\n")
		builder.WriteString("A failed or closed statement is retired permanently;\n")
		builder.WriteString("open a new statement to retry.\n")

	case sferr.InternalError, sferr.MalformedResponse:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Internal Error"))
		builder.WriteString("\n\n")
		builder.WriteString("The service returned a result the client could not process.\n")
		builder.WriteString("Possible reasons:\n")
		builder.WriteString("  • The service is being updated or restarted\n")
		builder.WriteString("  • A client/service version mismatch\n")

	default:
		builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Connection Lost"))
		builder.WriteString("\n\n")
		builder.WriteString("The connection to Frostline was interrupted unexpectedly.\n")
		builder.WriteString("This usually happens when:\n")
		builder.WriteString("  • Your internet connection was disrupted\n")
		builder.WriteString("  • A firewall or proxy closed the connection\n")
		builder.WriteString("  • The service is under maintenance\n")
	}

	builder.WriteString("\n")

	if kind == sferr.SessionExpired || kind == sferr.NotLoggedIn {
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Please run 'frostline connect' and try again"))
	} else {
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Please run 'frostline query' again with a new statement"))
	}

	builder.WriteString("\n")

	// Technical details, masked
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(msg)))
	}

	return builder.String()
}

// PresentExecError displays a formatted execution error.
func PresentExecError(err error) {
	fmt.Println()
	fmt.Println(FormatExecError(err))
	fmt.Println()
}
