package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/cuemby/herd/pkg/events"
	"github.com/cuemby/herd/pkg/types"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	accentStyle  = lipgloss.NewStyle().Foreground(purple)
	successStyle = lipgloss.NewStyle().Foreground(green)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	mutedStyle   = lipgloss.NewStyle().Foreground(dim)
)

func successMsg(format string, a ...any) string {
	return successStyle.Render("✓") + " " + fmt.Sprintf(format, a...)
}

func infoMsg(format string, a ...any) string {
	return accentStyle.Render("●") + " " + fmt.Sprintf(format, a...)
}

// eventLine renders one progress line for a lifecycle event
func eventLine(e *events.Event) string {
	switch e.Type {
	case events.EventNodeRemoved, events.EventServiceRemoved:
		return successMsg("%s", e.Message)
	case events.EventNodeDown, events.EventNodeStopped, events.EventNodeLeft:
		return warnStyle.Render("●") + " " + e.Message
	default:
		return infoMsg("%s", e.Message)
	}
}

// machineCell colors a machine state
func machineCell(s types.MachineState) string {
	switch s {
	case types.MachineRunning:
		return successStyle.Render(string(s))
	case types.MachineStopped:
		return warnStyle.Render(string(s))
	case types.MachineAbsent:
		return errorStyle.Render(string(s))
	}
	return mutedStyle.Render(string(s))
}

// membershipCell colors a membership state
func membershipCell(s types.MembershipState) string {
	switch s {
	case types.MembershipReady:
		return successStyle.Render(string(s))
	case types.MembershipDown:
		return errorStyle.Render(string(s))
	}
	return mutedStyle.Render(string(s))
}

// renderTable renders a styled table with rounded borders
func renderTable(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().
		Foreground(purple).
		Bold(true).
		Padding(0, 1)

	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	return t.Render()
}

// nodeRows converts node listings to table rows
func nodeRows(nodes []types.NodeInfo) [][]string {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{
			n.Hostname(),
			string(n.ID.Role),
			machineCell(n.Machine),
			membershipCell(n.Membership),
		})
	}
	return rows
}

// section prints a "--- title ---" block
func section(title, body string) string {
	return fmt.Sprintf("--- %s ---\n%s\n", title, strings.TrimRight(body, "\n"))
}
