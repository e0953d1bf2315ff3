// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides rich terminal output styling for the aqal CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// AQAL palette. Each quadrant has its own hue, the rest is neutral.
var (
	ColorInterior   = lipgloss.Color("#8E7CC3") // Upper left - violet
	ColorBehavioral = lipgloss.Color("#E69138") // Upper right - amber
	ColorCultural   = lipgloss.Color("#3D85C6") // Lower left - blue
	ColorSocial     = lipgloss.Color("#6AA84F") // Lower right - green

	ColorAccent = lipgloss.Color("#B4A7D6")
	ColorSlate  = lipgloss.Color("#5B6770")

	ColorSuccess = lipgloss.Color("#6AA84F")
	ColorWarning = lipgloss.Color("#F1C232")
	ColorError   = lipgloss.Color("#CC0000")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorInterior),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorAccent).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Output and ErrOutput receive everything the print helpers write.
var (
	Output    io.Writer = os.Stdout
	ErrOutput io.Writer = os.Stderr
)

// Title prints a styled title
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Fprintln(Output, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func Success(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(Output, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(Output, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(Output, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func Warning(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(ErrOutput, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(Output, "%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Fprintf(Output, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func Error(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(ErrOutput, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(Output, "%s %s\n", IconError.Render(), text)
	default:
		fmt.Fprintf(Output, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func Info(text string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintln(Output, text)
		return
	}
	fmt.Fprintf(Output, "%s %s\n", Styles.Muted.Render("│"), text)
}

// KeyValue prints an aligned "key: value" line.
func KeyValue(key string, value any) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(Output, "%s=%v\n", key, value)
		return
	}
	fmt.Fprintf(Output, "  %s %v\n", Styles.Muted.Render(fmt.Sprintf("%-16s", key+":")), value)
}

// Box prints text in a rounded box
func Box(title, content string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(Output, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(Output, Styles.Box.Width(60).Render(Styles.Title.Render(title)+"\n"+content))
}

// WarningBox prints text in a warning-styled box
func WarningBox(title, content string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(ErrOutput, "WARN %s: %s\n", title, content)
		return
	}
	fmt.Fprintln(Output, Styles.WarningBox.Width(60).Render(Styles.Warning.Bold(true).Render(title)+"\n"+content))
}

// ProgressBar renders value out of max as a bar of the given width.
//
// # Examples
//
//	ProgressBar(7, 10, 10) // "███████░░░  70%"
//
// # Limitations
//
// A non-positive max renders an empty bar. Values are clamped to [0, max].
func ProgressBar(value, max float64, width int) string {
	pct := 0.0
	if max > 0 {
		pct = value / max
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	if GetPersonality().Level == PersonalityMachine {
		return fmt.Sprintf("%.0f%%", pct*100)
	}
	if width < 0 {
		width = 0
	}
	filled := int(pct*float64(width) + 0.5)
	bar := Styles.Success.Render(strings.Repeat("█", filled)) +
		Styles.Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}
