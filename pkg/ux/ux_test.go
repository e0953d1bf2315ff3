// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// capture swaps the output writers and the personality for one test.
func capture(t *testing.T, level PersonalityLevel) (stdout, stderr *bytes.Buffer) {
	t.Helper()
	origOut, origErr, origP := Output, ErrOutput, GetPersonality()
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	Output, ErrOutput = stdout, stderr
	SetPersonalityLevel(level)
	t.Cleanup(func() {
		Output, ErrOutput = origOut, origErr
		SetPersonality(origP)
	})
	return stdout, stderr
}

// =============================================================================
// Personality Tests
// =============================================================================

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		in   string
		want PersonalityLevel
	}{
		{"full", PersonalityFull},
		{"F", PersonalityFull},
		{"std", PersonalityStandard},
		{" minimal ", PersonalityMinimal},
		{"quiet", PersonalityMachine},
		{"json", PersonalityMachine},
		{"", PersonalityStandard},
		{"loud", PersonalityStandard},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePersonalityLevel(tt.in), "input %q", tt.in)
	}
}

func TestSetPersonalityLevel_TipsOnlyWhenFull(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityFull)
	assert.True(t, GetPersonality().ShowTips)
	SetPersonalityLevel(PersonalityMinimal)
	assert.False(t, GetPersonality().ShowTips)
}

func TestInitPersonality_Env(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	t.Setenv(PersonalityEnv, "minimal")
	InitPersonality()
	assert.Equal(t, PersonalityMinimal, GetPersonality().Level)
}

func TestIsTerminal_Nil(t *testing.T) {
	assert.False(t, IsTerminal(nil))
}

// =============================================================================
// Output Tests
// =============================================================================

func TestSuccess_ByLevel(t *testing.T) {
	out, _ := capture(t, PersonalityMachine)
	Success("saved")
	assert.Equal(t, "OK: saved\n", out.String())

	out, _ = capture(t, PersonalityMinimal)
	Success("saved")
	assert.Contains(t, out.String(), "saved")
	assert.Contains(t, out.String(), string(IconSuccess))
}

func TestWarningAndError_MachineGoToStderr(t *testing.T) {
	out, errOut := capture(t, PersonalityMachine)
	Warning("low disk")
	Error("boom")
	assert.Empty(t, out.String())
	assert.Equal(t, "WARN: low disk\nERROR: boom\n", errOut.String())
}

func TestTitle_SilentForMachines(t *testing.T) {
	out, _ := capture(t, PersonalityMachine)
	Title("Report")
	assert.Empty(t, out.String())
}

func TestKeyValue(t *testing.T) {
	out, _ := capture(t, PersonalityMachine)
	KeyValue("items", 3)
	assert.Equal(t, "items=3\n", out.String())

	out, _ = capture(t, PersonalityStandard)
	KeyValue("items", 3)
	assert.Contains(t, out.String(), "items:")
	assert.Contains(t, out.String(), "3")
}

func TestBox(t *testing.T) {
	out, _ := capture(t, PersonalityMachine)
	Box("Summary", "all good")
	assert.Equal(t, "Summary: all good\n", out.String())

	out, _ = capture(t, PersonalityStandard)
	Box("Summary", "all good")
	assert.Contains(t, out.String(), "Summary")
	assert.Contains(t, out.String(), "all good")
	assert.Greater(t, strings.Count(out.String(), "\n"), 2)
}

func TestProgressBar(t *testing.T) {
	capture(t, PersonalityMachine)
	assert.Equal(t, "70%", ProgressBar(7, 10, 10))
	assert.Equal(t, "100%", ProgressBar(15, 10, 10))
	assert.Equal(t, "0%", ProgressBar(-1, 10, 10))
	assert.Equal(t, "0%", ProgressBar(5, 0, 10))

	capture(t, PersonalityStandard)
	bar := ProgressBar(7, 10, 10)
	assert.Equal(t, 7, strings.Count(bar, "█"))
	assert.Equal(t, 3, strings.Count(bar, "░"))
	assert.True(t, strings.HasSuffix(bar, " 70%"))

	assert.NotPanics(t, func() { ProgressBar(1, 2, -4) })
}
