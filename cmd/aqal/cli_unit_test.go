// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topherchris420/aqal/cmd/aqal/config"
	"github.com/topherchris420/aqal/pkg/ux"
	"github.com/topherchris420/aqal/services/insight_engine"
	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

func withPersonality(t *testing.T, level ux.PersonalityLevel) {
	t.Helper()
	orig := ux.GetPersonality()
	ux.SetPersonalityLevel(level)
	t.Cleanup(func() { ux.SetPersonality(orig) })
}

func testConfig(t *testing.T) config.AqalConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	return cfg
}

func sampleProfile() datatypes.Profile {
	p := datatypes.NewProfile()
	p.Quadrants[datatypes.IndividualInterior] = datatypes.Quadrant{
		Components: []datatypes.ComponentRef{{ID: "emotional", Name: "Emotional", Category: "lines"}},
	}
	p.DevelopmentalLines["cognitive"] = 7
	p.DevelopmentalLines["emotional"] = 4
	return p
}

// =============================================================================
// Environment Helpers
// =============================================================================

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("AQAL_TEST_STRING", "hello")
	t.Setenv("AQAL_TEST_INT", "42")
	t.Setenv("AQAL_TEST_BAD_INT", "forty-two")
	t.Setenv("AQAL_TEST_DURATION", "90s")
	t.Setenv("AQAL_TEST_BOOL", "true")

	assert.Equal(t, "hello", getEnvString("AQAL_TEST_STRING", "x"))
	assert.Equal(t, "x", getEnvString("AQAL_TEST_UNSET", "x"))
	assert.Equal(t, 42, getEnvInt("AQAL_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("AQAL_TEST_BAD_INT", 1))
	assert.Equal(t, 90*time.Second, getEnvDuration("AQAL_TEST_DURATION", time.Hour))
	assert.Equal(t, time.Hour, getEnvDuration("AQAL_TEST_UNSET", time.Hour))
	assert.True(t, getEnvBool("AQAL_TEST_BOOL", false))
	assert.False(t, getEnvBool("AQAL_TEST_UNSET", false))
}

func TestServeConfigFromEnv(t *testing.T) {
	t.Setenv("AQAL_PORT", "9000")
	t.Setenv("AQAL_ENV", "production")
	t.Setenv("AQAL_DATA_DIR", "/var/lib/aqal")
	t.Setenv("AQAL_STORE_MAX_SIZE_MB", "10")
	t.Setenv("AQAL_SESSION_TTL", "2h")
	t.Setenv("INFLUX_URL", "http://influx:8086")
	t.Setenv("AQAL_LOG_JSON", "false")

	cfg := serveConfigFromEnv()
	defer cfg.Logger.Close()

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "/var/lib/aqal", cfg.DataDir)
	assert.Equal(t, int64(10<<20), cfg.StoreMaxSize)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "http://influx:8086", cfg.Influx.URL)
	assert.Equal(t, "aqal", cfg.Influx.Org)
	assert.NotNil(t, cfg.Logger)
}

// =============================================================================
// Profile Files
// =============================================================================

func TestDecodeProfile_AcceptedShapes(t *testing.T) {
	p := sampleProfile()
	bare, err := json.Marshal(p)
	require.NoError(t, err)

	data := datatypes.NewUserData()
	data.Profile = p
	wrapped, err := json.Marshal(data)
	require.NoError(t, err)

	exported, err := json.Marshal(map[string]any{"userId": "u1", "version": "1.0", "data": json.RawMessage(wrapped)})
	require.NoError(t, err)

	for name, raw := range map[string][]byte{"bare": bare, "user data": wrapped, "export": exported} {
		got, err := decodeProfile(raw)
		require.NoError(t, err, name)
		assert.Len(t, got.Quadrants[datatypes.IndividualInterior].Components, 1, name)
		assert.Equal(t, 7.0, got.DevelopmentalLines["cognitive"], name)
	}

	_, err = decodeProfile([]byte(`{"theme":"dark"}`))
	assert.ErrorIs(t, err, errNoProfile)
	_, err = decodeProfile([]byte(`not json`))
	assert.Error(t, err)
}

func TestProfileFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, writeProfileFile(path, sampleProfile()))

	got, err := readProfileFile(path)
	require.NoError(t, err)
	assert.Equal(t, "emotional", got.Quadrants[datatypes.IndividualInterior].Components[0].ID)

	_, err = readProfileFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// =============================================================================
// Rendering
// =============================================================================

func TestRenderMap_Machine(t *testing.T) {
	withPersonality(t, ux.PersonalityMachine)
	engine, err := insight_engine.NewEngine()
	require.NoError(t, err)

	out := renderMap(engine.BuildVisualMap(sampleProfile()))
	assert.Contains(t, out, "quadrant=individual_interior components=1 strength=20\n")
	assert.Contains(t, out, "line=cognitive value=7.0\n")
	assert.Contains(t, out, "strongest=individual_interior")
}

func TestRenderMap_Styled(t *testing.T) {
	withPersonality(t, ux.PersonalityStandard)
	engine, err := insight_engine.NewEngine()
	require.NoError(t, err)

	out := renderMap(engine.BuildVisualMap(sampleProfile()))
	for _, q := range datatypes.QuadrantIDs {
		assert.Contains(t, out, strings.ToUpper(q.Label()))
	}
	assert.Contains(t, out, "Developmental lines")
	assert.Contains(t, out, "cognitive")
}

func TestRenderReport(t *testing.T) {
	engine, err := insight_engine.NewEngine()
	require.NoError(t, err)
	p := sampleProfile()
	report, plan := engine.GenerateReport(p), engine.GenerateDevelopmentPlan(p)

	withPersonality(t, ux.PersonalityMachine)
	out := renderReport(report, plan)
	assert.True(t, strings.HasPrefix(out, "score="))
	assert.Contains(t, out, "timeframe="+plan.EstimatedTimeframe)

	withPersonality(t, ux.PersonalityStandard)
	out = renderReport(report, plan)
	assert.Contains(t, out, "Integral insights")
	assert.Contains(t, out, "Development plan")
}

// =============================================================================
// Assessment
// =============================================================================

func TestAssessmentAnswers_Submission(t *testing.T) {
	p := sampleProfile()
	p.QuadrantReflections = map[datatypes.QuadrantID]string{datatypes.CollectiveExterior: "Volunteer work"}
	answers := newAssessmentAnswers(p)

	assert.Equal(t, datatypes.DefaultSpiralTier, answers.SpiralTier)
	assert.Equal(t, 7, *answers.Ratings["cognitive"])
	assert.Equal(t, 1, *answers.Ratings["moral"], "unrated lines start at 1")

	*answers.Ratings["moral"] = 6
	answers.EgoStage = "strategist"

	sub := answers.Submission()
	require.NoError(t, sub.Validate())
	assert.Equal(t, 6.0, sub.LineRatings["moral"])
	assert.Equal(t, "strategist", sub.EgoStage)
	assert.Equal(t, map[string]string{"collective_exterior": "Volunteer work"}, sub.QuadrantReflections)
}

func TestAssessmentAnswers_NoLinesUsesDefaults(t *testing.T) {
	p := datatypes.NewProfile()
	p.DevelopmentalLines = map[string]float64{}
	answers := newAssessmentAnswers(p)
	assert.Equal(t, datatypes.DefaultLines, answers.Lines)
}

func TestAssessmentForm_Builds(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	assert.Len(t, categoryOptions(cat, "spiral"), 8)
	assert.Len(t, categoryOptions(cat, "ego"), 7)
	assert.Empty(t, categoryOptions(cat, "nope"))
	assert.NotNil(t, assessmentForm(cat, newAssessmentAnswers(sampleProfile())))
}

// =============================================================================
// Local Store
// =============================================================================

func TestLocalStore_ExportImportStats(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	_, err := exportLocal(ctx, cfg)
	require.Error(t, err, "nothing stored yet")

	ls, err := openLocalStore(ctx, cfg)
	require.NoError(t, err)
	_, err = ls.users.Update(ctx, cfg.UserID, func(ud *datatypes.UserData) error {
		ud.Profile = sampleProfile()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, ls.Close())

	doc, err := exportLocal(ctx, cfg)
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"userId": "local-user"`)

	other := cfg
	other.UserID = "alice"
	require.NoError(t, importLocal(ctx, other, doc))

	config.Global = other
	t.Cleanup(func() { config.Global = config.AqalConfig{} })
	p, err := loadProfile(ctx, "")
	require.NoError(t, err)
	assert.Len(t, p.Quadrants[datatypes.IndividualInterior].Components, 1)

	rep, err := statsLocal(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Stats.ItemCount)
	assert.Zero(t, rep.Sweep.Removed())
	assert.Equal(t, cfg.Store.MaxSizeBytes(), rep.MaxSize)
}

func TestRunBackup_RequiresBucket(t *testing.T) {
	config.Global = testConfig(t)
	t.Cleanup(func() { config.Global = config.AqalConfig{} })
	backupBucket = ""

	err := runBackup(backupCmd, nil)
	assert.ErrorIs(t, err, errNoBucket)
}

func TestRunAssess_NonInteractive(t *testing.T) {
	withPersonality(t, ux.PersonalityMachine)
	assert.ErrorIs(t, runAssess(assessCmd, nil), errNotInteractive)
}
