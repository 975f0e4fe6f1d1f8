package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formkit/pkg/config"
)

type stubDriver struct {
	inputs    []string
	passwords []string
	confirm   []bool
	selects   []int

	asked []string
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	s.asked = append(s.asked, cfg.Message)
	if len(s.inputs) == 0 {
		return "", errors.New("no input scripted")
	}
	v := s.inputs[0]
	s.inputs = s.inputs[1:]
	if v == "" {
		v = cfg.Default
	}
	if cfg.Validator != nil {
		if err := cfg.Validator(v); err != nil {
			return "", err
		}
	}
	return v, nil
}

func (s *stubDriver) Password(_ context.Context, cfg InputConfig) (string, error) {
	s.asked = append(s.asked, cfg.Message)
	if len(s.passwords) == 0 {
		return "", errors.New("no password scripted")
	}
	v := s.passwords[0]
	s.passwords = s.passwords[1:]
	return v, nil
}

func (s *stubDriver) Confirm(_ context.Context, cfg ConfirmConfig) (bool, error) {
	s.asked = append(s.asked, cfg.Message)
	if len(s.confirm) == 0 {
		return false, errors.New("no confirm scripted")
	}
	v := s.confirm[0]
	s.confirm = s.confirm[1:]
	return v, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.asked = append(s.asked, cfg.Message)
	if len(s.selects) == 0 {
		return -1, errors.New("no select scripted")
	}
	v := s.selects[0]
	s.selects = s.selects[1:]
	return v, nil
}

func TestFillDeploy_AsksOnlyForMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Server.APIID = "API-1"

	d := &stubDriver{
		inputs:    []string{"https://apps.example.com/jw/", ""},
		passwords: []string{"secret"},
	}
	require.NoError(t, FillDeploy(context.Background(), d, cfg, "crm"))

	assert.Equal(t, []string{"Platform base URL:", "API key:", "Target app id:"}, d.asked)
	assert.Equal(t, "https://apps.example.com/jw", cfg.Server.BaseURL)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, "crm", cfg.App.AppID)
	assert.NoError(t, cfg.ValidateDeploy())
}

func TestFillDeploy_RejectsRelativeURL(t *testing.T) {
	cfg := config.Default()
	d := &stubDriver{inputs: []string{"apps.example.com"}}
	err := FillDeploy(context.Background(), d, cfg, "")
	assert.ErrorContains(t, err, "absolute URL")
	assert.Empty(t, cfg.Server.BaseURL)
}

func TestFillDeploy_Complete(t *testing.T) {
	cfg := config.Default()
	cfg.Server.BaseURL = "http://joget.local/jw"
	cfg.Server.APIID = "id"
	cfg.Server.APIKey = "key"
	cfg.App.AppID = "crm"
	d := &stubDriver{}
	require.NoError(t, FillDeploy(context.Background(), d, cfg, "other"))
	assert.Empty(t, d.asked)
}

func TestChooseParser(t *testing.T) {
	d := &stubDriver{selects: []int{1, 7}}
	names := []string{"csv", "markdown"}

	got, err := ChooseParser(context.Background(), d, "notes.txt", names)
	require.NoError(t, err)
	assert.Equal(t, "markdown", got)

	_, err = ChooseParser(context.Background(), d, "notes.txt", names)
	assert.ErrorContains(t, err, "out of range")

	_, err = ChooseParser(context.Background(), d, "notes.txt", nil)
	assert.Error(t, err)
}

func TestConfirmOverwrite(t *testing.T) {
	d := &stubDriver{confirm: []bool{true}}
	ok, err := ConfirmOverwrite(context.Background(), d, "build/")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"Overwrite existing artifacts in build/?"}, d.asked)
}
