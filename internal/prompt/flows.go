package prompt

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-formkit/pkg/config"
)

// FillDeploy asks for each deploy setting that is still empty on cfg.
// fallbackAppID pre-fills the app id prompt, typically from the parsed spec.
func FillDeploy(ctx context.Context, d Driver, cfg *config.Config, fallbackAppID string) error {
	if cfg.Server.BaseURL == "" {
		v, err := d.Input(ctx, InputConfig{
			Message:   "Platform base URL:",
			Help:      "Scheme, host and context path, for example https://apps.example.com/jw",
			Validator: absoluteURL,
		})
		if err != nil {
			return err
		}
		cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(v), "/")
	}
	if cfg.Server.APIID == "" {
		v, err := d.Input(ctx, InputConfig{Message: "API id:", Validator: required("api id")})
		if err != nil {
			return err
		}
		cfg.Server.APIID = strings.TrimSpace(v)
	}
	if cfg.Server.APIKey == "" {
		v, err := d.Password(ctx, InputConfig{Message: "API key:", Validator: required("api key")})
		if err != nil {
			return err
		}
		cfg.Server.APIKey = v
	}
	if cfg.App.AppID == "" {
		v, err := d.Input(ctx, InputConfig{
			Message:   "Target app id:",
			Default:   fallbackAppID,
			Validator: required("app id"),
		})
		if err != nil {
			return err
		}
		cfg.App.AppID = strings.TrimSpace(v)
	}
	return nil
}

// ChooseParser lets the operator pick a parser when the input extension does
// not identify one.
func ChooseParser(ctx context.Context, d Driver, input string, names []string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("prompt: no parsers registered")
	}
	idx, err := d.Select(ctx, SelectConfig{
		Message: fmt.Sprintf("Which parser reads %s?", input),
		Options: names,
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(names) {
		return "", fmt.Errorf("prompt: parser choice %d out of range", idx)
	}
	return names[idx], nil
}

// ConfirmOverwrite asks before replacing existing artifacts.
func ConfirmOverwrite(ctx context.Context, d Driver, location string) (bool, error) {
	return d.Confirm(ctx, ConfirmConfig{
		Message: fmt.Sprintf("Overwrite existing artifacts in %s?", location),
	})
}

func absoluteURL(v string) error {
	u, err := url.Parse(strings.TrimSpace(v))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", v)
	}
	return nil
}

func required(name string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
