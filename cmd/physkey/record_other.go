//go:build !linux

package main

import (
	"context"
	"errors"

	"physkey/internal/evdev"
)

func captureKeys(context.Context, string, captureOptions, func(evdev.InputEvent) error) (string, error) {
	return "", errors.New("recording needs Linux evdev")
}
