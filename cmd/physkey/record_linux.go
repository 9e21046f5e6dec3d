//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"

	"physkey/internal/evdev"
)

// captureKeys reads path, or the first keyboard when path is empty, until
// ctx ends. It returns the device name.
func captureKeys(ctx context.Context, path string, opts captureOptions, fn func(evdev.InputEvent) error) (string, error) {
	if path == "" {
		kbds, err := evdev.Keyboards()
		if err != nil {
			return "", fmt.Errorf("list keyboards: %w", err)
		}
		if len(kbds) == 0 {
			return "", errors.New("no keyboard found; pass -device")
		}
		path = kbds[0].EventNode()
	}

	dev, err := evdev.Open(path)
	if err != nil {
		return "", err
	}
	defer dev.Close()

	if opts.repeat != nil {
		prev, err := dev.Repeat()
		if err != nil {
			return dev.Name(), err
		}
		if err := dev.SetRepeat(*opts.repeat); err != nil {
			return dev.Name(), err
		}
		defer func() { _ = dev.SetRepeat(prev) }()
	}
	if opts.grab {
		if err := dev.Grab(); err != nil {
			return dev.Name(), err
		}
	}
	return dev.Name(), dev.ReadEvents(ctx, fn)
}
