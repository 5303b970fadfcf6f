package main

import (
	"context"
	"fmt"
	"io"

	"landowebtool/internal/adapter/serper"
)

func runValidateKey(ctx context.Context, stdout io.Writer) error {
	a, err := newApp(ctx, configPath(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := serper.New(a.cfg.Serper.APIKey, a.serper, a.log)
	if err != nil {
		return err
	}
	if !client.ValidateAPIKey(ctx) {
		fmt.Fprintln(stdout, "invalid: the Serper API rejected the key")
		return exitError(1)
	}
	fmt.Fprintln(stdout, "valid")
	return nil
}
