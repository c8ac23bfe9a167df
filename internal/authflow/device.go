package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
)

// loginDeviceCode performs the device code flow:
//  1. Requests a device code from the authorization server
//  2. Shows the user code and verification URL
//  3. Polls until the user authorizes out-of-band (blocking, respects ctx)
func (a *Acquirer) loginDeviceCode(ctx context.Context, oc *oauth2.Config) (*oauth2.Token, error) {
	logger := a.logger()
	logger.Info("starting device-code sign-in")

	da, err := oc.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device auth request failed: %w", err)
	}

	logger.Info("device code received, waiting for user authorization")

	a.showDeviceAuth(DeviceAuth{
		UserCode:        da.UserCode,
		VerificationURI: da.VerificationURI,
	})

	tok, err := oc.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("device code authorization failed: %w", err)
	}

	logger.Info("device sign-in successful", slog.Time("expiry", tok.Expiry))

	return tok, nil
}

func (a *Acquirer) showDeviceAuth(da DeviceAuth) {
	if a.Display != nil {
		a.Display(da)
		return
	}

	fmt.Fprintf(os.Stderr, "To sign in, open %s and enter the code %s\n",
		da.VerificationURI, da.UserCode)
}
