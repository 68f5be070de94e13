// Command verify checks a saved Verifier response offline: it decodes the
// presentation, validates the PID document against a folder of trusted
// issuers and prints the disclosed identity.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/pflag"

	"github.com/kokukuma/mdoc-rssp/internal/identity"
	"github.com/kokukuma/mdoc-rssp/internal/trust"
	"github.com/kokukuma/mdoc-rssp/mdoc"
	"github.com/kokukuma/mdoc-rssp/openid4vp"
	"github.com/kokukuma/mdoc-rssp/pkg/clock"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var envelopePath, issuersDir, revocationURL, at string
	var dump bool

	flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	flagSet.StringVar(&envelopePath, "envelope", "", "path to the Verifier JSON response")
	flagSet.StringVar(&issuersDir, "trusted-issuers", "trusted_issuers", "folder of trusted IACA certificates (.pem)")
	flagSet.StringVar(&revocationURL, "revocation-url", "", "revocation status service (empty: no revocation check)")
	flagSet.StringVar(&at, "at", "", "evaluate validity at this date (YYYY-MM-DD) instead of now")
	flagSet.BoolVar(&dump, "dump", false, "dump the decoded device response")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if envelopePath == "" {
		return errors.New("--envelope is required")
	}

	now := time.Now()
	if at != "" {
		var err error
		now, err = time.Parse("2006-01-02", at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}

	envelope, err := os.ReadFile(envelopePath)
	if err != nil {
		return fmt.Errorf("failed to read envelope: %w", err)
	}

	issuers, skipped, err := trust.LoadIssuerSet(issuersDir)
	if err != nil {
		return err
	}
	for file, err := range skipped {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", file, err)
	}

	var revocation mdoc.RevocationChecker = trust.NeverRevoked{}
	if revocationURL != "" {
		revocation = trust.NewHTTPRevocationChecker(revocationURL, 10*time.Second, nil)
	}

	presentation, id, err := verifyEnvelope(context.Background(), envelope, issuers, revocation, now)
	if presentation != nil && dump {
		spew.Fdump(out, presentation.Response)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "family_name :", id.FamilyName)
	fmt.Fprintln(out, "given_name :", id.GivenName)
	fmt.Fprintln(out, "birth_date :", id.BirthDate)
	fmt.Fprintln(out, "issuing_country :", id.IssuingCountry)
	if id.IssuingAuthority != "" {
		fmt.Fprintln(out, "issuing_authority :", id.IssuingAuthority)
	}
	fmt.Fprintln(out, "age_over_18 :", id.AgeOver18)
	fmt.Fprintln(out, "hash :", id.Hash)
	return nil
}

func verifyEnvelope(ctx context.Context, envelope []byte, anchors mdoc.TrustAnchors, revocation mdoc.RevocationChecker, now time.Time) (*openid4vp.Presentation, *identity.VerifiedIdentity, error) {
	presentation, err := openid4vp.NewDecoder().Decode(envelope)
	if err != nil {
		return nil, nil, err
	}

	v := mdoc.NewVerifier(anchors, revocation, mdoc.WithClock(clock.Fake(now)))
	if err := v.Verify(ctx, presentation.Document); err != nil {
		return presentation, nil, err
	}

	id, err := identity.Extract(presentation.Document)
	if err != nil {
		return presentation, nil, err
	}
	return presentation, id, nil
}
