// Command generate-totp manages the TOTP guard for export/import/clear.
// With -new it generates a fresh secret to put into security.totpSecret;
// otherwise it prints the current code for an existing secret.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pquerna/otp/totp"
)

func main() {
	newSecret := flag.Bool("new", false, "generate a fresh secret instead of a code")
	secret := flag.String("secret", os.Getenv("SHIELDSWAP_TOTP_SECRET"), "TOTP secret (default from SHIELDSWAP_TOTP_SECRET)")
	flag.Parse()

	if *newSecret {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      "shieldswap-client",
			AccountName: "local",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating secret: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Secret:      %s\n", key.Secret())
		fmt.Printf("Otpauth URL: %s\n", key.URL())
		fmt.Println()
		fmt.Println("Put the secret into security.totpSecret (or SHIELDSWAP_TOTP_SECRET)")
		fmt.Println("and add the otpauth URL to an authenticator app.")
		return
	}

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "No secret: pass -secret, set SHIELDSWAP_TOTP_SECRET, or use -new")
		os.Exit(1)
	}

	code, err := totp.GenerateCode(*secret, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating TOTP code: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Current TOTP Code: %s\n", code)
	fmt.Printf("Valid for: ~30 seconds\n")
}
