package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// Generates the admin credential material referenced by the
// configuration: a bcrypt password hash, a TOTP secret and the TOTP
// code currently valid for it.
func main() {
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Println("ADMIN_PASSWORD environment variable is required")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Error hashing password: %v\n", err)
		os.Exit(1)
	}

	secret := os.Getenv("ADMIN_TOTP_SECRET")
	if secret == "" {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      "ChainVault Admin",
			AccountName: "admin@chainvault",
			Period:      30,
			Digits:      otp.DigitsSix,
			Algorithm:   otp.AlgorithmSHA1,
		})
		if err != nil {
			fmt.Printf("Error generating TOTP secret: %v\n", err)
			os.Exit(1)
		}
		secret = key.Secret()
		fmt.Printf("New TOTP secret: %s\n", secret)
		fmt.Printf("Provisioning URL: %s\n", key.URL())
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		fmt.Printf("Error generating TOTP code: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Password hash: %s\n", string(hash))
	fmt.Printf("Current TOTP code: %s (valid ~30s)\n", code)
	fmt.Println()
	fmt.Println("Set admin.password_hash and admin.totp_secret in config.yaml")
}
