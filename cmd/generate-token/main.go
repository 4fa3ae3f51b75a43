// Command generate-token mints a bearer JWT for the daemon API. Only
// useful when security.jwtSecret is set; with no secret the API is open.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	secret := flag.String("secret", os.Getenv("SHIELDSWAP_JWT_SECRET"), "JWT signing secret (default from SHIELDSWAP_JWT_SECRET)")
	role := flag.String("role", "user", "role claim embedded in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "No secret: pass -secret or set SHIELDSWAP_JWT_SECRET")
		os.Exit(1)
	}

	now := time.Now()
	claims := struct {
		Role string `json:"role"`
		jwt.RegisteredClaims
	}{
		Role: *role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "shieldswap-client",
			Subject:   *role,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("API Token Generated")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Printf("Role:    %s\n", *role)
	fmt.Printf("Expires: %s\n", claims.ExpiresAt.Time)
	fmt.Println()
	fmt.Printf("Usage: curl -H 'Authorization: Bearer <token>' http://127.0.0.1:8547/api/v1/notes\n")
}
