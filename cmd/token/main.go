// Command token mints an access token for the booking API.  It reads
// JWT_SECRET from the environment (or .env) like the server does.
//
//	token -sub ops -role ADMIN -ttl 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-booking-inventory/internal/utils"
)

func main() {
	sub := flag.String("sub", "ops", "token subject")
	role := flag.String("role", utils.RoleAdmin, "role claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *sub, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
