// cmd/tools/adminhash/main.go
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/showcase/internal/auth"
)

// Prints a bcrypt hash suitable for ADMIN_PASSWORD_HASH. The password is read
// from -password or, when omitted, from the first line of stdin.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	password := flag.String("password", "", "Admin password to hash")
	flag.Parse()

	value := *password
	if value == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatal().Err(err).Msg("Failed to read password from stdin")
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		log.Fatal().Msg("Password must not be empty")
	}

	hash, err := auth.HashPassword(value)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}
	fmt.Println(hash)
}
