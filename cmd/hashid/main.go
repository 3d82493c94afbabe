// Command hashid prints the client identifier the board stores for an
// address. Operators use it to find the value for IDENTITY_EXEMPT_HASH or
// to match an address against stored tracking records.
//
// Usage:
//
//	hashid [-key KEY] ADDRESS...
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/keyxmakerx/chatboard/internal/config"
	"github.com/keyxmakerx/chatboard/internal/identity"
)

func main() {
	_ = godotenv.Load()

	ident := config.LoadIdentity()

	key := flag.String("key", ident.HashKey, "digest key (defaults to IDENTITY_HASH_KEY)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: hashid [-key KEY] ADDRESS...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var keyBytes []byte
	if *key != "" {
		keyBytes = []byte(*key)
	}
	for _, addr := range flag.Args() {
		fmt.Printf("%s\t%s\n", addr, identity.Digest(addr, keyBytes))
	}
}
