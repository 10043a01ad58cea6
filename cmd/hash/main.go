// Command hash prints the answer hash to store on a level, and optionally the
// commitment a given caller would submit for it.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"paradox.game/internal/commitment"
)

func main() {
	caller := flag.String("caller", "", "also print the commitment for this address")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hash [-caller 0x...] <answer plaintext>")
		os.Exit(2)
	}
	answer := flag.Arg(0)
	fmt.Println("answer_hash:", commitment.AnswerHash(answer))

	c := strings.TrimSpace(*caller)
	if c == "" {
		return
	}
	if !common.IsHexAddress(c) {
		fmt.Fprintf(os.Stderr, "bad -caller %q\n", c)
		os.Exit(2)
	}
	fmt.Println("commitment: ", commitment.Guess(answer, common.HexToAddress(c)).Hex())
}
