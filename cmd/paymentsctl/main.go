// Command paymentsctl is the operator shell for the payment store: it records,
// looks up, corrects and deletes payments and reports backend status.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd(openStore).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
