package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shandysiswandi/otpgate/internal/app"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		var subject, role string
		if len(os.Args) == 4 {
			subject, role = os.Args[2], os.Args[3]
		}
		token, err := app.IssueOperatorToken(subject, role)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Println(token)
		return
	}

	if err := app.New().Run(10 * time.Second); err != nil {
		os.Exit(1)
	}
}
