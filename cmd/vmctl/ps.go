// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ukvm-io/vmd/lib/fuzzy"
)

func init() {
	registerSubcommand("ps", cmdPs)
}

// cmdPs lists the live VM set and, with --pick, lets the operator
// fuzzy-select one id from stdin, printing only that id — the same
// role lib/ticketui's fuzzy picker plays for choosing a ticket, per
// SPEC_FULL.md's DOMAIN STACK table.
func cmdPs(args []string) error {
	var g globalFlags
	var pick bool
	flagSet := pflag.NewFlagSet("vmctl ps", pflag.ContinueOnError)
	g.register(flagSet)
	flagSet.BoolVar(&pick, "pick", false, "fuzzy-select one id interactively instead of listing all")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	glob := "*"
	if rest := flagSet.Args(); len(rest) > 0 {
		glob = rest[0]
	}

	entries, err := fetchInfo(g, glob)
	if err != nil {
		return err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	if !pick {
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}
	return pickOne(ids)
}

// pickOne reads a query line from stdin, ranks ids against it, and
// prints the best match — the non-interactive equivalent of fzf's own
// TTY picker, suitable for `vmctl console $(vmctl ps --pick <<<web)`.
func pickOne(ids []string) error {
	fmt.Fprint(os.Stderr, "query> ")
	scanner := bufio.NewScanner(os.Stdin)
	query := ""
	if scanner.Scan() {
		query = strings.TrimSpace(scanner.Text())
	}
	matches := fuzzy.Rank(ids, query)
	if len(matches) == 0 {
		return fmt.Errorf("no vm id matches %q", query)
	}
	fmt.Println(matches[0].Text)
	return nil
}
