package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pdftrack/internal/issuancelog"
	"pdftrack/internal/pipeline"
	"pdftrack/internal/platform/config"
	"pdftrack/internal/tracking"
)

// contentTerminator ends multi-line content entry in the menu.
const contentTerminator = "END"

var errInvalidChoice = errors.New("invalid choice")

const menuText = `
PDF tracking system
  1. Generate tracked PDF
  2. Run collector
  3. View tracking log
  4. Exit
`

// prompter reads answers line by line from the command input.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// readBlock collects lines until the terminator or end of input.
func (p *prompter) readBlock() (string, error) {
	fmt.Fprintf(p.out, "Enter content, %s on its own line to finish:\n", contentTerminator)
	var lines []string
	for p.in.Scan() {
		line := p.in.Text()
		if strings.TrimSpace(line) == contentTerminator {
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), p.in.Err()
}

// runMenu loops over the menu until the operator exits or input ends. An
// unknown choice is reported and ends the session with an error.
func runMenu(cmd *cobra.Command, root *rootOptions) error {
	cfg, err := config.TrackerFromEnv()
	if err != nil {
		return err
	}
	p := &prompter{in: bufio.NewScanner(cmd.InOrStdin()), out: cmd.OutOrStdout()}
	var iss *issuer

	for {
		fmt.Fprint(p.out, menuText)
		choice, err := p.ask("Choice: ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			if iss == nil {
				iss = newIssuer(cfg, root.newLogger(cmd, cfg.Log))
			}
			if err := menuGenerate(cmd, p, iss); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				fmt.Fprintf(p.out, "Error: %v\n", err)
			}
		case "2":
			ccfg, err := config.CollectorFromEnv()
			if err != nil {
				return err
			}
			fmt.Fprintf(p.out, "Collector listening on %s (Ctrl+C to stop)\n", ccfg.Addr)
			return runCollector(cmd, root, ccfg)
		case "3":
			if err := showLog(cmd, issuancelog.New(cfg.LogPath), false); err != nil {
				fmt.Fprintf(p.out, "Error: %v\n", err)
			}
		case "4":
			return nil
		default:
			return fmt.Errorf("%w: %q", errInvalidChoice, choice)
		}
	}
}

func menuGenerate(cmd *cobra.Command, p *prompter, iss *issuer) error {
	name, err := p.ask("Name: ")
	if err != nil {
		return err
	}
	email, err := p.ask("Email: ")
	if err != nil {
		return err
	}
	ip, err := p.ask("IP (blank to detect): ")
	if err != nil {
		return err
	}
	content, err := p.readBlock()
	if err != nil {
		return err
	}

	res, err := iss.service.Issue(cmd.Context(), pipeline.Request{
		Content: content,
		Recipient: tracking.RecipientInfo{
			Name:          name,
			Email:         email,
			SourceAddress: ip,
		},
	})
	if err != nil {
		return err
	}
	printResult(p.out, res)
	return nil
}
